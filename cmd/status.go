package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverURL string
)

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Query server status or specific job",
	Long: `Queries the server for cleanup job status information.
If no job-id is provided, lists all jobs.
If job-id is provided, shows detailed status for that job.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	rootCmd.AddCommand(statusCmd)
}

// jobView mirrors the job JSON served by the API.
type jobView struct {
	ID              string    `json:"id"`
	State           string    `json:"state"`
	Source          string    `json:"source"`
	Stages          []string  `json:"stages"`
	CompletedStages int       `json:"completedStages"`
	Width           int       `json:"width"`
	Height          int       `json:"height"`
	OpaquePixels    int       `json:"opaquePixels"`
	Elapsed         float64   `json:"elapsed"`
	Progress        float64   `json:"progress"`
	StartTime       time.Time `json:"startTime"`
	Error           string    `json:"error"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	base := strings.TrimRight(serverURL, "/")
	if len(args) == 0 {
		return listJobs(base + "/api/v1/jobs")
	}
	jobID := args[0]
	return getJobStatus(fmt.Sprintf("%s/api/v1/jobs/%s/status", base, jobID), jobID)
}

func fetchJSON(url string, v any) (int, error) {
	resp, err := http.Get(url)
	if err != nil {
		return 0, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("server returned error: %s", strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.StatusCode, nil
}

func listJobs(url string) error {
	var jobs []jobView
	if _, err := fetchJSON(url, &jobs); err != nil {
		return err
	}

	if len(jobs) == 0 {
		fmt.Println("No jobs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "JOB ID\tSTATE\tSTAGES\tSIZE\tSOURCE")
	fmt.Fprintln(w, "------\t-----\t------\t----\t------")
	for _, job := range jobs {
		size := "-"
		if job.Width > 0 {
			size = fmt.Sprintf("%dx%d", job.Width, job.Height)
		}
		fmt.Fprintf(w, "%s\t%s\t%d/%d\t%s\t%s\n",
			shortID(job.ID), job.State, job.CompletedStages, len(job.Stages), size, job.Source)
	}
	w.Flush()

	fmt.Printf("\nTotal jobs: %d\n", len(jobs))
	return nil
}

func getJobStatus(url, jobID string) error {
	var job jobView
	code, err := fetchJSON(url, &job)
	if code == http.StatusNotFound {
		return fmt.Errorf("job not found: %s", jobID)
	}
	if err != nil {
		return err
	}

	fmt.Printf("Job: %s\n", job.ID)
	fmt.Printf("State: %s\n", job.State)
	fmt.Println()

	fmt.Println("Configuration:")
	fmt.Printf("  Source: %s\n", job.Source)
	if len(job.Stages) == 0 {
		fmt.Println("  Stages: none (identity)")
	} else {
		fmt.Printf("  Stages: %s\n", strings.Join(job.Stages, " -> "))
	}
	fmt.Println()

	fmt.Println("Progress:")
	fmt.Printf("  Completed: %d/%d (%.0f%%)\n", job.CompletedStages, len(job.Stages), job.Progress*100)
	if job.Width > 0 {
		fmt.Printf("  Size: %dx%d\n", job.Width, job.Height)
		fmt.Printf("  Opaque pixels: %d\n", job.OpaquePixels)
	}
	elapsed := time.Duration(job.Elapsed * float64(time.Second))
	fmt.Printf("  Elapsed: %s\n", elapsed.Round(time.Millisecond))

	if job.Error != "" {
		fmt.Printf("\nError: %s\n", job.Error)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12] + "..."
	}
	return id
}
