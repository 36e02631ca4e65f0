package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nightlifeflyers/flyerstudio/internal/store"
)

var (
	keepLast      int
	olderThanDays int
	forceClean    bool
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Manage stored cleanup results",
	Long: `Manage the results that server jobs leave in the data directory: the result
record, the cleaned PNG and the per-stage trace of every finished job.`,
}

var listJobsCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored job results",
	RunE:  runListResults,
}

var cleanJobsCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete old job results",
	Long: `Delete stored job results based on a retention policy.
Keep only the newest N results, delete results older than N days, or both.`,
	RunE: runCleanResults,
}

func init() {
	rootCmd.AddCommand(jobsCmd)
	jobsCmd.AddCommand(listJobsCmd)
	jobsCmd.AddCommand(cleanJobsCmd)

	cleanJobsCmd.Flags().IntVar(&keepLast, "keep-last", 0, "Keep only the newest N results (0 = keep all)")
	cleanJobsCmd.Flags().IntVar(&olderThanDays, "older-than", 0, "Delete results older than N days (0 = no age limit)")
	cleanJobsCmd.Flags().BoolVarP(&forceClean, "force", "f", false, "Skip confirmation prompt")
}

func runListResults(cmd *cobra.Command, args []string) error {
	resultStore, err := store.NewFSStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}

	infos, err := resultStore.ListResults()
	if err != nil {
		return fmt.Errorf("failed to list results: %w", err)
	}

	if len(infos) == 0 {
		fmt.Println("No job results found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "JOB ID\tTIMESTAMP\tSIZE\tSTAGES\tDISK\tSOURCE")
	fmt.Fprintln(w, "------\t---------\t----\t------\t----\t------")

	for _, info := range infos {
		jobDir := filepath.Join(dataDir, "jobs", info.JobID)
		disk := "unknown"
		if size, err := getDirSize(jobDir); err == nil {
			disk = formatBytes(size)
		}

		fmt.Fprintf(w, "%s\t%s\t%dx%d\t%d\t%s\t%s\n",
			shortID(info.JobID),
			info.Timestamp.Format("2006-01-02 15:04:05"),
			info.Width, info.Height,
			info.Stages,
			disk,
			info.Source,
		)
	}
	w.Flush()

	fmt.Printf("\nTotal results: %d\n", len(infos))
	return nil
}

func runCleanResults(cmd *cobra.Command, args []string) error {
	if keepLast == 0 && olderThanDays == 0 {
		return fmt.Errorf("must specify either --keep-last or --older-than")
	}

	resultStore, err := store.NewFSStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}

	infos, err := resultStore.ListResults()
	if err != nil {
		return fmt.Errorf("failed to list results: %w", err)
	}

	if len(infos) == 0 {
		fmt.Println("No job results to clean.")
		return nil
	}

	toDelete := selectResultsForDeletion(infos, keepLast, olderThanDays)
	if len(toDelete) == 0 {
		fmt.Println("No job results match deletion criteria.")
		return nil
	}

	fmt.Printf("Found %d job result(s) to delete:\n", len(toDelete))
	for _, info := range toDelete {
		fmt.Printf("  - %s (%s, %s)\n",
			shortID(info.JobID),
			info.Source,
			info.Timestamp.Format("2006-01-02 15:04:05"),
		)
	}

	if !forceClean {
		fmt.Print("\nProceed with deletion? [y/N]: ")
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	deleted := 0
	failed := 0
	for _, info := range toDelete {
		if err := resultStore.DeleteResult(info.JobID); err != nil {
			slog.Error("Failed to delete job result", "job_id", info.JobID, "error", err)
			failed++
		} else {
			slog.Info("Deleted job result", "job_id", info.JobID)
			deleted++
		}
	}

	fmt.Printf("\nDeleted %d job result(s), %d failed.\n", deleted, failed)
	return nil
}

// selectResultsForDeletion applies the retention policy. A result is selected
// when it is older than olderThanDays or falls outside the newest keepLast.
func selectResultsForDeletion(infos []store.ResultInfo, keepLast int, olderThanDays int) []store.ResultInfo {
	sorted := make([]store.ResultInfo, len(infos))
	copy(sorted, infos)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Timestamp.After(sorted[j].Timestamp) })

	var cutoff time.Time
	if olderThanDays > 0 {
		cutoff = time.Now().AddDate(0, 0, -olderThanDays)
	}

	var toDelete []store.ResultInfo
	for i, info := range sorted {
		expired := olderThanDays > 0 && info.Timestamp.Before(cutoff)
		surplus := keepLast > 0 && i >= keepLast
		if expired || surplus {
			toDelete = append(toDelete, info)
		}
	}
	return toDelete
}

// getDirSize calculates the total size of a directory
func getDirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}

// formatBytes formats bytes as human-readable string
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
