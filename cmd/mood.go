package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nightlifeflyers/flyerstudio/internal/mood"
	"github.com/nightlifeflyers/flyerstudio/internal/raster"
)

var (
	moodCacheMB  int64
	moodThumbDir string
	moodWorkers  int
)

var moodCmd = &cobra.Command{
	Use:   "mood <source>...",
	Short: "Extract style prompts from reference images",
	Long: `Analyses each reference image (brightness, contrast, saturation, edge energy and
hue palette) and prints the derived style prompt and blurred reference as JSON.
Sources that cannot be analysed yield the neutral fallback prompt. Repeated
sources are served from an in-memory cache.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMood,
}

func init() {
	moodCmd.Flags().Int64Var(&moodCacheMB, "cache-mb", 64, "Signal cache budget in MiB")
	moodCmd.Flags().StringVar(&moodThumbDir, "thumbnails", "", "Directory to write blurred reference PNGs into")
	moodCmd.Flags().IntVar(&moodWorkers, "workers", 4, "Sources analysed concurrently")
	rootCmd.AddCommand(moodCmd)
}

type moodResult struct {
	Source string       `json:"source"`
	Signal *mood.Signal `json:"signal"`
}

func runMood(cmd *cobra.Command, args []string) error {
	cache, err := mood.NewMemoryCache(moodCacheMB<<20, time.Hour)
	if err != nil {
		return err
	}
	defer cache.Close()
	extractor := mood.NewExtractor(newLoader(true), cache)

	results := make([]moodResult, len(args))
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(max(1, moodWorkers))
	for i, src := range args {
		g.Go(func() error {
			results[i] = moodResult{Source: src, Signal: extractor.Extract(ctx, src)}
			return nil
		})
	}
	g.Wait()

	if moodThumbDir != "" {
		if err := writeThumbnails(results); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

func writeThumbnails(results []moodResult) error {
	if err := os.MkdirAll(moodThumbDir, 0755); err != nil {
		return fmt.Errorf("failed to create thumbnail directory: %w", err)
	}
	for i, r := range results {
		if r.Signal.BlurredReference == nil {
			continue
		}
		_, data, err := raster.DecodeDataURI(*r.Signal.BlurredReference)
		if err != nil {
			return fmt.Errorf("failed to decode thumbnail: %w", err)
		}
		path := filepath.Join(moodThumbDir, fmt.Sprintf("reference-%02d.png", i+1))
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("failed to write thumbnail: %w", err)
		}
		slog.Info("Thumbnail written", "source", r.Source, "path", path)
	}
	return nil
}
