package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nightlifeflyers/flyerstudio/internal/raster"
)

var (
	logLevel   string
	dataDir    string
	sourceRoot string
	allowLAN   bool
	logger     *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "flyerstudio",
	Short: "Cutout refinement and style tooling for nightlife flyers",
	Long: `Flyer Studio cleans up background-removed subject cutouts, extracts the mood of
reference images, keys green screens and composes flyer backgrounds, either from
the command line or through an HTTP API.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		var level slog.Level
		switch logLevel {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		default:
			level = slog.LevelInfo
		}

		opts := &slog.HandlerOptions{Level: level}
		handler := slog.NewJSONHandler(os.Stdout, opts)
		logger = slog.New(handler)
		slog.SetDefault(logger)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", getEnv("FLYER_DATA_DIR", "./data"), "Base directory for job results and brand kits")
	rootCmd.PersistentFlags().StringVar(&sourceRoot, "source-root", ".", "Directory source paths are resolved against; the server refuses paths outside it")
	rootCmd.PersistentFlags().BoolVar(&allowLAN, "allow-private-networks", false, "Allow fetching sources from private or loopback addresses")
}

// getEnv returns the environment value for key, or fallback when unset.
func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// newLoader builds the source loader. Local commands may read any path the
// user can; the server keeps requests inside --source-root.
func newLoader(anyPath bool) *raster.Loader {
	loader := raster.NewLoader(sourceRoot)
	loader.AllowPrivateNetworks = allowLAN
	loader.AllowAnyPath = anyPath
	return loader
}

// writeOutput writes data to path, or to stdout when path is "-".
func writeOutput(path string, data []byte) error {
	if path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
