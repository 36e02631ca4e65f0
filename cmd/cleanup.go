package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/nightlifeflyers/flyerstudio/internal/cutout"
	"github.com/nightlifeflyers/flyerstudio/internal/raster"
)

var (
	cleanupOut    string
	cleanupParams = cutout.DefaultParams()
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup <source>",
	Short: "Refine the alpha edge of a cutout",
	Long: `Runs the cutout refinement pipeline over a background-removed image and writes
the result as PNG. The source may be a file path, an http(s) URL or a data URI.
Every stage is off by default; out-of-range values are clamped.`,
	Args: cobra.ExactArgs(1),
	RunE: runCleanup,
}

func init() {
	f := cleanupCmd.Flags()
	f.StringVarP(&cleanupOut, "out", "o", "cleaned.png", "Output PNG path (- for stdout)")
	f.Float64Var(&cleanupParams.AlphaBoost, "alpha-boost", 1.0, "Alpha boost exponent [0.5, 3]")
	f.IntVar(&cleanupParams.AlphaSmoothPx, "alpha-smooth", 0, "Alpha smoothing radius in px [0, 6]")
	f.IntVar(&cleanupParams.ShrinkPx, "shrink", 0, "Edge erosion radius in px [0, 12]")
	f.Float64Var(&cleanupParams.AlphaFill, "alpha-fill", 0, "Fill for translucent interior pixels [0, 0.25]")
	f.IntVar(&cleanupParams.FeatherPx, "feather", 0, "Feather radius in px [0, 24]")
	f.Float64Var(&cleanupParams.EdgeGamma, "edge-gamma", 1.0, "Gamma applied to edge alpha [0.7, 1.5]")
	f.Float64Var(&cleanupParams.EdgeClamp, "edge-clamp", 0, "Minimum alpha for edge pixels [0, 1]")
	f.Float64Var(&cleanupParams.Decontaminate, "decontaminate", 0, "Pull edge colour toward gray [0, 1]")
	f.Float64Var(&cleanupParams.SpillSuppress, "spill", 0, "Replace edge colour with nearby solid colour [0, 1]")
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	params := cleanupParams.Clamp()
	plan := params.Plan()
	slog.Info("Starting cleanup", "source", args[0], "params", params.String(), "stages", plan.Stages())

	start := time.Now()
	p := cutout.Pipeline{Observer: func(r cutout.StageReport) {
		slog.Info("Stage finished", "stage", r.Stage.String(), "index", r.Index+1, "total", r.Total,
			"duration", r.Duration, "opaque_pixels", r.OpaquePixels)
	}}

	buf, err := p.Process(cmd.Context(), newLoader(true), args[0], params)
	if err != nil {
		return err
	}

	data, err := raster.EncodePNG(buf)
	if err != nil {
		return err
	}
	if err := writeOutput(cleanupOut, data); err != nil {
		return err
	}

	slog.Info("Cleanup completed", "output", cleanupOut, "width", buf.Width, "height", buf.Height,
		"opaque_pixels", buf.OpaqueCount(), "elapsed", time.Since(start))
	if cleanupOut != "-" {
		fmt.Printf("Wrote %s (%dx%d, %d stages)\n", cleanupOut, buf.Width, buf.Height, len(plan.Steps))
	}
	return nil
}
