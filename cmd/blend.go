package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nightlifeflyers/flyerstudio/internal/composite"
	"github.com/nightlifeflyers/flyerstudio/internal/raster"
)

var (
	blendOut       string
	blendPlacement = composite.DefaultPlacement()
)

var blendCmd = &cobra.Command{
	Use:   "blend <background> <subject>",
	Short: "Composite a cutout subject onto a background",
	Args:  cobra.ExactArgs(2),
	RunE:  runBlend,
}

func init() {
	f := blendCmd.Flags()
	f.StringVarP(&blendOut, "out", "o", "flyer.png", "Output PNG path (- for stdout)")
	f.IntVar(&blendPlacement.X, "x", 0, "Left edge of the subject in background pixels")
	f.IntVar(&blendPlacement.Y, "y", 0, "Top edge of the subject in background pixels")
	f.Float64Var(&blendPlacement.Scale, "scale", 1, "Subject scale factor")
	f.Float64Var(&blendPlacement.Opacity, "opacity", 1, "Subject opacity [0, 1]")
	f.Float64Var(&blendPlacement.Harmonize, "harmonize", 0, "Tint subject toward the background colour [0, 1]")
	rootCmd.AddCommand(blendCmd)
}

func runBlend(cmd *cobra.Command, args []string) error {
	loader := newLoader(true)

	var bg, subject *raster.Buffer
	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() (err error) {
		bg, err = loader.Load(ctx, args[0])
		return err
	})
	g.Go(func() (err error) {
		subject, err = loader.Load(ctx, args[1])
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	out, err := composite.Blend(bg, subject, blendPlacement)
	if err != nil {
		return err
	}
	data, err := raster.EncodePNG(out)
	if err != nil {
		return err
	}
	if err := writeOutput(blendOut, data); err != nil {
		return err
	}

	slog.Info("Blend completed", "output", blendOut, "width", out.Width, "height", out.Height)
	if blendOut != "-" {
		fmt.Printf("Wrote %s (%dx%d)\n", blendOut, out.Width, out.Height)
	}
	return nil
}
