package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nightlifeflyers/flyerstudio/internal/chroma"
	"github.com/nightlifeflyers/flyerstudio/internal/raster"
)

var chromaOut string

var chromaKeyCmd = &cobra.Command{
	Use:   "chromakey <source>",
	Short: "Make green-screen pixels transparent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		buf, err := newLoader(true).Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		keyed := chroma.Key(buf)
		slog.Info("Chroma key applied", "keyed_pixels", keyed, "total_pixels", buf.Width*buf.Height)

		data, err := raster.EncodePNG(buf)
		if err != nil {
			return err
		}
		if err := writeOutput(chromaOut, data); err != nil {
			return err
		}
		if chromaOut != "-" {
			fmt.Printf("Wrote %s (%d of %d pixels keyed)\n", chromaOut, keyed, buf.Width*buf.Height)
		}
		return nil
	},
}

func init() {
	chromaKeyCmd.Flags().StringVarP(&chromaOut, "out", "o", "keyed.png", "Output PNG path (- for stdout)")
	rootCmd.AddCommand(chromaKeyCmd)
}
