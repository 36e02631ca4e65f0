package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nightlifeflyers/flyerstudio/internal/backdrop"
	"github.com/nightlifeflyers/flyerstudio/internal/mood"
)

var (
	backdropOut       string
	backdropReference string
	backdropAspect    string
	backdropSeed      int64
	backdropModel     string
	geminiAPIKey      string
)

var backdropCmd = &cobra.Command{
	Use:   "backdrop <prompt>...",
	Short: "Generate a flyer background with Gemini",
	Long: `Generates a background image from a text prompt. With --reference the mood of
that image (palette, brightness, contrast) steers the result without copying it.
Requires a Gemini API key via --api-key or GEMINI_API_KEY.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBackdrop,
}

func init() {
	f := backdropCmd.Flags()
	f.StringVarP(&backdropOut, "out", "o", "backdrop.png", "Output image path (- for stdout)")
	f.StringVar(&backdropReference, "reference", "", "Reference image whose mood to follow")
	f.StringVar(&backdropAspect, "aspect", backdrop.DefaultAspectRatio, "Aspect ratio")
	f.Int64Var(&backdropSeed, "seed", 0, "Generation seed")
	f.StringVar(&backdropModel, "model", backdrop.DefaultModel, "Gemini image model")
	f.StringVar(&geminiAPIKey, "api-key", "", "Gemini API key (default $GEMINI_API_KEY)")
	rootCmd.AddCommand(backdropCmd)
}

func runBackdrop(cmd *cobra.Command, args []string) error {
	apiKey := geminiAPIKey
	if apiKey == "" {
		apiKey = getEnv("GEMINI_API_KEY", "")
	}

	ctx := cmd.Context()
	gen, err := backdrop.NewGeminiGenerator(ctx, apiKey, backdropModel, mood.NewExtractor(newLoader(true), nil))
	if err != nil {
		return err
	}

	req := backdrop.Request{
		Prompt:          strings.Join(args, " "),
		ReferenceSource: backdropReference,
		AspectRatio:     backdropAspect,
	}
	if cmd.Flags().Changed("seed") {
		req.Seed = &backdropSeed
	}

	img, err := gen.Generate(ctx, req)
	if err != nil {
		return err
	}
	if err := writeOutput(backdropOut, img.Data); err != nil {
		return err
	}

	slog.Info("Backdrop generated", "output", backdropOut, "mime", img.MimeType, "seed", img.UsedSeed)
	if backdropOut != "-" {
		fmt.Printf("Wrote %s (%s, seed %d)\n", backdropOut, img.MimeType, img.UsedSeed)
	}
	return nil
}
