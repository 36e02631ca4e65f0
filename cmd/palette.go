package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nightlifeflyers/flyerstudio/internal/brandkit"
	"github.com/nightlifeflyers/flyerstudio/internal/store"
)

var (
	paletteSize   int
	paletteMethod string
	paletteKit    string
	paletteFonts  []string
)

var paletteCmd = &cobra.Command{
	Use:   "palette <source>",
	Short: "Extract a colour palette, optionally saving it as a brand kit",
	Args:  cobra.ExactArgs(1),
	RunE:  runPalette,
}

func init() {
	paletteCmd.Flags().IntVarP(&paletteSize, "colors", "k", 5, "Number of colours to extract")
	paletteCmd.Flags().StringVar(&paletteMethod, "method", "dominantcolor", "Extraction method (dominantcolor, kmeans)")
	paletteCmd.Flags().StringVar(&paletteKit, "save-kit", "", "Save the palette as a brand kit with this name")
	paletteCmd.Flags().StringSliceVar(&paletteFonts, "font", nil, "Font family to record in the saved kit (repeatable)")
	rootCmd.AddCommand(paletteCmd)
}

func runPalette(cmd *cobra.Command, args []string) error {
	method, err := brandkit.ParseMethod(paletteMethod)
	if err != nil {
		return err
	}

	buf, err := newLoader(true).Load(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	swatches, err := brandkit.ExtractPalette(buf.Image(), paletteSize, method)
	if err != nil {
		return fmt.Errorf("failed to extract palette: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tHEX\tWEIGHT")
	fmt.Fprintln(w, "-\t---\t------")
	for i, s := range swatches {
		fmt.Fprintf(w, "%d\t%s\t%.1f%%\n", i+1, s.Hex, s.Weight*100)
	}
	w.Flush()

	if paletteKit == "" {
		return nil
	}

	kitStore, err := store.NewFSStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}
	kit := &brandkit.Kit{
		Name:       paletteKit,
		Colors:     swatches,
		Fonts:      paletteFonts,
		LogoSource: args[0],
		CreatedAt:  time.Now().UTC(),
	}
	if err := kitStore.SaveKit(kit); err != nil {
		return err
	}
	fmt.Printf("\nSaved brand kit %q (%s)\n", kit.Name, brandkit.Slug(kit.Name))
	return nil
}
