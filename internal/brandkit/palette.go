package brandkit

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"
	"slices"

	"github.com/cenkalti/dominantcolor"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
)

// Method selects the palette extraction algorithm.
type Method int

const (
	MethodDominantColor Method = iota
	MethodKMeans
)

func (m Method) String() string {
	switch m {
	case MethodKMeans:
		return "kmeans"
	default:
		return "dominantcolor"
	}
}

// ParseMethod accepts "dominantcolor" (or "") and "kmeans".
func ParseMethod(s string) (Method, error) {
	switch s {
	case "", "dominantcolor":
		return MethodDominantColor, nil
	case "kmeans":
		return MethodKMeans, nil
	default:
		return 0, fmt.Errorf("unknown palette method %q", s)
	}
}

const (
	maxKMeansSamples = 12000
	// minLabDistance keeps near-duplicate candidates out of the palette.
	minLabDistance = 0.08
)

type weighted struct {
	col    colorful.Color
	weight float64
}

// ExtractPalette returns up to k colours of img ordered dark to bright.
// Weights are normalised to sum to 1. KMeans falls back to dominantcolor
// when it cannot cluster the image.
func ExtractPalette(img image.Image, k int, method Method) ([]Swatch, error) {
	if k <= 0 || k > MaxColors {
		return nil, fmt.Errorf("palette size must be in [1, %d], got %d", MaxColors, k)
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("image has zero area")
	}

	var cands []weighted
	if method == MethodKMeans {
		cands = kmeansCandidates(img, k)
		if len(cands) == 0 {
			slog.Warn("KMeans returned no clusters, falling back to dominantcolor")
		}
	}
	if len(cands) == 0 {
		cands = dominantCandidates(img, k)
	}

	picked := pickDistinct(cands, k)
	sortByLuma(picked)

	var total float64
	for _, w := range picked {
		total += w.weight
	}
	out := make([]Swatch, len(picked))
	for i, w := range picked {
		out[i] = Swatch{Hex: w.col.Hex(), Weight: w.weight / total}
	}
	return out, nil
}

func dominantCandidates(img image.Image, k int) []weighted {
	found := dominantcolor.FindWeight(img, max(24, k*8))
	if len(found) == 0 {
		found = append(found, dominantcolor.Color{
			RGBA:   color.RGBA{R: 128, G: 128, B: 128, A: 255},
			Weight: 1,
		})
	}

	out := make([]weighted, 0, len(found))
	for _, c := range found {
		col, _ := colorful.MakeColor(c.RGBA)
		out = append(out, weighted{col: col, weight: math.Max(c.Weight, 1e-6)})
	}
	return out
}

func kmeansCandidates(img image.Image, k int) []weighted {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	step := 1
	if w*h > maxKMeansSamples {
		step = int(math.Sqrt(float64(w*h)/maxKMeansSamples)) + 1
	}

	var dataset clusters.Observations
	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			r, g, bl, a := img.At(x, y).RGBA()
			if a == 0 {
				continue
			}
			// Straighten premultiplied values so edge pixels keep their hue.
			fa := float64(a)
			dataset = append(dataset, clusters.Coordinates{
				float64(r) / fa,
				float64(g) / fa,
				float64(bl) / fa,
			})
		}
	}
	if len(dataset) == 0 {
		return nil
	}

	cc, err := kmeans.New().Partition(dataset, min(k*2, len(dataset)))
	if err != nil {
		slog.Debug("KMeans partition failed", "error", err)
		return nil
	}

	out := make([]weighted, 0, len(cc))
	for _, c := range cc {
		if len(c.Observations) == 0 || len(c.Center) < 3 {
			continue
		}
		col := colorful.Color{R: c.Center[0], G: c.Center[1], B: c.Center[2]}.Clamped()
		out = append(out, weighted{col: col, weight: float64(len(c.Observations))})
	}
	return out
}

// pickDistinct takes the heaviest candidates, skipping any that sit too close
// in Lab to one already chosen.
func pickDistinct(cands []weighted, k int) []weighted {
	sorted := slices.Clone(cands)
	slices.SortStableFunc(sorted, func(a, b weighted) int {
		switch {
		case a.weight > b.weight:
			return -1
		case a.weight < b.weight:
			return 1
		}
		return 0
	})

	var out []weighted
	for _, c := range sorted {
		if len(out) == k {
			break
		}
		distinct := true
		for i, o := range out {
			if c.col.DistanceLab(o.col) < minLabDistance {
				out[i].weight += c.weight
				distinct = false
				break
			}
		}
		if distinct {
			out = append(out, c)
		}
	}
	return out
}

func sortByLuma(ws []weighted) {
	slices.SortStableFunc(ws, func(a, b weighted) int {
		la, lb := relativeLuma(a.col), relativeLuma(b.col)
		switch {
		case la < lb:
			return -1
		case la > lb:
			return 1
		}
		return 0
	})
}

func relativeLuma(c colorful.Color) float64 {
	r, g, b := c.LinearRgb()
	return 0.2126*r + 0.7152*g + 0.0722*b
}
