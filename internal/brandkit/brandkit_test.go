package brandkit

import (
	"image"
	"image/color"
	"testing"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoTone(w, h int, left, right color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < w/2 {
				img.SetNRGBA(x, y, left)
			} else {
				img.SetNRGBA(x, y, right)
			}
		}
	}
	return img
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "neon-nights-2024", Slug("  Neon Nights 2024! "))
	assert.Equal(t, "club-x", Slug("CLUB__x"))
	assert.Equal(t, "", Slug("!!!"))
}

func TestKitValidate(t *testing.T) {
	valid := Kit{Name: "Neon", Colors: []Swatch{{Hex: "#ff00aa", Weight: 1}}}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name string
		kit  Kit
	}{
		{"missing name", Kit{Colors: valid.Colors}},
		{"unusable name", Kit{Name: "???", Colors: valid.Colors}},
		{"no colors", Kit{Name: "Neon"}},
		{"bad hex", Kit{Name: "Neon", Colors: []Swatch{{Hex: "pink"}}}},
		{"negative weight", Kit{Name: "Neon", Colors: []Swatch{{Hex: "#000000", Weight: -1}}}},
		{"too many colors", Kit{Name: "Neon", Colors: make([]Swatch, MaxColors+1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.kit.Validate())
		})
	}
}

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("")
	require.NoError(t, err)
	assert.Equal(t, MethodDominantColor, m)

	m, err = ParseMethod("kmeans")
	require.NoError(t, err)
	assert.Equal(t, "kmeans", m.String())

	_, err = ParseMethod("median-cut")
	assert.Error(t, err)
}

func TestExtractPalette(t *testing.T) {
	img := twoTone(40, 20, color.NRGBA{R: 255, A: 255}, color.NRGBA{B: 255, A: 255})
	blue, _ := colorful.Hex("#0000ff")
	red, _ := colorful.Hex("#ff0000")

	for _, method := range []Method{MethodDominantColor, MethodKMeans} {
		t.Run(method.String(), func(t *testing.T) {
			swatches, err := ExtractPalette(img, 4, method)
			require.NoError(t, err)
			require.NotEmpty(t, swatches)
			assert.LessOrEqual(t, len(swatches), 4)

			var total float64
			for _, s := range swatches {
				_, err := colorful.Hex(s.Hex)
				require.NoError(t, err)
				total += s.Weight
			}
			assert.InDelta(t, 1, total, 1e-9)

			// dark to bright: blue has the lower luma
			first, _ := colorful.Hex(swatches[0].Hex)
			last, _ := colorful.Hex(swatches[len(swatches)-1].Hex)
			assert.LessOrEqual(t, relativeLuma(first), relativeLuma(last))
			if len(swatches) == 2 {
				assert.Less(t, first.DistanceLab(blue), 0.1)
				assert.Less(t, last.DistanceLab(red), 0.1)
			}
		})
	}
}

func TestExtractPaletteRejectsBadInput(t *testing.T) {
	img := twoTone(4, 4, color.NRGBA{A: 255}, color.NRGBA{A: 255})
	_, err := ExtractPalette(img, 0, MethodDominantColor)
	assert.Error(t, err)
	_, err = ExtractPalette(img, MaxColors+1, MethodDominantColor)
	assert.Error(t, err)
	_, err = ExtractPalette(image.NewNRGBA(image.Rect(0, 0, 0, 0)), 3, MethodDominantColor)
	assert.Error(t, err)
}

func TestPickDistinctMergesNeighbours(t *testing.T) {
	a, _ := colorful.Hex("#ff0000")
	b, _ := colorful.Hex("#fe0101")
	c, _ := colorful.Hex("#00ff00")

	out := pickDistinct([]weighted{{a, 5}, {b, 3}, {c, 1}}, 3)
	require.Len(t, out, 2)
	assert.Equal(t, 8.0, out[0].weight)
	assert.Equal(t, "#00ff00", out[1].col.Hex())
}
