// Package mood derives a non-identifying style descriptor from a reference
// image: palette, lighting, contrast and energy as text plus a heavily
// blurred thumbnail.
package mood

import (
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/draw"
)

const (
	// MaxAnalysisDim bounds the longest side of the analysed image.
	MaxAnalysisDim = 256

	minSampleAlpha   = 16
	minBucketSat     = 0.2
	paletteThreshold = 0.03
)

// Hue buckets, in tie-break order.
const (
	BucketRed = iota
	BucketOrange
	BucketAmber
	BucketYellowGreen
	BucketGreen
	BucketTeal
	BucketCyan
	BucketBlue
	BucketIndigo
	BucketMagenta
	BucketMixed
	bucketCount
)

var bucketNames = [bucketCount]string{
	"red", "orange", "amber", "yellow-green", "green", "teal",
	"cyan", "blue", "indigo", "magenta", "mixed",
}

// BucketName returns the palette word for a bucket index.
func BucketName(b int) string {
	if b < 0 || b >= bucketCount {
		return "unknown"
	}
	return bucketNames[b]
}

// Metrics are the aggregates of one analysis pass.
type Metrics struct {
	Width          int
	Height         int
	Samples        int
	MeanLuma       float64
	LumaStd        float64
	MeanSaturation float64
	EdgeEnergy     float64
	Buckets        [bucketCount]int
}

// Analyze samples img at no more than MaxAnalysisDim on its longest side.
// Only pixels with alpha >= 16 contribute to luma, saturation and hue.
func Analyze(img image.Image) (Metrics, error) {
	if img == nil {
		return Metrics{}, fmt.Errorf("image is nil")
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return Metrics{}, fmt.Errorf("image has zero area")
	}

	small := downscale(img, MaxAnalysisDim)
	w, h := small.Rect.Dx(), small.Rect.Dy()
	m := Metrics{Width: w, Height: h}

	luma := make([]float64, w*h)
	var sumL, sumL2, sumS float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := small.PixOffset(x, y)
			r, g, bl, a := small.Pix[i], small.Pix[i+1], small.Pix[i+2], small.Pix[i+3]
			l := 0.2126*float64(r) + 0.7152*float64(g) + 0.0722*float64(bl)
			luma[y*w+x] = l

			if a < minSampleAlpha {
				continue
			}
			c := colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(bl) / 255}
			hue, sat, light := c.Hsl()

			m.Samples++
			sumL += l
			sumL2 += l * l
			sumS += sat
			if sat >= minBucketSat {
				m.Buckets[hueBucket(hue, light)]++
			}
		}
	}

	// Gradient over the whole grid, transparent regions included.
	var edges float64
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			l := luma[y*w+x]
			if x+1 < w {
				edges += math.Abs(luma[y*w+x+1] - l)
			}
			if y+1 < h {
				edges += math.Abs(luma[(y+1)*w+x] - l)
			}
		}
	}
	m.EdgeEnergy = edges / float64(w*h)

	if m.Samples > 0 {
		n := float64(m.Samples)
		m.MeanLuma = sumL / n
		m.LumaStd = math.Sqrt(math.Max(0, sumL2/n-m.MeanLuma*m.MeanLuma))
		m.MeanSaturation = sumS / n
	}
	return m, nil
}

// Palette names the two most populated hue buckets holding at least 3% of
// samples, or a neutral fallback when none qualifies.
func (m Metrics) Palette() string {
	var top []int
	if m.Samples > 0 {
		for b, n := range m.Buckets {
			if n > 0 && float64(n)/float64(m.Samples) >= paletteThreshold {
				top = append(top, b)
			}
		}
	}
	sort.SliceStable(top, func(i, j int) bool { return m.Buckets[top[i]] > m.Buckets[top[j]] })

	switch len(top) {
	case 0:
		return "neutral, low-saturation tones"
	case 1:
		return BucketName(top[0]) + " tones"
	default:
		return BucketName(top[0]) + " and " + BucketName(top[1]) + " tones"
	}
}

// hueBucket maps an HSL hue in degrees to a bucket. Very dark or very light
// saturated pixels have unreliable hue and land in the mixed bucket.
func hueBucket(hue, light float64) int {
	if light < 0.12 || light > 0.9 {
		return BucketMixed
	}
	switch {
	case hue < 15 || hue >= 345:
		return BucketRed
	case hue < 35:
		return BucketOrange
	case hue < 55:
		return BucketAmber
	case hue < 90:
		return BucketYellowGreen
	case hue < 150:
		return BucketGreen
	case hue < 175:
		return BucketTeal
	case hue < 200:
		return BucketCyan
	case hue < 240:
		return BucketBlue
	case hue < 275:
		return BucketIndigo
	default:
		return BucketMagenta
	}
}

// downscale returns an NRGBA copy of img whose longest side is at most maxDim.
func downscale(img image.Image, maxDim int) *image.NRGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if longest := max(w, h); longest > maxDim {
		scale := float64(maxDim) / float64(longest)
		w = max(1, int(math.Round(float64(w)*scale)))
		h = max(1, int(math.Round(float64(h)*scale)))
	}

	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
		return dst
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
