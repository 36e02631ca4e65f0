// Package composite places a cutout subject onto a flyer background.
package composite

import (
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"

	"github.com/nightlifeflyers/flyerstudio/internal/raster"
)

// maxTint is the strongest pull toward the background colour at Harmonize 1.
const maxTint = 0.3

// Placement positions the subject on the background.
type Placement struct {
	X         int     `json:"x"`         // left edge in background pixels
	Y         int     `json:"y"`         // top edge in background pixels
	Scale     float64 `json:"scale"`     // subject scale factor, (0, 8]
	Opacity   float64 `json:"opacity"`   // [0, 1]
	Harmonize float64 `json:"harmonize"` // [0, 1], tint toward the background
}

// DefaultPlacement draws the subject unscaled and fully opaque at the origin.
func DefaultPlacement() Placement {
	return Placement{Scale: 1, Opacity: 1}
}

func (p Placement) clamp() Placement {
	if math.IsNaN(p.Scale) || p.Scale <= 0 {
		p.Scale = 1
	}
	p.Scale = math.Min(p.Scale, 8)
	p.Opacity = clamp01(p.Opacity)
	p.Harmonize = clamp01(p.Harmonize)
	return p
}

// Blend composites subject over background and returns a new buffer with the
// background's dimensions. Neither input is modified.
func Blend(background, subject *raster.Buffer, p Placement) (*raster.Buffer, error) {
	if err := background.Validate(); err != nil {
		return nil, fmt.Errorf("invalid background: %w", err)
	}
	if err := subject.Validate(); err != nil {
		return nil, fmt.Errorf("invalid subject: %w", err)
	}
	p = p.clamp()

	fg := subject.Image()
	sw := int(math.Round(float64(subject.Width) * p.Scale))
	sh := int(math.Round(float64(subject.Height) * p.Scale))
	if sw <= 0 || sh <= 0 {
		return nil, fmt.Errorf("subject scaled to zero area (%dx%d)", sw, sh)
	}
	if sw != subject.Width || sh != subject.Height {
		scaled := image.NewNRGBA(image.Rect(0, 0, sw, sh))
		draw.CatmullRom.Scale(scaled, scaled.Bounds(), fg, fg.Bounds(), draw.Src, nil)
		fg = scaled
	}

	out := background.Clone()
	dst := out.Image()
	footprint := image.Rect(p.X, p.Y, p.X+sw, p.Y+sh).Intersect(dst.Rect)
	if footprint.Empty() {
		return out, nil
	}

	var tint [3]float64
	k := p.Harmonize * maxTint
	if k > 0 {
		var ok bool
		// A transparent footprint has no colour to pull toward.
		if tint, ok = meanColor(dst, footprint); !ok {
			k = 0
		}
	}

	for y := footprint.Min.Y; y < footprint.Max.Y; y++ {
		for x := footprint.Min.X; x < footprint.Max.X; x++ {
			i := fg.PixOffset(x-p.X, y-p.Y)
			a := float64(fg.Pix[i+3]) / 255 * p.Opacity
			if a == 0 {
				continue
			}
			r := float64(fg.Pix[i+0]) / 255
			g := float64(fg.Pix[i+1]) / 255
			b := float64(fg.Pix[i+2]) / 255
			if k > 0 {
				r += (tint[0] - r) * k
				g += (tint[1] - g) * k
				b += (tint[2] - b) * k
			}
			compositePixel(dst, x, y, r, g, b, a)
		}
	}
	return out, nil
}

// meanColor averages the visible colour of img inside rect, weighted by alpha.
// It reports false when rect is fully transparent.
func meanColor(img *image.NRGBA, rect image.Rectangle) ([3]float64, bool) {
	var sum [3]float64
	var weight float64
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			i := img.PixOffset(x, y)
			a := float64(img.Pix[i+3]) / 255
			for c := 0; c < 3; c++ {
				sum[c] += float64(img.Pix[i+c]) / 255 * a
			}
			weight += a
		}
	}
	if weight == 0 {
		return sum, false
	}
	for c := range sum {
		sum[c] /= weight
	}
	return sum, true
}

// compositePixel blends a straight-alpha colour onto img at (x,y) with the
// Porter-Duff "over" operator.
func compositePixel(img *image.NRGBA, x, y int, r, g, b, alpha float64) {
	i := img.PixOffset(x, y)

	bgR := float64(img.Pix[i+0]) / 255.0
	bgG := float64(img.Pix[i+1]) / 255.0
	bgB := float64(img.Pix[i+2]) / 255.0
	bgA := float64(img.Pix[i+3]) / 255.0

	outA := alpha + bgA*(1-alpha)
	if outA == 0 {
		return
	}

	outR := (r*alpha + bgR*bgA*(1-alpha)) / outA
	outG := (g*alpha + bgG*bgA*(1-alpha)) / outA
	outB := (b*alpha + bgB*bgA*(1-alpha)) / outA

	img.Pix[i+0] = toByte(outR)
	img.Pix[i+1] = toByte(outG)
	img.Pix[i+2] = toByte(outB)
	img.Pix[i+3] = toByte(outA)
}

func toByte(v float64) uint8 {
	return uint8(math.Round(clamp01(v) * 255))
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}
