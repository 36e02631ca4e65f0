package cutout

import (
	"math"

	"github.com/nightlifeflyers/flyerstudio/internal/raster"
)

// Edge bands. Gamma/clamp works on everything visibly semi-transparent;
// colour correction only touches the true blend region.
const (
	gammaBandLow  = 0.02
	gammaBandHigh = 0.98
	colorBandLow  = 0.05
	colorBandHigh = 0.95

	// solidAlpha marks a neighbour as subject colour for spill suppression.
	solidAlpha  = 0.98
	spillRadius = 3
)

// AlphaBoost remaps alpha a to 1-(1-a)^boost.
func AlphaBoost(buf *raster.Buffer, boost float64) {
	buf.MustValidate()
	boost = clampFloat(boost, MinAlphaBoost, MaxAlphaBoost, 1)

	// 256-entry lookup, the curve only depends on the input byte
	var lut [256]uint8
	for i := range lut {
		a := float64(i) / 255
		lut[i] = toByte((1 - math.Pow(1-a, boost)) * 255)
	}
	for i := 3; i < len(buf.Pix); i += 4 {
		buf.Pix[i] = lut[buf.Pix[i]]
	}
}

// AlphaSmooth box-blurs the alpha channel with the given radius. RGB is untouched.
func AlphaSmooth(buf *raster.Buffer, radius int) {
	buf.MustValidate()
	radius = clampInt(radius, 0, MaxAlphaSmoothPx)
	if radius == 0 {
		return
	}

	plane := alphaPlane(buf)
	blurred := boxBlur(plane, buf.Width, buf.Height, radius)
	for i, v := range blurred {
		buf.Pix[i*4+3] = toByte(v * 255)
	}
}

// Erode replaces each alpha with the minimum alpha of its square neighbourhood.
func Erode(buf *raster.Buffer, radius int) {
	buf.MustValidate()
	radius = clampInt(radius, 0, MaxShrinkPx)
	if radius == 0 {
		return
	}

	eroded := erodePlane(buf.Alpha(), buf.Width, buf.Height, radius)
	for i, v := range eroded {
		buf.Pix[i*4+3] = v
	}
}

// AlphaFill forces pixels with alpha >= 1-fill to fully opaque.
func AlphaFill(buf *raster.Buffer, fill float64) {
	buf.MustValidate()
	fill = clampFloat(fill, 0, MaxAlphaFill, 0)
	if fill == 0 {
		return
	}

	threshold := 1 - fill
	for i := 3; i < len(buf.Pix); i += 4 {
		if float64(buf.Pix[i])/255 >= threshold {
			buf.Pix[i] = 255
		}
	}
}

// Feather softens the cutout edge: the current alpha is materialised as a
// mask, blurred with the given radius and multiplied back into alpha.
func Feather(buf *raster.Buffer, radius int) {
	buf.MustValidate()
	radius = clampInt(radius, 0, MaxFeatherPx)
	if radius == 0 {
		return
	}

	alpha := alphaPlane(buf)
	mask := boxBlur(alpha, buf.Width, buf.Height, radius)
	for i := range alpha {
		buf.Pix[i*4+3] = toByte(alpha[i] * mask[i] * 255)
	}
}

// EdgeGammaClamp applies a^gamma then max(a, clamp) inside the (0.02, 0.98) band.
func EdgeGammaClamp(buf *raster.Buffer, gamma, clamp float64) {
	buf.MustValidate()
	gamma = clampFloat(gamma, MinEdgeGamma, MaxEdgeGamma, 1)
	clamp = clampFloat(clamp, 0, 1, 0)
	if gamma == 1 && clamp == 0 {
		return
	}

	for i := 3; i < len(buf.Pix); i += 4 {
		a := float64(buf.Pix[i]) / 255
		if a <= gammaBandLow || a >= gammaBandHigh {
			continue
		}
		a = math.Pow(a, gamma)
		a = math.Max(a, clamp)
		buf.Pix[i] = toByte(a * 255)
	}
}

// Decontaminate pulls edge pixels' RGB toward their own gray average.
func Decontaminate(buf *raster.Buffer, amount float64) {
	buf.MustValidate()
	amount = clampFloat(amount, 0, 1, 0)
	if amount == 0 {
		return
	}

	for i := 0; i < len(buf.Pix); i += 4 {
		if !inColorBand(buf.Pix[i+3]) {
			continue
		}
		r, g, b := float64(buf.Pix[i]), float64(buf.Pix[i+1]), float64(buf.Pix[i+2])
		gray := (r + g + b) / 3
		buf.Pix[i] = toByte(r + (gray-r)*amount)
		buf.Pix[i+1] = toByte(g + (gray-g)*amount)
		buf.Pix[i+2] = toByte(b + (gray-b)*amount)
	}
}

// SpillSuppress pulls edge pixels' RGB toward the mean colour of solid
// neighbours in a 7x7 window. Pixels with no solid neighbour are left alone.
func SpillSuppress(buf *raster.Buffer, amount float64) {
	buf.MustValidate()
	amount = clampFloat(amount, 0, 1, 0)
	if amount == 0 {
		return
	}

	w, h := buf.Width, buf.Height
	solid := uint8(math.Ceil(solidAlpha * 255))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			off := buf.Offset(x, y)
			if !inColorBand(buf.Pix[off+3]) {
				continue
			}

			// Solid neighbours are outside the band and never rewritten here,
			// so reading them in place is order independent.
			var sr, sg, sb float64
			n := 0
			for ny := max(0, y-spillRadius); ny <= min(h-1, y+spillRadius); ny++ {
				for nx := max(0, x-spillRadius); nx <= min(w-1, x+spillRadius); nx++ {
					no := buf.Offset(nx, ny)
					if buf.Pix[no+3] < solid {
						continue
					}
					sr += float64(buf.Pix[no])
					sg += float64(buf.Pix[no+1])
					sb += float64(buf.Pix[no+2])
					n++
				}
			}
			if n == 0 {
				continue
			}

			inv := 1 / float64(n)
			for c, mean := range [3]float64{sr * inv, sg * inv, sb * inv} {
				v := float64(buf.Pix[off+c])
				buf.Pix[off+c] = toByte(v + (mean-v)*amount)
			}
		}
	}
}

func inColorBand(alpha uint8) bool {
	a := float64(alpha) / 255
	return a > colorBandLow && a < colorBandHigh
}

func alphaPlane(buf *raster.Buffer) []float64 {
	plane := make([]float64, buf.Width*buf.Height)
	for i := range plane {
		plane[i] = float64(buf.Pix[i*4+3]) / 255
	}
	return plane
}

func toByte(v float64) uint8 {
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(math.Round(v))
}
