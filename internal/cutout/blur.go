package cutout

// Separable neighbourhood filters over single-channel planes. Windows are
// clipped to the image, so border pixels average (or minimise) over the
// in-bounds samples only.

// boxBlur blurs a w*h plane with a (2r+1)-wide box, horizontal then vertical.
func boxBlur(plane []float64, w, h, r int) []float64 {
	if r <= 0 {
		out := make([]float64, len(plane))
		copy(out, plane)
		return out
	}
	tmp := make([]float64, len(plane))
	out := make([]float64, len(plane))

	for y := 0; y < h; y++ {
		row := y * w
		blurLine(plane[row:row+w], tmp[row:row+w], r)
	}
	for x := 0; x < w; x++ {
		blurColumn(tmp, out, x, w, h, r)
	}
	return out
}

// blurLine runs a sliding-window average along one contiguous line.
func blurLine(src, dst []float64, r int) {
	n := len(src)
	var sum float64
	lo, hi := 0, -1
	for i := 0; i < n; i++ {
		wantLo := max(0, i-r)
		wantHi := min(n-1, i+r)
		for hi < wantHi {
			hi++
			sum += src[hi]
		}
		for lo < wantLo {
			sum -= src[lo]
			lo++
		}
		dst[i] = sum / float64(hi-lo+1)
	}
}

func blurColumn(src, dst []float64, x, w, h, r int) {
	var sum float64
	lo, hi := 0, -1
	for y := 0; y < h; y++ {
		wantLo := max(0, y-r)
		wantHi := min(h-1, y+r)
		for hi < wantHi {
			hi++
			sum += src[hi*w+x]
		}
		for lo < wantLo {
			sum -= src[lo*w+x]
			lo++
		}
		dst[y*w+x] = sum / float64(hi-lo+1)
	}
}

// erodeWindow replaces each sample with the minimum of its (2r+1)^2 window.
func erodeWindow(plane []uint8, w, h, r int) []uint8 {
	tmp := make([]uint8, len(plane))
	out := make([]uint8, len(plane))

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m := uint8(255)
			for k := max(0, x-r); k <= min(w-1, x+r); k++ {
				if v := plane[y*w+k]; v < m {
					m = v
				}
			}
			tmp[y*w+x] = m
		}
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m := uint8(255)
			for k := max(0, y-r); k <= min(h-1, y+r); k++ {
				if v := tmp[k*w+x]; v < m {
					m = v
				}
			}
			out[y*w+x] = m
		}
	}
	return out
}
