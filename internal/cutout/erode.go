//go:build !gocv

package cutout

func erodePlane(plane []uint8, w, h, r int) []uint8 {
	return erodeWindow(plane, w, h, r)
}
