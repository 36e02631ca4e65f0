//go:build gocv

package cutout

import (
	"image"
	"log/slog"

	"gocv.io/x/gocv"
)

// erodePlane runs the erosion through OpenCV with a rectangular kernel. The
// default constant border of cv::erode never wins the minimum, which matches
// the clipped window of erodeWindow.
func erodePlane(plane []uint8, w, h, r int) []uint8 {
	src, err := gocv.NewMatFromBytes(h, w, gocv.MatTypeCV8U, plane)
	if err != nil {
		slog.Warn("OpenCV erode unavailable, using window erode", "error", err)
		return erodeWindow(plane, w, h, r)
	}
	defer src.Close()

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: 2*r + 1, Y: 2*r + 1})
	defer kernel.Close()

	dst := gocv.NewMat()
	defer dst.Close()
	gocv.Erode(src, &dst, kernel)

	return dst.ToBytes()
}
