package mood

import (
	"image"

	"github.com/disintegration/imaging"

	"github.com/nightlifeflyers/flyerstudio/internal/raster"
)

const (
	ThumbnailSize  = 256
	thumbnailBlur  = 10
	thumbnailBoost = 20
)

// Thumbnail cover-crops img to 256x256, blurs it heavily and lifts saturation
// slightly. The result is a PNG data URI.
func Thumbnail(img image.Image) (string, error) {
	thumb := imaging.Fill(img, ThumbnailSize, ThumbnailSize, imaging.Center, imaging.Linear)
	thumb = imaging.Blur(thumb, thumbnailBlur)
	thumb = imaging.AdjustSaturation(thumb, thumbnailBoost)

	buf, err := raster.FromImage(thumb)
	if err != nil {
		return "", err
	}
	return raster.EncodeDataURI(buf)
}
