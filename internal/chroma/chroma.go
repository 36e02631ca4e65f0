// Package chroma removes green-screen backgrounds.
package chroma

import (
	"context"
	"log/slog"

	"github.com/nightlifeflyers/flyerstudio/internal/raster"
)

const (
	minGreen  = 90
	dominance = 1.2
)

// Loader resolves a source reference into a buffer.
type Loader interface {
	Load(ctx context.Context, src string) (*raster.Buffer, error)
}

// Key makes near-pure-green pixels fully transparent in place and returns the
// number of keyed pixels. A pixel is keyed when g > 90 and g exceeds both r
// and b by a factor of 1.2.
func Key(buf *raster.Buffer) int {
	buf.MustValidate()

	keyed := 0
	for i := 0; i < len(buf.Pix); i += 4 {
		r, g, b := float64(buf.Pix[i]), float64(buf.Pix[i+1]), float64(buf.Pix[i+2])
		if g > minGreen && g > dominance*r && g > dominance*b {
			buf.Pix[i+3] = 0
			keyed++
		}
	}
	return keyed
}

// KeySource loads src, keys it and returns a PNG data URI. Keying is best
// effort: on any failure the original src is returned unchanged.
func KeySource(ctx context.Context, loader Loader, src string) string {
	buf, err := loader.Load(ctx, src)
	if err != nil {
		slog.Warn("Chroma key skipped, source not decodable", "error", err)
		return src
	}

	keyed := Key(buf)
	out, err := raster.EncodeDataURI(buf)
	if err != nil {
		slog.Warn("Chroma key skipped, encode failed", "error", err)
		return src
	}

	slog.Debug("Chroma key applied", "width", buf.Width, "height", buf.Height, "keyed", keyed)
	return out
}
