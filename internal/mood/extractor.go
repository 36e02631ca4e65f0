package mood

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nightlifeflyers/flyerstudio/internal/raster"
)

// Signal steers a generator toward a reference's look without its content.
// BlurredReference is nil when no thumbnail could be produced.
type Signal struct {
	StylePrompt      string  `json:"stylePrompt"`
	BlurredReference *string `json:"blurredReference"`
}

// Fallback returns the generic signal used when a reference cannot be analysed.
func Fallback() *Signal {
	return &Signal{StylePrompt: FallbackPrompt}
}

// IsFallback reports whether s carries the generic fallback prompt.
func (s *Signal) IsFallback() bool {
	return s.StylePrompt == FallbackPrompt && s.BlurredReference == nil
}

func (s *Signal) cost() int64 {
	n := int64(len(s.StylePrompt))
	if s.BlurredReference != nil {
		n += int64(len(*s.BlurredReference))
	}
	return n
}

// Loader resolves a source reference into a buffer.
type Loader interface {
	Load(ctx context.Context, src string) (*raster.Buffer, error)
}

// Extractor computes signals and memoises them by source reference.
// Concurrent calls for the same key may both compute; the last write wins.
type Extractor struct {
	loader Loader
	cache  Cache
}

// NewExtractor creates an extractor. A nil cache disables memoisation.
func NewExtractor(loader Loader, cache Cache) *Extractor {
	return &Extractor{loader: loader, cache: cache}
}

// Extract never fails: on any error the fallback signal is returned.
// Fallbacks are not cached, so a source that becomes reachable later is
// analysed on the next call.
func (e *Extractor) Extract(ctx context.Context, src string) *Signal {
	if e.cache != nil {
		if sig, ok := e.cache.Get(ctx, src); ok {
			slog.Debug("Mood cache hit")
			return sig
		}
	}

	sig, err := e.compute(ctx, src)
	if err != nil {
		slog.Warn("Mood extraction failed, using fallback", "error", err)
		return Fallback()
	}

	if e.cache != nil {
		e.cache.Set(ctx, src, sig)
	}
	return sig
}

func (e *Extractor) compute(ctx context.Context, src string) (sig *Signal, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("mood analysis panicked: %v", r)
		}
	}()

	buf, err := e.loader.Load(ctx, src)
	if err != nil {
		return nil, err
	}

	img := buf.Image()
	m, err := Analyze(img)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze reference: %w", err)
	}
	if m.Samples == 0 {
		return nil, fmt.Errorf("reference has no opaque pixels")
	}

	sig = &Signal{StylePrompt: Describe(m)}
	if thumb, err := Thumbnail(img); err != nil {
		slog.Warn("Mood thumbnail failed", "error", err)
	} else {
		sig.BlurredReference = &thumb
	}

	slog.Debug("Mood extracted", "samples", m.Samples, "meanLuma", m.MeanLuma,
		"lumaStd", m.LumaStd, "saturation", m.MeanSaturation, "edges", m.EdgeEnergy)
	return sig, nil
}
