package cutout

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nightlifeflyers/flyerstudio/internal/raster"
)

// Loader resolves a source reference into a buffer.
type Loader interface {
	Load(ctx context.Context, src string) (*raster.Buffer, error)
}

// StageReport describes one finished step.
type StageReport struct {
	Stage        Stage
	Index        int
	Total        int
	Duration     time.Duration
	OpaquePixels int
}

// Observer receives a report after every step. It runs on the pipeline's
// goroutine and must not retain the buffer.
type Observer func(StageReport)

// Pipeline runs cleanup plans. The zero value is ready to use.
type Pipeline struct {
	Observer Observer
}

// Run executes plan over buf in order. The buffer is validated up front and the
// context is checked between steps. There is no partial recovery: on error the
// buffer contents are unspecified and callers should keep their original image.
func (p *Pipeline) Run(ctx context.Context, buf *raster.Buffer, plan Plan) error {
	if err := buf.Validate(); err != nil {
		return fmt.Errorf("invalid buffer: %w", err)
	}

	total := len(plan.Steps)
	for i, step := range plan.Steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("cleanup cancelled before %s: %w", step.Stage, err)
		}

		start := time.Now()
		step.Apply(buf)
		elapsed := time.Since(start)

		slog.Debug("Stage completed", "stage", step.Stage.String(), "detail", step.Detail,
			"index", i, "total", total, "duration", elapsed)

		if p.Observer != nil {
			p.Observer(StageReport{
				Stage:        step.Stage,
				Index:        i,
				Total:        total,
				Duration:     elapsed,
				OpaquePixels: buf.OpaqueCount(),
			})
		}
	}
	return nil
}

// Process loads src, clamps params and runs the resulting plan.
func (p *Pipeline) Process(ctx context.Context, loader Loader, src string, params Params) (*raster.Buffer, error) {
	buf, err := loader.Load(ctx, src)
	if err != nil {
		return nil, err
	}

	plan := params.Plan()
	slog.Debug("Running cleanup", "width", buf.Width, "height", buf.Height, "stages", plan.Stages())

	if err := p.Run(ctx, buf, plan); err != nil {
		return nil, err
	}
	return buf, nil
}

// Cleanup loads src, runs every enabled stage and returns a PNG data URI.
// Failures are *raster.LoadError or *raster.EncodeError (or a context error).
func Cleanup(ctx context.Context, loader Loader, src string, params Params) (string, error) {
	var p Pipeline
	buf, err := p.Process(ctx, loader, src, params)
	if err != nil {
		return "", err
	}
	return raster.EncodeDataURI(buf)
}
