package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/nightlifeflyers/flyerstudio/internal/cutout"
	"github.com/nightlifeflyers/flyerstudio/internal/raster"
	"github.com/nightlifeflyers/flyerstudio/internal/store"
)

// jobRunner holds what a worker needs besides the job itself.
type jobRunner struct {
	jm       *JobManager
	loader   ImageLoader
	store    store.Store
	traceDir string // empty disables stage traces
}

// runJob executes a cleanup job: load, run the plan stage by stage while
// broadcasting progress, then persist the PNG and the result record.
func (jr *jobRunner) runJob(ctx context.Context, jobID string) error {
	job, exists := jr.jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	err := jr.jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateRunning
	})
	if err != nil {
		return err
	}
	jr.broadcastState(jobID)

	slog.Info("Starting job", "job_id", jobID, "source", job.Source, "params", job.Params.String())
	start := time.Now()

	var trace *store.TraceWriter
	defer func() {
		if trace != nil {
			trace.Close()
		}
	}()
	fail := func(err error) error {
		if trace != nil {
			trace.Close()
			trace = nil
		}
		jr.discardOutputs(jobID)
		return jr.finishWithError(ctx, jobID, err)
	}

	buf, err := jr.loader.Load(ctx, job.Config.Source)
	if err != nil {
		return fail(err)
	}

	jr.jm.UpdateJob(jobID, func(j *Job) {
		j.Width = buf.Width
		j.Height = buf.Height
		j.OpaquePixels = buf.OpaqueCount()
	})
	slog.Info("Loaded source image", "job_id", jobID, "width", buf.Width, "height", buf.Height)

	if jr.traceDir != "" {
		trace, err = store.NewTraceWriter(jr.traceDir, jobID)
		if err != nil {
			slog.Warn("Stage trace disabled", "job_id", jobID, "error", err)
			trace = nil
		}
	}

	plan := job.Config.Params.Plan()
	pipeline := cutout.Pipeline{Observer: func(r cutout.StageReport) {
		jr.jm.UpdateJob(jobID, func(j *Job) {
			j.Completed = r.Index + 1
			j.OpaquePixels = r.OpaquePixels
		})
		if trace != nil {
			if err := trace.Write(store.TraceEntry{
				Stage:        r.Stage.String(),
				Index:        r.Index,
				Total:        r.Total,
				DurationMs:   float64(r.Duration) / float64(time.Millisecond),
				OpaquePixels: r.OpaquePixels,
				Timestamp:    time.Now(),
			}); err != nil {
				slog.Warn("Failed to write stage trace", "job_id", jobID, "error", err)
			}
		}
		jr.jm.broadcaster.Broadcast(ProgressEvent{
			JobID:        jobID,
			State:        StateRunning,
			Stage:        r.Stage.String(),
			Completed:    r.Index + 1,
			Total:        r.Total,
			OpaquePixels: r.OpaquePixels,
			Timestamp:    time.Now(),
		})
	}}

	if err := pipeline.Run(ctx, buf, plan); err != nil {
		return fail(err)
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}

	data, err := raster.EncodePNG(buf)
	if err != nil {
		return fail(err)
	}
	if err := jr.store.SaveArtifact(jobID, store.ImageArtifact, data); err != nil {
		return fail(fmt.Errorf("failed to save result image: %w", err))
	}

	elapsed := time.Since(start)
	result := store.NewResult(jobID, job.Config, buf.Width, buf.Height, buf.OpaqueCount(), plan.Stages(), elapsed)
	if err := jr.store.SaveResult(result); err != nil {
		return fail(fmt.Errorf("failed to save result: %w", err))
	}

	jr.jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCompleted
		j.Completed = len(j.Stages)
		j.OpaquePixels = result.OpaquePixels
		now := time.Now()
		j.EndTime = &now
	})
	jr.jm.Cancel(jobID)
	jr.broadcastState(jobID)

	slog.Info("Job completed", "job_id", jobID, "stages", len(plan.Steps),
		"opaque_pixels", result.OpaquePixels, "elapsed", elapsed)
	return nil
}

// finishWithError marks the job cancelled when its context ended, failed
// otherwise, and returns err.
func (jr *jobRunner) finishWithError(ctx context.Context, jobID string, err error) error {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		markJobCancelled(jr.jm, jobID)
	} else {
		markJobFailed(jr.jm, jobID, err)
	}
	jr.jm.Cancel(jobID)
	jr.broadcastState(jobID)
	return err
}

// discardOutputs removes the artifacts and trace of a run that produced no
// result, so no result-less job directory is left behind.
func (jr *jobRunner) discardOutputs(jobID string) {
	if err := jr.store.DeleteResult(jobID); err != nil && !errors.Is(err, store.ErrNotFound) {
		slog.Warn("Failed to remove job outputs", "job_id", jobID, "error", err)
	}
	if jr.traceDir == "" {
		return
	}
	if err := store.RemoveTrace(jr.traceDir, jobID); err != nil {
		slog.Warn("Failed to remove stage trace", "job_id", jobID, "error", err)
	}
}

func (jr *jobRunner) broadcastState(jobID string) {
	if job, ok := jr.jm.GetJob(jobID); ok {
		jr.jm.broadcaster.Broadcast(eventFor(job))
	}
}

// markJobFailed marks a job as failed with an error message. Failures other
// than unusable input are reported to Sentry.
func markJobFailed(jm *JobManager, jobID string, err error) {
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		now := time.Now()
		j.EndTime = &now
	})

	var loadErr *raster.LoadError
	if !errors.As(err, &loadErr) {
		sentry.CaptureException(err)
	}
	slog.Error("Job failed", "job_id", jobID, "error", err)
}

// markJobCancelled marks a job as cancelled
func markJobCancelled(jm *JobManager, jobID string) {
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCancelled
		now := time.Now()
		j.EndTime = &now
	})
	slog.Info("Job cancelled", "job_id", jobID)
}
