package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/nightlifeflyers/flyerstudio/internal/cutout"
)

// ResultFile and ImageArtifact are the file names inside a job directory.
const (
	ResultFile    = "result.json"
	ImageArtifact = "result.png"
	TraceFile     = "trace.jsonl"
)

// JobConfig is the input of a cleanup job.
type JobConfig struct {
	Source string        `json:"source"`
	Params cutout.Params `json:"params"`
}

// Result is the persisted outcome of a finished cleanup job.
type Result struct {
	JobID        string        `json:"jobId"`
	Config       JobConfig     `json:"config"`
	Width        int           `json:"width"`
	Height       int           `json:"height"`
	OpaquePixels int           `json:"opaquePixels"`
	Stages       []string      `json:"stages"`
	Duration     time.Duration `json:"durationNs"`
	Timestamp    time.Time     `json:"timestamp"`
}

// ResultInfo is the listing view of a Result.
type ResultInfo struct {
	JobID     string    `json:"jobId"`
	Source    string    `json:"source"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Stages    int       `json:"stages"`
	Timestamp time.Time `json:"timestamp"`
}

// NewResult builds a result stamped with the current time. Inline data URI
// sources are summarised so records stay small.
func NewResult(jobID string, config JobConfig, width, height, opaque int, stages []string, elapsed time.Duration) *Result {
	config.Source = DisplaySource(config.Source)
	if stages == nil {
		stages = []string{}
	}
	return &Result{
		JobID:        jobID,
		Config:       config,
		Width:        width,
		Height:       height,
		OpaquePixels: opaque,
		Stages:       stages,
		Duration:     elapsed,
		Timestamp:    time.Now(),
	}
}

// DisplaySource shortens data URIs to their media type and payload size.
func DisplaySource(src string) string {
	if !strings.HasPrefix(src, "data:") {
		return src
	}
	meta, payload, ok := strings.Cut(src, ",")
	if !ok {
		return "data:(malformed)"
	}
	return fmt.Sprintf("%s,<%d bytes>", meta, len(payload))
}

// ToInfo converts a Result to its listing view.
func (r *Result) ToInfo() ResultInfo {
	return ResultInfo{
		JobID:     r.JobID,
		Source:    r.Config.Source,
		Width:     r.Width,
		Height:    r.Height,
		Stages:    len(r.Stages),
		Timestamp: r.Timestamp,
	}
}

// Validate checks the record before it is written.
func (r *Result) Validate() error {
	if err := validateID(r.JobID); err != nil {
		return &ValidationError{Field: "JobID", Reason: err.Error()}
	}
	if r.Config.Source == "" {
		return &ValidationError{Field: "Config.Source", Reason: "cannot be empty"}
	}
	if r.Width <= 0 || r.Height <= 0 {
		return &ValidationError{Field: "Width/Height", Reason: "must be positive"}
	}
	if r.OpaquePixels < 0 || r.OpaquePixels > r.Width*r.Height {
		return &ValidationError{
			Field:  "OpaquePixels",
			Reason: fmt.Sprintf("must be in [0, %d]", r.Width*r.Height),
		}
	}
	if r.Duration < 0 {
		return &ValidationError{Field: "Duration", Reason: "cannot be negative"}
	}
	if r.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	return nil
}

// ValidationError reports a rejected record.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

// validateID rejects identifiers that could escape the data directory.
func validateID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("cannot be empty")
	case id == "." || id == "..":
		return fmt.Errorf("is not a valid identifier")
	case strings.ContainsAny(id, `/\`):
		return fmt.Errorf("cannot contain path separators")
	}
	return nil
}
