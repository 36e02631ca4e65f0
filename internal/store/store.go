package store

import "github.com/nightlifeflyers/flyerstudio/internal/brandkit"

// Store persists cleanup job results, their artifacts and brand kits.
// Implementations must be safe for concurrent use.
//
// Error conventions:
//   - ErrNotFound (matched with errors.Is) when a job, artifact or kit is missing
//   - *ValidationError when a record is rejected before writing
//   - wrapped I/O and serialization errors otherwise
type Store interface {
	// SaveResult atomically writes the result record of a job, replacing any
	// previous one.
	SaveResult(result *Result) error

	// LoadResult reads the result record of a job.
	LoadResult(jobID string) (*Result, error)

	// ListResults returns metadata for every stored job. Unreadable records are
	// skipped.
	ListResults() ([]ResultInfo, error)

	// DeleteResult removes a job directory with its result, artifacts and trace.
	DeleteResult(jobID string) error

	// SaveArtifact atomically writes a named file (e.g. result.png) for a job.
	SaveArtifact(jobID, name string, data []byte) error

	// ArtifactPath returns the path of an existing artifact.
	ArtifactPath(jobID, name string) (string, error)

	SaveKit(kit *brandkit.Kit) error
	LoadKit(name string) (*brandkit.Kit, error)
	ListKits() ([]brandkit.Kit, error)
	DeleteKit(name string) error
}

// ErrNotFound matches every *NotFoundError via errors.Is.
var ErrNotFound = &NotFoundError{}

// NotFoundError reports a missing record.
type NotFoundError struct {
	Kind string // "job", "artifact", "trace" or "brand kit"
	ID   string
}

func (e *NotFoundError) Error() string {
	kind := e.Kind
	if kind == "" {
		kind = "record"
	}
	if e.ID != "" {
		return kind + " not found: " + e.ID
	}
	return kind + " not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}
