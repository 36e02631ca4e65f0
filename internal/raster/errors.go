package raster

import "fmt"

// LoadError is returned when a source reference cannot be turned into a Buffer:
// empty or unsupported references, unreachable sources, undecodable data and
// zero-area images.
type LoadError struct {
	Source string
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	msg := fmt.Sprintf("failed to load image %q: %s", shortSource(e.Source), e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// EncodeError is returned when a Buffer cannot be serialized.
type EncodeError struct {
	Format string
	Err    error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("failed to encode %s: %v", e.Format, e.Err)
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}

// shortSource keeps data URIs from flooding logs and error messages.
func shortSource(src string) string {
	const limit = 64
	if len(src) <= limit {
		return src
	}
	return src[:limit] + "..."
}
