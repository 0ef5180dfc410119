package maskedmemory

import "github.com/pkg/errors"

type engineError string

func (e engineError) Error() string {
	return string(e)
}

// Errors returned by the engine are wrapped with context; test for them with errors.Is.
const (
	// ErrInvalidArgument reports a bad size, length, interval or handle, or an engine in the wrong lifecycle state.
	ErrInvalidArgument engineError = "invalid argument"

	// ErrNotFound reports a handle that does not refer to a live segment.
	ErrNotFound engineError = "segment not found"

	// ErrResourceExhausted reports a failure to obtain memory for a segment.
	ErrResourceExhausted engineError = "resource exhausted"

	// ErrExposureClosed is returned when accessing an exposure that has already been destroyed.
	ErrExposureClosed engineError = "exposure has already been destroyed"
)

func notInitialized() error {
	return errors.Wrap(ErrInvalidArgument, "engine is not initialized")
}

func notFound(h Handle) error {
	return errors.Wrapf(ErrNotFound, "handle %s", h)
}
