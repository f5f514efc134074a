package model

import (
	"errors"
	"fmt"
)

// Run failure causes.
// Each cause maps to one error surface exposed to callers; the HTTP layer
// translates them to status codes and the CLI prints them.
var (
	// ErrInvalidTarget is returned when the target is missing or malformed.
	// No pipeline work is attempted.
	ErrInvalidTarget = errors.New("missing or invalid target")

	// ErrPageUnreachable is returned when the target page cannot be fetched,
	// either because of a network failure or a non-2xx status.
	ErrPageUnreachable = errors.New("target page unreachable")

	// ErrDocumentParse is returned when the fetched HTML cannot be turned
	// into a document tree.
	ErrDocumentParse = errors.New("failed to build document from page")

	// ErrNoStylesheets is returned when the page links no stylesheets and
	// the zero-stylesheet policy treats that as a failure.
	ErrNoStylesheets = errors.New("no stylesheet links found")

	// ErrPurgeFailed is returned when the purge engine cannot process the
	// downloaded stylesheets.
	ErrPurgeFailed = errors.New("failed to purge stylesheets")

	// ErrWorkspace is returned when the run's staging area cannot be
	// created or written.
	ErrWorkspace = errors.New("workspace unavailable")
)

// StageError records the state a run was in when it failed.
type StageError struct {
	// State is the pipeline state that failed.
	State State

	// Err is the underlying cause.
	Err error
}

// Error implements error.
func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.State, e.Err)
}

// Unwrap returns the underlying cause.
func (e *StageError) Unwrap() error {
	return e.Err
}

// FailedState returns the state recorded in err, or StateFailed when err
// does not carry one.
func FailedState(err error) State {
	var se *StageError
	if errors.As(err, &se) {
		return se.State
	}
	return StateFailed
}
