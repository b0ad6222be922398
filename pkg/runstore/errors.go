// Package runstore provides standardized error types shared by all run store
// implementations.
package runstore

import (
	"errors"
	"fmt"
)

var (
	// ErrRunNotFound indicates a run was not found by the given identifier.
	ErrRunNotFound = errors.New("workflow run not found")

	// ErrRunAlreadyExists indicates a run with the same identifier already exists.
	ErrRunAlreadyExists = errors.New("workflow run already exists")

	// ErrRunTerminal indicates a write against a run whose stored status is
	// terminal. Terminal runs are immutable.
	ErrRunTerminal = errors.New("workflow run is in a terminal state")

	// ErrClaimConflict indicates a compare-and-set status transition lost the
	// race: the stored status no longer matches the expected one.
	ErrClaimConflict = errors.New("workflow run claim conflict")
)

// RunError wraps run store errors with operation context.
type RunError struct {
	Op    string // Operation being performed (e.g. "CreateRun", "ClaimRun")
	RunID string
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s failed for run %s: %v", e.Op, e.RunID, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

func (e *RunError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewRunError creates a run error with operation context.
func NewRunError(op, runID string, err error) *RunError {
	return &RunError{Op: op, RunID: runID, Err: err}
}

// IsRunNotFound checks if an error indicates a missing run.
func IsRunNotFound(err error) bool {
	return errors.Is(err, ErrRunNotFound)
}

// IsRunTerminal checks if an error indicates a write against a terminal run.
func IsRunTerminal(err error) bool {
	return errors.Is(err, ErrRunTerminal)
}

// IsClaimConflict checks if an error indicates a lost claim race.
func IsClaimConflict(err error) bool {
	return errors.Is(err, ErrClaimConflict)
}
