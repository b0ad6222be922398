package engine

import (
	"errors"
	"fmt"

	"github.com/peopleops/stride/pkg/models"
)

var (
	ErrInvalidRunState  = errors.New("run state does not allow this operation")
	ErrAlreadyTerminal  = errors.New("run already reached a terminal status")
	ErrUnknownResumeKey = errors.New("no suspended run matches resume key")
)

// InvalidRunStateError reports an operation attempted against a run whose
// current status does not allow it, including losing a concurrent resume.
type InvalidRunStateError struct {
	RunID  string
	Status models.RunStatus
}

func (e *InvalidRunStateError) Error() string {
	return fmt.Sprintf("run %s is %s and cannot accept this operation", e.RunID, e.Status)
}

func (e *InvalidRunStateError) Is(target error) bool {
	return target == ErrInvalidRunState
}

// AlreadyTerminalError reports a resume or cancel against a finished run.
type AlreadyTerminalError struct {
	RunID  string
	Status models.RunStatus
}

func (e *AlreadyTerminalError) Error() string {
	return fmt.Sprintf("run %s already finished with status %s", e.RunID, e.Status)
}

func (e *AlreadyTerminalError) Is(target error) bool {
	return target == ErrAlreadyTerminal
}

// UnknownResumeKeyError reports a resume key that matches no suspended run.
type UnknownResumeKeyError struct {
	ResumeKey string
}

func (e *UnknownResumeKeyError) Error() string {
	return fmt.Sprintf("resume key %q matches no suspended run", e.ResumeKey)
}

func (e *UnknownResumeKeyError) Is(target error) bool {
	return target == ErrUnknownResumeKey
}

func IsInvalidRunState(err error) bool {
	return errors.Is(err, ErrInvalidRunState)
}

func IsAlreadyTerminal(err error) bool {
	return errors.Is(err, ErrAlreadyTerminal)
}

func IsUnknownResumeKey(err error) bool {
	return errors.Is(err, ErrUnknownResumeKey)
}
