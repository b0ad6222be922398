package registry

import (
	"errors"
	"fmt"

	"github.com/peopleops/stride/pkg/models"
)

// ErrDuplicateStepType indicates a step type was registered twice.
var ErrDuplicateStepType = errors.New("step type already registered")

// ErrUnknownActionHandler indicates an action step names a handler that was
// never registered.
var ErrUnknownActionHandler = errors.New("unknown action handler")

// DuplicateStepTypeError reports a second registration of the same step type.
type DuplicateStepTypeError struct {
	Type models.StepType
}

func (e *DuplicateStepTypeError) Error() string {
	return fmt.Sprintf("step type '%s' already registered", e.Type)
}

func (e *DuplicateStepTypeError) Is(target error) bool {
	return target == ErrDuplicateStepType
}

// InvalidStepConfigError reports a step whose config does not satisfy the
// schema of its type.
type InvalidStepConfigError struct {
	StepID string
	Reason string
}

func (e *InvalidStepConfigError) Error() string {
	return fmt.Sprintf("invalid config for step %s: %s", e.StepID, e.Reason)
}

// UnknownActionHandlerError reports an action step bound to an unregistered
// handler name.
type UnknownActionHandlerError struct {
	Handler string
}

func (e *UnknownActionHandlerError) Error() string {
	return fmt.Sprintf("action handler '%s' not registered", e.Handler)
}

func (e *UnknownActionHandlerError) Is(target error) bool {
	return target == ErrUnknownActionHandler
}

// IsInvalidStepConfig checks whether an error is a step config validation
// failure.
func IsInvalidStepConfig(err error) bool {
	var configErr *InvalidStepConfigError

	return errors.As(err, &configErr)
}
