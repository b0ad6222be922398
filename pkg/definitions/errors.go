package definitions

import (
	"errors"
	"fmt"
	"strings"
)

// ErrDefinitionNotFound indicates a lookup for an unregistered definition id.
var ErrDefinitionNotFound = errors.New("workflow definition not found")

// ErrInvalidDefinition indicates a definition failed registration validation.
var ErrInvalidDefinition = errors.New("invalid workflow definition")

// InvalidDefinitionError aggregates every validation failure found during
// registration, so callers see all problems at once.
type InvalidDefinitionError struct {
	DefinitionID string
	Issues       []string
}

func (e *InvalidDefinitionError) Error() string {
	return fmt.Sprintf("invalid definition %s: %s", e.DefinitionID, strings.Join(e.Issues, "; "))
}

func (e *InvalidDefinitionError) Is(target error) bool {
	return target == ErrInvalidDefinition
}

// DefinitionNotFoundError reports a lookup miss by definition id.
type DefinitionNotFoundError struct {
	ID string
}

func (e *DefinitionNotFoundError) Error() string {
	return fmt.Sprintf("workflow definition %s not found", e.ID)
}

func (e *DefinitionNotFoundError) Is(target error) bool {
	return target == ErrDefinitionNotFound
}

// IsDefinitionNotFound checks if an error indicates a missing definition.
func IsDefinitionNotFound(err error) bool {
	return errors.Is(err, ErrDefinitionNotFound)
}

// IsInvalidDefinition checks if an error indicates a failed registration.
func IsInvalidDefinition(err error) bool {
	return errors.Is(err, ErrInvalidDefinition)
}
