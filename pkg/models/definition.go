package models

import "time"

// WorkflowDefinition is an ordered sequence of steps bound to one or more
// trigger events. Definitions are immutable once registered; updates ship as
// a new definition under a new id.
type WorkflowDefinition struct {
	ID          string         `json:"id"          validate:"required"`
	Name        string         `json:"name"        validate:"required,min=3"`
	Description string         `json:"description"`
	Steps       []WorkflowStep `json:"steps"       validate:"required,min=1,dive"`
	Triggers    []string       `json:"triggers"    validate:"required,min=1,dive,required"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Clone returns a deep copy so callers can mutate freely without aliasing
// store-internal state.
func (d *WorkflowDefinition) Clone() *WorkflowDefinition {
	clone := *d
	clone.Metadata = cloneMap(d.Metadata)

	if d.Steps != nil {
		clone.Steps = make([]WorkflowStep, len(d.Steps))
		for i, step := range d.Steps {
			step.Config = cloneMap(step.Config)
			clone.Steps[i] = step
		}
	}

	if d.Triggers != nil {
		clone.Triggers = append([]string(nil), d.Triggers...)
	}

	return &clone
}

// HasTrigger reports whether the definition starts on the given event.
func (d *WorkflowDefinition) HasTrigger(eventName string) bool {
	for _, trigger := range d.Triggers {
		if trigger == eventName {
			return true
		}
	}

	return false
}

// DuplicateStepIDs returns step ids that appear more than once.
func (d *WorkflowDefinition) DuplicateStepIDs() []string {
	seen := make(map[string]bool, len(d.Steps))

	var dupes []string

	for _, step := range d.Steps {
		if seen[step.ID] {
			dupes = append(dupes, step.ID)

			continue
		}

		seen[step.ID] = true
	}

	return dupes
}
