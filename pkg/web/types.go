package web

import "github.com/peopleops/stride/pkg/models"

// RegisterDefinitionRequest is the payload for registering a workflow
// definition. Structural validation happens in the definition store, which
// aggregates every issue into one response.
type RegisterDefinitionRequest struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Steps       []models.WorkflowStep `json:"steps"`
	Triggers    []string              `json:"triggers"`
	Metadata    map[string]any        `json:"metadata,omitempty"`
}

// TriggerRequest carries the event payload handed to triggered runs.
type TriggerRequest struct {
	Data map[string]any `json:"data"`
}

// DecisionRequest is the payload applying an approval decision.
type DecisionRequest struct {
	Approved  *bool  `json:"approved"   validate:"required"`
	DecidedBy string `json:"decided_by" validate:"required"`
	Comment   string `json:"comment"`
}
