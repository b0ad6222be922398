// Package models defines the core domain models for trigger-driven HR workflow execution.
package models

// StepType represents the kind of work a workflow step performs.
type StepType string

const (
	StepTypeApproval     StepType = "approval"     // Suspends the run until a human decision arrives
	StepTypeNotification StepType = "notification" // Sends a rendered message over a transport
	StepTypeAction       StepType = "action"       // Invokes a registered application handler
)

// WorkflowStep is one unit of work within a workflow definition. Steps are
// immutable once the owning definition is registered.
type WorkflowStep struct {
	ID     string         `json:"id"     validate:"required"`
	Name   string         `json:"name"   validate:"required,min=1"`
	Type   StepType       `json:"type"   validate:"required,oneof=approval notification action"`
	Config map[string]any `json:"config"`
}
