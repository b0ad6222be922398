package models

import "time"

// RunStatus represents the lifecycle state of a workflow run.
type RunStatus string

const (
	RunStatusPending           RunStatus = "pending"
	RunStatusRunning           RunStatus = "running"
	RunStatusWaitingOnApproval RunStatus = "waiting_on_approval"
	RunStatusCompleted         RunStatus = "completed"
	RunStatusFailed            RunStatus = "failed"
	RunStatusCancelled         RunStatus = "cancelled"
)

// Terminal reports whether the status is final. Terminal runs are immutable.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// ReasonApprovalRejected is the recorded failure reason when an approver
// rejects a pending approval. A rejection is an expected business outcome,
// not an engine error.
const ReasonApprovalRejected = "approval rejected"

// ApprovalRecord captures the approval lifecycle of a suspended step: who was
// asked at suspension time and, after resume, who decided and when.
type ApprovalRecord struct {
	StepID        string     `json:"step_id"`
	ApproverID    string     `json:"approver_id"`
	ApproverName  string     `json:"approver_name,omitempty"`
	ApproverEmail string     `json:"approver_email,omitempty"`
	RequestedAt   time.Time  `json:"requested_at"`
	Decision      string     `json:"decision,omitempty"` // "approved" or "rejected"
	DecidedBy     string     `json:"decided_by,omitempty"`
	DecidedAt     *time.Time `json:"decided_at,omitempty"`
	Comment       string     `json:"comment,omitempty"`
}

// WorkflowRun is the durable projection of one execution of a definition.
// It carries everything needed to resume after a suspension or a worker
// crash: the step cursor, accumulated variables, and per-step completion
// marks used to de-duplicate replays.
type WorkflowRun struct {
	ID               string               `json:"id"`
	WorkflowID       string               `json:"workflow_id"`
	Status           RunStatus            `json:"status"`
	TriggerEvent     string               `json:"trigger_event"`
	TriggerData      map[string]any       `json:"trigger_data,omitempty"`
	Variables        map[string]any       `json:"variables,omitempty"`
	StepResults      map[string]any       `json:"step_results,omitempty"`
	CompletedSteps   map[string]time.Time `json:"completed_steps,omitempty"`
	CurrentStepIndex int                  `json:"current_step_index"`
	ResumeKey        string               `json:"resume_key,omitempty"`
	Approval         *ApprovalRecord      `json:"approval,omitempty"`
	LastError        string               `json:"last_error,omitempty"`
	ClaimedBy        string               `json:"claimed_by,omitempty"`
	StartedAt        time.Time            `json:"started_at"`
	CompletedAt      *time.Time           `json:"completed_at,omitempty"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

// Clone returns a deep copy so callers can mutate freely without aliasing
// store-internal state.
func (r *WorkflowRun) Clone() *WorkflowRun {
	clone := *r
	clone.TriggerData = cloneMap(r.TriggerData)
	clone.Variables = cloneMap(r.Variables)
	clone.StepResults = cloneMap(r.StepResults)

	if r.CompletedSteps != nil {
		clone.CompletedSteps = make(map[string]time.Time, len(r.CompletedSteps))
		for k, v := range r.CompletedSteps {
			clone.CompletedSteps[k] = v
		}
	}

	if r.Approval != nil {
		approval := *r.Approval
		clone.Approval = &approval
	}

	if r.CompletedAt != nil {
		completedAt := *r.CompletedAt
		clone.CompletedAt = &completedAt
	}

	return &clone
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}

	clone := make(map[string]any, len(m))
	for k, v := range m {
		clone[k] = v
	}

	return clone
}

// Decision is the payload of an external approval decision resuming a
// suspended run.
type Decision struct {
	Approved  bool   `json:"approved"`
	DecidedBy string `json:"decided_by" validate:"required"`
	Comment   string `json:"comment,omitempty"`
}
