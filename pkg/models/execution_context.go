package models

// ExecutionContext is the mutable variable bag threaded through a run's
// steps. It lives only while the run is actively advancing; the durable
// state is the WorkflowRun it was built from.
type ExecutionContext struct {
	RunID            string         `json:"run_id"`
	WorkflowID       string         `json:"workflow_id"`
	TriggerEvent     string         `json:"trigger_event"`
	TriggerData      map[string]any `json:"trigger_data,omitempty"`
	Variables        map[string]any `json:"variables,omitempty"`
	StepResults      map[string]any `json:"step_results,omitempty"`
	CurrentStepIndex int            `json:"current_step_index"`
}

// NewExecutionContext reconstitutes the working context of a run, for the
// first step or after a suspension or crash.
func NewExecutionContext(run *WorkflowRun) *ExecutionContext {
	ectx := &ExecutionContext{
		RunID:            run.ID,
		WorkflowID:       run.WorkflowID,
		TriggerEvent:     run.TriggerEvent,
		TriggerData:      cloneMap(run.TriggerData),
		Variables:        cloneMap(run.Variables),
		StepResults:      cloneMap(run.StepResults),
		CurrentStepIndex: run.CurrentStepIndex,
	}

	if ectx.Variables == nil {
		ectx.Variables = make(map[string]any)
	}

	if ectx.StepResults == nil {
		ectx.StepResults = make(map[string]any)
	}

	return ectx
}

// MergeVariables copies step output into the context variables. Later keys
// overwrite earlier ones, so step order matters.
func (c *ExecutionContext) MergeVariables(output map[string]any) {
	for k, v := range output {
		c.Variables[k] = v
	}
}
