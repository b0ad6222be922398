package models

import "time"

// ResultKind tags the outcome of one step execution.
type ResultKind string

const (
	ResultContinue ResultKind = "continue" // Advance to the next step
	ResultSuspend  ResultKind = "suspend"  // Halt until an external event matching ResumeKey
	ResultRetry    ResultKind = "retry"    // Transient failure, retry with backoff
	ResultFail     ResultKind = "fail"     // Terminal failure, run transitions to failed
)

// ExecutionResult is the tagged outcome of a step executor. Which fields are
// meaningful depends on Kind.
type ExecutionResult struct {
	Kind       ResultKind
	Output     map[string]any   // Continue: merged into run variables
	ResumeKey  string           // Suspend: key an external decision must match
	Approval   *ApprovalRecord  // Suspend: pending approval recorded on the run
	RetryAfter time.Duration    // Retry: executor delay hint, zero means use engine backoff
	Reason     string           // Fail/Retry: human-readable cause
}

func ContinueResult(output map[string]any) ExecutionResult {
	return ExecutionResult{Kind: ResultContinue, Output: output}
}

func SuspendResult(resumeKey string, approval *ApprovalRecord) ExecutionResult {
	return ExecutionResult{Kind: ResultSuspend, ResumeKey: resumeKey, Approval: approval}
}

func RetryResult(reason string, after time.Duration) ExecutionResult {
	return ExecutionResult{Kind: ResultRetry, Reason: reason, RetryAfter: after}
}

func FailResult(reason string) ExecutionResult {
	return ExecutionResult{Kind: ResultFail, Reason: reason}
}
