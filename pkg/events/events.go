// Package events defines event types for workflow run lifecycle notifications.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// Kafka topic for run lifecycle events.
const Topic = "stride.runs"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	RunStartedEvent   EventType = "run.started"
	RunSuspendedEvent EventType = "run.suspended"
	RunResumedEvent   EventType = "run.resumed"
	RunCompletedEvent EventType = "run.completed"
	RunFailedEvent    EventType = "run.failed"
	RunCancelledEvent EventType = "run.cancelled"
	StepFinishedEvent EventType = "run.step.finished"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	RunID      string         `json:"run_id"`
	WorkerID   string         `json:"worker_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, workflowID, runID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		RunID:      runID,
		Metadata:   make(map[string]any),
	}
}

type RunStarted struct {
	BaseEvent

	TriggerEvent string         `json:"trigger_event"`
	TriggerData  map[string]any `json:"trigger_data,omitempty"`
}

func (e RunStarted) GetType() EventType {
	return RunStartedEvent
}

type RunSuspended struct {
	BaseEvent

	StepID     string `json:"step_id"`
	ResumeKey  string `json:"resume_key"`
	ApproverID string `json:"approver_id,omitempty"`
}

func (e RunSuspended) GetType() EventType {
	return RunSuspendedEvent
}

type RunResumed struct {
	BaseEvent

	StepID    string `json:"step_id"`
	Approved  bool   `json:"approved"`
	DecidedBy string `json:"decided_by"`
	Comment   string `json:"comment,omitempty"`
}

func (e RunResumed) GetType() EventType {
	return RunResumedEvent
}

type RunCompleted struct {
	BaseEvent

	Variables map[string]any `json:"variables,omitempty"`
	Duration  time.Duration  `json:"duration"`
}

func (e RunCompleted) GetType() EventType {
	return RunCompletedEvent
}

type RunFailed struct {
	BaseEvent

	StepID string `json:"step_id,omitempty"`
	Error  string `json:"error"`
}

func (e RunFailed) GetType() EventType {
	return RunFailedEvent
}

type RunCancelled struct {
	BaseEvent

	CancelledBy string `json:"cancelled_by,omitempty"`
}

func (e RunCancelled) GetType() EventType {
	return RunCancelledEvent
}

type StepFinished struct {
	BaseEvent

	StepID     string         `json:"step_id"`
	OutputData map[string]any `json:"output_data,omitempty"`
	Duration   time.Duration  `json:"duration"`
}

func (e StepFinished) GetType() EventType {
	return StepFinishedEvent
}
