// Package engine orchestrates workflow runs: it advances runs step by step,
// suspends them on approvals, applies external decisions, and recovers
// in-flight runs after a worker restart.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/peopleops/stride/pkg/backoff"
	"github.com/peopleops/stride/pkg/definitions"
	"github.com/peopleops/stride/pkg/eventbus"
	"github.com/peopleops/stride/pkg/events"
	"github.com/peopleops/stride/pkg/models"
	"github.com/peopleops/stride/pkg/otelhelper"
	"github.com/peopleops/stride/pkg/registry"
	"github.com/peopleops/stride/pkg/runstore"
)

const defaultMaxStepAttempts = 3

type Config struct {
	Store       runstore.RunStore
	Definitions *definitions.Store
	Registry    *registry.Registry

	// EventBus is optional; a nil bus disables lifecycle event publishing.
	EventBus eventbus.EventBus

	// Tracer is optional; a nil tracer disables span creation.
	Tracer trace.Tracer

	Logger *slog.Logger

	// MaxStepAttempts bounds retryable step executions, defaulting to 3.
	MaxStepAttempts int

	// Backoff spaces retry attempts, defaulting to exponential with jitter.
	Backoff backoff.Strategy

	// WorkerID identifies this engine instance in run claims.
	WorkerID string
}

// Engine drives runs through their definitions. All public methods are safe
// for concurrent use; exclusivity over an individual run is arbitrated by
// the store's claim operation, so multiple engine instances can share one
// store.
type Engine struct {
	store       runstore.RunStore
	definitions *definitions.Store
	registry    *registry.Registry
	eventBus    eventbus.EventBus
	tracer      trace.Tracer
	logger      *slog.Logger

	maxStepAttempts int
	backoff         backoff.Strategy
	workerID        string

	wg sync.WaitGroup
}

func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, errors.New("engine requires a run store")
	}

	if cfg.Definitions == nil {
		return nil, errors.New("engine requires a definition store")
	}

	if cfg.Registry == nil {
		return nil, errors.New("engine requires a step registry")
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	if cfg.MaxStepAttempts <= 0 {
		cfg.MaxStepAttempts = defaultMaxStepAttempts
	}

	if cfg.Backoff == nil {
		cfg.Backoff = backoff.Default()
	}

	if cfg.WorkerID == "" {
		cfg.WorkerID = "worker-" + uuid.New().String()[:8]
	}

	return &Engine{
		store:           cfg.Store,
		definitions:     cfg.Definitions,
		registry:        cfg.Registry,
		eventBus:        cfg.EventBus,
		tracer:          cfg.Tracer,
		logger:          cfg.Logger.With("module", "engine", "worker_id", cfg.WorkerID),
		maxStepAttempts: cfg.MaxStepAttempts,
		backoff:         cfg.Backoff,
		workerID:        cfg.WorkerID,
	}, nil
}

// Trigger starts one run per definition subscribed to eventName. Unknown
// events start nothing and return an empty slice. Runs advance
// asynchronously; the returned snapshots reflect the just-created runs.
func (e *Engine) Trigger(ctx context.Context, eventName string, data map[string]any) ([]*models.WorkflowRun, error) {
	defs := e.definitions.FindByTrigger(eventName)

	started := make([]*models.WorkflowRun, 0, len(defs))

	for _, def := range defs {
		// The trigger payload seeds the variable namespace, so the first
		// step already sees it; later action output overwrites key by key.
		variables := make(map[string]any, len(data))
		for k, v := range data {
			variables[k] = v
		}

		run := &models.WorkflowRun{
			ID:             "run-" + uuid.New().String()[:8],
			WorkflowID:     def.ID,
			Status:         models.RunStatusPending,
			TriggerEvent:   eventName,
			TriggerData:    data,
			Variables:      variables,
			StepResults:    make(map[string]any),
			CompletedSteps: make(map[string]time.Time),
			StartedAt:      time.Now().UTC(),
		}

		if err := e.store.CreateRun(ctx, run); err != nil {
			return started, err
		}

		claimed, err := e.store.ClaimRun(ctx, run.ID, models.RunStatusPending, models.RunStatusRunning, e.workerID)
		if err != nil {
			// Another worker picked the run up between create and claim.
			if runstore.IsClaimConflict(err) {
				started = append(started, run)

				continue
			}

			return started, err
		}

		e.logger.Info("Run started",
			"run_id", claimed.ID,
			"workflow_id", def.ID,
			"trigger_event", eventName,
		)

		e.publish(ctx, claimed.ID, events.RunStarted{
			BaseEvent:    events.NewBaseEvent(events.RunStartedEvent, def.ID, claimed.ID),
			TriggerEvent: eventName,
			TriggerData:  data,
		})

		started = append(started, claimed.Clone())
		e.advanceAsync(ctx, claimed)
	}

	return started, nil
}

// Resume applies an external approval decision to the suspended run matching
// resumeKey. Exactly one caller wins a concurrent resume; losers get an
// InvalidRunStateError, or AlreadyTerminalError if the run finished meanwhile.
func (e *Engine) Resume(ctx context.Context, resumeKey string, decision models.Decision) (*models.WorkflowRun, error) {
	if decision.DecidedBy == "" {
		return nil, errors.New("decision requires decided_by")
	}

	runID, stepID, found := strings.Cut(resumeKey, ":")
	if !found {
		return nil, &UnknownResumeKeyError{ResumeKey: resumeKey}
	}

	run, err := e.store.RunByID(ctx, runID)
	if err != nil {
		if runstore.IsRunNotFound(err) {
			return nil, &UnknownResumeKeyError{ResumeKey: resumeKey}
		}

		return nil, err
	}

	if run.Status.Terminal() {
		return nil, &AlreadyTerminalError{RunID: run.ID, Status: run.Status}
	}

	if run.ResumeKey != resumeKey {
		return nil, &UnknownResumeKeyError{ResumeKey: resumeKey}
	}

	claimed, err := e.store.ClaimRun(ctx, runID, models.RunStatusWaitingOnApproval, models.RunStatusRunning, e.workerID)
	if err != nil {
		fresh, ferr := e.store.RunByID(ctx, runID)
		if ferr == nil && fresh.Status.Terminal() {
			return nil, &AlreadyTerminalError{RunID: runID, Status: fresh.Status}
		}

		status := models.RunStatus("")
		if fresh != nil {
			status = fresh.Status
		}

		return nil, &InvalidRunStateError{RunID: runID, Status: status}
	}

	now := time.Now().UTC()

	if claimed.Approval == nil {
		claimed.Approval = &models.ApprovalRecord{StepID: stepID, RequestedAt: now}
	}

	claimed.Approval.DecidedBy = decision.DecidedBy
	claimed.Approval.DecidedAt = &now
	claimed.Approval.Comment = decision.Comment
	claimed.ResumeKey = ""

	e.publish(ctx, claimed.ID, events.RunResumed{
		BaseEvent: events.NewBaseEvent(events.RunResumedEvent, claimed.WorkflowID, claimed.ID),
		StepID:    stepID,
		Approved:  decision.Approved,
		DecidedBy: decision.DecidedBy,
		Comment:   decision.Comment,
	})

	if !decision.Approved {
		claimed.Approval.Decision = "rejected"
		claimed.Status = models.RunStatusFailed
		claimed.LastError = models.ReasonApprovalRejected
		claimed.CompletedAt = &now

		if err := e.store.UpdateRun(ctx, claimed); err != nil {
			return nil, err
		}

		e.logger.Info("Approval rejected, run failed",
			"run_id", claimed.ID,
			"step_id", stepID,
			"decided_by", decision.DecidedBy,
		)

		e.publish(ctx, claimed.ID, events.RunFailed{
			BaseEvent: events.NewBaseEvent(events.RunFailedEvent, claimed.WorkflowID, claimed.ID),
			StepID:    stepID,
			Error:     models.ReasonApprovalRejected,
		})

		return claimed.Clone(), nil
	}

	claimed.Approval.Decision = "approved"

	if claimed.CompletedSteps == nil {
		claimed.CompletedSteps = make(map[string]time.Time)
	}

	claimed.CompletedSteps[stepID] = now
	claimed.CurrentStepIndex++

	if err := e.store.UpdateRun(ctx, claimed); err != nil {
		return nil, err
	}

	e.logger.Info("Approval granted, run resuming",
		"run_id", claimed.ID,
		"step_id", stepID,
		"decided_by", decision.DecidedBy,
	)

	snapshot := claimed.Clone()
	e.advanceAsync(ctx, claimed)

	return snapshot, nil
}

// Cancel transitions a non-terminal run to cancelled. Between-step
// cancellation is cooperative: a step already executing finishes, then the
// advance loop observes the cancelled status and stops.
func (e *Engine) Cancel(ctx context.Context, runID string) (*models.WorkflowRun, error) {
	for {
		run, err := e.store.RunByID(ctx, runID)
		if err != nil {
			return nil, err
		}

		if run.Status.Terminal() {
			return nil, &AlreadyTerminalError{RunID: runID, Status: run.Status}
		}

		claimed, err := e.store.ClaimRun(ctx, runID, run.Status, models.RunStatusCancelled, e.workerID)
		if err != nil {
			// Status moved under us; re-read and try again.
			if runstore.IsClaimConflict(err) {
				continue
			}

			if runstore.IsRunTerminal(err) {
				fresh, ferr := e.store.RunByID(ctx, runID)
				if ferr != nil {
					return nil, ferr
				}

				return nil, &AlreadyTerminalError{RunID: runID, Status: fresh.Status}
			}

			return nil, err
		}

		e.logger.Info("Run cancelled", "run_id", runID)

		e.publish(ctx, claimed.ID, events.RunCancelled{
			BaseEvent: events.NewBaseEvent(events.RunCancelledEvent, claimed.WorkflowID, claimed.ID),
		})

		return claimed, nil
	}
}

// Run returns the current snapshot of a run.
func (e *Engine) Run(ctx context.Context, runID string) (*models.WorkflowRun, error) {
	return e.store.RunByID(ctx, runID)
}

// Runs lists runs by status, or every non-terminal run when status is empty.
func (e *Engine) Runs(ctx context.Context, status models.RunStatus) ([]*models.WorkflowRun, error) {
	if status == "" {
		return e.store.ListNonTerminal(ctx)
	}

	return e.store.ListByStatus(ctx, status)
}

// Recover re-adopts non-terminal runs after a restart. Pending and running
// runs are claimed and advanced from their persisted step cursor; suspended
// runs stay suspended until their decision arrives. Returns the number of
// runs this worker re-adopted.
func (e *Engine) Recover(ctx context.Context) (int, error) {
	runs, err := e.store.ListNonTerminal(ctx)
	if err != nil {
		return 0, err
	}

	recovered := 0

	for _, run := range runs {
		if run.Status != models.RunStatusPending && run.Status != models.RunStatusRunning {
			continue
		}

		claimed, err := e.store.ClaimRun(ctx, run.ID, run.Status, models.RunStatusRunning, e.workerID)
		if err != nil {
			if runstore.IsClaimConflict(err) || runstore.IsRunTerminal(err) {
				continue
			}

			return recovered, err
		}

		e.logger.Info("Recovered run",
			"run_id", claimed.ID,
			"workflow_id", claimed.WorkflowID,
			"step_index", claimed.CurrentStepIndex,
		)

		recovered++

		e.advanceAsync(ctx, claimed)
	}

	return recovered, nil
}

// Wait blocks until every in-flight run advanced by this engine settles, by
// completing, suspending, or failing. Intended for shutdown and tests.
func (e *Engine) Wait() {
	e.wg.Wait()
}

func (e *Engine) advanceAsync(ctx context.Context, run *models.WorkflowRun) {
	e.wg.Add(1)

	go func() {
		defer e.wg.Done()

		// The run must keep advancing even when the triggering request's
		// context ends.
		e.advance(context.WithoutCancel(ctx), run)
	}()
}

// advance drives a running run forward until it completes, suspends, fails,
// or observes an external cancellation. The caller must hold the running
// claim on the run.
func (e *Engine) advance(ctx context.Context, run *models.WorkflowRun) {
	logger := e.logger.With("run_id", run.ID, "workflow_id", run.WorkflowID)

	var span trace.Span
	if e.tracer != nil {
		ctx, span = otelhelper.StartSpan(ctx, e.tracer, "engine.advance",
			attribute.String(otelhelper.RunIDKey, run.ID),
			attribute.String(otelhelper.WorkflowIDKey, run.WorkflowID),
		)
		defer span.End()
	}

	def, err := e.definitions.Get(run.WorkflowID)
	if err != nil {
		logger.Error("Definition missing for run", "error", err)
		e.failRun(ctx, run, "", "workflow definition not found: "+run.WorkflowID)

		return
	}

	for run.CurrentStepIndex < len(def.Steps) {
		fresh, err := e.store.RunByID(ctx, run.ID)
		if err != nil {
			logger.Error("Failed to reload run", "error", err)

			return
		}

		if fresh.Status != models.RunStatusRunning {
			logger.Info("Run no longer running, stopping advance", "status", fresh.Status)

			return
		}

		step := def.Steps[run.CurrentStepIndex]

		if _, done := run.CompletedSteps[step.ID]; done {
			run.CurrentStepIndex++

			if err := e.store.UpdateRun(ctx, run); err != nil {
				logger.Error("Failed to persist step cursor", "error", err)

				return
			}

			continue
		}

		stepStart := time.Now()
		result := e.executeStep(ctx, run, step, logger)

		switch result.Kind {
		case models.ResultContinue:
			now := time.Now().UTC()

			// Only action output feeds the variable namespace; delivery
			// receipts and the like stay under StepResults.
			if step.Type == models.StepTypeAction {
				ectx := models.NewExecutionContext(run)
				ectx.MergeVariables(result.Output)

				run.Variables = ectx.Variables
			}

			if run.StepResults == nil {
				run.StepResults = make(map[string]any)
			}

			run.StepResults[step.ID] = result.Output

			if run.CompletedSteps == nil {
				run.CompletedSteps = make(map[string]time.Time)
			}

			run.CompletedSteps[step.ID] = now
			run.CurrentStepIndex++

			if err := e.store.UpdateRun(ctx, run); err != nil {
				logger.Error("Failed to persist step completion", "step_id", step.ID, "error", err)

				return
			}

			logger.Info("Step finished", "step_id", step.ID, "step_type", step.Type)

			e.publish(ctx, run.ID, events.StepFinished{
				BaseEvent:  events.NewBaseEvent(events.StepFinishedEvent, run.WorkflowID, run.ID),
				StepID:     step.ID,
				OutputData: result.Output,
				Duration:   time.Since(stepStart),
			})

		case models.ResultSuspend:
			run.Status = models.RunStatusWaitingOnApproval
			run.ResumeKey = result.ResumeKey
			run.Approval = result.Approval

			if err := e.store.UpdateRun(ctx, run); err != nil {
				logger.Error("Failed to persist suspension", "step_id", step.ID, "error", err)

				return
			}

			logger.Info("Run suspended", "step_id", step.ID, "resume_key", result.ResumeKey)

			suspended := events.RunSuspended{
				BaseEvent: events.NewBaseEvent(events.RunSuspendedEvent, run.WorkflowID, run.ID),
				StepID:    step.ID,
				ResumeKey: result.ResumeKey,
			}
			if result.Approval != nil {
				suspended.ApproverID = result.Approval.ApproverID
			}

			e.publish(ctx, run.ID, suspended)

			return

		case models.ResultFail, models.ResultRetry:
			// executeStep only surfaces Retry after exhausting attempts.
			if span != nil {
				otelhelper.SetError(span, errors.New(result.Reason))
			}

			e.failRun(ctx, run, step.ID, result.Reason)

			return
		}
	}

	now := time.Now().UTC()
	run.Status = models.RunStatusCompleted
	run.CompletedAt = &now

	if err := e.store.UpdateRun(ctx, run); err != nil {
		logger.Error("Failed to persist run completion", "error", err)

		return
	}

	logger.Info("Run completed", "steps", len(def.Steps))

	e.publish(ctx, run.ID, events.RunCompleted{
		BaseEvent: events.NewBaseEvent(events.RunCompletedEvent, run.WorkflowID, run.ID),
		Variables: run.Variables,
		Duration:  now.Sub(run.StartedAt),
	})
}

// executeStep runs one step, retrying transient failures with backoff until
// maxStepAttempts is exhausted. The returned result is never Retry.
func (e *Engine) executeStep(
	ctx context.Context,
	run *models.WorkflowRun,
	step models.WorkflowStep,
	logger *slog.Logger,
) models.ExecutionResult {
	executor, err := e.registry.ExecutorFor(step.Type)
	if err != nil {
		return models.FailResult("no executor registered for step type " + string(step.Type))
	}

	ectx := models.NewExecutionContext(run)

	for attempt := 1; ; attempt++ {
		result, err := executor.Execute(ctx, step, ectx, logger)
		if err != nil {
			result = models.RetryResult(err.Error(), 0)
		}

		if result.Kind != models.ResultRetry {
			return result
		}

		if attempt >= e.maxStepAttempts {
			logger.Warn("Step exhausted retry attempts",
				"step_id", step.ID,
				"attempts", attempt,
				"reason", result.Reason,
			)

			return models.FailResult(fmt.Sprintf("step %s failed after %d attempts: %s", step.ID, attempt, result.Reason))
		}

		delay := result.RetryAfter
		if delay <= 0 {
			delay = e.backoff.Delay(attempt)
		}

		logger.Info("Retrying step",
			"step_id", step.ID,
			"attempt", attempt,
			"delay", delay,
			"reason", result.Reason,
		)

		select {
		case <-ctx.Done():
			return models.FailResult("step " + step.ID + " aborted: " + ctx.Err().Error())
		case <-time.After(delay):
		}
	}
}

func (e *Engine) failRun(ctx context.Context, run *models.WorkflowRun, stepID, reason string) {
	now := time.Now().UTC()
	run.Status = models.RunStatusFailed
	run.LastError = reason
	run.CompletedAt = &now

	if err := e.store.UpdateRun(ctx, run); err != nil {
		e.logger.Error("Failed to persist run failure", "run_id", run.ID, "error", err)

		return
	}

	e.logger.Warn("Run failed", "run_id", run.ID, "step_id", stepID, "error", reason)

	e.publish(ctx, run.ID, events.RunFailed{
		BaseEvent: events.NewBaseEvent(events.RunFailedEvent, run.WorkflowID, run.ID),
		StepID:    stepID,
		Error:     reason,
	})
}

func (e *Engine) publish(ctx context.Context, key string, event eventbus.Event) {
	if e.eventBus == nil {
		return
	}

	if err := e.eventBus.Publish(ctx, key, event); err != nil {
		e.logger.Warn("Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

