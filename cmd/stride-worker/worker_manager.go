package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/peopleops/stride/pkg/config"
	"github.com/peopleops/stride/pkg/engine"
	"github.com/peopleops/stride/pkg/eventbus"
	"github.com/peopleops/stride/pkg/events"
	"github.com/peopleops/stride/pkg/triggers/schedule"
)

type WorkerManager struct {
	id        string
	logger    *slog.Logger
	engine    *engine.Engine
	eventBus  eventbus.EventBus
	scheduler *schedule.Scheduler
}

func NewWorkerManager(
	id string,
	eng *engine.Engine,
	bus eventbus.EventBus,
	logger *slog.Logger,
) *WorkerManager {
	manager := &WorkerManager{
		id:       id,
		logger:   logger.With("module", "stride-worker", "worker_id", id),
		engine:   eng,
		eventBus: bus,
	}

	manager.scheduler = schedule.NewScheduler(manager.logger, func(ctx context.Context, eventName string, data map[string]any) error {
		_, err := eng.Trigger(ctx, eventName, data)

		return err
	})

	return manager
}

// LoadSchedules registers configured cron-fired trigger events.
func (w *WorkerManager) LoadSchedules(schedules []config.Schedule) error {
	for _, entry := range schedules {
		if err := w.scheduler.AddSchedule(entry.Cron, entry.Event, entry.Data); err != nil {
			return err
		}
	}

	w.logger.Info("Loaded schedules", "count", len(schedules))

	return nil
}

func (w *WorkerManager) Start(ctx context.Context) error {
	w.logger.InfoContext(ctx, "Starting worker manager")

	recovered, err := w.engine.Recover(ctx)
	if err != nil {
		return fmt.Errorf("failed to recover runs: %w", err)
	}

	w.logger.InfoContext(ctx, "Recovery sweep finished", "recovered", recovered)

	if err := w.eventBus.Handle(events.RunCompletedEvent, w.handleRunCompleted); err != nil {
		return err
	}

	if err := w.eventBus.Handle(events.RunFailedEvent, w.handleRunFailed); err != nil {
		return err
	}

	if err := w.eventBus.Subscribe(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Failed to subscribe to event bus", "error", err)

		return err
	}

	if err := w.scheduler.Start(ctx); err != nil {
		return err
	}

	w.logger.InfoContext(ctx, "Worker started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	w.logger.InfoContext(ctx, "Shutting down worker...")

	if err := w.scheduler.Stop(ctx); err != nil {
		w.logger.ErrorContext(ctx, "Failed to stop scheduler", "error", err)
	}

	// Let in-flight runs settle before the process exits.
	w.engine.Wait()

	return nil
}

func (w *WorkerManager) handleRunCompleted(ctx context.Context, event any) error {
	completed, ok := event.(*events.RunCompleted)
	if !ok {
		return nil
	}

	w.logger.InfoContext(ctx, "Run completed",
		"run_id", completed.RunID,
		"workflow_id", completed.WorkflowID,
		"duration", completed.Duration,
	)

	return nil
}

func (w *WorkerManager) handleRunFailed(ctx context.Context, event any) error {
	failed, ok := event.(*events.RunFailed)
	if !ok {
		return nil
	}

	w.logger.WarnContext(ctx, "Run failed",
		"run_id", failed.RunID,
		"workflow_id", failed.WorkflowID,
		"step_id", failed.StepID,
		"error", failed.Error,
	)

	return nil
}
