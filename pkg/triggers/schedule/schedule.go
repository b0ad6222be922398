// Package schedule fires trigger events on cron schedules, for recurring HR
// workflows such as review cycles and compliance checks.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// TriggerFunc receives a fired event. It matches the engine's Trigger method.
type TriggerFunc func(ctx context.Context, eventName string, data map[string]any) error

type entry struct {
	CronExpr  string
	EventName string
	Data      map[string]any
}

type Scheduler struct {
	mu      sync.Mutex
	entries []entry
	cron    *cron.Cron
	trigger TriggerFunc
	logger  *slog.Logger
}

func NewScheduler(logger *slog.Logger, trigger TriggerFunc) *Scheduler {
	return &Scheduler{
		trigger: trigger,
		logger:  logger.With("module", "schedule"),
	}
}

// AddSchedule registers a cron expression that fires eventName with the
// given static data. Must be called before Start.
func (s *Scheduler) AddSchedule(cronExpr, eventName string, data map[string]any) error {
	if eventName == "" {
		return errors.New("schedule requires an event name")
	}

	if _, err := cron.ParseStandard(cronExpr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, entry{CronExpr: cronExpr, EventName: eventName, Data: data})

	return nil
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return errors.New("scheduler already started")
	}

	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	for _, e := range s.entries {
		e := e

		_, err := s.cron.AddFunc(e.CronExpr, func() {
			s.fire(ctx, e)
		})
		if err != nil {
			return fmt.Errorf("failed to add cron job for event %s: %w", e.EventName, err)
		}

		s.logger.Info("Scheduled trigger", "cron", e.CronExpr, "event", e.EventName)
	}

	s.cron.Start()

	return nil
}

func (s *Scheduler) fire(ctx context.Context, e entry) {
	s.logger.Info("Cron fired", "event", e.EventName)

	data := make(map[string]any, len(e.Data)+1)
	for k, v := range e.Data {
		data[k] = v
	}

	data["fired_at"] = time.Now().UTC().Format(time.RFC3339)

	if err := s.trigger(ctx, e.EventName, data); err != nil {
		s.logger.Error("Failed to trigger scheduled event", "event", e.EventName, "error", err)
	}
}

func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return nil
	}

	stopCtx := s.cron.Stop()

	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	s.logger.Info("Scheduler stopped")

	return nil
}
