// Package memory provides an in-memory run store for tests and local
// development. All operations are guarded by one mutex; records are deep
// copied on the way in and out so callers never alias store state.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/peopleops/stride/pkg/models"
	"github.com/peopleops/stride/pkg/runstore"
)

type RunStore struct {
	mu   sync.RWMutex
	runs map[string]*models.WorkflowRun
}

func NewRunStore() *RunStore {
	return &RunStore{runs: make(map[string]*models.WorkflowRun)}
}

func (s *RunStore) CreateRun(_ context.Context, run *models.WorkflowRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.ID]; exists {
		return runstore.NewRunError("CreateRun", run.ID, runstore.ErrRunAlreadyExists)
	}

	stored := run.Clone()
	stored.UpdatedAt = time.Now().UTC()
	s.runs[run.ID] = stored

	return nil
}

func (s *RunStore) RunByID(_ context.Context, id string) (*models.WorkflowRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.runs[id]
	if !exists {
		return nil, runstore.NewRunError("RunByID", id, runstore.ErrRunNotFound)
	}

	return run.Clone(), nil
}

func (s *RunStore) UpdateRun(_ context.Context, run *models.WorkflowRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.runs[run.ID]
	if !exists {
		return runstore.NewRunError("UpdateRun", run.ID, runstore.ErrRunNotFound)
	}

	if stored.Status.Terminal() {
		return runstore.NewRunError("UpdateRun", run.ID, runstore.ErrRunTerminal)
	}

	updated := run.Clone()
	updated.UpdatedAt = time.Now().UTC()
	s.runs[run.ID] = updated

	return nil
}

func (s *RunStore) ClaimRun(_ context.Context, id string, from, to models.RunStatus, claimedBy string) (*models.WorkflowRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.runs[id]
	if !exists {
		return nil, runstore.NewRunError("ClaimRun", id, runstore.ErrRunNotFound)
	}

	if stored.Status.Terminal() {
		return nil, runstore.NewRunError("ClaimRun", id, runstore.ErrRunTerminal)
	}

	if stored.Status != from {
		return nil, runstore.NewRunError("ClaimRun", id, runstore.ErrClaimConflict)
	}

	now := time.Now().UTC()
	stored.Status = to
	stored.ClaimedBy = claimedBy
	stored.UpdatedAt = now

	if to.Terminal() {
		stored.CompletedAt = &now
	}

	return stored.Clone(), nil
}

func (s *RunStore) ListByStatus(_ context.Context, status models.RunStatus) ([]*models.WorkflowRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var runs []*models.WorkflowRun

	for _, run := range s.runs {
		if run.Status == status {
			runs = append(runs, run.Clone())
		}
	}

	return runs, nil
}

func (s *RunStore) ListNonTerminal(_ context.Context) ([]*models.WorkflowRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var runs []*models.WorkflowRun

	for _, run := range s.runs {
		if !run.Status.Terminal() {
			runs = append(runs, run.Clone())
		}
	}

	return runs, nil
}

func (s *RunStore) HealthCheck(_ context.Context) error {
	return nil
}

func (s *RunStore) Close(_ context.Context) error {
	return nil
}
