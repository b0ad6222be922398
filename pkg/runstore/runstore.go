// Package runstore provides the durable storage abstraction for workflow
// runs. Implementations must offer an atomic compare-and-set status
// transition so concurrent orchestrator workers never advance the same run.
package runstore

import (
	"context"

	"github.com/peopleops/stride/pkg/models"
)

// RunStore persists workflow runs.
//
// Implementations enforce two invariants:
//   - a run whose stored status is terminal is immutable; UpdateRun and
//     ClaimRun against it fail with ErrRunTerminal,
//   - ClaimRun transitions status from exactly `from` to `to` atomically and
//     fails with ErrClaimConflict when the stored status differs, which is
//     how exclusive resume/recovery claims are arbitrated.
//
// When `to` is terminal, ClaimRun also stamps CompletedAt.
type RunStore interface {
	CreateRun(ctx context.Context, run *models.WorkflowRun) error
	RunByID(ctx context.Context, id string) (*models.WorkflowRun, error)
	UpdateRun(ctx context.Context, run *models.WorkflowRun) error
	ClaimRun(ctx context.Context, id string, from, to models.RunStatus, claimedBy string) (*models.WorkflowRun, error)
	ListByStatus(ctx context.Context, status models.RunStatus) ([]*models.WorkflowRun, error)
	ListNonTerminal(ctx context.Context) ([]*models.WorkflowRun, error)
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}
