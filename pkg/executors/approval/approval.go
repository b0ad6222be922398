// Package approval implements the approval step type. Executing an
// approval step resolves the responsible approver and suspends the run
// until a decision arrives.
package approval

import (
	"context"
	"log/slog"
	"time"

	"github.com/peopleops/stride/pkg/identity"
	"github.com/peopleops/stride/pkg/models"
)

type Executor struct {
	provider identity.Provider
}

func NewExecutor(provider identity.Provider) *Executor {
	return &Executor{provider: provider}
}

func (e *Executor) Execute(
	ctx context.Context,
	step models.WorkflowStep,
	ectx *models.ExecutionContext,
	logger *slog.Logger,
) (models.ExecutionResult, error) {
	logger = logger.With("step_type", "approval")

	config, err := models.ParseApprovalConfig(step.Config)
	if err != nil {
		logger.Error("Invalid approval configuration", "error", err)

		return models.FailResult(err.Error()), nil
	}

	approver, err := e.provider.ResolveApprover(ctx, config.ApproverRef())
	if err != nil {
		logger.Error("Failed to resolve approver", "approver_ref", config.ApproverRef(), "error", err)

		return models.FailResult("approver not found: " + config.ApproverRef()), nil
	}

	record := &models.ApprovalRecord{
		StepID:        step.ID,
		ApproverID:    approver.ID,
		ApproverName:  approver.Name,
		ApproverEmail: approver.Email,
		RequestedAt:   time.Now().UTC(),
	}

	resumeKey := ectx.RunID + ":" + step.ID

	logger.Info("Approval requested, suspending run",
		"approver_id", approver.ID,
		"resume_key", resumeKey,
	)

	return models.SuspendResult(resumeKey, record), nil
}
