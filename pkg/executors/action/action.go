// Package action implements the action step type. The configured handler
// runs against the run's variables and its output is merged back.
package action

import (
	"context"
	"log/slog"

	"github.com/peopleops/stride/pkg/models"
	"github.com/peopleops/stride/pkg/registry"
)

type Executor struct {
	actions *registry.ActionRegistry
}

func NewExecutor(actions *registry.ActionRegistry) *Executor {
	return &Executor{actions: actions}
}

func (e *Executor) Execute(
	ctx context.Context,
	step models.WorkflowStep,
	ectx *models.ExecutionContext,
	logger *slog.Logger,
) (models.ExecutionResult, error) {
	logger = logger.With("step_type", "action")

	config, err := models.ParseActionConfig(step.Config)
	if err != nil {
		logger.Error("Invalid action configuration", "error", err)

		return models.FailResult(err.Error()), nil
	}

	handler, err := e.actions.Handler(config.Handler)
	if err != nil {
		logger.Error("Unknown action handler", "handler", config.Handler)

		return models.FailResult("unknown action handler: " + config.Handler), nil
	}

	logger.Info("Executing action handler", "handler", config.Handler)

	output, err := handler(ctx, ectx.Variables)
	if err != nil {
		logger.Warn("Action handler failed", "handler", config.Handler, "error", err)

		return models.RetryResult("handler "+config.Handler+" failed: "+err.Error(), 0), nil
	}

	return models.ContinueResult(output), nil
}
