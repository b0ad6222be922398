// Package notification implements the notification step type. The message
// template is rendered against the execution context and handed to a
// delivery transport.
package notification

import (
	"context"
	"log/slog"
	"time"

	"github.com/peopleops/stride/pkg/models"
	"github.com/peopleops/stride/pkg/notify"
	"github.com/peopleops/stride/pkg/template"
)

type Executor struct {
	transport notify.Transport
}

func NewExecutor(transport notify.Transport) *Executor {
	return &Executor{transport: transport}
}

func (e *Executor) Execute(
	ctx context.Context,
	step models.WorkflowStep,
	ectx *models.ExecutionContext,
	logger *slog.Logger,
) (models.ExecutionResult, error) {
	logger = logger.With("step_type", "notification")

	config, err := models.ParseNotificationConfig(step.Config)
	if err != nil {
		logger.Error("Invalid notification configuration", "error", err)

		return models.FailResult(err.Error()), nil
	}

	message, err := template.RenderString(config.Template, ectx)
	if err != nil {
		logger.Error("Failed to render notification template", "error", err)

		return models.FailResult("template rendering failed: " + err.Error()), nil
	}

	if err := e.transport.Send(ctx, config.Channel, message); err != nil {
		logger.Warn("Notification delivery failed", "channel", config.Channel, "error", err)

		return models.RetryResult("delivery to "+config.Channel+" failed: "+err.Error(), 0), nil
	}

	logger.Info("Notification delivered", "channel", config.Channel)

	return models.ContinueResult(map[string]any{
		"channel": config.Channel,
		"message": message,
		"sent_at": time.Now().UTC().Format(time.RFC3339),
	}), nil
}
