// Package cmd provides common initialization for command-line applications.
package cmd

import (
	"log/slog"

	actionexec "github.com/peopleops/stride/pkg/executors/action"
	approvalexec "github.com/peopleops/stride/pkg/executors/approval"
	notificationexec "github.com/peopleops/stride/pkg/executors/notification"
	"github.com/peopleops/stride/pkg/identity"
	"github.com/peopleops/stride/pkg/models"
	"github.com/peopleops/stride/pkg/notify"
	"github.com/peopleops/stride/pkg/registry"
)

func approvalSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"approver_role": map[string]any{"type": "string", "minLength": 1},
			"approver_id":   map[string]any{"type": "string", "minLength": 1},
		},
		"anyOf": []any{
			map[string]any{"required": []any{"approver_role"}},
			map[string]any{"required": []any{"approver_id"}},
		},
	}
}

func notificationSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"channel":  map[string]any{"type": "string", "minLength": 1},
			"template": map[string]any{"type": "string", "minLength": 1},
		},
		"required": []any{"channel", "template"},
	}
}

func actionSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"handler": map[string]any{"type": "string", "minLength": 1},
		},
		"required": []any{"handler"},
	}
}

// NewRegistry builds a step registry with the three native step types wired
// to the given approver provider, notification transport, and action
// handlers.
func NewRegistry(
	logger *slog.Logger,
	provider identity.Provider,
	transport notify.Transport,
	actions *registry.ActionRegistry,
) (*registry.Registry, error) {
	reg := registry.NewRegistry(logger)

	if err := reg.RegisterStepType(models.StepTypeApproval, approvalSchema(), approvalexec.NewExecutor(provider)); err != nil {
		return nil, err
	}

	if err := reg.RegisterStepType(models.StepTypeNotification, notificationSchema(), notificationexec.NewExecutor(transport)); err != nil {
		return nil, err
	}

	if err := reg.RegisterStepType(models.StepTypeAction, actionSchema(), actionexec.NewExecutor(actions)); err != nil {
		return nil, err
	}

	return reg, nil
}
