package models

import (
	"errors"
	"fmt"
)

// Typed views over a step's config map. Each executor parses the variant it
// owns so required fields are checked in one place.

var (
	ErrApproverMissing = errors.New("approval step requires approver_role or approver_id")
	ErrChannelMissing  = errors.New("notification step requires a channel")
	ErrTemplateMissing = errors.New("notification step requires a template")
	ErrHandlerMissing  = errors.New("action step requires a handler")
)

// ApprovalConfig configures an approval step. Exactly one of ApproverRole or
// ApproverID must be set; ApproverID wins when both are present.
type ApprovalConfig struct {
	ApproverRole string `json:"approver_role,omitempty"`
	ApproverID   string `json:"approver_id,omitempty"`
}

// ApproverRef returns the id when set, otherwise the role.
func (c ApprovalConfig) ApproverRef() string {
	if c.ApproverID != "" {
		return c.ApproverID
	}

	return c.ApproverRole
}

func ParseApprovalConfig(config map[string]any) (ApprovalConfig, error) {
	cfg := ApprovalConfig{
		ApproverRole: stringValue(config, "approver_role"),
		ApproverID:   stringValue(config, "approver_id"),
	}

	if cfg.ApproverRole == "" && cfg.ApproverID == "" {
		return ApprovalConfig{}, ErrApproverMissing
	}

	return cfg, nil
}

// NotificationConfig configures a notification step. Template supports the
// expression syntax of pkg/template and is rendered against the run's
// execution context before sending.
type NotificationConfig struct {
	Channel  string `json:"channel"`
	Template string `json:"template"`
}

func ParseNotificationConfig(config map[string]any) (NotificationConfig, error) {
	cfg := NotificationConfig{
		Channel:  stringValue(config, "channel"),
		Template: stringValue(config, "template"),
	}

	if cfg.Channel == "" {
		return NotificationConfig{}, ErrChannelMissing
	}

	if cfg.Template == "" {
		return NotificationConfig{}, ErrTemplateMissing
	}

	return cfg, nil
}

// ActionConfig configures an action step.
type ActionConfig struct {
	Handler string `json:"handler"`
}

func ParseActionConfig(config map[string]any) (ActionConfig, error) {
	cfg := ActionConfig{Handler: stringValue(config, "handler")}

	if cfg.Handler == "" {
		return ActionConfig{}, ErrHandlerMissing
	}

	return cfg, nil
}

func stringValue(config map[string]any, key string) string {
	if config == nil {
		return ""
	}

	value, ok := config[key].(string)
	if !ok {
		return ""
	}

	return value
}

// ConfigError wraps a step config parse failure with the offending step.
type ConfigError struct {
	StepID string
	Err    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config for step %s: %v", e.StepID, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
