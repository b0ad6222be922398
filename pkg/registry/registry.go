// Package registry holds the process-wide step type and action handler
// registries. Both are populated once at startup and read-only afterwards,
// so concurrent orchestrator workers can share them without locking.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/peopleops/stride/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

// StepExecutor executes one step of a run against its execution context.
type StepExecutor interface {
	Execute(ctx context.Context, step models.WorkflowStep, ectx *models.ExecutionContext, logger *slog.Logger) (models.ExecutionResult, error)
}

type stepTypeEntry struct {
	schema   map[string]any
	executor StepExecutor
}

// Registry maps step types to their config schema and executor.
type Registry struct {
	logger    *slog.Logger
	stepTypes map[models.StepType]stepTypeEntry
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:    logger.With("module", "registry"),
		stepTypes: make(map[models.StepType]stepTypeEntry),
	}
}

// RegisterStepType binds a JSON schema and an executor to a step type.
// Registration happens during startup, before workers read the registry.
func (r *Registry) RegisterStepType(stepType models.StepType, schema map[string]any, executor StepExecutor) error {
	if _, exists := r.stepTypes[stepType]; exists {
		return &DuplicateStepTypeError{Type: stepType}
	}

	if executor == nil {
		return fmt.Errorf("step type '%s' requires an executor", stepType)
	}

	r.stepTypes[stepType] = stepTypeEntry{schema: schema, executor: executor}
	r.logger.Info("Registered step type", "type", stepType)

	return nil
}

// Validate checks a step's config against the schema registered for its type.
func (r *Registry) Validate(step models.WorkflowStep) error {
	entry, exists := r.stepTypes[step.Type]
	if !exists {
		return &InvalidStepConfigError{
			StepID: step.ID,
			Reason: fmt.Sprintf("unknown step type '%s'", step.Type),
		}
	}

	if entry.schema == nil {
		return nil
	}

	config := step.Config
	if config == nil {
		config = map[string]any{}
	}

	schemaLoader := gojsonschema.NewGoLoader(entry.schema)
	dataLoader := gojsonschema.NewGoLoader(config)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return &InvalidStepConfigError{StepID: step.ID, Reason: err.Error()}
	}

	if !result.Valid() {
		reasons := make([]string, 0, len(result.Errors()))
		for _, validationError := range result.Errors() {
			reasons = append(reasons, validationError.String())
		}

		return &InvalidStepConfigError{StepID: step.ID, Reason: strings.Join(reasons, "; ")}
	}

	return nil
}

// ExecutorFor returns the executor registered for a step type.
func (r *Registry) ExecutorFor(stepType models.StepType) (StepExecutor, error) {
	entry, exists := r.stepTypes[stepType]
	if !exists {
		return nil, fmt.Errorf("step type '%s' not registered", stepType)
	}

	return entry.executor, nil
}

// StepTypes returns the registered step types, for diagnostics.
func (r *Registry) StepTypes() []models.StepType {
	types := make([]models.StepType, 0, len(r.stepTypes))
	for stepType := range r.stepTypes {
		types = append(types, stepType)
	}

	return types
}
