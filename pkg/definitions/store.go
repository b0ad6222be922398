// Package definitions provides the in-memory store of registered workflow
// definitions, keyed by id and indexed by trigger event.
package definitions

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/peopleops/stride/pkg/models"
	"github.com/peopleops/stride/pkg/registry"
)

// Store validates and holds workflow definitions. Reads are lock-shared so
// any number of orchestrator workers can resolve definitions concurrently;
// a definition becomes visible atomically once every check passed.
type Store struct {
	mu       sync.RWMutex
	logger   *slog.Logger
	validate *validator.Validate
	registry *registry.Registry
	defs     map[string]*models.WorkflowDefinition
}

func NewStore(logger *slog.Logger, reg *registry.Registry) *Store {
	return &Store{
		logger:   logger.With("module", "definitions"),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		registry: reg,
		defs:     make(map[string]*models.WorkflowDefinition),
	}
}

// Register validates the definition and stores it. Validation is
// all-or-nothing: every failure is collected into one InvalidDefinitionError
// and nothing is stored on any failure.
func (s *Store) Register(def *models.WorkflowDefinition) error {
	if def == nil {
		return &InvalidDefinitionError{Issues: []string{"definition is nil"}}
	}

	var issues []string

	if err := s.validate.Struct(def); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			for _, fieldErr := range validationErrors {
				issues = append(issues, fmt.Sprintf("field %s failed on '%s'", fieldErr.Namespace(), fieldErr.Tag()))
			}
		} else {
			issues = append(issues, err.Error())
		}
	}

	for _, dupe := range def.DuplicateStepIDs() {
		issues = append(issues, fmt.Sprintf("duplicate step id '%s'", dupe))
	}

	for _, step := range def.Steps {
		if err := s.registry.Validate(step); err != nil {
			issues = append(issues, err.Error())
		}
	}

	if len(issues) > 0 {
		return &InvalidDefinitionError{DefinitionID: def.ID, Issues: issues}
	}

	stored := def.Clone()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.defs[def.ID]; exists {
		return &InvalidDefinitionError{
			DefinitionID: def.ID,
			Issues:       []string{"definition id already registered; publish updates under a new id"},
		}
	}

	s.defs[def.ID] = stored

	s.logger.Info("Registered workflow definition",
		"definition_id", def.ID,
		"steps", len(def.Steps),
		"triggers", def.Triggers,
	)

	return nil
}

// Get returns a copy of the definition registered under id. Definitions are
// immutable once registered; mutating the returned copy changes nothing.
func (s *Store) Get(id string) (*models.WorkflowDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	def, exists := s.defs[id]
	if !exists {
		return nil, &DefinitionNotFoundError{ID: id}
	}

	return def.Clone(), nil
}

// FindByTrigger returns every definition that starts on the given event.
// The orchestrator fans a single trigger event out to all of them.
func (s *Store) FindByTrigger(eventName string) []*models.WorkflowDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.WorkflowDefinition

	for _, def := range s.defs {
		if def.HasTrigger(eventName) {
			matched = append(matched, def.Clone())
		}
	}

	return matched
}

// List returns all registered definitions.
func (s *Store) List() []*models.WorkflowDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	defs := make([]*models.WorkflowDefinition, 0, len(s.defs))
	for _, def := range s.defs {
		defs = append(defs, def.Clone())
	}

	return defs
}
