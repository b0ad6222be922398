package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/peopleops/stride/pkg/models"
	"github.com/peopleops/stride/pkg/runstore"
)

const runColumns = `
	id
  , workflow_id
  , status
  , trigger_event
  , trigger_data
  , variables
  , step_results
  , completed_steps
  , current_step_index
  , resume_key
  , approval
  , last_error
  , claimed_by
  , started_at
  , completed_at
  , updated_at
`

var terminalStatuses = []string{
	string(models.RunStatusCompleted),
	string(models.RunStatusFailed),
	string(models.RunStatusCancelled),
}

// CreateRun inserts a new run record.
func (s *RunStore) CreateRun(ctx context.Context, run *models.WorkflowRun) error {
	fields, err := marshalRunFields(run)
	if err != nil {
		return runstore.NewRunError("CreateRun", run.ID, err)
	}

	query := `
		INSERT INTO workflow_runs (
			id, workflow_id, status, trigger_event, trigger_data, variables,
			step_results, completed_steps, current_step_index, resume_key,
			approval, last_error, claimed_by, started_at, completed_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW())
	`

	_, err = s.db.ExecContext(ctx, query,
		run.ID, run.WorkflowID, string(run.Status), run.TriggerEvent,
		fields.triggerData, fields.variables, fields.stepResults,
		fields.completedSteps, run.CurrentStepIndex, run.ResumeKey,
		fields.approval, run.LastError, run.ClaimedBy,
		run.StartedAt, run.CompletedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return runstore.NewRunError("CreateRun", run.ID, runstore.ErrRunAlreadyExists)
		}

		return runstore.NewRunError("CreateRun", run.ID, err)
	}

	return nil
}

// RunByID fetches a run record.
func (s *RunStore) RunByID(ctx context.Context, id string) (*models.WorkflowRun, error) {
	query := `SELECT ` + runColumns + ` FROM workflow_runs WHERE id = $1`

	run, err := scanRun(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, runstore.NewRunError("RunByID", id, runstore.ErrRunNotFound)
		}

		return nil, runstore.NewRunError("RunByID", id, err)
	}

	return run, nil
}

// UpdateRun writes the full record. The stored row must not be terminal.
func (s *RunStore) UpdateRun(ctx context.Context, run *models.WorkflowRun) error {
	fields, err := marshalRunFields(run)
	if err != nil {
		return runstore.NewRunError("UpdateRun", run.ID, err)
	}

	query := `
		UPDATE workflow_runs SET
			status = $2
		  , trigger_data = $3
		  , variables = $4
		  , step_results = $5
		  , completed_steps = $6
		  , current_step_index = $7
		  , resume_key = $8
		  , approval = $9
		  , last_error = $10
		  , claimed_by = $11
		  , completed_at = $12
		  , updated_at = NOW()
		WHERE id = $1 AND status <> ALL($13)
	`

	result, err := s.db.ExecContext(ctx, query,
		run.ID, string(run.Status), fields.triggerData, fields.variables,
		fields.stepResults, fields.completedSteps, run.CurrentStepIndex,
		run.ResumeKey, fields.approval, run.LastError, run.ClaimedBy,
		run.CompletedAt, pq.Array(terminalStatuses),
	)
	if err != nil {
		return runstore.NewRunError("UpdateRun", run.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return runstore.NewRunError("UpdateRun", run.ID, err)
	}

	if affected == 0 {
		return s.explainWriteMiss(ctx, "UpdateRun", run.ID)
	}

	return nil
}

// ClaimRun performs the atomic status compare-and-set.
func (s *RunStore) ClaimRun(ctx context.Context, id string, from, to models.RunStatus, claimedBy string) (*models.WorkflowRun, error) {
	query := `
		UPDATE workflow_runs SET
			status = $3
		  , claimed_by = $4
		  , completed_at = CASE WHEN $5 THEN NOW() ELSE completed_at END
		  , updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING ` + runColumns

	run, err := scanRun(s.db.QueryRowContext(ctx, query, id, string(from), string(to), claimedBy, to.Terminal()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, s.explainClaimMiss(ctx, id)
		}

		return nil, runstore.NewRunError("ClaimRun", id, err)
	}

	return run, nil
}

// ListByStatus returns all runs with the given status.
func (s *RunStore) ListByStatus(ctx context.Context, status models.RunStatus) ([]*models.WorkflowRun, error) {
	query := `SELECT ` + runColumns + ` FROM workflow_runs WHERE status = $1 ORDER BY started_at`

	return s.queryRuns(ctx, query, string(status))
}

// ListNonTerminal returns every run not yet in a terminal state, for
// crash recovery scans.
func (s *RunStore) ListNonTerminal(ctx context.Context) ([]*models.WorkflowRun, error) {
	query := `SELECT ` + runColumns + ` FROM workflow_runs WHERE status <> ALL($1) ORDER BY started_at`

	return s.queryRuns(ctx, query, pq.Array(terminalStatuses))
}

func (s *RunStore) queryRuns(ctx context.Context, query string, args ...any) ([]*models.WorkflowRun, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	runs := make([]*models.WorkflowRun, 0)

	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		runs = append(runs, run)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

// explainWriteMiss distinguishes a not-found row from a terminal one after a
// zero-row conditional write.
func (s *RunStore) explainWriteMiss(ctx context.Context, op, id string) error {
	var status string

	err := s.db.QueryRowContext(ctx, "SELECT status FROM workflow_runs WHERE id = $1", id).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return runstore.NewRunError(op, id, runstore.ErrRunNotFound)
		}

		return runstore.NewRunError(op, id, err)
	}

	return runstore.NewRunError(op, id, runstore.ErrRunTerminal)
}

func (s *RunStore) explainClaimMiss(ctx context.Context, id string) error {
	var status string

	err := s.db.QueryRowContext(ctx, "SELECT status FROM workflow_runs WHERE id = $1", id).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return runstore.NewRunError("ClaimRun", id, runstore.ErrRunNotFound)
		}

		return runstore.NewRunError("ClaimRun", id, err)
	}

	if models.RunStatus(status).Terminal() {
		return runstore.NewRunError("ClaimRun", id, runstore.ErrRunTerminal)
	}

	return runstore.NewRunError("ClaimRun", id, runstore.ErrClaimConflict)
}

type runFields struct {
	triggerData    []byte
	variables      []byte
	stepResults    []byte
	completedSteps []byte
	approval       []byte
}

func marshalRunFields(run *models.WorkflowRun) (*runFields, error) {
	fields := &runFields{}

	var err error

	fields.triggerData, err = marshalJSON(run.TriggerData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal trigger data: %w", err)
	}

	fields.variables, err = marshalJSON(run.Variables)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal variables: %w", err)
	}

	fields.stepResults, err = marshalJSON(run.StepResults)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal step results: %w", err)
	}

	fields.completedSteps, err = marshalJSON(run.CompletedSteps)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal completed steps: %w", err)
	}

	fields.approval, err = marshalJSON(run.Approval)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal approval: %w", err)
	}

	return fields, nil
}

func marshalJSON(value any) ([]byte, error) {
	if value == nil {
		return nil, nil
	}

	return json.Marshal(value)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*models.WorkflowRun, error) {
	var (
		run            models.WorkflowRun
		status         string
		triggerData    []byte
		variables      []byte
		stepResults    []byte
		completedSteps []byte
		approval       []byte
		completedAt    sql.NullTime
	)

	err := row.Scan(
		&run.ID, &run.WorkflowID, &status, &run.TriggerEvent,
		&triggerData, &variables, &stepResults, &completedSteps,
		&run.CurrentStepIndex, &run.ResumeKey, &approval,
		&run.LastError, &run.ClaimedBy, &run.StartedAt,
		&completedAt, &run.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	run.Status = models.RunStatus(status)

	if completedAt.Valid {
		completed := completedAt.Time
		run.CompletedAt = &completed
	}

	err = unmarshalField(triggerData, &run.TriggerData)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal trigger data: %w", err)
	}

	err = unmarshalField(variables, &run.Variables)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal variables: %w", err)
	}

	err = unmarshalField(stepResults, &run.StepResults)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal step results: %w", err)
	}

	err = unmarshalField(completedSteps, &run.CompletedSteps)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal completed steps: %w", err)
	}

	err = unmarshalField(approval, &run.Approval)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal approval: %w", err)
	}

	return &run, nil
}

func unmarshalField(data []byte, target any) error {
	if len(data) == 0 {
		return nil
	}

	return json.Unmarshal(data, target)
}
