package approval

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peopleops/stride/pkg/identity"
	"github.com/peopleops/stride/pkg/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func testProvider() identity.Provider {
	return identity.NewStaticProvider([]identity.User{
		{ID: "mgr-1", Name: "Dana", Email: "dana@example.com", Role: "hr_manager"},
	})
}

func TestExecutor_SuspendsWithApprovalRecord(t *testing.T) {
	executor := NewExecutor(testProvider())

	step := models.WorkflowStep{
		ID:   "manager-signoff",
		Type: models.StepTypeApproval,
		Config: map[string]any{
			"approver_role": "hr_manager",
		},
	}
	ectx := &models.ExecutionContext{RunID: "run-abc", WorkflowID: "wf-1"}

	result, err := executor.Execute(context.Background(), step, ectx, testLogger())
	require.NoError(t, err)

	assert.Equal(t, models.ResultSuspend, result.Kind)
	assert.Equal(t, "run-abc:manager-signoff", result.ResumeKey)

	require.NotNil(t, result.Approval)
	assert.Equal(t, "manager-signoff", result.Approval.StepID)
	assert.Equal(t, "mgr-1", result.Approval.ApproverID)
	assert.Equal(t, "dana@example.com", result.Approval.ApproverEmail)
	assert.False(t, result.Approval.RequestedAt.IsZero())
	assert.Empty(t, result.Approval.Decision, "no decision recorded at suspension time")
}

func TestExecutor_ApproverIDTakesPrecedence(t *testing.T) {
	executor := NewExecutor(identity.NewStaticProvider([]identity.User{
		{ID: "mgr-1", Name: "Dana", Role: "hr_manager"},
		{ID: "mgr-2", Name: "Sam", Role: "hr_manager"},
	}))

	step := models.WorkflowStep{
		ID:   "signoff",
		Type: models.StepTypeApproval,
		Config: map[string]any{
			"approver_role": "hr_manager",
			"approver_id":   "mgr-2",
		},
	}

	result, err := executor.Execute(context.Background(), step, &models.ExecutionContext{RunID: "run-1"}, testLogger())
	require.NoError(t, err)
	require.NotNil(t, result.Approval)
	assert.Equal(t, "mgr-2", result.Approval.ApproverID)
}

func TestExecutor_MissingApproverConfigFails(t *testing.T) {
	executor := NewExecutor(testProvider())

	step := models.WorkflowStep{
		ID:     "signoff",
		Type:   models.StepTypeApproval,
		Config: map[string]any{},
	}

	result, err := executor.Execute(context.Background(), step, &models.ExecutionContext{RunID: "run-1"}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, models.ResultFail, result.Kind)
	assert.Contains(t, result.Reason, "approver")
}

func TestExecutor_UnknownApproverFails(t *testing.T) {
	executor := NewExecutor(testProvider())

	step := models.WorkflowStep{
		ID:   "signoff",
		Type: models.StepTypeApproval,
		Config: map[string]any{
			"approver_id": "nobody",
		},
	}

	result, err := executor.Execute(context.Background(), step, &models.ExecutionContext{RunID: "run-1"}, testLogger())
	require.NoError(t, err)
	assert.Equal(t, models.ResultFail, result.Kind)
	assert.Contains(t, result.Reason, "nobody")
}
