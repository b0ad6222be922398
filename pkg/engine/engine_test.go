package engine_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peopleops/stride/pkg/backoff"
	"github.com/peopleops/stride/pkg/cmd"
	"github.com/peopleops/stride/pkg/definitions"
	"github.com/peopleops/stride/pkg/engine"
	"github.com/peopleops/stride/pkg/identity"
	"github.com/peopleops/stride/pkg/models"
	"github.com/peopleops/stride/pkg/registry"
	"github.com/peopleops/stride/pkg/runstore/memory"
)

type stubTransport struct {
	mu        sync.Mutex
	sent      []string
	failuresN int
}

func (t *stubTransport) Send(_ context.Context, _, message string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.failuresN != 0 {
		if t.failuresN > 0 {
			t.failuresN--
		}

		return errors.New("transport unavailable")
	}

	t.sent = append(t.sent, message)

	return nil
}

func (t *stubTransport) messages() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]string(nil), t.sent...)
}

type harness struct {
	store     *memory.RunStore
	defs      *definitions.Store
	actions   *registry.ActionRegistry
	transport *stubTransport
	engine    *engine.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	transport := &stubTransport{}
	actions := registry.NewActionRegistry()
	provider := identity.NewStaticProvider([]identity.User{
		{ID: "mgr-1", Name: "Dana", Email: "dana@example.com", Role: "hr_manager"},
	})

	reg, err := cmd.NewRegistry(logger, provider, transport, actions)
	require.NoError(t, err)

	defs := definitions.NewStore(logger, reg)
	store := memory.NewRunStore()

	eng, err := engine.NewEngine(engine.Config{
		Store:       store,
		Definitions: defs,
		Registry:    reg,
		Logger:      logger,
		Backoff:     backoff.NewConstant(time.Millisecond),
		WorkerID:    "test-worker",
	})
	require.NoError(t, err)

	return &harness{
		store:     store,
		defs:      defs,
		actions:   actions,
		transport: transport,
		engine:    eng,
	}
}

func onboardingDefinition(steps ...models.WorkflowStep) *models.WorkflowDefinition {
	return &models.WorkflowDefinition{
		ID:       "onboard",
		Name:     "Employee Onboarding",
		Steps:    steps,
		Triggers: []string{"employee.hired"},
	}
}

func notificationStep(id, channel, tmpl string) models.WorkflowStep {
	return models.WorkflowStep{
		ID:   id,
		Name: id,
		Type: models.StepTypeNotification,
		Config: map[string]any{
			"channel":  channel,
			"template": tmpl,
		},
	}
}

func actionStep(id, handler string) models.WorkflowStep {
	return models.WorkflowStep{
		ID:     id,
		Name:   id,
		Type:   models.StepTypeAction,
		Config: map[string]any{"handler": handler},
	}
}

func approvalStep(id, role string) models.WorkflowStep {
	return models.WorkflowStep{
		ID:     id,
		Name:   id,
		Type:   models.StepTypeApproval,
		Config: map[string]any{"approver_role": role},
	}
}

func waitForStatus(t *testing.T, h *harness, runID string, status models.RunStatus) *models.WorkflowRun {
	t.Helper()

	var run *models.WorkflowRun

	require.Eventually(t, func() bool {
		var err error

		run, err = h.store.RunByID(context.Background(), runID)

		return err == nil && run.Status == status
	}, 5*time.Second, 10*time.Millisecond)

	return run
}

func TestEngine_TriggerUnknownEventStartsNothing(t *testing.T) {
	h := newHarness(t)

	runs, err := h.engine.Trigger(context.Background(), "employee.unknown", nil)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestEngine_RunCompletesInOrder(t *testing.T) {
	h := newHarness(t)

	var mu sync.Mutex

	order := []string{}

	h.actions.Register("allocate-desk", func(_ context.Context, variables map[string]any) (map[string]any, error) {
		mu.Lock()
		order = append(order, "allocate-desk")
		mu.Unlock()

		return map[string]any{"desk": "D-12", "stage": "desk"}, nil
	})
	h.actions.Register("provision-laptop", func(_ context.Context, variables map[string]any) (map[string]any, error) {
		mu.Lock()
		order = append(order, "provision-laptop")
		mu.Unlock()

		// Output of the previous step must already be visible.
		if variables["desk"] != "D-12" {
			return nil, errors.New("desk not allocated yet")
		}

		return map[string]any{"asset_tag": "LT-100", "stage": "laptop"}, nil
	})

	require.NoError(t, h.defs.Register(onboardingDefinition(
		notificationStep("welcome", "email", "Welcome {{.trigger.employee_name}}!"),
		actionStep("desk", "allocate-desk"),
		actionStep("laptop", "provision-laptop"),
	)))

	runs, err := h.engine.Trigger(context.Background(), "employee.hired", map[string]any{"employee_name": "Ana"})
	require.NoError(t, err)
	require.Len(t, runs, 1)

	run := waitForStatus(t, h, runs[0].ID, models.RunStatusCompleted)
	h.engine.Wait()

	mu.Lock()
	assert.Equal(t, []string{"allocate-desk", "provision-laptop"}, order)
	mu.Unlock()

	assert.Equal(t, []string{"Welcome Ana!"}, h.transport.messages())

	// Later outputs overwrite earlier ones key by key.
	assert.Equal(t, "laptop", run.Variables["stage"])
	assert.Equal(t, "D-12", run.Variables["desk"])
	assert.Equal(t, "LT-100", run.Variables["asset_tag"])

	assert.Len(t, run.CompletedSteps, 3)
	require.NotNil(t, run.CompletedAt)
	assert.Empty(t, run.LastError)
}

func TestEngine_TriggerPayloadSeedsVariables(t *testing.T) {
	h := newHarness(t)

	var (
		mu   sync.Mutex
		seen map[string]any
	)

	h.actions.Register("create-employee-record", func(_ context.Context, variables map[string]any) (map[string]any, error) {
		mu.Lock()
		seen = variables
		mu.Unlock()

		return map[string]any{"employee_id": "emp-7"}, nil
	})

	require.NoError(t, h.defs.Register(onboardingDefinition(
		actionStep("record", "create-employee-record"),
	)))

	runs, err := h.engine.Trigger(context.Background(), "employee.hired", map[string]any{
		"email": "a@b.com",
		"name":  "A",
	})
	require.NoError(t, err)
	require.Len(t, runs, 1)

	run := waitForStatus(t, h, runs[0].ID, models.RunStatusCompleted)
	h.engine.Wait()

	// The handler acts on the trigger payload, not an empty bag.
	mu.Lock()
	assert.Equal(t, "a@b.com", seen["email"])
	assert.Equal(t, "A", seen["name"])
	mu.Unlock()

	assert.Equal(t, "emp-7", run.Variables["employee_id"])
	assert.Equal(t, "A", run.Variables["name"])
}

func TestEngine_NotificationOutputStaysOutOfVariables(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.defs.Register(onboardingDefinition(
		notificationStep("welcome", "email", "Welcome {{.vars.message}}!"),
	)))

	runs, err := h.engine.Trigger(context.Background(), "employee.hired", map[string]any{"message": "Ana"})
	require.NoError(t, err)
	require.Len(t, runs, 1)

	run := waitForStatus(t, h, runs[0].ID, models.RunStatusCompleted)
	h.engine.Wait()

	assert.Equal(t, []string{"Welcome Ana!"}, h.transport.messages())

	// The delivery receipt lives under StepResults and never clobbers a
	// user variable of the same name.
	assert.Equal(t, "Ana", run.Variables["message"])
	assert.NotContains(t, run.Variables, "channel")
	assert.NotContains(t, run.Variables, "sent_at")

	receipt, ok := run.StepResults["welcome"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "email", receipt["channel"])
	assert.Equal(t, "Welcome Ana!", receipt["message"])
}

func TestEngine_ApprovalSuspendThenApprove(t *testing.T) {
	h := newHarness(t)

	h.actions.Register("provision-laptop", func(context.Context, map[string]any) (map[string]any, error) {
		return map[string]any{"asset_tag": "LT-100"}, nil
	})

	require.NoError(t, h.defs.Register(onboardingDefinition(
		approvalStep("manager-signoff", "hr_manager"),
		actionStep("laptop", "provision-laptop"),
	)))

	runs, err := h.engine.Trigger(context.Background(), "employee.hired", nil)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	run := waitForStatus(t, h, runs[0].ID, models.RunStatusWaitingOnApproval)

	require.NotNil(t, run.Approval)
	assert.Equal(t, "mgr-1", run.Approval.ApproverID)
	assert.Equal(t, run.ID+":manager-signoff", run.ResumeKey)

	_, err = h.engine.Resume(context.Background(), run.ResumeKey, models.Decision{
		Approved:  true,
		DecidedBy: "mgr-1",
		Comment:   "looks good",
	})
	require.NoError(t, err)

	final := waitForStatus(t, h, run.ID, models.RunStatusCompleted)
	h.engine.Wait()

	require.NotNil(t, final.Approval)
	assert.Equal(t, "approved", final.Approval.Decision)
	assert.Equal(t, "mgr-1", final.Approval.DecidedBy)
	assert.Equal(t, "looks good", final.Approval.Comment)
	require.NotNil(t, final.Approval.DecidedAt)

	assert.Equal(t, "LT-100", final.Variables["asset_tag"])
	assert.Empty(t, final.ResumeKey)
}

func TestEngine_ApprovalRejectedFailsRun(t *testing.T) {
	h := newHarness(t)

	executed := false

	h.actions.Register("provision-laptop", func(context.Context, map[string]any) (map[string]any, error) {
		executed = true

		return map[string]any{}, nil
	})

	require.NoError(t, h.defs.Register(onboardingDefinition(
		approvalStep("manager-signoff", "hr_manager"),
		actionStep("laptop", "provision-laptop"),
	)))

	runs, err := h.engine.Trigger(context.Background(), "employee.hired", nil)
	require.NoError(t, err)

	run := waitForStatus(t, h, runs[0].ID, models.RunStatusWaitingOnApproval)

	resumed, err := h.engine.Resume(context.Background(), run.ResumeKey, models.Decision{
		Approved:  false,
		DecidedBy: "mgr-1",
		Comment:   "headcount freeze",
	})
	require.NoError(t, err)
	h.engine.Wait()

	assert.Equal(t, models.RunStatusFailed, resumed.Status)
	assert.Equal(t, models.ReasonApprovalRejected, resumed.LastError)
	assert.Equal(t, "rejected", resumed.Approval.Decision)
	require.NotNil(t, resumed.CompletedAt)
	assert.False(t, executed, "steps after a rejected approval must not run")
}

func TestEngine_ConcurrentResumeExactlyOneWins(t *testing.T) {
	h := newHarness(t)

	h.actions.Register("provision-laptop", func(context.Context, map[string]any) (map[string]any, error) {
		return map[string]any{}, nil
	})

	require.NoError(t, h.defs.Register(onboardingDefinition(
		approvalStep("manager-signoff", "hr_manager"),
		actionStep("laptop", "provision-laptop"),
	)))

	runs, err := h.engine.Trigger(context.Background(), "employee.hired", nil)
	require.NoError(t, err)

	run := waitForStatus(t, h, runs[0].ID, models.RunStatusWaitingOnApproval)

	const callers = 8

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		winners  int
		rejected int
	)

	for i := 0; i < callers; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := h.engine.Resume(context.Background(), run.ResumeKey, models.Decision{
				Approved:  true,
				DecidedBy: "mgr-1",
			})

			mu.Lock()
			defer mu.Unlock()

			if err == nil {
				winners++

				return
			}

			if engine.IsInvalidRunState(err) || engine.IsAlreadyTerminal(err) || engine.IsUnknownResumeKey(err) {
				rejected++
			}
		}()
	}

	wg.Wait()
	h.engine.Wait()

	assert.Equal(t, 1, winners, "exactly one resume caller wins")
	assert.Equal(t, callers-1, rejected)

	waitForStatus(t, h, run.ID, models.RunStatusCompleted)
}

func TestEngine_ResumeAfterTerminalFails(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.defs.Register(onboardingDefinition(
		approvalStep("manager-signoff", "hr_manager"),
	)))

	runs, err := h.engine.Trigger(context.Background(), "employee.hired", nil)
	require.NoError(t, err)

	run := waitForStatus(t, h, runs[0].ID, models.RunStatusWaitingOnApproval)
	resumeKey := run.ResumeKey

	_, err = h.engine.Resume(context.Background(), resumeKey, models.Decision{Approved: false, DecidedBy: "mgr-1"})
	require.NoError(t, err)
	h.engine.Wait()

	_, err = h.engine.Resume(context.Background(), resumeKey, models.Decision{Approved: true, DecidedBy: "mgr-1"})
	assert.True(t, engine.IsAlreadyTerminal(err))
}

func TestEngine_ResumeUnknownKey(t *testing.T) {
	h := newHarness(t)

	_, err := h.engine.Resume(context.Background(), "run-none:step", models.Decision{Approved: true, DecidedBy: "mgr-1"})
	assert.True(t, engine.IsUnknownResumeKey(err))
}

func TestEngine_CancelStopsBetweenSteps(t *testing.T) {
	h := newHarness(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	laterRan := false

	h.actions.Register("slow-step", func(context.Context, map[string]any) (map[string]any, error) {
		close(entered)
		<-release

		return map[string]any{}, nil
	})
	h.actions.Register("later-step", func(context.Context, map[string]any) (map[string]any, error) {
		laterRan = true

		return map[string]any{}, nil
	})

	require.NoError(t, h.defs.Register(onboardingDefinition(
		actionStep("slow", "slow-step"),
		actionStep("later", "later-step"),
	)))

	runs, err := h.engine.Trigger(context.Background(), "employee.hired", nil)
	require.NoError(t, err)

	<-entered

	cancelled, err := h.engine.Cancel(context.Background(), runs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCancelled, cancelled.Status)

	close(release)
	h.engine.Wait()

	final, err := h.store.RunByID(context.Background(), runs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCancelled, final.Status)
	assert.False(t, laterRan, "steps after cancellation must not run")

	_, err = h.engine.Cancel(context.Background(), runs[0].ID)
	assert.True(t, engine.IsAlreadyTerminal(err))
}

func TestEngine_RecoverResumesFromPersistedCursor(t *testing.T) {
	h := newHarness(t)

	var mu sync.Mutex

	counts := map[string]int{}
	count := func(name string) {
		mu.Lock()
		counts[name]++
		mu.Unlock()
	}

	h.actions.Register("step-a", func(context.Context, map[string]any) (map[string]any, error) {
		count("step-a")

		return map[string]any{}, nil
	})
	h.actions.Register("step-b", func(context.Context, map[string]any) (map[string]any, error) {
		count("step-b")

		return map[string]any{}, nil
	})

	require.NoError(t, h.defs.Register(onboardingDefinition(
		actionStep("a", "step-a"),
		actionStep("b", "step-b"),
	)))

	// A run abandoned mid-flight by a crashed worker: step a already done,
	// cursor pointing at step b.
	abandoned := &models.WorkflowRun{
		ID:               "run-orphan",
		WorkflowID:       "onboard",
		Status:           models.RunStatusRunning,
		TriggerEvent:     "employee.hired",
		CompletedSteps:   map[string]time.Time{"a": time.Now().UTC()},
		CurrentStepIndex: 1,
		ClaimedBy:        "dead-worker",
		StartedAt:        time.Now().UTC(),
	}
	require.NoError(t, h.store.CreateRun(context.Background(), abandoned))

	recovered, err := h.engine.Recover(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, recovered)

	waitForStatus(t, h, "run-orphan", models.RunStatusCompleted)
	h.engine.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, counts["step-a"], "completed steps are not replayed")
	assert.Equal(t, 1, counts["step-b"])
}

func TestEngine_RecoverSkipsSuspendedRuns(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.defs.Register(onboardingDefinition(
		approvalStep("manager-signoff", "hr_manager"),
	)))

	runs, err := h.engine.Trigger(context.Background(), "employee.hired", nil)
	require.NoError(t, err)

	waitForStatus(t, h, runs[0].ID, models.RunStatusWaitingOnApproval)

	recovered, err := h.engine.Recover(context.Background())
	require.NoError(t, err)
	assert.Zero(t, recovered)

	run, err := h.store.RunByID(context.Background(), runs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusWaitingOnApproval, run.Status)
}

func TestEngine_TransientFailureRetriesThenFails(t *testing.T) {
	h := newHarness(t)
	h.transport.failuresN = -1 // fail forever

	require.NoError(t, h.defs.Register(onboardingDefinition(
		notificationStep("welcome", "email", "hello"),
	)))

	runs, err := h.engine.Trigger(context.Background(), "employee.hired", nil)
	require.NoError(t, err)

	run := waitForStatus(t, h, runs[0].ID, models.RunStatusFailed)
	h.engine.Wait()

	assert.Contains(t, run.LastError, "after 3 attempts")
	assert.Empty(t, h.transport.messages())
}

func TestEngine_TransientFailureEventuallySucceeds(t *testing.T) {
	h := newHarness(t)
	h.transport.failuresN = 2

	require.NoError(t, h.defs.Register(onboardingDefinition(
		notificationStep("welcome", "email", "hello"),
	)))

	runs, err := h.engine.Trigger(context.Background(), "employee.hired", nil)
	require.NoError(t, err)

	waitForStatus(t, h, runs[0].ID, models.RunStatusCompleted)
	h.engine.Wait()

	assert.Equal(t, []string{"hello"}, h.transport.messages())
}

func TestEngine_TriggerFansOutToAllSubscribedDefinitions(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.defs.Register(&models.WorkflowDefinition{
		ID:       "onboard",
		Name:     "Employee Onboarding",
		Steps:    []models.WorkflowStep{notificationStep("welcome", "email", "hi")},
		Triggers: []string{"employee.hired"},
	}))
	require.NoError(t, h.defs.Register(&models.WorkflowDefinition{
		ID:       "badge",
		Name:     "Badge Issuance",
		Steps:    []models.WorkflowStep{notificationStep("badge", "slack", "badge ready")},
		Triggers: []string{"employee.hired"},
	}))

	runs, err := h.engine.Trigger(context.Background(), "employee.hired", nil)
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	for _, run := range runs {
		waitForStatus(t, h, run.ID, models.RunStatusCompleted)
	}

	h.engine.Wait()
	assert.Len(t, h.transport.messages(), 2)
}
