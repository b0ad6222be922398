package cmd_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peopleops/stride/pkg/actions"
	"github.com/peopleops/stride/pkg/cmd"
	"github.com/peopleops/stride/pkg/definitions"
	"github.com/peopleops/stride/pkg/identity"
	"github.com/peopleops/stride/pkg/notify"
	"github.com/peopleops/stride/pkg/registry"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewRegistry_RegistersNativeStepTypes(t *testing.T) {
	reg, err := cmd.NewRegistry(
		testLogger(),
		identity.NewStaticProvider(nil),
		notify.NewSlogTransport(testLogger()),
		registry.NewActionRegistry(),
	)
	require.NoError(t, err)
	assert.Len(t, reg.StepTypes(), 3)
}

func TestSampleDefinitionsLoadAgainstNativeRegistry(t *testing.T) {
	logger := testLogger()

	actionRegistry := registry.NewActionRegistry()
	actions.RegisterBuiltins(actionRegistry, logger)

	reg, err := cmd.NewRegistry(
		logger,
		identity.NewStaticProvider(nil),
		notify.NewSlogTransport(logger),
		actionRegistry,
	)
	require.NoError(t, err)

	defs := definitions.NewStore(logger, reg)

	loaded, err := definitions.LoadDirectory(defs, "../../examples/definitions")
	require.NoError(t, err)
	assert.Equal(t, 2, loaded)

	// Every sample action step names a handler that ships built in.
	for _, def := range defs.List() {
		for _, step := range def.Steps {
			if handler, ok := step.Config["handler"].(string); ok {
				_, err := actionRegistry.Handler(handler)
				assert.NoError(t, err, "definition %s step %s", def.ID, step.ID)
			}
		}
	}
}
