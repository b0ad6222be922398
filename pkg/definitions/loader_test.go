package definitions

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/peopleops/stride/pkg/registry"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, dir, "onboard.json", `{
		"id": "onboard",
		"name": "Employee Onboarding",
		"steps": [
			{"id": "welcome", "name": "welcome", "type": "notification",
			 "config": {"channel": "email", "template": "Welcome!"}}
		],
		"triggers": ["employee.hired"]
	}`)
	writeFile(t, dir, "notes.txt", "not a definition")

	store := newTestStore(t)

	loaded, err := LoadDirectory(store, dir)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded)

	def, err := store.Get("onboard")
	require.NoError(t, err)
	assert.Equal(t, "Employee Onboarding", def.Name)
}

func TestLoadDirectory_InvalidDefinitionAborts(t *testing.T) {
	dir := t.TempDir()

	writeFile(t, dir, "bad.json", `{"id": "bad", "name": "x"}`)

	store := newTestStore(t)

	_, err := LoadDirectory(store, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.json")
}

func TestLoadDirectory_MissingDir(t *testing.T) {
	store := newTestStore(t)

	_, err := LoadDirectory(store, "/nonexistent-definitions-dir")
	assert.Error(t, err)
}

func newTestStore(t *testing.T) *Store {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	reg := registry.NewRegistry(logger)
	require.NoError(t, reg.RegisterStepType("notification", nil, &noopExecutor{}))
	require.NoError(t, reg.RegisterStepType("approval", nil, &noopExecutor{}))
	require.NoError(t, reg.RegisterStepType("action", nil, &noopExecutor{}))

	return NewStore(logger, reg)
}
