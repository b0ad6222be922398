package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "worker.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestLoadWorkerConfig(t *testing.T) {
	path := writeConfig(t, `
approvers:
  - id: mgr-1
    name: Dana
    email: dana@example.com
    role: hr_manager
schedules:
  - cron: "0 9 * * 1"
    event: review.cycle.start
    data:
      cycle: weekly
notifications:
  transport: redis
  redis_url: redis://localhost:6379
`)

	config, err := LoadWorkerConfig(path)
	require.NoError(t, err)

	require.Len(t, config.Approvers, 1)
	assert.Equal(t, "hr_manager", config.Approvers[0].Role)

	require.Len(t, config.Schedules, 1)
	assert.Equal(t, "review.cycle.start", config.Schedules[0].Event)
	assert.Equal(t, "weekly", config.Schedules[0].Data["cycle"])

	assert.Equal(t, "redis", config.Notifications.Transport)
}

func TestLoadWorkerConfig_EmptyPath(t *testing.T) {
	config, err := LoadWorkerConfig("")
	require.NoError(t, err)
	assert.Empty(t, config.Approvers)
	assert.Empty(t, config.Schedules)
}

func TestLoadWorkerConfig_IncompleteSchedule(t *testing.T) {
	path := writeConfig(t, `
schedules:
  - cron: "0 9 * * 1"
`)

	_, err := LoadWorkerConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires both cron and event")
}

func TestLoadWorkerConfig_BadYAML(t *testing.T) {
	path := writeConfig(t, "foo: [unclosed")

	_, err := LoadWorkerConfig(path)
	assert.Error(t, err)
}
