// Package config provides configuration loading for worker deployments.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/peopleops/stride/pkg/identity"
)

// Schedule fires a trigger event on a cron expression.
type Schedule struct {
	Cron  string         `yaml:"cron"`
	Event string         `yaml:"event"`
	Data  map[string]any `yaml:"data"`
}

// Notifications selects the delivery transport for notification steps.
type Notifications struct {
	Transport string `yaml:"transport"` // "log" or "redis"
	RedisURL  string `yaml:"redis_url"`
}

// WorkerConfig is the structure of the worker's YAML configuration file.
type WorkerConfig struct {
	Approvers     []identity.User `yaml:"approvers"`
	Schedules     []Schedule      `yaml:"schedules"`
	Notifications Notifications   `yaml:"notifications"`
}

// LoadWorkerConfig reads a worker configuration from a YAML file. An empty
// path yields a zero config so every section stays optional.
func LoadWorkerConfig(path string) (*WorkerConfig, error) {
	if path == "" {
		return &WorkerConfig{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config WorkerConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	for i, schedule := range config.Schedules {
		if schedule.Cron == "" || schedule.Event == "" {
			return nil, fmt.Errorf("schedule %d requires both cron and event", i)
		}
	}

	return &config, nil
}
