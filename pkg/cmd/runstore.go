package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/peopleops/stride/pkg/runstore"
	"github.com/peopleops/stride/pkg/runstore/memory"
	"github.com/peopleops/stride/pkg/runstore/postgresql"
	"github.com/peopleops/stride/pkg/runstore/redis"
)

// NewRunStore builds a run store from a database URL. The scheme selects the
// backend: postgres for durable deployments, redis for low-latency setups,
// memory for development and tests.
func NewRunStore(ctx context.Context, logger *slog.Logger, databaseURL string) (runstore.RunStore, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return postgresql.NewRunStore(ctx, logger, databaseURL)
	case strings.HasPrefix(databaseURL, "redis://"), strings.HasPrefix(databaseURL, "rediss://"):
		return redis.NewRunStore(ctx, logger, databaseURL)
	default:
		return memory.NewRunStore(), nil
	}
}
