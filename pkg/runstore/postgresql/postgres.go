// Package postgresql provides the PostgreSQL run store implementation.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	// Registers the "postgres" database/sql driver.
	_ "github.com/lib/pq"

	"github.com/peopleops/stride/pkg/runstore/sqlbase"
)

// RunStore implements runstore.RunStore on PostgreSQL. The status
// compare-and-set is a single conditional UPDATE, so claims are arbitrated
// by the database even across processes.
type RunStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRunStore connects, runs migrations, and returns a ready store.
func NewRunStore(ctx context.Context, logger *slog.Logger, databaseURL string) (*RunStore, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &RunStore{db: database, logger: logger}, nil
}

// HealthCheck verifies database connectivity.
func (s *RunStore) HealthCheck(ctx context.Context) error {
	err := s.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *RunStore) Close(_ context.Context) error {
	if s.db != nil {
		err := s.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}
