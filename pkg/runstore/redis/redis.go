// Package redis provides a Redis-backed run store. Run records are stored
// as JSON values; the status compare-and-set rides on a WATCH/MULTI
// transaction so concurrent claims are arbitrated by Redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/peopleops/stride/pkg/models"
	"github.com/peopleops/stride/pkg/runstore"
)

const (
	runKeyPrefix = "stride:runs:"
	runIndexKey  = "stride:runs"

	claimRetries = 5
)

type RunStore struct {
	client *goredis.Client
	logger *slog.Logger
}

// NewRunStore connects to Redis using a redis:// URL.
func NewRunStore(ctx context.Context, logger *slog.Logger, redisURL string) (*RunStore, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := goredis.NewClient(opts)

	err = client.Ping(ctx).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RunStore{client: client, logger: logger}, nil
}

func runKey(id string) string {
	return runKeyPrefix + id
}

func (s *RunStore) CreateRun(ctx context.Context, run *models.WorkflowRun) error {
	stored := run.Clone()
	stored.UpdatedAt = time.Now().UTC()

	payload, err := json.Marshal(stored)
	if err != nil {
		return runstore.NewRunError("CreateRun", run.ID, err)
	}

	created, err := s.client.SetNX(ctx, runKey(run.ID), payload, 0).Result()
	if err != nil {
		return runstore.NewRunError("CreateRun", run.ID, err)
	}

	if !created {
		return runstore.NewRunError("CreateRun", run.ID, runstore.ErrRunAlreadyExists)
	}

	err = s.client.SAdd(ctx, runIndexKey, run.ID).Err()
	if err != nil {
		return runstore.NewRunError("CreateRun", run.ID, err)
	}

	return nil
}

func (s *RunStore) RunByID(ctx context.Context, id string) (*models.WorkflowRun, error) {
	payload, err := s.client.Get(ctx, runKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, runstore.NewRunError("RunByID", id, runstore.ErrRunNotFound)
		}

		return nil, runstore.NewRunError("RunByID", id, err)
	}

	var run models.WorkflowRun

	err = json.Unmarshal(payload, &run)
	if err != nil {
		return nil, runstore.NewRunError("RunByID", id, err)
	}

	return &run, nil
}

func (s *RunStore) UpdateRun(ctx context.Context, run *models.WorkflowRun) error {
	key := runKey(run.ID)

	txn := func(tx *goredis.Tx) error {
		stored, err := watchedRun(ctx, tx, key)
		if err != nil {
			return err
		}

		if stored.Status.Terminal() {
			return runstore.ErrRunTerminal
		}

		updated := run.Clone()
		updated.UpdatedAt = time.Now().UTC()

		payload, err := json.Marshal(updated)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)

			return nil
		})

		return err
	}

	err := s.watchWithRetry(ctx, txn, key)
	if err != nil {
		return runstore.NewRunError("UpdateRun", run.ID, err)
	}

	return nil
}

func (s *RunStore) ClaimRun(ctx context.Context, id string, from, to models.RunStatus, claimedBy string) (*models.WorkflowRun, error) {
	key := runKey(id)

	var claimed *models.WorkflowRun

	txn := func(tx *goredis.Tx) error {
		stored, err := watchedRun(ctx, tx, key)
		if err != nil {
			return err
		}

		if stored.Status.Terminal() {
			return runstore.ErrRunTerminal
		}

		if stored.Status != from {
			return runstore.ErrClaimConflict
		}

		now := time.Now().UTC()
		stored.Status = to
		stored.ClaimedBy = claimedBy
		stored.UpdatedAt = now

		if to.Terminal() {
			stored.CompletedAt = &now
		}

		payload, err := json.Marshal(stored)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, key, payload, 0)

			return nil
		})
		if err != nil {
			return err
		}

		claimed = stored

		return nil
	}

	err := s.watchWithRetry(ctx, txn, key)
	if err != nil {
		return nil, runstore.NewRunError("ClaimRun", id, err)
	}

	return claimed, nil
}

func (s *RunStore) ListByStatus(ctx context.Context, status models.RunStatus) ([]*models.WorkflowRun, error) {
	return s.listWhere(ctx, func(run *models.WorkflowRun) bool {
		return run.Status == status
	})
}

func (s *RunStore) ListNonTerminal(ctx context.Context) ([]*models.WorkflowRun, error) {
	return s.listWhere(ctx, func(run *models.WorkflowRun) bool {
		return !run.Status.Terminal()
	})
}

func (s *RunStore) listWhere(ctx context.Context, keep func(*models.WorkflowRun) bool) ([]*models.WorkflowRun, error) {
	ids, err := s.client.SMembers(ctx, runIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list run ids: %w", err)
	}

	runs := make([]*models.WorkflowRun, 0, len(ids))

	for _, id := range ids {
		run, err := s.RunByID(ctx, id)
		if err != nil {
			if runstore.IsRunNotFound(err) {
				// Index entry outlived its record; skip.
				continue
			}

			return nil, err
		}

		if keep(run) {
			runs = append(runs, run)
		}
	}

	return runs, nil
}

func (s *RunStore) HealthCheck(ctx context.Context) error {
	err := s.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}

	return nil
}

func (s *RunStore) Close(_ context.Context) error {
	return s.client.Close()
}

// watchWithRetry re-runs a WATCH transaction a bounded number of times when
// the watched key changed under it.
func (s *RunStore) watchWithRetry(ctx context.Context, txn func(*goredis.Tx) error, key string) error {
	var err error

	for attempt := 0; attempt < claimRetries; attempt++ {
		err = s.client.Watch(ctx, txn, key)
		if !errors.Is(err, goredis.TxFailedErr) {
			return err
		}
	}

	return err
}

func watchedRun(ctx context.Context, tx *goredis.Tx, key string) (*models.WorkflowRun, error) {
	payload, err := tx.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, runstore.ErrRunNotFound
		}

		return nil, err
	}

	var run models.WorkflowRun

	err = json.Unmarshal(payload, &run)
	if err != nil {
		return nil, err
	}

	return &run, nil
}
