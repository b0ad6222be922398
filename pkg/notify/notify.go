// Package notify delivers rendered notification messages to a channel.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Transport sends a message to a named channel. Implementations must be
// safe for concurrent use.
type Transport interface {
	Send(ctx context.Context, channel, message string) error
}

// SlogTransport writes notifications to the structured log. Useful for
// local development and tests.
type SlogTransport struct {
	logger *slog.Logger
}

func NewSlogTransport(logger *slog.Logger) *SlogTransport {
	return &SlogTransport{logger: logger.With("module", "notify")}
}

func (t *SlogTransport) Send(_ context.Context, channel, message string) error {
	t.logger.Info("Notification sent", "channel", channel, "message", message)

	return nil
}

// RedisStreamTransport appends notifications to a Redis stream per channel,
// leaving delivery to downstream consumers.
type RedisStreamTransport struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedisStreamTransport(redisURL string, logger *slog.Logger) (*RedisStreamTransport, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStreamTransport{
		client: client,
		logger: logger.With("module", "notify"),
	}, nil
}

func (t *RedisStreamTransport) Send(ctx context.Context, channel, message string) error {
	streamKey := "stride:notifications:" + channel

	err := t.client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey,
		Values: map[string]any{
			"message": message,
			"sent_at": time.Now().UTC().Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to append notification to stream %s: %w", streamKey, err)
	}

	t.logger.Debug("Notification appended to stream", "stream", streamKey)

	return nil
}

func (t *RedisStreamTransport) Close() error {
	return t.client.Close()
}
