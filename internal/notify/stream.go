package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
)

// DefaultStream is the Redis stream approval notifications are appended to.
const DefaultStream = "taskgate:approval-events"

// StreamConfig configures a StreamEmitter.
type StreamConfig struct {
	Stream string
	// MaxLen caps the stream length approximately; 0 means unbounded.
	MaxLen int64

	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultStreamConfig returns the retry settings used in production.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		Stream:          DefaultStream,
		MaxLen:          100_000,
		MaxRetries:      3,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     2 * time.Second,
	}
}

// StreamEmitter appends notifications to a Redis stream for downstream consumers.
type StreamEmitter struct {
	client redis.UniversalClient
	cfg    StreamConfig
}

// NewStreamEmitter creates a StreamEmitter.
func NewStreamEmitter(client redis.UniversalClient, cfg StreamConfig) *StreamEmitter {
	if cfg.Stream == "" {
		cfg.Stream = DefaultStream
	}
	return &StreamEmitter{client: client, cfg: cfg}
}

// Emit publishes the event with bounded exponential retry.
func (s *StreamEmitter) Emit(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: s.cfg.Stream,
		Values: map[string]any{
			"event_type": string(event.Type),
			"project_id": event.ProjectID,
			"task_id":    event.TaskID,
			"payload":    string(payload),
		},
	}
	if s.cfg.MaxLen > 0 {
		args.MaxLen = s.cfg.MaxLen
		args.Approx = true
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.InitialInterval
	b.MaxInterval = s.cfg.MaxInterval

	var messageID string
	err = backoff.Retry(func() error {
		id, err := s.client.XAdd(ctx, args).Result()
		if err != nil {
			return err
		}
		messageID = id
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(b, s.cfg.MaxRetries), ctx))
	if err != nil {
		return fmt.Errorf("add notification to stream %s: %w", s.cfg.Stream, err)
	}

	slog.Debug("notification published",
		"stream", s.cfg.Stream,
		"message_id", messageID,
		"type", event.Type,
		"task_id", event.TaskID,
	)

	return nil
}
