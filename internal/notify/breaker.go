package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerConfig configures a BreakerEmitter.
type BreakerConfig struct {
	Name string
	// ConsecutiveFailures opens the breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before letting a probe through.
	OpenTimeout time.Duration
}

// DefaultBreakerConfig returns the breaker settings used in front of the stream emitter.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:                "notify-stream",
		ConsecutiveFailures: 5,
		OpenTimeout:         30 * time.Second,
	}
}

// BreakerEmitter stops calling a failing emitter for a while, so a broker outage
// does not add retry latency to every committed transition.
type BreakerEmitter struct {
	next Emitter
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerEmitter wraps next with a circuit breaker.
func NewBreakerEmitter(next Emitter, cfg BreakerConfig) *BreakerEmitter {
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = DefaultBreakerConfig().ConsecutiveFailures
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("notification circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	return &BreakerEmitter{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

// Emit forwards the event unless the breaker is open.
func (b *BreakerEmitter) Emit(ctx context.Context, event Event) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, b.next.Emit(ctx, event)
	})
	if err != nil {
		return fmt.Errorf("emit %s for task %s: %w", event.Type, event.TaskID, err)
	}
	return nil
}

// State reports the breaker state (closed, half-open, open).
func (b *BreakerEmitter) State() string {
	return b.cb.State().String()
}
