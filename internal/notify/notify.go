// Package notify delivers approval lifecycle events to the outside world.
// Delivery happens after the transition is committed; a failed delivery never undoes it.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mtlprog/taskgate/internal/domain"
)

// Event is an approval lifecycle notification.
type Event struct {
	ID         string                  `json:"id"`
	Type       domain.EventType        `json:"type"`
	TaskID     string                  `json:"taskId"`
	ProjectID  string                  `json:"projectId"`
	RequestID  string                  `json:"requestId,omitempty"`
	ActorID    string                  `json:"actorId,omitempty"`
	Reason     string                  `json:"reason,omitempty"`
	Recipients domain.EscalationTarget `json:"recipients,omitempty"`
	// RecipientUserIDs are the project members the recipients resolved to.
	RecipientUserIDs []string  `json:"recipientUserIds,omitempty"`
	OccurredAt       time.Time `json:"occurredAt"`
}

// FromTaskEvent builds a notification from a committed audit event.
func FromTaskEvent(e *domain.TaskEvent) Event {
	n := Event{
		ID:         e.ID,
		Type:       e.Type,
		TaskID:     e.TaskID,
		ProjectID:  e.ProjectID,
		Reason:     e.Reason,
		Recipients: e.Recipients,
		OccurredAt: e.CreatedAt,
	}
	if e.RequestID != nil {
		n.RequestID = *e.RequestID
	}
	if e.ActorID != nil {
		n.ActorID = *e.ActorID
	}
	return n
}

// Emitter delivers notifications.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// LogEmitter writes notifications to the structured log.
type LogEmitter struct{}

// Emit logs the event.
func (LogEmitter) Emit(_ context.Context, event Event) error {
	slog.Info("approval notification",
		"type", event.Type,
		"task_id", event.TaskID,
		"project_id", event.ProjectID,
		"request_id", event.RequestID,
		"actor_id", event.ActorID,
		"recipients", event.RecipientUserIDs,
	)
	return nil
}

// Multi fans a notification out to every emitter and joins their errors.
type Multi []Emitter

// Emit delivers to all emitters, even after one fails.
func (m Multi) Emit(ctx context.Context, event Event) error {
	var errs []error
	for _, e := range m {
		if err := e.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps emitted notifications in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit records the event.
func (r *Recorder) Emit(_ context.Context, event Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfType returns the recorded events of the given type.
func (r *Recorder) OfType(t domain.EventType) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
