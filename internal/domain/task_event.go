package domain

import "time"

// EventType represents the type of approval lifecycle event.
type EventType string

const (
	EventTypeRequested          EventType = "requested"
	EventTypeApproved           EventType = "approved"
	EventTypeRejected           EventType = "rejected"
	EventTypeAutoApproved       EventType = "auto_approved"
	EventTypeEscalationReminder EventType = "escalation_reminder"
	EventTypeBypassed           EventType = "bypassed"
	EventTypeChecklistToggled   EventType = "checklist_toggled"
)

// TaskEvent represents an audit log entry for an approval action.
type TaskEvent struct {
	ID        string
	TaskID    string
	ProjectID string
	RequestID *string
	ActorID   *string // nil for system events
	Type      EventType
	OldStatus *TaskStatus
	NewStatus *TaskStatus
	Reason    string
	// Recipients is only set for escalation reminders and is not persisted.
	Recipients EscalationTarget
	CreatedAt  time.Time
}

// IsSystemEvent returns true if the event was created by the sweep.
func (e *TaskEvent) IsSystemEvent() bool {
	return e.ActorID == nil
}
