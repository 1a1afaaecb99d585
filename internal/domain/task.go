package domain

import (
	"slices"
	"time"
)

// TaskStatus represents the workflow status of a task.
type TaskStatus string

const (
	TaskStatusTodo            TaskStatus = "TODO"
	TaskStatusInProgress      TaskStatus = "IN_PROGRESS"
	TaskStatusPendingApproval TaskStatus = "PENDING_APPROVAL"
	TaskStatusDone            TaskStatus = "DONE"
)

// IsValid checks if the status is one of the allowed values.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusPendingApproval, TaskStatusDone:
		return true
	default:
		return false
	}
}

// ApprovalStatus mirrors the outcome of the latest approval request.
type ApprovalStatus string

const (
	ApprovalStatusNone     ApprovalStatus = "NONE"
	ApprovalStatusPending  ApprovalStatus = "PENDING"
	ApprovalStatusApproved ApprovalStatus = "APPROVED"
	ApprovalStatusRejected ApprovalStatus = "REJECTED"
)

// TaskType classifies a task for rule matching and checklist templates.
type TaskType string

const (
	TaskTypeStory   TaskType = "STORY"
	TaskTypeTask    TaskType = "TASK"
	TaskTypeBug     TaskType = "BUG"
	TaskTypeEpic    TaskType = "EPIC"
	TaskTypeSubtask TaskType = "SUBTASK"
)

// IsValid checks if the task type is one of the allowed values.
func (t TaskType) IsValid() bool {
	switch t {
	case TaskTypeStory, TaskTypeTask, TaskTypeBug, TaskTypeEpic, TaskTypeSubtask:
		return true
	default:
		return false
	}
}

// TaskPriority represents the priority level of a task.
type TaskPriority string

const (
	TaskPriorityLowest  TaskPriority = "LOWEST"
	TaskPriorityLow     TaskPriority = "LOW"
	TaskPriorityMedium  TaskPriority = "MEDIUM"
	TaskPriorityHigh    TaskPriority = "HIGH"
	TaskPriorityHighest TaskPriority = "HIGHEST"
)

// IsValid checks if the priority is one of the allowed values.
func (p TaskPriority) IsValid() bool {
	switch p {
	case TaskPriorityLowest, TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh, TaskPriorityHighest:
		return true
	default:
		return false
	}
}

// ApprovalConfig holds the time-triggered settings captured when approval was requested.
// Policy edits made later never change these values.
type ApprovalConfig struct {
	AutoApprove      bool
	AutoApproveAt    *time.Time
	Escalate         bool
	EscalateAt       *time.Time
	EscalationSentAt *time.Time
	EscalateTo       EscalationTarget
	// SkipChecklist lets auto-approval proceed with unchecked required items.
	SkipChecklist bool
}

// Task is the approval-relevant view of a work item.
type Task struct {
	ID               string
	ProjectID        string
	Title            string
	Type             TaskType
	Priority         TaskPriority
	StoryPoints      *int
	AssigneeID       *string
	Labels           []string
	Status           TaskStatus
	ApprovalStatus   ApprovalStatus
	ApprovalConfig   ApprovalConfig
	Checklist        []ChecklistItem
	ApprovalRequests []ApprovalRequest
	RejectionReason  *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// CurrentRequest returns the latest approval request, or nil if none was ever created.
func (t *Task) CurrentRequest() *ApprovalRequest {
	if len(t.ApprovalRequests) == 0 {
		return nil
	}
	return &t.ApprovalRequests[len(t.ApprovalRequests)-1]
}

// PendingRequest returns the open approval request, or nil.
func (t *Task) PendingRequest() *ApprovalRequest {
	req := t.CurrentRequest()
	if req == nil || req.Status != RequestStatusPending {
		return nil
	}
	return req
}

// FindRequest returns the approval request with the given ID.
func (t *Task) FindRequest(requestID string) *ApprovalRequest {
	for i := range t.ApprovalRequests {
		if t.ApprovalRequests[i].ID == requestID {
			return &t.ApprovalRequests[i]
		}
	}
	return nil
}

// FindChecklistItem returns the checklist item with the given ID.
func (t *Task) FindChecklistItem(itemID string) *ChecklistItem {
	for i := range t.Checklist {
		if t.Checklist[i].ID == itemID {
			return &t.Checklist[i]
		}
	}
	return nil
}

// HasLabel reports whether the task carries the label.
func (t *Task) HasLabel(label string) bool {
	return slices.Contains(t.Labels, label)
}

// UncheckedRequired returns the names of required checklist items that are not checked.
func (t *Task) UncheckedRequired() []string {
	var names []string
	for _, item := range t.Checklist {
		if item.Required && !item.Checked {
			names = append(names, item.Name)
		}
	}
	return names
}

// DerivedApprovalStatus computes the approval status implied by the latest request.
func (t *Task) DerivedApprovalStatus() ApprovalStatus {
	req := t.CurrentRequest()
	if req == nil {
		return ApprovalStatusNone
	}
	return req.Status.ApprovalStatus()
}
