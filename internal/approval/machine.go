// Package approval implements the task approval state machine.
//
// Every operation mutates a loaded task in memory and takes the current time as a parameter,
// so transitions are deterministic and testable without real time passing. Persisting the
// result, including the compare-and-swap on the request status, is the caller's job.
package approval

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/mtlprog/taskgate/internal/domain"
	"github.com/mtlprog/taskgate/internal/policy"
)

// MinRejectReasonLength is the minimum number of characters in a rejection reason.
const MinRejectReasonLength = 5

// DefaultApprovers is used when the effective rule names no approvers.
var DefaultApprovers = domain.Approvers{Roles: []domain.Role{domain.RoleOwner}}

// DefaultEscalationTarget is used when the effective rule names no escalation recipients.
var DefaultEscalationTarget = domain.EscalationTarget{Roles: []domain.Role{domain.RoleOwner}}

// WithDefaultRecipients fills unspecified approvers and escalation recipients with project owners.
func WithDefaultRecipients(rule policy.EffectiveRule) policy.EffectiveRule {
	if rule.Approvers.IsEmpty() {
		rule.Approvers = DefaultApprovers
	}
	if rule.EscalateTo.IsEmpty() {
		rule.EscalateTo = DefaultEscalationTarget
	}
	return rule
}

// RequestApproval opens a new approval request for the task when the rule requires one.
// It returns a nil event, and leaves the task untouched, when no approval is required.
func RequestApproval(
	task *domain.Task,
	rule policy.EffectiveRule,
	p *domain.Policy,
	actorID *string,
	now time.Time,
) (*domain.TaskEvent, error) {
	if task.Status == domain.TaskStatusDone {
		return nil, fmt.Errorf("%w: task %s is DONE and must be reopened first", domain.ErrInvalidTransition, task.ID)
	}
	if pending := task.PendingRequest(); pending != nil {
		return nil, fmt.Errorf("%w: task %s already has pending request %s", domain.ErrInvalidTransition, task.ID, pending.ID)
	}

	if !rule.RequireApproval {
		return nil, nil
	}

	oldStatus := task.Status
	req := domain.ApprovalRequest{
		ID:          uuid.NewString(),
		TaskID:      task.ID,
		Status:      domain.RequestStatusPending,
		Approvers:   rule.Approvers,
		RuleName:    rule.RuleName,
		RequestedBy: actorID,
		RequestedAt: now,
	}
	task.ApprovalRequests = append(task.ApprovalRequests, req)
	task.Status = domain.TaskStatusPendingApproval
	task.ApprovalStatus = domain.ApprovalStatusPending
	task.RejectionReason = nil
	task.Checklist = policy.MergeChecklist(task.Checklist, checklistTemplates(task.Type, p))
	task.ApprovalConfig = deadlines(rule, now)

	return newEvent(task, &req, domain.EventTypeRequested, actorID, oldStatus, "", now), nil
}

// deadlines captures the rule's time-triggered settings at request time.
func deadlines(rule policy.EffectiveRule, now time.Time) domain.ApprovalConfig {
	cfg := domain.ApprovalConfig{
		EscalateTo:    rule.EscalateTo,
		SkipChecklist: rule.SkipChecklist,
	}
	if rule.AutoApprove && rule.AutoApproveAfterHours > 0 {
		at := now.Add(time.Duration(rule.AutoApproveAfterHours) * time.Hour)
		cfg.AutoApprove = true
		cfg.AutoApproveAt = &at
	}
	if rule.Escalate && rule.EscalateAfterHours > 0 {
		at := now.Add(time.Duration(rule.EscalateAfterHours) * time.Hour)
		cfg.Escalate = true
		cfg.EscalateAt = &at
	}
	return cfg
}

// Approve records a manual approval of the current pending request.
func Approve(task *domain.Task, requestID, approverID string, now time.Time) (*domain.TaskEvent, error) {
	req, err := pendingRequest(task, requestID)
	if err != nil {
		return nil, err
	}
	if err := checkChecklist(task); err != nil {
		return nil, err
	}

	req.Status = domain.RequestStatusApproved
	req.ApprovedBy = &approverID
	req.ApprovedAt = &now

	return complete(task, req, domain.EventTypeApproved, &approverID, "", now), nil
}

// Reject records a manual rejection and sends the task back to IN_PROGRESS.
func Reject(task *domain.Task, requestID, approverID, reason string, now time.Time) (*domain.TaskEvent, error) {
	reason = strings.TrimSpace(reason)
	if utf8.RuneCountInString(reason) < MinRejectReasonLength {
		return nil, fmt.Errorf("%w: reason must be at least %d characters", domain.ErrInvalidReason, MinRejectReasonLength)
	}

	req, err := pendingRequest(task, requestID)
	if err != nil {
		return nil, err
	}

	req.Status = domain.RequestStatusRejected
	req.RejectedBy = &approverID
	req.RejectedAt = &now
	req.RejectReason = &reason

	oldStatus := task.Status
	task.Status = domain.TaskStatusInProgress
	task.ApprovalStatus = domain.ApprovalStatusRejected
	task.RejectionReason = &reason

	return newEvent(task, req, domain.EventTypeRejected, &approverID, oldStatus, reason, now), nil
}

// AutoApprove approves the pending request once its auto-approve deadline has passed.
// It returns ErrNotDue before the deadline and ErrChecklistIncomplete while required
// checklist items are open, unless the policy allowed skipping the checklist.
func AutoApprove(task *domain.Task, requestID string, now time.Time) (*domain.TaskEvent, error) {
	req, err := pendingRequest(task, requestID)
	if err != nil {
		return nil, err
	}

	cfg := task.ApprovalConfig
	if !cfg.AutoApprove || cfg.AutoApproveAt == nil {
		return nil, fmt.Errorf("%w: auto-approval is not enabled for task %s", domain.ErrNotDue, task.ID)
	}
	if now.Before(*cfg.AutoApproveAt) {
		return nil, fmt.Errorf("%w: task %s auto-approves at %s", domain.ErrNotDue, task.ID, cfg.AutoApproveAt.Format(time.RFC3339))
	}
	if !cfg.SkipChecklist {
		if err := checkChecklist(task); err != nil {
			return nil, err
		}
	}

	req.Status = domain.RequestStatusAutoApproved
	req.AutoApprovedAt = &now

	return complete(task, req, domain.EventTypeAutoApproved, nil, "", now), nil
}

// Escalate marks the escalation reminder as sent. It never changes task or request status.
func Escalate(task *domain.Task, requestID string, now time.Time) (*domain.TaskEvent, error) {
	req, err := pendingRequest(task, requestID)
	if err != nil {
		return nil, err
	}

	cfg := &task.ApprovalConfig
	if !cfg.Escalate || cfg.EscalateAt == nil {
		return nil, fmt.Errorf("%w: escalation is not enabled for task %s", domain.ErrNotDue, task.ID)
	}
	if now.Before(*cfg.EscalateAt) {
		return nil, fmt.Errorf("%w: task %s escalates at %s", domain.ErrNotDue, task.ID, cfg.EscalateAt.Format(time.RFC3339))
	}
	if cfg.EscalationSentAt != nil {
		return nil, fmt.Errorf("%w: task %s at %s", domain.ErrAlreadyEscalated, task.ID, cfg.EscalationSentAt.Format(time.RFC3339))
	}

	cfg.EscalationSentAt = &now

	event := newEvent(task, req, domain.EventTypeEscalationReminder, nil, task.Status, "", now)
	event.Recipients = cfg.EscalateTo
	return event, nil
}

// Bypass force-approves the pending request regardless of the checklist.
// Privilege checks belong to the caller.
func Bypass(task *domain.Task, requestID, actorID, reason string, now time.Time) (*domain.TaskEvent, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("%w: bypass reason is required", domain.ErrInvalidReason)
	}

	req, err := pendingRequest(task, requestID)
	if err != nil {
		return nil, err
	}

	req.Status = domain.RequestStatusBypassed
	req.BypassedBy = &actorID
	req.BypassedAt = &now
	req.BypassReason = &reason

	return complete(task, req, domain.EventTypeBypassed, &actorID, reason, now), nil
}

// ToggleChecklistItem sets the checked flag of a checklist item.
func ToggleChecklistItem(task *domain.Task, itemID string, checked bool, actorID string, now time.Time) (*domain.TaskEvent, error) {
	item := task.FindChecklistItem(itemID)
	if item == nil {
		return nil, fmt.Errorf("%w: item %s on task %s", domain.ErrChecklistItemNotFound, itemID, task.ID)
	}

	item.Checked = checked
	if checked {
		item.CheckedBy = &actorID
		item.CheckedAt = &now
	} else {
		item.CheckedBy = nil
		item.CheckedAt = nil
	}

	verb := "unchecked"
	if checked {
		verb = "checked"
	}
	event := newEvent(task, nil, domain.EventTypeChecklistToggled, &actorID, task.Status, fmt.Sprintf("%s %q", verb, item.Name), now)
	event.OldStatus = nil
	event.NewStatus = nil
	return event, nil
}

// pendingRequest returns the request if it is the task's current PENDING request.
func pendingRequest(task *domain.Task, requestID string) (*domain.ApprovalRequest, error) {
	req := task.FindRequest(requestID)
	if req == nil {
		return nil, fmt.Errorf("%w: request %s on task %s", domain.ErrRequestNotFound, requestID, task.ID)
	}
	if req.Status != domain.RequestStatusPending {
		return nil, fmt.Errorf("%w: request %s is %s", domain.ErrStaleState, requestID, req.Status)
	}
	if current := task.CurrentRequest(); current.ID != requestID {
		return nil, fmt.Errorf("%w: request %s is superseded by %s", domain.ErrStaleState, requestID, current.ID)
	}
	return req, nil
}

func checkChecklist(task *domain.Task) error {
	if open := task.UncheckedRequired(); len(open) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrChecklistIncomplete, strings.Join(open, ", "))
	}
	return nil
}

// complete moves the task to DONE/APPROVED after a request was approved in any way.
func complete(task *domain.Task, req *domain.ApprovalRequest, eventType domain.EventType, actorID *string, reason string, now time.Time) *domain.TaskEvent {
	oldStatus := task.Status
	task.Status = domain.TaskStatusDone
	task.ApprovalStatus = domain.ApprovalStatusApproved
	return newEvent(task, req, eventType, actorID, oldStatus, reason, now)
}

func newEvent(
	task *domain.Task,
	req *domain.ApprovalRequest,
	eventType domain.EventType,
	actorID *string,
	oldStatus domain.TaskStatus,
	reason string,
	now time.Time,
) *domain.TaskEvent {
	newStatus := task.Status
	event := &domain.TaskEvent{
		TaskID:    task.ID,
		ProjectID: task.ProjectID,
		ActorID:   actorID,
		Type:      eventType,
		OldStatus: &oldStatus,
		NewStatus: &newStatus,
		Reason:    reason,
		CreatedAt: now,
	}
	if req != nil {
		requestID := req.ID
		event.RequestID = &requestID
	}
	return event
}

func checklistTemplates(taskType domain.TaskType, p *domain.Policy) []domain.ChecklistItemTemplate {
	if p == nil {
		return nil
	}
	return p.ChecklistTemplates[taskType]
}
