package approval

import (
	"time"

	"github.com/mtlprog/taskgate/internal/domain"
)

// SweepKind selects which time-triggered transitions a sweep evaluates.
type SweepKind uint8

const (
	SweepAutoApprove SweepKind = 1 << iota
	SweepEscalation

	SweepAll = SweepAutoApprove | SweepEscalation
)

// String returns the label used in logs and metrics.
func (k SweepKind) String() string {
	switch k {
	case SweepAutoApprove:
		return "auto_approve"
	case SweepEscalation:
		return "escalation"
	case SweepAll:
		return "all"
	default:
		return "none"
	}
}

// Action is the time-triggered transition due for a task.
type Action int

const (
	ActionNone Action = iota
	ActionAutoApprove
	ActionEscalate
)

// DueAction computes the transition due for the task at now.
// A due auto-approval takes precedence over a due escalation.
func DueAction(task *domain.Task, now time.Time, kinds SweepKind) Action {
	if task.ApprovalStatus != domain.ApprovalStatusPending || task.PendingRequest() == nil {
		return ActionNone
	}

	cfg := task.ApprovalConfig
	if kinds&SweepAutoApprove != 0 && cfg.AutoApprove && reached(cfg.AutoApproveAt, now) {
		return ActionAutoApprove
	}
	if kinds&SweepEscalation != 0 && cfg.Escalate && reached(cfg.EscalateAt, now) && cfg.EscalationSentAt == nil {
		return ActionEscalate
	}
	return ActionNone
}

func reached(deadline *time.Time, now time.Time) bool {
	return deadline != nil && !now.Before(*deadline)
}
