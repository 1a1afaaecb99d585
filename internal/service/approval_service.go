package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/taskgate/internal/approval"
	"github.com/mtlprog/taskgate/internal/domain"
	"github.com/mtlprog/taskgate/internal/metrics"
	"github.com/mtlprog/taskgate/internal/notify"
	"github.com/mtlprog/taskgate/internal/policy"
	"github.com/mtlprog/taskgate/internal/repository"
)

// ApprovalService runs approval transitions against the database.
//
// Every transition locks the task row, applies the state machine, writes the task, request,
// checklist and audit event in one transaction, and notifies only after commit.
type ApprovalService struct {
	pool        *pgxpool.Pool
	taskRepo    *repository.TaskRepository
	eventRepo   *repository.TaskEventRepository
	projectRepo *repository.ProjectRepository
	policies    *PolicyService
	validator   *Validator
	emitter     notify.Emitter
	metrics     *metrics.Metrics
	now         func() time.Time
}

// Option configures an ApprovalService.
type Option func(*ApprovalService)

// WithClock replaces time.Now for transitions triggered by users.
func WithClock(now func() time.Time) Option {
	return func(s *ApprovalService) { s.now = now }
}

// NewApprovalService creates a new ApprovalService.
func NewApprovalService(
	pool *pgxpool.Pool,
	taskRepo *repository.TaskRepository,
	eventRepo *repository.TaskEventRepository,
	projectRepo *repository.ProjectRepository,
	policies *PolicyService,
	validator *Validator,
	emitter notify.Emitter,
	m *metrics.Metrics,
	opts ...Option,
) *ApprovalService {
	s := &ApprovalService{
		pool:        pool,
		taskRepo:    taskRepo,
		eventRepo:   eventRepo,
		projectRepo: projectRepo,
		policies:    policies,
		validator:   validator,
		emitter:     emitter,
		metrics:     m,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// transitionFunc mutates the locked task and persists everything except the event.
// A nil event with a nil error means nothing changed.
type transitionFunc func(tx pgx.Tx, task *domain.Task) (*domain.TaskEvent, error)

// transition runs fn inside a transaction holding the task row lock.
// op labels failures in metrics; an empty op records none.
func (s *ApprovalService) transition(ctx context.Context, taskID string, op domain.EventType, fn transitionFunc) (*domain.TaskEvent, error) {
	event, err := s.runTransition(ctx, taskID, fn)
	if err != nil {
		if op != "" {
			s.metrics.RecordTransitionError(op, err)
		}
		return nil, err
	}
	if event == nil {
		return nil, nil
	}

	s.metrics.RecordTransition(event.Type)
	s.emit(ctx, event)

	return event, nil
}

func (s *ApprovalService) runTransition(ctx context.Context, taskID string, fn transitionFunc) (*domain.TaskEvent, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	task, err := s.taskRepo.GetByIDForUpdate(ctx, tx, taskID)
	if err != nil {
		return nil, err
	}

	event, err := fn(tx, task)
	if err != nil || event == nil {
		return nil, err
	}

	if err := s.createEventAndCommit(ctx, tx, event); err != nil {
		return nil, err
	}

	return event, nil
}

// createEventAndCommit persists a task event within the transaction, then commits.
func (s *ApprovalService) createEventAndCommit(ctx context.Context, tx pgx.Tx, event *domain.TaskEvent) error {
	if err := s.eventRepo.Create(ctx, tx, event); err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func rollback(ctx context.Context, tx pgx.Tx) {
	if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		slog.Error("failed to rollback transaction", "error", err)
	}
}

// authorize resolves the actor's project role and applies check.
func (s *ApprovalService) authorize(ctx context.Context, task *domain.Task, actorID string, check func(role domain.Role) error) error {
	role, err := s.validator.ActorRole(ctx, task.ProjectID, actorID)
	if err != nil {
		return err
	}
	return check(role)
}

// RequestApproval submits a task for approval under its project's current policy.
// It returns a nil event when the policy does not require approval for the task.
func (s *ApprovalService) RequestApproval(ctx context.Context, taskID, actorID string) (*domain.TaskEvent, error) {
	event, err := s.transition(ctx, taskID, domain.EventTypeRequested, func(tx pgx.Tx, task *domain.Task) (*domain.TaskEvent, error) {
		err := s.authorize(ctx, task, actorID, func(role domain.Role) error {
			return s.validator.CanRequestApproval(task, actorID, role)
		})
		if err != nil {
			return nil, err
		}

		p, err := s.policies.GetPolicy(ctx, task.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("get policy: %w", err)
		}

		rule := approval.WithDefaultRecipients(policy.Resolve(task, p))
		event, err := approval.RequestApproval(task, rule, p, &actorID, s.now())
		if err != nil || event == nil {
			return nil, err
		}

		if err := s.taskRepo.InsertApprovalRequest(ctx, tx, task.CurrentRequest()); err != nil {
			return nil, err
		}
		if err := s.taskRepo.ReplaceChecklist(ctx, tx, task.ID, task.Checklist); err != nil {
			return nil, fmt.Errorf("save checklist: %w", err)
		}
		if err := s.taskRepo.UpdateApprovalState(ctx, tx, task); err != nil {
			return nil, err
		}
		return event, nil
	})
	if err != nil {
		return nil, err
	}

	if event == nil {
		slog.Info("approval not required", "task_id", taskID, "actor_id", actorID)
		return nil, nil
	}

	slog.Info("approval requested",
		"task_id", taskID,
		"request_id", *event.RequestID,
		"actor_id", actorID,
		"event_id", event.ID,
	)

	return event, nil
}

// Approve records a manual approval by one of the request's approvers.
func (s *ApprovalService) Approve(ctx context.Context, taskID, requestID, approverID string) (*domain.TaskEvent, error) {
	event, err := s.transition(ctx, taskID, domain.EventTypeApproved, func(tx pgx.Tx, task *domain.Task) (*domain.TaskEvent, error) {
		err := s.authorize(ctx, task, approverID, func(role domain.Role) error {
			return s.validator.CanDecide(task, requestID, approverID, role)
		})
		if err != nil {
			return nil, err
		}

		event, err := approval.Approve(task, requestID, approverID, s.now())
		if err != nil {
			return nil, err
		}
		return event, s.saveResolution(ctx, tx, task)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("task approved",
		"task_id", taskID,
		"request_id", requestID,
		"actor_id", approverID,
		"event_id", event.ID,
	)

	return event, nil
}

// Reject records a manual rejection and sends the task back to IN_PROGRESS.
func (s *ApprovalService) Reject(ctx context.Context, taskID, requestID, approverID, reason string) (*domain.TaskEvent, error) {
	event, err := s.transition(ctx, taskID, domain.EventTypeRejected, func(tx pgx.Tx, task *domain.Task) (*domain.TaskEvent, error) {
		err := s.authorize(ctx, task, approverID, func(role domain.Role) error {
			return s.validator.CanDecide(task, requestID, approverID, role)
		})
		if err != nil {
			return nil, err
		}

		event, err := approval.Reject(task, requestID, approverID, reason, s.now())
		if err != nil {
			return nil, err
		}
		return event, s.saveResolution(ctx, tx, task)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("task rejected",
		"task_id", taskID,
		"request_id", requestID,
		"actor_id", approverID,
		"event_id", event.ID,
	)

	return event, nil
}

// Bypass force-approves the pending request on behalf of an owner or admin.
func (s *ApprovalService) Bypass(ctx context.Context, taskID, requestID, actorID, reason string) (*domain.TaskEvent, error) {
	event, err := s.transition(ctx, taskID, domain.EventTypeBypassed, func(tx pgx.Tx, task *domain.Task) (*domain.TaskEvent, error) {
		err := s.authorize(ctx, task, actorID, func(role domain.Role) error {
			return s.validator.CanBypass(actorID, role)
		})
		if err != nil {
			return nil, err
		}

		event, err := approval.Bypass(task, requestID, actorID, reason, s.now())
		if err != nil {
			return nil, err
		}
		return event, s.saveResolution(ctx, tx, task)
	})
	if err != nil {
		return nil, err
	}

	slog.Warn("approval bypassed",
		"task_id", taskID,
		"request_id", requestID,
		"actor_id", actorID,
		"reason", event.Reason,
		"event_id", event.ID,
	)

	return event, nil
}

// ToggleChecklistItem checks or unchecks one checklist item.
func (s *ApprovalService) ToggleChecklistItem(ctx context.Context, taskID, itemID, actorID string, checked bool) (*domain.TaskEvent, error) {
	event, err := s.transition(ctx, taskID, domain.EventTypeChecklistToggled, func(tx pgx.Tx, task *domain.Task) (*domain.TaskEvent, error) {
		err := s.authorize(ctx, task, actorID, func(role domain.Role) error {
			return s.validator.CanToggleChecklist(actorID, role)
		})
		if err != nil {
			return nil, err
		}

		event, err := approval.ToggleChecklistItem(task, itemID, checked, actorID, s.now())
		if err != nil {
			return nil, err
		}
		if err := s.taskRepo.UpdateChecklistItem(ctx, tx, task.ID, task.FindChecklistItem(itemID)); err != nil {
			return nil, err
		}
		return event, nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("checklist item toggled",
		"task_id", taskID,
		"item_id", itemID,
		"checked", checked,
		"actor_id", actorID,
	)

	return event, nil
}

// saveResolution writes the resolved current request and the task state.
func (s *ApprovalService) saveResolution(ctx context.Context, tx pgx.Tx, task *domain.Task) error {
	if err := s.taskRepo.ResolveApprovalRequest(ctx, tx, task.CurrentRequest()); err != nil {
		return err
	}
	return s.taskRepo.UpdateApprovalState(ctx, tx, task)
}

// sweepOutcome is what a sweep did to one task.
type sweepOutcome struct {
	action   approval.Action
	deferred bool
}

// sweepTask applies the time-triggered work due for one task at now.
// An auto-approval blocked by the checklist is deferred, and a due escalation still runs.
// If the request found by the scan was resolved or replaced before the task was locked,
// the sweep lost the race and gets ErrStaleState.
func (s *ApprovalService) sweepTask(ctx context.Context, c repository.SweepCandidate, now time.Time, kinds approval.SweepKind) (sweepOutcome, error) {
	var out sweepOutcome

	_, err := s.transition(ctx, c.TaskID, "", func(tx pgx.Tx, task *domain.Task) (*domain.TaskEvent, error) {
		out = sweepOutcome{}

		pending := task.PendingRequest()
		if task.ApprovalStatus != domain.ApprovalStatusPending || pending == nil || pending.ID != c.RequestID {
			return nil, fmt.Errorf("%w: request %s on task %s was resolved before the sweep",
				domain.ErrStaleState, c.RequestID, task.ID)
		}

		action := approval.DueAction(task, now, kinds)
		if action == approval.ActionAutoApprove {
			event, err := approval.AutoApprove(task, c.RequestID, now)
			switch {
			case errors.Is(err, domain.ErrChecklistIncomplete):
				out.deferred = true
				action = approval.DueAction(task, now, kinds&^approval.SweepAutoApprove)
			case err != nil:
				return nil, err
			default:
				out.action = approval.ActionAutoApprove
				return event, s.saveResolution(ctx, tx, task)
			}
		}

		if action != approval.ActionEscalate {
			return nil, nil
		}

		event, err := approval.Escalate(task, c.RequestID, now)
		if err != nil {
			return nil, err
		}
		if err := s.taskRepo.MarkEscalationSent(ctx, tx, task.ID, now); err != nil {
			return nil, err
		}
		out.action = approval.ActionEscalate
		return event, nil
	})
	if err != nil {
		return sweepOutcome{deferred: out.deferred}, err
	}

	return out, nil
}

// emit notifies about a committed event. Failures are logged only.
func (s *ApprovalService) emit(ctx context.Context, event *domain.TaskEvent) {
	if event.Type == domain.EventTypeChecklistToggled {
		return
	}

	n := notify.FromTaskEvent(event)
	recipients, err := s.recipients(ctx, event)
	if err != nil {
		slog.Warn("failed to resolve notification recipients", "task_id", event.TaskID, "error", err)
	}
	n.RecipientUserIDs = recipients

	if err := s.emitter.Emit(ctx, n); err != nil {
		slog.Error("failed to emit notification",
			"task_id", event.TaskID,
			"event_id", event.ID,
			"type", event.Type,
			"error", err,
		)
	}
}

// recipients resolves who should hear about an event to project member IDs.
func (s *ApprovalService) recipients(ctx context.Context, event *domain.TaskEvent) ([]string, error) {
	var match func(m domain.ProjectMember) bool

	switch event.Type {
	case domain.EventTypeEscalationReminder:
		target := event.Recipients
		match = func(m domain.ProjectMember) bool {
			return slices.Contains(target.Roles, m.Role) || slices.Contains(target.SpecificUsers, m.UserID)
		}
	case domain.EventTypeRequested:
		task, err := s.taskRepo.GetByID(ctx, event.TaskID)
		if err != nil {
			return nil, err
		}
		req := task.FindRequest(*event.RequestID)
		if req == nil {
			return nil, nil
		}
		approvers := req.Approvers
		match = func(m domain.ProjectMember) bool {
			return approvers.Allows(m.UserID, m.Role)
		}
	default:
		task, err := s.taskRepo.GetByID(ctx, event.TaskID)
		if err != nil {
			return nil, err
		}
		if task.AssigneeID == nil {
			return nil, nil
		}
		return []string{*task.AssigneeID}, nil
	}

	members, err := s.projectRepo.ListMembers(ctx, event.ProjectID)
	if err != nil {
		return nil, err
	}

	var ids []string
	for _, m := range members {
		if match(m) {
			ids = append(ids, m.UserID)
		}
	}
	return ids, nil
}
