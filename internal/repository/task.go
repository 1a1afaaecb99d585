package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mtlprog/taskgate/internal/approval"
	"github.com/mtlprog/taskgate/internal/domain"
)

// taskColumns is the shared list of columns for task queries.
var taskColumns = []string{
	"id", "project_id", "title", "type", "priority", "story_points", "assignee_id", "labels",
	"status", "approval_status", "auto_approve", "auto_approve_at", "escalate", "escalate_at",
	"escalation_sent_at", "escalate_to", "skip_checklist", "rejection_reason",
	"created_at", "updated_at",
}

// TaskRepository handles database operations for tasks, their approval requests and checklists.
type TaskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository creates a new TaskRepository.
func NewTaskRepository(pool *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{pool: pool}
}

// scanTask scans a single row into a Task struct without its requests and checklist.
func scanTask(row pgx.Row) (*domain.Task, error) {
	var task domain.Task
	var escalateToJSON []byte
	cfg := &task.ApprovalConfig

	err := row.Scan(
		&task.ID,
		&task.ProjectID,
		&task.Title,
		&task.Type,
		&task.Priority,
		&task.StoryPoints,
		&task.AssigneeID,
		&task.Labels,
		&task.Status,
		&task.ApprovalStatus,
		&cfg.AutoApprove,
		&cfg.AutoApproveAt,
		&cfg.Escalate,
		&cfg.EscalateAt,
		&cfg.EscalationSentAt,
		&escalateToJSON,
		&cfg.SkipChecklist,
		&task.RejectionReason,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}

	if err := json.Unmarshal(escalateToJSON, &cfg.EscalateTo); err != nil {
		return nil, fmt.Errorf("parse escalate_to of task %s: %w", task.ID, err)
	}

	return &task, nil
}

// scanTasks scans multiple rows into a slice of Task structs.
func scanTasks(rows pgx.Rows) ([]*domain.Task, error) {
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return tasks, nil
}

// GetByID retrieves a task with its approval requests and checklist.
func (r *TaskRepository) GetByID(ctx context.Context, taskID string) (*domain.Task, error) {
	query, args, err := psql.
		Select(taskColumns...).
		From("tasks").
		Where(sq.Eq{"id": taskID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetByID query for task: %w", err)
	}

	task, err := scanTask(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, err
	}
	if err := r.loadChildren(ctx, r.pool, task); err != nil {
		return nil, err
	}
	return task, nil
}

// GetByIDForUpdate retrieves a task with FOR UPDATE lock (within transaction).
// Requests and checklist are read through the same transaction.
func (r *TaskRepository) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, taskID string) (*domain.Task, error) {
	query, args, err := psql.
		Select(taskColumns...).
		From("tasks").
		Where(sq.Eq{"id": taskID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetByIDForUpdate query for task %s: %w", taskID, err)
	}

	task, err := scanTask(tx.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, err
	}
	if err := r.loadChildren(ctx, tx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// loadChildren attaches approval requests and checklist items to the tasks.
func (r *TaskRepository) loadChildren(ctx context.Context, q querier, tasks ...*domain.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	byID := make(map[string]*domain.Task, len(tasks))
	ids := make([]string, 0, len(tasks))
	for _, task := range tasks {
		byID[task.ID] = task
		ids = append(ids, task.ID)
	}

	requests, err := r.listRequests(ctx, q, ids)
	if err != nil {
		return err
	}
	for _, req := range requests {
		task := byID[req.TaskID]
		task.ApprovalRequests = append(task.ApprovalRequests, req)
	}

	items, err := r.listChecklist(ctx, q, ids)
	if err != nil {
		return err
	}
	for taskID, taskItems := range items {
		byID[taskID].Checklist = taskItems
	}

	return nil
}

// Create inserts a task within a transaction.
// Returns the created task with ID, CreatedAt, and UpdatedAt populated.
func (r *TaskRepository) Create(ctx context.Context, tx pgx.Tx, task *domain.Task) (*domain.Task, error) {
	if task.Status == "" {
		task.Status = domain.TaskStatusTodo
	}
	if task.Priority == "" {
		task.Priority = domain.TaskPriorityMedium
	}
	if task.ApprovalStatus == "" {
		task.ApprovalStatus = domain.ApprovalStatusNone
	}
	if task.Labels == nil {
		task.Labels = []string{}
	}

	query, args, err := psql.
		Insert("tasks").
		Columns("project_id", "title", "type", "priority", "story_points", "assignee_id", "labels", "status", "approval_status").
		Values(
			task.ProjectID,
			task.Title,
			task.Type,
			task.Priority,
			task.StoryPoints,
			task.AssigneeID,
			task.Labels,
			task.Status,
			task.ApprovalStatus,
		).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build Create query for task: %w", err)
	}

	err = tx.QueryRow(ctx, query, args...).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	return task, nil
}

// UpdateApprovalState writes the task-level approval fields after a transition.
// The caller must hold the row lock taken by GetByIDForUpdate.
func (r *TaskRepository) UpdateApprovalState(ctx context.Context, tx pgx.Tx, task *domain.Task) error {
	cfg := task.ApprovalConfig
	escalateTo, err := json.Marshal(cfg.EscalateTo)
	if err != nil {
		return fmt.Errorf("encode escalate_to of task %s: %w", task.ID, err)
	}

	query, args, err := psql.
		Update("tasks").
		Set("status", task.Status).
		Set("approval_status", task.ApprovalStatus).
		Set("auto_approve", cfg.AutoApprove).
		Set("auto_approve_at", cfg.AutoApproveAt).
		Set("escalate", cfg.Escalate).
		Set("escalate_at", cfg.EscalateAt).
		Set("escalation_sent_at", cfg.EscalationSentAt).
		Set("escalate_to", escalateTo).
		Set("skip_checklist", cfg.SkipChecklist).
		Set("rejection_reason", task.RejectionReason).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": task.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build UpdateApprovalState query for task %s: %w", task.ID, err)
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update approval state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}

	return nil
}

// MarkEscalationSent records the reminder only if none was sent yet and the task still awaits approval.
// Returns ErrAlreadyEscalated if another sweep won the race.
func (r *TaskRepository) MarkEscalationSent(ctx context.Context, tx pgx.Tx, taskID string, sentAt time.Time) error {
	query, args, err := psql.
		Update("tasks").
		Set("escalation_sent_at", sentAt).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{
			"id":                 taskID,
			"escalation_sent_at": nil,
			"approval_status":    domain.ApprovalStatusPending,
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build MarkEscalationSent query for task %s: %w", taskID, err)
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("mark escalation sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: task %s", domain.ErrAlreadyEscalated, taskID)
	}

	return nil
}

// SweepCandidate is a task with due time-triggered work and the request that was pending when it was found.
type SweepCandidate struct {
	TaskID    string
	RequestID string
}

// FindSweepCandidates returns tasks with due time-triggered work of the given kinds.
// The result is a superset hint; the state machine re-checks each task under lock.
func (r *TaskRepository) FindSweepCandidates(ctx context.Context, now time.Time, kinds approval.SweepKind) ([]SweepCandidate, error) {
	due := sq.Or{}
	if kinds&approval.SweepAutoApprove != 0 {
		due = append(due, sq.And{
			sq.Eq{"t.auto_approve": true},
			sq.LtOrEq{"t.auto_approve_at": now},
		})
	}
	if kinds&approval.SweepEscalation != 0 {
		due = append(due, sq.And{
			sq.Eq{"t.escalate": true, "t.escalation_sent_at": nil},
			sq.LtOrEq{"t.escalate_at": now},
		})
	}
	if len(due) == 0 {
		return nil, nil
	}

	query, args, err := psql.
		Select("t.id", "r.id").
		From("tasks t").
		Join("approval_requests r ON r.task_id = t.id AND r.status = ?", domain.RequestStatusPending).
		Where(sq.Eq{"t.approval_status": domain.ApprovalStatusPending}).
		Where(due).
		OrderBy("t.updated_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build FindSweepCandidates query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sweep candidates: %w", err)
	}

	candidates, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (SweepCandidate, error) {
		var c SweepCandidate
		err := row.Scan(&c.TaskID, &c.RequestID)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("collect sweep candidates: %w", err)
	}
	return candidates, nil
}
