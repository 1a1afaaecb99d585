package repository

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/mtlprog/taskgate/internal/domain"
)

// PendingFilters holds all supported filters for the pending-approvals queue.
type PendingFilters struct {
	ProjectID  string            // Required: filter by project
	Types      []domain.TaskType // Optional: filter by task type
	AssigneeID *string           // Optional: filter by assignee
	Escalated  bool              // Optional: only tasks whose reminder was sent
	Limit      int               // Required: page size
	Offset     int               // Required: page offset
}

func (f PendingFilters) apply(qb sq.SelectBuilder) sq.SelectBuilder {
	qb = qb.Where(sq.Eq{
		"project_id":      f.ProjectID,
		"approval_status": domain.ApprovalStatusPending,
	})
	if len(f.Types) > 0 {
		qb = qb.Where(sq.Eq{"type": f.Types})
	}
	if f.AssigneeID != nil {
		qb = qb.Where(sq.Eq{"assignee_id": *f.AssigneeID})
	}
	if f.Escalated {
		qb = qb.Where(sq.NotEq{"escalation_sent_at": nil})
	}
	return qb
}

// ListPendingApprovals returns tasks awaiting approval, longest-waiting first, with the total count.
func (r *TaskRepository) ListPendingApprovals(ctx context.Context, filters PendingFilters) ([]*domain.Task, int, error) {
	query, args, err := filters.apply(psql.Select(taskColumns...).From("tasks")).
		OrderBy(`(SELECT ar.requested_at FROM approval_requests ar
			WHERE ar.task_id = tasks.id AND ar.status = 'PENDING') ASC`, "id ASC").
		Limit(uint64(filters.Limit)).
		Offset(uint64(filters.Offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build ListPendingApprovals query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query pending tasks: %w", err)
	}

	tasks, err := scanTasks(rows)
	if err != nil {
		return nil, 0, err
	}
	if err := r.loadChildren(ctx, r.pool, tasks...); err != nil {
		return nil, 0, err
	}

	countQuery, countArgs, err := filters.apply(psql.Select("COUNT(*)").From("tasks")).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count pending tasks: %w", err)
	}

	return tasks, total, nil
}
