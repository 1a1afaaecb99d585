package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mtlprog/taskgate/internal/domain"
)

// uniqueViolation is the PostgreSQL error code raised by uq_approval_requests_pending.
const uniqueViolation = "23505"

var requestColumns = []string{
	"id", "task_id", "status", "approvers", "rule_name", "requested_by", "requested_at",
	"approved_by", "approved_at", "rejected_by", "rejected_at", "reject_reason",
	"auto_approved_at", "bypassed_by", "bypassed_at", "bypass_reason",
}

// InsertApprovalRequest appends a PENDING request to the task's log.
// A second PENDING request for the same task violates the partial unique index
// and is reported as ErrStaleState.
func (r *TaskRepository) InsertApprovalRequest(ctx context.Context, tx pgx.Tx, req *domain.ApprovalRequest) error {
	approvers, err := json.Marshal(req.Approvers)
	if err != nil {
		return fmt.Errorf("encode approvers of request %s: %w", req.ID, err)
	}

	query, args, err := psql.
		Insert("approval_requests").
		Columns("id", "task_id", "status", "approvers", "rule_name", "requested_by", "requested_at").
		Values(req.ID, req.TaskID, req.Status, approvers, req.RuleName, req.RequestedBy, req.RequestedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build InsertApprovalRequest query: %w", err)
	}

	if _, err := tx.Exec(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: task %s already has a pending request", domain.ErrStaleState, req.TaskID)
		}
		return fmt.Errorf("insert approval request: %w", err)
	}

	return nil
}

// ResolveApprovalRequest moves a request out of PENDING with a compare-and-swap on its status.
// Returns ErrStaleState if the request was resolved concurrently.
func (r *TaskRepository) ResolveApprovalRequest(ctx context.Context, tx pgx.Tx, req *domain.ApprovalRequest) error {
	query, args, err := psql.
		Update("approval_requests").
		Set("status", req.Status).
		Set("approved_by", req.ApprovedBy).
		Set("approved_at", req.ApprovedAt).
		Set("rejected_by", req.RejectedBy).
		Set("rejected_at", req.RejectedAt).
		Set("reject_reason", req.RejectReason).
		Set("auto_approved_at", req.AutoApprovedAt).
		Set("bypassed_by", req.BypassedBy).
		Set("bypassed_at", req.BypassedAt).
		Set("bypass_reason", req.BypassReason).
		Where(sq.Eq{
			"id":      req.ID,
			"task_id": req.TaskID,
			"status":  domain.RequestStatusPending,
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build ResolveApprovalRequest query for request %s: %w", req.ID, err)
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("resolve approval request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: request %s is no longer pending", domain.ErrStaleState, req.ID)
	}

	return nil
}

// listRequests returns the requests of the given tasks in creation order.
func (r *TaskRepository) listRequests(ctx context.Context, q querier, taskIDs []string) ([]domain.ApprovalRequest, error) {
	query, args, err := psql.
		Select(requestColumns...).
		From("approval_requests").
		Where(sq.Eq{"task_id": taskIDs}).
		OrderBy("task_id", "seq ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build listRequests query: %w", err)
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query approval requests: %w", err)
	}
	defer rows.Close()

	var requests []domain.ApprovalRequest
	for rows.Next() {
		var req domain.ApprovalRequest
		var approversJSON []byte
		err := rows.Scan(
			&req.ID,
			&req.TaskID,
			&req.Status,
			&approversJSON,
			&req.RuleName,
			&req.RequestedBy,
			&req.RequestedAt,
			&req.ApprovedBy,
			&req.ApprovedAt,
			&req.RejectedBy,
			&req.RejectedAt,
			&req.RejectReason,
			&req.AutoApprovedAt,
			&req.BypassedBy,
			&req.BypassedAt,
			&req.BypassReason,
		)
		if err != nil {
			return nil, fmt.Errorf("scan approval request: %w", err)
		}
		if err := json.Unmarshal(approversJSON, &req.Approvers); err != nil {
			return nil, fmt.Errorf("parse approvers of request %s: %w", req.ID, err)
		}
		requests = append(requests, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return requests, nil
}
