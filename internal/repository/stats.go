package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ApprovalStatsResult holds approval statistics for a project.
type ApprovalStatsResult struct {
	TasksByApprovalStatus map[string]int
	RequestsByOutcome     map[string]int
	EscalationsSent       int
	// AvgResolutionSeconds covers requests resolved within the period; 0 when none were.
	AvgResolutionSeconds float64
}

// GetApprovalStats computes approval statistics for a project.
// Request outcomes and escalations are counted for requests created since the given time.
func (r *TaskRepository) GetApprovalStats(ctx context.Context, projectID string, since time.Time) (*ApprovalStatsResult, error) {
	result := &ApprovalStatsResult{
		TasksByApprovalStatus: make(map[string]int),
		RequestsByOutcome:     make(map[string]int),
	}

	// Current state, not historical
	rows, err := r.pool.Query(ctx, `
		SELECT approval_status, COUNT(*)
		FROM tasks
		WHERE project_id = $1
		GROUP BY approval_status
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query tasks by approval status: %w", err)
	}
	if err := collectCounts(rows, result.TasksByApprovalStatus); err != nil {
		return nil, err
	}

	rows, err = r.pool.Query(ctx, `
		SELECT ar.status, COUNT(*)
		FROM approval_requests ar
		JOIN tasks t ON t.id = ar.task_id
		WHERE t.project_id = $1 AND ar.requested_at >= $2
		GROUP BY ar.status
	`, projectID, since)
	if err != nil {
		return nil, fmt.Errorf("query requests by outcome: %w", err)
	}
	if err := collectCounts(rows, result.RequestsByOutcome); err != nil {
		return nil, err
	}

	err = r.pool.QueryRow(ctx, `
		SELECT
			COALESCE(AVG(EXTRACT(EPOCH FROM
				COALESCE(ar.approved_at, ar.rejected_at, ar.auto_approved_at, ar.bypassed_at) - ar.requested_at
			)), 0)::float8
		FROM approval_requests ar
		JOIN tasks t ON t.id = ar.task_id
		WHERE t.project_id = $1 AND ar.requested_at >= $2 AND ar.status <> 'PENDING'
	`, projectID, since).Scan(&result.AvgResolutionSeconds)
	if err != nil {
		return nil, fmt.Errorf("compute average resolution time: %w", err)
	}

	err = r.pool.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM task_events
		WHERE project_id = $1 AND type = 'escalation_reminder' AND created_at >= $2
	`, projectID, since).Scan(&result.EscalationsSent)
	if err != nil {
		return nil, fmt.Errorf("count escalations: %w", err)
	}

	return result, nil
}

// collectCounts reads (key, count) rows into the map.
func collectCounts(rows pgx.Rows, into map[string]int) error {
	defer rows.Close()

	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return fmt.Errorf("scan count: %w", err)
		}
		into[key] = count
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate count rows: %w", err)
	}
	return nil
}
