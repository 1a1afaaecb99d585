package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mtlprog/taskgate/internal/approval"
	"github.com/mtlprog/taskgate/internal/domain"
	"github.com/mtlprog/taskgate/internal/metrics"
	"github.com/mtlprog/taskgate/internal/repository"
	"golang.org/x/sync/errgroup"
)

// DefaultSweepWorkers is the number of tasks a sweep processes concurrently.
const DefaultSweepWorkers = 4

// TaskError is a per-task sweep failure.
type TaskError struct {
	TaskID string
	Err    error
}

func (e TaskError) Error() string {
	return fmt.Sprintf("task %s: %v", e.TaskID, e.Err)
}

func (e TaskError) Unwrap() error {
	return e.Err
}

// SweepResult summarizes one sweep run.
type SweepResult struct {
	Kind         approval.SweepKind
	Processed    int
	AutoApproved int
	// Deferred counts auto-approvals held back by unchecked required items.
	Deferred  int
	Reminders int
	Skipped   int
	// Stale counts tasks resolved by someone else between the scan and the lock.
	// They are reported in Errors as well.
	Stale    int
	Errors   []TaskError
	Duration time.Duration
}

// Failed returns the number of tasks that failed for reasons other than a lost race.
func (r *SweepResult) Failed() int {
	return len(r.Errors) - r.Stale
}

// Sweeper finds tasks with due time-triggered work and applies it.
type Sweeper struct {
	approvals *ApprovalService
	taskRepo  *repository.TaskRepository
	metrics   *metrics.Metrics
	workers   int
}

// NewSweeper creates a Sweeper running up to workers tasks at once.
func NewSweeper(approvals *ApprovalService, taskRepo *repository.TaskRepository, m *metrics.Metrics, workers int) *Sweeper {
	if workers <= 0 {
		workers = DefaultSweepWorkers
	}
	return &Sweeper{
		approvals: approvals,
		taskRepo:  taskRepo,
		metrics:   m,
		workers:   workers,
	}
}

// Sweep evaluates every candidate task at now. Each task runs in its own transaction;
// a failure on one task is recorded and never stops the others.
// The returned error covers only failures to find candidates.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time, kinds approval.SweepKind) (*SweepResult, error) {
	start := time.Now()
	kind := kinds.String()

	candidates, err := s.taskRepo.FindSweepCandidates(ctx, now, kinds)
	if err != nil {
		return nil, fmt.Errorf("find sweep candidates: %w", err)
	}

	result := &SweepResult{Kind: kinds}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(s.workers)

	for _, c := range candidates {
		g.Go(func() error {
			id := c.TaskID
			out, err := s.approvals.sweepTask(ctx, c, now, kinds)

			mu.Lock()
			defer mu.Unlock()

			result.Processed++
			if out.deferred {
				result.Deferred++
				s.metrics.RecordSweepTask(kind, "deferred")
			}

			switch {
			case errors.Is(err, domain.ErrAlreadyEscalated):
				result.Skipped++
				s.metrics.RecordSweepTask(kind, "skipped")
			case errors.Is(err, domain.ErrStaleState):
				slog.Warn("sweep lost race for task",
					"task_id", id,
					"request_id", c.RequestID,
					"kind", kind,
					"error", err,
				)
				result.Stale++
				result.Errors = append(result.Errors, TaskError{TaskID: id, Err: err})
				s.metrics.RecordSweepTask(kind, "stale")
			case err != nil:
				slog.Error("failed to sweep task",
					"task_id", id,
					"kind", kind,
					"error", err,
				)
				result.Errors = append(result.Errors, TaskError{TaskID: id, Err: err})
				s.metrics.RecordSweepTask(kind, "failed")
			case out.action == approval.ActionAutoApprove:
				result.AutoApproved++
				s.metrics.RecordSweepTask(kind, "auto_approved")
			case out.action == approval.ActionEscalate:
				result.Reminders++
				s.metrics.RecordSweepTask(kind, "reminded")
			case !out.deferred:
				result.Skipped++
				s.metrics.RecordSweepTask(kind, "skipped")
			}
			return nil
		})
	}
	_ = g.Wait()

	result.Duration = time.Since(start)
	s.metrics.ObserveSweep(kind, result.Duration)

	slog.Info("sweep completed",
		"kind", kind,
		"total", len(candidates),
		"auto_approved", result.AutoApproved,
		"deferred", result.Deferred,
		"reminders", result.Reminders,
		"skipped", result.Skipped,
		"stale", result.Stale,
		"failed", result.Failed(),
		"duration", result.Duration,
	)

	return result, nil
}
