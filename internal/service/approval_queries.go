package service

import (
	"context"
	"time"

	"github.com/mtlprog/taskgate/internal/domain"
	"github.com/mtlprog/taskgate/internal/policy"
	"github.com/mtlprog/taskgate/internal/repository"
)

// viewTask loads a task the actor may read.
func (s *ApprovalService) viewTask(ctx context.Context, taskID, actorID string) (*domain.Task, error) {
	task, err := s.taskRepo.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	err = s.authorize(ctx, task, actorID, func(role domain.Role) error {
		return s.validator.CanView(actorID, role)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// GetTask returns a task with its approval requests and checklist.
func (s *ApprovalService) GetTask(ctx context.Context, taskID, actorID string) (*domain.Task, error) {
	return s.viewTask(ctx, taskID, actorID)
}

// GetChecklist returns the task's checklist and its progress.
func (s *ApprovalService) GetChecklist(ctx context.Context, taskID, actorID string) ([]domain.ChecklistItem, domain.ChecklistProgress, error) {
	task, err := s.viewTask(ctx, taskID, actorID)
	if err != nil {
		return nil, domain.ChecklistProgress{}, err
	}
	return task.Checklist, policy.Progress(task.Checklist), nil
}

// GetEvents returns the task's approval audit log.
func (s *ApprovalService) GetEvents(ctx context.Context, taskID, actorID string) ([]*domain.TaskEvent, error) {
	if _, err := s.viewTask(ctx, taskID, actorID); err != nil {
		return nil, err
	}
	return s.eventRepo.GetByTaskID(ctx, taskID)
}

// ListPending returns the project's approval queue.
func (s *ApprovalService) ListPending(ctx context.Context, filters repository.PendingFilters, actorID string) ([]*domain.Task, int, error) {
	role, err := s.validator.ActorRole(ctx, filters.ProjectID, actorID)
	if err != nil {
		return nil, 0, err
	}
	if err := s.validator.CanView(actorID, role); err != nil {
		return nil, 0, err
	}
	return s.taskRepo.ListPendingApprovals(ctx, filters)
}

// Stats returns approval statistics of a project since the given time.
func (s *ApprovalService) Stats(ctx context.Context, projectID, actorID string, since time.Time) (*repository.ApprovalStatsResult, error) {
	role, err := s.validator.ActorRole(ctx, projectID, actorID)
	if err != nil {
		return nil, err
	}
	if err := s.validator.CanView(actorID, role); err != nil {
		return nil, err
	}
	return s.taskRepo.GetApprovalStats(ctx, projectID, since)
}
