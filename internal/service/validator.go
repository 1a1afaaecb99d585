package service

import (
	"context"
	"fmt"

	"github.com/mtlprog/taskgate/internal/domain"
	"github.com/mtlprog/taskgate/internal/repository"
)

// Validator handles permission checks for approval operations.
type Validator struct {
	userRepo    *repository.UserRepository
	projectRepo *repository.ProjectRepository
}

// NewValidator creates a new Validator.
func NewValidator(userRepo *repository.UserRepository, projectRepo *repository.ProjectRepository) *Validator {
	return &Validator{
		userRepo:    userRepo,
		projectRepo: projectRepo,
	}
}

// ActorRole verifies the user is active and returns their role in the project.
func (v *Validator) ActorRole(ctx context.Context, projectID, userID string) (domain.Role, error) {
	user, err := v.userRepo.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if !user.IsActive {
		return "", fmt.Errorf("%w: %s", domain.ErrUserInactive, userID)
	}

	return v.projectRepo.GetMemberRole(ctx, projectID, userID)
}

// CanView allows any project member to read approval state.
func (v *Validator) CanView(userID string, role domain.Role) error {
	if !role.IsValid() {
		return fmt.Errorf("%w: user %s has no project role", domain.ErrPermissionDenied, userID)
	}
	return nil
}

// CanRequestApproval allows contributors to submit a task for approval.
func (v *Validator) CanRequestApproval(task *domain.Task, userID string, role domain.Role) error {
	if role == domain.RoleViewer {
		return fmt.Errorf("%w: viewer %s cannot submit task %s", domain.ErrPermissionDenied, userID, task.ID)
	}
	return nil
}

// CanDecide checks the user is one of the request's approvers.
func (v *Validator) CanDecide(task *domain.Task, requestID, userID string, role domain.Role) error {
	req := task.FindRequest(requestID)
	if req == nil {
		return fmt.Errorf("%w: request %s on task %s", domain.ErrRequestNotFound, requestID, task.ID)
	}
	if !req.Approvers.Allows(userID, role) {
		return fmt.Errorf("%w: user %s (%s) is not an approver of request %s", domain.ErrPermissionDenied, userID, role, requestID)
	}
	return nil
}

// CanBypass allows only owners and admins to force an approval.
func (v *Validator) CanBypass(userID string, role domain.Role) error {
	if !role.IsPrivileged() {
		return fmt.Errorf("%w: user %s (%s) cannot bypass approval", domain.ErrPermissionDenied, userID, role)
	}
	return nil
}

// CanToggleChecklist allows contributors to check items off.
func (v *Validator) CanToggleChecklist(userID string, role domain.Role) error {
	if role == domain.RoleViewer {
		return fmt.Errorf("%w: viewer %s cannot edit the checklist", domain.ErrPermissionDenied, userID)
	}
	return nil
}

// CanManagePolicy allows only owners and admins to change the approval policy.
func (v *Validator) CanManagePolicy(userID string, role domain.Role) error {
	if !role.IsPrivileged() {
		return fmt.Errorf("%w: user %s (%s) cannot change the approval policy", domain.ErrPermissionDenied, userID, role)
	}
	return nil
}
