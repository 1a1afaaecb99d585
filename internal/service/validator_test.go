package service

import (
	"testing"

	"github.com/mtlprog/taskgate/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestValidator_CanDecide(t *testing.T) {
	v := &Validator{}
	task := &domain.Task{
		ID: "task-1",
		ApprovalRequests: []domain.ApprovalRequest{{
			ID:     "request-1",
			Status: domain.RequestStatusPending,
			Approvers: domain.Approvers{
				Roles:         []domain.Role{domain.RoleAdmin},
				SpecificUsers: []string{"lead"},
			},
		}},
	}

	assert.NoError(t, v.CanDecide(task, "request-1", "someone", domain.RoleAdmin))
	assert.NoError(t, v.CanDecide(task, "request-1", "lead", domain.RoleViewer))
	assert.ErrorIs(t, v.CanDecide(task, "request-1", "someone", domain.RoleOwner), domain.ErrPermissionDenied)
	assert.ErrorIs(t, v.CanDecide(task, "missing", "lead", domain.RoleAdmin), domain.ErrRequestNotFound)
}

func TestValidator_AnyTeamMemberExcludesViewers(t *testing.T) {
	v := &Validator{}
	task := &domain.Task{
		ApprovalRequests: []domain.ApprovalRequest{{
			ID:        "request-1",
			Approvers: domain.Approvers{AnyTeamMember: true},
		}},
	}

	assert.NoError(t, v.CanDecide(task, "request-1", "u1", domain.RoleMember))
	assert.ErrorIs(t, v.CanDecide(task, "request-1", "u2", domain.RoleViewer), domain.ErrPermissionDenied)
}

func TestValidator_RoleChecks(t *testing.T) {
	v := &Validator{}
	task := &domain.Task{ID: "task-1"}

	tests := []struct {
		role       domain.Role
		privileged bool
		contribute bool
	}{
		{domain.RoleOwner, true, true},
		{domain.RoleAdmin, true, true},
		{domain.RoleMember, false, true},
		{domain.RoleViewer, false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			assert.Equal(t, tt.privileged, v.CanBypass("u", tt.role) == nil)
			assert.Equal(t, tt.privileged, v.CanManagePolicy("u", tt.role) == nil)
			assert.Equal(t, tt.contribute, v.CanRequestApproval(task, "u", tt.role) == nil)
			assert.Equal(t, tt.contribute, v.CanToggleChecklist("u", tt.role) == nil)
			assert.NoError(t, v.CanView("u", tt.role))
		})
	}
}
