package domain

import (
	"slices"
	"time"
)

// RequestStatus represents the status of a single approval request.
type RequestStatus string

const (
	RequestStatusPending      RequestStatus = "PENDING"
	RequestStatusApproved     RequestStatus = "APPROVED"
	RequestStatusRejected     RequestStatus = "REJECTED"
	RequestStatusAutoApproved RequestStatus = "AUTO_APPROVED"
	RequestStatusBypassed     RequestStatus = "BYPASSED"
)

// IsTerminal returns true once the request can no longer change.
func (s RequestStatus) IsTerminal() bool {
	return s != RequestStatusPending
}

// ApprovalStatus maps a request outcome to the task-level approval status.
func (s RequestStatus) ApprovalStatus() ApprovalStatus {
	switch s {
	case RequestStatusPending:
		return ApprovalStatusPending
	case RequestStatusRejected:
		return ApprovalStatusRejected
	default:
		return ApprovalStatusApproved
	}
}

// Role is a project membership role.
type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
	RoleViewer Role = "VIEWER"
)

// IsValid checks if the role is one of the allowed values.
func (r Role) IsValid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember, RoleViewer:
		return true
	default:
		return false
	}
}

// IsPrivileged reports whether the role may perform emergency bypasses.
func (r Role) IsPrivileged() bool {
	return r == RoleOwner || r == RoleAdmin
}

// Approvers describes who may decide an approval request.
type Approvers struct {
	Roles         []Role   `json:"roles,omitempty" yaml:"roles,omitempty"`
	SpecificUsers []string `json:"specificUsers,omitempty" yaml:"specificUsers,omitempty"`
	AnyTeamMember bool     `json:"anyTeamMember,omitempty" yaml:"anyTeamMember,omitempty"`
}

// IsEmpty reports whether no approver was specified.
func (a Approvers) IsEmpty() bool {
	return len(a.Roles) == 0 && len(a.SpecificUsers) == 0 && !a.AnyTeamMember
}

// Allows reports whether a project member with the given role may decide.
func (a Approvers) Allows(userID string, role Role) bool {
	if slices.Contains(a.SpecificUsers, userID) {
		return true
	}
	if slices.Contains(a.Roles, role) {
		return true
	}
	return a.AnyTeamMember && role != RoleViewer
}

// ApprovalRequest is one audit-logged attempt to get a task approved.
type ApprovalRequest struct {
	ID             string
	TaskID         string
	Status         RequestStatus
	Approvers      Approvers
	RuleName       string
	RequestedBy    *string
	RequestedAt    time.Time
	ApprovedBy     *string
	ApprovedAt     *time.Time
	RejectedBy     *string
	RejectedAt     *time.Time
	RejectReason   *string
	AutoApprovedAt *time.Time
	BypassedBy     *string
	BypassedAt     *time.Time
	BypassReason   *string
}

// ResolvedAt returns the time the request reached its terminal status.
func (r *ApprovalRequest) ResolvedAt() *time.Time {
	switch r.Status {
	case RequestStatusApproved:
		return r.ApprovedAt
	case RequestStatusRejected:
		return r.RejectedAt
	case RequestStatusAutoApproved:
		return r.AutoApprovedAt
	case RequestStatusBypassed:
		return r.BypassedAt
	default:
		return nil
	}
}
