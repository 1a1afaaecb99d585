package dto

// ApproveRequest represents the request body for POST /tasks/:id/approval/approve.
type ApproveRequest struct {
	RequestID string `json:"request_id" validate:"required,uuid"`
}

// RejectRequest represents the request body for POST /tasks/:id/approval/reject.
type RejectRequest struct {
	RequestID string `json:"request_id" validate:"required,uuid"`
	Reason    string `json:"reason"`
}

// BypassRequest represents the request body for POST /tasks/:id/approval/bypass.
type BypassRequest struct {
	RequestID string `json:"request_id" validate:"required,uuid"`
	Reason    string `json:"reason"`
}

// ToggleChecklistItemRequest represents the request body for PATCH /tasks/:id/checklist/:itemId.
type ToggleChecklistItemRequest struct {
	Checked *bool `json:"checked" validate:"required"`
}

// TogglePolicyRequest represents the request body for POST /projects/:id/approval-policy/toggle.
type TogglePolicyRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// ApplyTemplateRequest represents the request body for POST /projects/:id/approval-policy/apply-template.
type ApplyTemplateRequest struct {
	Template string `json:"template" validate:"required"`
}

// PendingFilters represents query parameters for GET /projects/:id/approvals/pending.
type PendingFilters struct {
	Types      []string // ?type=STORY,BUG
	AssigneeID *string  // ?assignee=<uuid> or ?assignee=me
	Escalated  bool     // ?escalated=true
	Limit      int      // ?limit=50
	Offset     int      // ?offset=0
}

// StatsFilters represents query parameters for GET /projects/:id/approvals/stats.
type StatsFilters struct {
	Period string // day, week, month, all
}
