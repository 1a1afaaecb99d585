package dto

import (
	"time"

	"github.com/mtlprog/taskgate/internal/domain"
	"github.com/mtlprog/taskgate/internal/repository"
)

// TaskDetail represents a task with its approval state.
type TaskDetail struct {
	ID               string                `json:"id"`
	ProjectID        string                `json:"project_id"`
	Title            string                `json:"title"`
	Type             string                `json:"type"`
	Priority         string                `json:"priority"`
	StoryPoints      *int                  `json:"story_points"`
	AssigneeID       *string               `json:"assignee_id"`
	Labels           []string              `json:"labels"`
	Status           string                `json:"status"`
	ApprovalStatus   string                `json:"approval_status"`
	AutoApproveAt    *time.Time            `json:"auto_approve_at"`
	EscalateAt       *time.Time            `json:"escalate_at"`
	EscalationSentAt *time.Time            `json:"escalation_sent_at"`
	RejectionReason  *string               `json:"rejection_reason"`
	CurrentRequest   *ApprovalRequestInfo  `json:"current_request"`
	Requests         []ApprovalRequestInfo `json:"requests"`
	Checklist        ChecklistResponse     `json:"checklist"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

// PendingTask represents a task in the pending-approvals queue.
type PendingTask struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Type             string     `json:"type"`
	Priority         string     `json:"priority"`
	AssigneeID       *string    `json:"assignee_id"`
	RequestID        string     `json:"request_id"`
	RequestedAt      time.Time  `json:"requested_at"`
	AutoApproveAt    *time.Time `json:"auto_approve_at"`
	EscalateAt       *time.Time `json:"escalate_at"`
	EscalationSentAt *time.Time `json:"escalation_sent_at"`
	ChecklistPercent int        `json:"checklist_percent"`
}

// PendingListResponse represents the response for GET /projects/:id/approvals/pending.
type PendingListResponse struct {
	Tasks  []PendingTask `json:"tasks"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// ApprovalRequestInfo represents one approval request.
type ApprovalRequestInfo struct {
	ID             string           `json:"id"`
	Status         string           `json:"status"`
	RuleName       string           `json:"rule_name"`
	Approvers      domain.Approvers `json:"approvers"`
	RequestedBy    *string          `json:"requested_by"`
	RequestedAt    time.Time        `json:"requested_at"`
	ApprovedBy     *string          `json:"approved_by,omitempty"`
	ApprovedAt     *time.Time       `json:"approved_at,omitempty"`
	RejectedBy     *string          `json:"rejected_by,omitempty"`
	RejectedAt     *time.Time       `json:"rejected_at,omitempty"`
	RejectReason   *string          `json:"reject_reason,omitempty"`
	AutoApprovedAt *time.Time       `json:"auto_approved_at,omitempty"`
	BypassedBy     *string          `json:"bypassed_by,omitempty"`
	BypassedAt     *time.Time       `json:"bypassed_at,omitempty"`
	BypassReason   *string          `json:"bypass_reason,omitempty"`
}

// ChecklistResponse represents a task checklist and its progress.
type ChecklistResponse struct {
	Items    []ChecklistItemInfo `json:"items"`
	Progress ChecklistProgress   `json:"progress"`
}

// ChecklistItemInfo represents one checklist item.
type ChecklistItemInfo struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Required  bool       `json:"required"`
	Checked   bool       `json:"checked"`
	CheckedBy *string    `json:"checked_by"`
	CheckedAt *time.Time `json:"checked_at"`
}

// ChecklistProgress represents checklist completion counters.
type ChecklistProgress struct {
	Total           int  `json:"total"`
	Checked         int  `json:"checked"`
	RequiredTotal   int  `json:"required_total"`
	RequiredChecked int  `json:"required_checked"`
	Percent         int  `json:"percent"`
	Complete        bool `json:"complete"`
}

// TaskEventResponse represents a single audit event.
type TaskEventResponse struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	RequestID *string   `json:"request_id"`
	Type      string    `json:"type"`
	ActorID   *string   `json:"actor_id"`
	OldStatus *string   `json:"old_status"`
	NewStatus *string   `json:"new_status"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// TransitionResponse is returned by approval actions. Event is null when nothing changed.
type TransitionResponse struct {
	Event *TaskEventResponse `json:"event"`
	Task  TaskDetail         `json:"task"`
}

// StatsResponse represents approval statistics for a project.
type StatsResponse struct {
	Period                   string         `json:"period"`
	PeriodStart              *time.Time     `json:"period_start"`
	PeriodEnd                time.Time      `json:"period_end"`
	TasksByApprovalStatus    map[string]int `json:"tasks_by_approval_status"`
	RequestsByOutcome        map[string]int `json:"requests_by_outcome"`
	EscalationsSent          int            `json:"escalations_sent"`
	AvgResolutionTimeMinutes float64        `json:"avg_resolution_time_minutes"`
}

// ToTaskDetail converts domain.Task to TaskDetail.
func ToTaskDetail(task *domain.Task, progress domain.ChecklistProgress) TaskDetail {
	labels := task.Labels
	if labels == nil {
		labels = []string{}
	}

	requests := make([]ApprovalRequestInfo, 0, len(task.ApprovalRequests))
	for i := range task.ApprovalRequests {
		requests = append(requests, ToApprovalRequestInfo(&task.ApprovalRequests[i]))
	}

	var current *ApprovalRequestInfo
	if len(requests) > 0 {
		current = &requests[len(requests)-1]
	}

	cfg := task.ApprovalConfig
	return TaskDetail{
		ID:               task.ID,
		ProjectID:        task.ProjectID,
		Title:            task.Title,
		Type:             string(task.Type),
		Priority:         string(task.Priority),
		StoryPoints:      task.StoryPoints,
		AssigneeID:       task.AssigneeID,
		Labels:           labels,
		Status:           string(task.Status),
		ApprovalStatus:   string(task.ApprovalStatus),
		AutoApproveAt:    cfg.AutoApproveAt,
		EscalateAt:       cfg.EscalateAt,
		EscalationSentAt: cfg.EscalationSentAt,
		RejectionReason:  task.RejectionReason,
		CurrentRequest:   current,
		Requests:         requests,
		Checklist:        ToChecklistResponse(task.Checklist, progress),
		CreatedAt:        task.CreatedAt,
		UpdatedAt:        task.UpdatedAt,
	}
}

// ToPendingTask converts a task awaiting approval to PendingTask.
func ToPendingTask(task *domain.Task, progress domain.ChecklistProgress) PendingTask {
	pt := PendingTask{
		ID:               task.ID,
		Title:            task.Title,
		Type:             string(task.Type),
		Priority:         string(task.Priority),
		AssigneeID:       task.AssigneeID,
		AutoApproveAt:    task.ApprovalConfig.AutoApproveAt,
		EscalateAt:       task.ApprovalConfig.EscalateAt,
		EscalationSentAt: task.ApprovalConfig.EscalationSentAt,
		ChecklistPercent: progress.Percent(),
	}
	if req := task.PendingRequest(); req != nil {
		pt.RequestID = req.ID
		pt.RequestedAt = req.RequestedAt
	}
	return pt
}

// ToApprovalRequestInfo converts domain.ApprovalRequest to ApprovalRequestInfo.
func ToApprovalRequestInfo(req *domain.ApprovalRequest) ApprovalRequestInfo {
	return ApprovalRequestInfo{
		ID:             req.ID,
		Status:         string(req.Status),
		RuleName:       req.RuleName,
		Approvers:      req.Approvers,
		RequestedBy:    req.RequestedBy,
		RequestedAt:    req.RequestedAt,
		ApprovedBy:     req.ApprovedBy,
		ApprovedAt:     req.ApprovedAt,
		RejectedBy:     req.RejectedBy,
		RejectedAt:     req.RejectedAt,
		RejectReason:   req.RejectReason,
		AutoApprovedAt: req.AutoApprovedAt,
		BypassedBy:     req.BypassedBy,
		BypassedAt:     req.BypassedAt,
		BypassReason:   req.BypassReason,
	}
}

// ToChecklistResponse converts checklist items and progress to ChecklistResponse.
func ToChecklistResponse(items []domain.ChecklistItem, progress domain.ChecklistProgress) ChecklistResponse {
	infos := make([]ChecklistItemInfo, 0, len(items))
	for _, item := range items {
		infos = append(infos, ChecklistItemInfo{
			ID:        item.ID,
			Name:      item.Name,
			Required:  item.Required,
			Checked:   item.Checked,
			CheckedBy: item.CheckedBy,
			CheckedAt: item.CheckedAt,
		})
	}

	return ChecklistResponse{
		Items: infos,
		Progress: ChecklistProgress{
			Total:           progress.Total,
			Checked:         progress.Checked,
			RequiredTotal:   progress.RequiredTotal,
			RequiredChecked: progress.RequiredChecked,
			Percent:         progress.Percent(),
			Complete:        progress.Complete(),
		},
	}
}

// ToTaskEventResponse converts domain.TaskEvent to TaskEventResponse.
func ToTaskEventResponse(event *domain.TaskEvent) TaskEventResponse {
	var oldStatus, newStatus *string
	if event.OldStatus != nil {
		s := string(*event.OldStatus)
		oldStatus = &s
	}
	if event.NewStatus != nil {
		s := string(*event.NewStatus)
		newStatus = &s
	}

	return TaskEventResponse{
		ID:        event.ID,
		TaskID:    event.TaskID,
		RequestID: event.RequestID,
		Type:      string(event.Type),
		ActorID:   event.ActorID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
		Reason:    event.Reason,
		CreatedAt: event.CreatedAt,
	}
}

// ToStatsResponse converts repository stats to StatsResponse.
func ToStatsResponse(period string, start *time.Time, end time.Time, stats *repository.ApprovalStatsResult) StatsResponse {
	return StatsResponse{
		Period:                   period,
		PeriodStart:              start,
		PeriodEnd:                end,
		TasksByApprovalStatus:    stats.TasksByApprovalStatus,
		RequestsByOutcome:        stats.RequestsByOutcome,
		EscalationsSent:          stats.EscalationsSent,
		AvgResolutionTimeMinutes: stats.AvgResolutionSeconds / 60,
	}
}
