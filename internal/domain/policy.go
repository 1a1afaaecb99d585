package domain

import "time"

// ChecklistItemTemplate describes a checklist item created for tasks entering approval.
type ChecklistItemTemplate struct {
	Name     string `json:"name" yaml:"name"`
	Required bool   `json:"required" yaml:"required"`
}

// EscalationTarget describes who receives escalation reminders.
type EscalationTarget struct {
	Roles         []Role   `json:"roles,omitempty" yaml:"roles,omitempty"`
	SpecificUsers []string `json:"specificUsers,omitempty" yaml:"specificUsers,omitempty"`
}

// IsEmpty reports whether no recipient was specified.
func (e EscalationTarget) IsEmpty() bool {
	return len(e.Roles) == 0 && len(e.SpecificUsers) == 0
}

// RuleConditions restricts which tasks a rule applies to.
// Every empty or nil field matches any task.
type RuleConditions struct {
	TaskTypes      []TaskType     `json:"taskTypes,omitempty" yaml:"taskTypes,omitempty"`
	Priorities     []TaskPriority `json:"priorities,omitempty" yaml:"priorities,omitempty"`
	StoryPointsMin *int           `json:"storyPointsMin,omitempty" yaml:"storyPointsMin,omitempty"`
	StoryPointsMax *int           `json:"storyPointsMax,omitempty" yaml:"storyPointsMax,omitempty"`
	Assignees      []string       `json:"assignees,omitempty" yaml:"assignees,omitempty"`
	Labels         []string       `json:"labels,omitempty" yaml:"labels,omitempty"`
}

// RuleActions defines the approval requirements applied by a matching rule.
type RuleActions struct {
	RequireApproval       bool             `json:"requireApproval" yaml:"requireApproval"`
	Approvers             Approvers        `json:"approvers" yaml:"approvers"`
	AutoApprove           bool             `json:"autoApprove" yaml:"autoApprove"`
	AutoApproveAfterHours int              `json:"autoApproveAfterHours,omitempty" yaml:"autoApproveAfterHours,omitempty"`
	Escalate              bool             `json:"escalate" yaml:"escalate"`
	EscalateAfterHours    int              `json:"escalateAfterHours,omitempty" yaml:"escalateAfterHours,omitempty"`
	EscalateTo            EscalationTarget `json:"escalateTo" yaml:"escalateTo"`
}

// Rule maps task conditions to approval actions. Lower priority evaluates first.
type Rule struct {
	Name       string         `json:"name" yaml:"name"`
	Priority   int            `json:"priority" yaml:"priority"`
	Enabled    bool           `json:"enabled" yaml:"enabled"`
	Conditions RuleConditions `json:"conditions" yaml:"conditions"`
	Actions    RuleActions    `json:"actions" yaml:"actions"`
}

// Policy is the per-project approval configuration.
type Policy struct {
	ProjectID                   string                                `json:"projectId" yaml:"-"`
	Enabled                     bool                                  `json:"enabled" yaml:"enabled"`
	RequireApprovalForTaskTypes []TaskType                            `json:"requireApprovalForTaskTypes" yaml:"requireApprovalForTaskTypes"`
	AutoApproveEnabled          bool                                  `json:"autoApproveEnabled" yaml:"autoApproveEnabled"`
	AutoApproveAfterHours       int                                   `json:"autoApproveAfterHours" yaml:"autoApproveAfterHours"`
	AutoApproveSkipsChecklist   bool                                  `json:"autoApproveSkipsChecklist" yaml:"autoApproveSkipsChecklist"`
	EscalationEnabled           bool                                  `json:"escalationEnabled" yaml:"escalationEnabled"`
	EscalationAfterHours        int                                   `json:"escalationAfterHours" yaml:"escalationAfterHours"`
	Rules                       []Rule                                `json:"rules" yaml:"rules"`
	ChecklistTemplates          map[TaskType][]ChecklistItemTemplate `json:"checklistTemplates" yaml:"checklistTemplates"`
	UpdatedAt                   time.Time                             `json:"updatedAt" yaml:"-"`
}

// Default policy hour values used when a project has no stored policy.
const (
	DefaultAutoApproveAfterHours = 72
	DefaultEscalationAfterHours  = 24
)

// DefaultPolicy returns the policy synthesized for projects without a stored one.
func DefaultPolicy(projectID string) *Policy {
	return &Policy{
		ProjectID:                   projectID,
		Enabled:                     false,
		RequireApprovalForTaskTypes: []TaskType{},
		AutoApproveEnabled:          false,
		AutoApproveAfterHours:       DefaultAutoApproveAfterHours,
		EscalationEnabled:           false,
		EscalationAfterHours:        DefaultEscalationAfterHours,
		Rules:                       []Rule{},
		ChecklistTemplates: map[TaskType][]ChecklistItemTemplate{
			TaskTypeStory: {
				{Name: "Acceptance criteria met", Required: true},
				{Name: "Code reviewed", Required: true},
				{Name: "Documentation updated", Required: false},
			},
			TaskTypeTask: {
				{Name: "Work completed as described", Required: true},
				{Name: "Tests added or updated", Required: false},
			},
			TaskTypeBug: {
				{Name: "Root cause identified", Required: true},
				{Name: "Fix verified", Required: true},
				{Name: "Regression test added", Required: false},
			},
		},
	}
}
