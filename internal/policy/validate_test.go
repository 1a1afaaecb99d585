package policy_test

import (
	"testing"

	"github.com/mtlprog/taskgate/internal/domain"
	"github.com/mtlprog/taskgate/internal/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_DefaultPolicyIsValid(t *testing.T) {
	require.NoError(t, policy.Validate(domain.DefaultPolicy("project-1")))
}

func TestValidate_RejectsMalformedPolicies(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *domain.Policy)
	}{
		{"zero auto-approve hours", func(p *domain.Policy) { p.AutoApproveAfterHours = 0 }},
		{"negative escalation hours", func(p *domain.Policy) { p.EscalationAfterHours = -4 }},
		{"unknown task type", func(p *domain.Policy) {
			p.RequireApprovalForTaskTypes = []domain.TaskType{"FEATURE"}
		}},
		{"rule without name", func(p *domain.Policy) {
			p.Rules = []domain.Rule{{Name: "  ", Enabled: true}}
		}},
		{"reserved rule name", func(p *domain.Policy) {
			p.Rules = []domain.Rule{{Name: policy.DefaultRuleName, Enabled: true}}
		}},
		{"duplicate rule names", func(p *domain.Policy) {
			p.Rules = []domain.Rule{{Name: "r"}, {Name: "r"}}
		}},
		{"auto-approve rule without hours", func(p *domain.Policy) {
			p.Rules = []domain.Rule{{Name: "r", Actions: domain.RuleActions{AutoApprove: true}}}
		}},
		{"escalating rule without hours", func(p *domain.Policy) {
			p.Rules = []domain.Rule{{Name: "r", Actions: domain.RuleActions{Escalate: true}}}
		}},
		{"negative rule hours", func(p *domain.Policy) {
			p.Rules = []domain.Rule{{Name: "r", Actions: domain.RuleActions{EscalateAfterHours: -1}}}
		}},
		{"inverted story point range", func(p *domain.Policy) {
			p.Rules = []domain.Rule{{Name: "r", Conditions: domain.RuleConditions{StoryPointsMin: intPtr(8), StoryPointsMax: intPtr(3)}}}
		}},
		{"negative story points", func(p *domain.Policy) {
			p.Rules = []domain.Rule{{Name: "r", Conditions: domain.RuleConditions{StoryPointsMin: intPtr(-1)}}}
		}},
		{"unknown priority", func(p *domain.Policy) {
			p.Rules = []domain.Rule{{Name: "r", Conditions: domain.RuleConditions{Priorities: []domain.TaskPriority{"URGENT"}}}}
		}},
		{"unknown approver role", func(p *domain.Policy) {
			p.Rules = []domain.Rule{{Name: "r", Actions: domain.RuleActions{Approvers: domain.Approvers{Roles: []domain.Role{"BOSS"}}}}}
		}},
		{"empty checklist item name", func(p *domain.Policy) {
			p.ChecklistTemplates[domain.TaskTypeTask] = []domain.ChecklistItemTemplate{{Name: ""}}
		}},
		{"duplicate checklist item", func(p *domain.Policy) {
			p.ChecklistTemplates[domain.TaskTypeTask] = []domain.ChecklistItemTemplate{{Name: "x"}, {Name: "x"}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := domain.DefaultPolicy("project-1")
			tt.mutate(p)

			err := policy.Validate(p)

			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestValidate_AllowsEscalationAfterAutoApproval(t *testing.T) {
	p := domain.DefaultPolicy("project-1")
	p.EscalationEnabled = true
	p.EscalationAfterHours = 100
	p.AutoApproveEnabled = true
	p.AutoApproveAfterHours = 48

	assert.NoError(t, policy.Validate(p))
}
