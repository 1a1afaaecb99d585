package policy_test

import (
	"testing"

	"github.com/mtlprog/taskgate/internal/domain"
	"github.com/mtlprog/taskgate/internal/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func enabledPolicy(rules ...domain.Rule) *domain.Policy {
	p := domain.DefaultPolicy("project-1")
	p.Enabled = true
	p.Rules = rules
	return p
}

func TestResolve_FirstMatchByPriorityWins(t *testing.T) {
	p := enabledPolicy(
		domain.Rule{
			Name: "late", Priority: 50, Enabled: true,
			Conditions: domain.RuleConditions{TaskTypes: []domain.TaskType{domain.TaskTypeStory}},
			Actions:    domain.RuleActions{RequireApproval: true, AutoApprove: true, AutoApproveAfterHours: 10},
		},
		domain.Rule{
			Name: "early", Priority: 5, Enabled: true,
			Conditions: domain.RuleConditions{TaskTypes: []domain.TaskType{domain.TaskTypeStory}},
			Actions:    domain.RuleActions{RequireApproval: true, AutoApprove: true, AutoApproveAfterHours: 48},
		},
	)
	task := &domain.Task{Type: domain.TaskTypeStory, Priority: domain.TaskPriorityMedium}

	rule := policy.Resolve(task, p)

	assert.Equal(t, "early", rule.RuleName)
	assert.False(t, rule.FromDefault)
	assert.Equal(t, 48, rule.AutoApproveAfterHours)
}

func TestResolve_EqualPrioritiesKeepDeclarationOrder(t *testing.T) {
	p := enabledPolicy(
		domain.Rule{Name: "first", Priority: 1, Enabled: true, Actions: domain.RuleActions{RequireApproval: true}},
		domain.Rule{Name: "second", Priority: 1, Enabled: true, Actions: domain.RuleActions{RequireApproval: false}},
	)
	task := &domain.Task{Type: domain.TaskTypeBug}

	for range 20 {
		assert.Equal(t, "first", policy.Resolve(task, p).RuleName)
	}
}

func TestResolve_SkipsDisabledRules(t *testing.T) {
	p := enabledPolicy(
		domain.Rule{Name: "off", Priority: 1, Enabled: false, Actions: domain.RuleActions{RequireApproval: true}},
		domain.Rule{Name: "on", Priority: 2, Enabled: true, Actions: domain.RuleActions{RequireApproval: true}},
	)

	assert.Equal(t, "on", policy.Resolve(&domain.Task{Type: domain.TaskTypeTask}, p).RuleName)
}

func TestResolve_EmptyConditionsMatchEveryTask(t *testing.T) {
	p := enabledPolicy(
		domain.Rule{
			Name: "bugs", Priority: 1, Enabled: true,
			Conditions: domain.RuleConditions{TaskTypes: []domain.TaskType{domain.TaskTypeBug}},
			Actions:    domain.RuleActions{RequireApproval: true},
		},
		domain.Rule{Name: "catch-all", Priority: 2, Enabled: true, Actions: domain.RuleActions{RequireApproval: true}},
	)

	assert.Equal(t, "bugs", policy.Resolve(&domain.Task{Type: domain.TaskTypeBug}, p).RuleName)
	assert.Equal(t, "catch-all", policy.Resolve(&domain.Task{Type: domain.TaskTypeStory}, p).RuleName)
	assert.Equal(t, "catch-all", policy.Resolve(&domain.Task{Type: domain.TaskTypeEpic, Labels: []string{"x"}}, p).RuleName)
}

func TestResolve_FallsBackToPolicyDefaults(t *testing.T) {
	p := enabledPolicy()
	p.RequireApprovalForTaskTypes = []domain.TaskType{domain.TaskTypeStory}
	p.AutoApproveEnabled = true
	p.AutoApproveAfterHours = 36
	p.EscalationEnabled = true
	p.EscalationAfterHours = 12

	story := policy.Resolve(&domain.Task{Type: domain.TaskTypeStory}, p)
	assert.True(t, story.FromDefault)
	assert.Equal(t, policy.DefaultRuleName, story.RuleName)
	assert.True(t, story.RequireApproval)
	assert.True(t, story.AutoApprove)
	assert.Equal(t, 36, story.AutoApproveAfterHours)
	assert.True(t, story.Escalate)
	assert.Equal(t, 12, story.EscalateAfterHours)
	assert.True(t, story.Approvers.IsEmpty())

	bug := policy.Resolve(&domain.Task{Type: domain.TaskTypeBug}, p)
	assert.True(t, bug.FromDefault)
	assert.False(t, bug.RequireApproval)
}

func TestResolve_DisabledPolicyNeverRequiresApproval(t *testing.T) {
	p := domain.DefaultPolicy("project-1")
	p.RequireApprovalForTaskTypes = []domain.TaskType{domain.TaskTypeStory}
	p.Rules = []domain.Rule{{Name: "all", Priority: 1, Enabled: true, Actions: domain.RuleActions{RequireApproval: true}}}

	rule := policy.Resolve(&domain.Task{Type: domain.TaskTypeStory}, p)

	assert.False(t, rule.RequireApproval)
	assert.True(t, rule.FromDefault)
}

func TestResolve_IsDeterministic(t *testing.T) {
	p := enabledPolicy(
		domain.Rule{Name: "a", Priority: 3, Enabled: true, Conditions: domain.RuleConditions{Labels: []string{"ui"}}, Actions: domain.RuleActions{RequireApproval: true}},
		domain.Rule{Name: "b", Priority: 3, Enabled: true, Conditions: domain.RuleConditions{Labels: []string{"api"}}, Actions: domain.RuleActions{RequireApproval: true}},
		domain.Rule{Name: "c", Priority: 1, Enabled: true, Conditions: domain.RuleConditions{StoryPointsMin: intPtr(13)}, Actions: domain.RuleActions{RequireApproval: true}},
	)
	task := &domain.Task{Type: domain.TaskTypeStory, Labels: []string{"api", "ui"}, StoryPoints: intPtr(5)}

	first := policy.Resolve(task, p)
	for range 50 {
		assert.Equal(t, first, policy.Resolve(task, p))
	}
	assert.Equal(t, "a", first.RuleName)
}

func TestMatches_Conditions(t *testing.T) {
	assignee := "user-1"
	task := &domain.Task{
		Type:        domain.TaskTypeStory,
		Priority:    domain.TaskPriorityHigh,
		StoryPoints: intPtr(5),
		AssigneeID:  &assignee,
		Labels:      []string{"backend", "payments"},
	}

	tests := []struct {
		name       string
		conditions domain.RuleConditions
		want       bool
	}{
		{"empty matches", domain.RuleConditions{}, true},
		{"task type hit", domain.RuleConditions{TaskTypes: []domain.TaskType{domain.TaskTypeBug, domain.TaskTypeStory}}, true},
		{"task type miss", domain.RuleConditions{TaskTypes: []domain.TaskType{domain.TaskTypeBug}}, false},
		{"priority hit", domain.RuleConditions{Priorities: []domain.TaskPriority{domain.TaskPriorityHigh}}, true},
		{"priority miss", domain.RuleConditions{Priorities: []domain.TaskPriority{domain.TaskPriorityLow}}, false},
		{"points within range", domain.RuleConditions{StoryPointsMin: intPtr(3), StoryPointsMax: intPtr(8)}, true},
		{"points on lower bound", domain.RuleConditions{StoryPointsMin: intPtr(5)}, true},
		{"points on upper bound", domain.RuleConditions{StoryPointsMax: intPtr(5)}, true},
		{"points below min", domain.RuleConditions{StoryPointsMin: intPtr(8)}, false},
		{"points above max", domain.RuleConditions{StoryPointsMax: intPtr(3)}, false},
		{"assignee hit", domain.RuleConditions{Assignees: []string{"user-1"}}, true},
		{"assignee miss", domain.RuleConditions{Assignees: []string{"user-2"}}, false},
		{"any label hit", domain.RuleConditions{Labels: []string{"frontend", "payments"}}, true},
		{"label miss", domain.RuleConditions{Labels: []string{"frontend"}}, false},
		{"all fields hit", domain.RuleConditions{
			TaskTypes:  []domain.TaskType{domain.TaskTypeStory},
			Priorities: []domain.TaskPriority{domain.TaskPriorityHigh},
			Assignees:  []string{"user-1"},
			Labels:     []string{"backend"},
		}, true},
		{"one field misses", domain.RuleConditions{
			TaskTypes: []domain.TaskType{domain.TaskTypeStory},
			Labels:    []string{"frontend"},
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.Matches(task, tt.conditions))
		})
	}
}

func TestMatches_UnsetTaskFieldsFailNonEmptyConditions(t *testing.T) {
	task := &domain.Task{Type: domain.TaskTypeTask}

	assert.False(t, policy.Matches(task, domain.RuleConditions{StoryPointsMax: intPtr(10)}))
	assert.False(t, policy.Matches(task, domain.RuleConditions{Assignees: []string{"user-1"}}))
	assert.False(t, policy.Matches(task, domain.RuleConditions{Labels: []string{"x"}}))
}

func TestResolve_CarriesChecklistSkipFlag(t *testing.T) {
	p := enabledPolicy(domain.Rule{Name: "all", Priority: 1, Enabled: true, Actions: domain.RuleActions{RequireApproval: true}})
	p.AutoApproveSkipsChecklist = true

	rule := policy.Resolve(&domain.Task{Type: domain.TaskTypeStory, AssigneeID: strPtr("u")}, p)

	require.True(t, rule.RequireApproval)
	assert.True(t, rule.SkipChecklist)
}
