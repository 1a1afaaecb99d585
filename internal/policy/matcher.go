// Package policy resolves per-project approval policies into concrete requirements.
// Everything here is a pure function of its inputs.
package policy

import (
	"cmp"
	"slices"

	"github.com/mtlprog/taskgate/internal/domain"
)

// DefaultRuleName names the rule synthesized from policy-level defaults.
const DefaultRuleName = "default"

// EffectiveRule is the resolved set of approval requirements for one task.
type EffectiveRule struct {
	RuleName              string
	FromDefault           bool
	RequireApproval       bool
	Approvers             domain.Approvers
	AutoApprove           bool
	AutoApproveAfterHours int
	Escalate              bool
	EscalateAfterHours    int
	EscalateTo            domain.EscalationTarget
	SkipChecklist         bool
}

// Resolve returns the first enabled rule, by ascending priority, whose conditions all hold
// for the task. Policy defaults act as an implicit last rule that matches every task.
func Resolve(task *domain.Task, p *domain.Policy) EffectiveRule {
	if p == nil || !p.Enabled {
		return EffectiveRule{RuleName: DefaultRuleName, FromDefault: true}
	}

	for _, rule := range orderedRules(p, task) {
		if !Matches(task, rule.Conditions) {
			continue
		}
		return EffectiveRule{
			RuleName:              rule.Name,
			FromDefault:           rule.Name == DefaultRuleName && rule.Priority == defaultRulePriority,
			RequireApproval:       rule.Actions.RequireApproval,
			Approvers:             rule.Actions.Approvers,
			AutoApprove:           rule.Actions.AutoApprove,
			AutoApproveAfterHours: rule.Actions.AutoApproveAfterHours,
			Escalate:              rule.Actions.Escalate,
			EscalateAfterHours:    rule.Actions.EscalateAfterHours,
			EscalateTo:            rule.Actions.EscalateTo,
			SkipChecklist:         p.AutoApproveSkipsChecklist,
		}
	}

	// unreachable: the synthetic default rule has no conditions
	return EffectiveRule{RuleName: DefaultRuleName, FromDefault: true}
}

const defaultRulePriority = int(^uint(0) >> 1)

// orderedRules returns enabled rules stable-sorted by priority with the default rule appended.
func orderedRules(p *domain.Policy, task *domain.Task) []domain.Rule {
	rules := make([]domain.Rule, 0, len(p.Rules)+1)
	for _, rule := range p.Rules {
		if rule.Enabled {
			rules = append(rules, rule)
		}
	}
	slices.SortStableFunc(rules, func(a, b domain.Rule) int {
		return cmp.Compare(a.Priority, b.Priority)
	})
	return append(rules, defaultRule(p, task))
}

func defaultRule(p *domain.Policy, task *domain.Task) domain.Rule {
	return domain.Rule{
		Name:     DefaultRuleName,
		Priority: defaultRulePriority,
		Enabled:  true,
		Actions: domain.RuleActions{
			RequireApproval:       slices.Contains(p.RequireApprovalForTaskTypes, task.Type),
			AutoApprove:           p.AutoApproveEnabled,
			AutoApproveAfterHours: p.AutoApproveAfterHours,
			Escalate:              p.EscalationEnabled,
			EscalateAfterHours:    p.EscalationAfterHours,
		},
	}
}

// Matches reports whether every non-empty condition holds for the task.
func Matches(task *domain.Task, c domain.RuleConditions) bool {
	return matchTaskType(task, c) &&
		matchPriority(task, c) &&
		matchStoryPoints(task, c) &&
		matchAssignee(task, c) &&
		matchLabels(task, c)
}

func matchTaskType(task *domain.Task, c domain.RuleConditions) bool {
	return len(c.TaskTypes) == 0 || slices.Contains(c.TaskTypes, task.Type)
}

func matchPriority(task *domain.Task, c domain.RuleConditions) bool {
	return len(c.Priorities) == 0 || slices.Contains(c.Priorities, task.Priority)
}

func matchStoryPoints(task *domain.Task, c domain.RuleConditions) bool {
	if c.StoryPointsMin == nil && c.StoryPointsMax == nil {
		return true
	}
	if task.StoryPoints == nil {
		return false
	}
	points := *task.StoryPoints
	if c.StoryPointsMin != nil && points < *c.StoryPointsMin {
		return false
	}
	if c.StoryPointsMax != nil && points > *c.StoryPointsMax {
		return false
	}
	return true
}

func matchAssignee(task *domain.Task, c domain.RuleConditions) bool {
	if len(c.Assignees) == 0 {
		return true
	}
	return task.AssigneeID != nil && slices.Contains(c.Assignees, *task.AssigneeID)
}

// matchLabels requires the task to carry at least one of the listed labels.
func matchLabels(task *domain.Task, c domain.RuleConditions) bool {
	if len(c.Labels) == 0 {
		return true
	}
	return slices.ContainsFunc(c.Labels, task.HasLabel)
}
