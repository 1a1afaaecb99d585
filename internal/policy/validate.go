package policy

import (
	"fmt"
	"strings"

	"github.com/mtlprog/taskgate/internal/domain"
)

const maxRules = 100

// Validate rejects malformed policies before they are stored.
// Matching never fails, so every structural check happens here.
func Validate(p *domain.Policy) error {
	if p.AutoApproveAfterHours <= 0 {
		return fmt.Errorf("%w: autoApproveAfterHours must be positive, got %d", domain.ErrValidation, p.AutoApproveAfterHours)
	}
	if p.EscalationAfterHours <= 0 {
		return fmt.Errorf("%w: escalationAfterHours must be positive, got %d", domain.ErrValidation, p.EscalationAfterHours)
	}

	for _, t := range p.RequireApprovalForTaskTypes {
		if !t.IsValid() {
			return fmt.Errorf("%w: unknown task type %q in requireApprovalForTaskTypes", domain.ErrValidation, t)
		}
	}

	if len(p.Rules) > maxRules {
		return fmt.Errorf("%w: at most %d rules allowed, got %d", domain.ErrValidation, maxRules, len(p.Rules))
	}

	names := make(map[string]bool, len(p.Rules))
	for i := range p.Rules {
		rule := &p.Rules[i]
		if err := validateRule(rule); err != nil {
			return err
		}
		if names[rule.Name] {
			return fmt.Errorf("%w: duplicate rule name %q", domain.ErrValidation, rule.Name)
		}
		names[rule.Name] = true
	}

	for taskType, templates := range p.ChecklistTemplates {
		if !taskType.IsValid() {
			return fmt.Errorf("%w: unknown task type %q in checklistTemplates", domain.ErrValidation, taskType)
		}
		seen := make(map[string]bool, len(templates))
		for _, tmpl := range templates {
			name := strings.TrimSpace(tmpl.Name)
			if name == "" {
				return fmt.Errorf("%w: checklist template for %s has an empty name", domain.ErrValidation, taskType)
			}
			if seen[name] {
				return fmt.Errorf("%w: duplicate checklist item %q for %s", domain.ErrValidation, name, taskType)
			}
			seen[name] = true
		}
	}

	return nil
}

func validateRule(rule *domain.Rule) error {
	name := strings.TrimSpace(rule.Name)
	if name == "" {
		return fmt.Errorf("%w: rule name is required", domain.ErrValidation)
	}
	if name == DefaultRuleName {
		return fmt.Errorf("%w: rule name %q is reserved", domain.ErrValidation, DefaultRuleName)
	}

	c := rule.Conditions
	for _, t := range c.TaskTypes {
		if !t.IsValid() {
			return fmt.Errorf("%w: rule %q: unknown task type %q", domain.ErrValidation, name, t)
		}
	}
	for _, pr := range c.Priorities {
		if !pr.IsValid() {
			return fmt.Errorf("%w: rule %q: unknown priority %q", domain.ErrValidation, name, pr)
		}
	}
	if c.StoryPointsMin != nil && *c.StoryPointsMin < 0 {
		return fmt.Errorf("%w: rule %q: storyPointsMin must not be negative", domain.ErrValidation, name)
	}
	if c.StoryPointsMax != nil && *c.StoryPointsMax < 0 {
		return fmt.Errorf("%w: rule %q: storyPointsMax must not be negative", domain.ErrValidation, name)
	}
	if c.StoryPointsMin != nil && c.StoryPointsMax != nil && *c.StoryPointsMin > *c.StoryPointsMax {
		return fmt.Errorf("%w: rule %q: storyPointsMin %d exceeds storyPointsMax %d",
			domain.ErrValidation, name, *c.StoryPointsMin, *c.StoryPointsMax)
	}

	a := rule.Actions
	if a.AutoApprove && a.AutoApproveAfterHours <= 0 {
		return fmt.Errorf("%w: rule %q: autoApproveAfterHours must be positive", domain.ErrValidation, name)
	}
	if a.Escalate && a.EscalateAfterHours <= 0 {
		return fmt.Errorf("%w: rule %q: escalateAfterHours must be positive", domain.ErrValidation, name)
	}
	if a.AutoApproveAfterHours < 0 || a.EscalateAfterHours < 0 {
		return fmt.Errorf("%w: rule %q: hour counts must not be negative", domain.ErrValidation, name)
	}
	for _, role := range a.Approvers.Roles {
		if !role.IsValid() {
			return fmt.Errorf("%w: rule %q: unknown approver role %q", domain.ErrValidation, name, role)
		}
	}
	for _, role := range a.EscalateTo.Roles {
		if !role.IsValid() {
			return fmt.Errorf("%w: rule %q: unknown escalation role %q", domain.ErrValidation, name, role)
		}
	}

	return nil
}
