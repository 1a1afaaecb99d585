package policy

import (
	"github.com/google/uuid"
	"github.com/mtlprog/taskgate/internal/domain"
)

// Instantiate creates fresh unchecked checklist items from the policy templates for a task type.
// Task types without templates get an empty checklist.
func Instantiate(taskType domain.TaskType, p *domain.Policy) []domain.ChecklistItem {
	return MergeChecklist(nil, templatesFor(taskType, p))
}

// MergeChecklist combines an existing checklist with templates by item name.
// Existing items are never dropped and keep their checked state; items matching a template
// take its required flag; templates without a matching item are appended unchecked.
func MergeChecklist(existing []domain.ChecklistItem, templates []domain.ChecklistItemTemplate) []domain.ChecklistItem {
	merged := make([]domain.ChecklistItem, len(existing), len(existing)+len(templates))
	copy(merged, existing)

	index := make(map[string]int, len(merged))
	for i, item := range merged {
		index[item.Name] = i
	}

	for _, tmpl := range templates {
		if i, ok := index[tmpl.Name]; ok {
			merged[i].Required = tmpl.Required
			continue
		}
		index[tmpl.Name] = len(merged)
		merged = append(merged, domain.ChecklistItem{
			ID:       uuid.NewString(),
			Name:     tmpl.Name,
			Required: tmpl.Required,
		})
	}

	for i := range merged {
		merged[i].Position = i
	}
	return merged
}

// Progress summarizes checked and required items of a checklist.
func Progress(items []domain.ChecklistItem) domain.ChecklistProgress {
	var p domain.ChecklistProgress
	for _, item := range items {
		p.Total++
		if item.Checked {
			p.Checked++
		}
		if item.Required {
			p.RequiredTotal++
			if item.Checked {
				p.RequiredChecked++
			}
		}
	}
	return p
}

func templatesFor(taskType domain.TaskType, p *domain.Policy) []domain.ChecklistItemTemplate {
	if p == nil || p.ChecklistTemplates == nil {
		return nil
	}
	return p.ChecklistTemplates[taskType]
}
