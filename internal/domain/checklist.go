package domain

import "time"

// ChecklistItem is a completion condition attached to a task while it awaits approval.
type ChecklistItem struct {
	ID        string
	Name      string
	Required  bool
	Checked   bool
	CheckedBy *string
	CheckedAt *time.Time
	Position  int
}

// ChecklistProgress summarizes the checklist of a task.
type ChecklistProgress struct {
	Total           int
	Checked         int
	RequiredTotal   int
	RequiredChecked int
}

// Complete reports whether every required item is checked.
func (p ChecklistProgress) Complete() bool {
	return p.RequiredChecked == p.RequiredTotal
}

// Percent returns the share of checked items, 100 for an empty checklist.
func (p ChecklistProgress) Percent() int {
	if p.Total == 0 {
		return 100
	}
	return p.Checked * 100 / p.Total
}
