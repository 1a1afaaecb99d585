package repository

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/mtlprog/taskgate/internal/domain"
)

var checklistColumns = []string{
	"id", "task_id", "name", "required", "checked", "checked_by", "checked_at", "position",
}

// ReplaceChecklist stores the task's checklist as given, inserting new items and updating existing ones.
// Items absent from the list are removed.
func (r *TaskRepository) ReplaceChecklist(ctx context.Context, tx pgx.Tx, taskID string, items []domain.ChecklistItem) error {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}

	del := psql.Delete("checklist_items").Where(sq.Eq{"task_id": taskID})
	if len(ids) > 0 {
		del = del.Where(sq.NotEq{"id": ids})
	}
	query, args, err := del.ToSql()
	if err != nil {
		return fmt.Errorf("build ReplaceChecklist delete query for task %s: %w", taskID, err)
	}
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("delete checklist items: %w", err)
	}

	if len(items) == 0 {
		return nil
	}

	insert := psql.Insert("checklist_items").Columns(checklistColumns...)
	for _, item := range items {
		insert = insert.Values(item.ID, taskID, item.Name, item.Required, item.Checked, item.CheckedBy, item.CheckedAt, item.Position)
	}
	query, args, err = insert.
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			required = EXCLUDED.required,
			checked = EXCLUDED.checked,
			checked_by = EXCLUDED.checked_by,
			checked_at = EXCLUDED.checked_at,
			position = EXCLUDED.position`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build ReplaceChecklist upsert query for task %s: %w", taskID, err)
	}
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert checklist items: %w", err)
	}

	return nil
}

// UpdateChecklistItem writes the checked state of one item.
func (r *TaskRepository) UpdateChecklistItem(ctx context.Context, tx pgx.Tx, taskID string, item *domain.ChecklistItem) error {
	query, args, err := psql.
		Update("checklist_items").
		Set("checked", item.Checked).
		Set("checked_by", item.CheckedBy).
		Set("checked_at", item.CheckedAt).
		Where(sq.Eq{"id": item.ID, "task_id": taskID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build UpdateChecklistItem query for item %s: %w", item.ID, err)
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update checklist item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: item %s on task %s", domain.ErrChecklistItemNotFound, item.ID, taskID)
	}

	return nil
}

// listChecklist returns checklist items grouped by task, ordered by position.
func (r *TaskRepository) listChecklist(ctx context.Context, q querier, taskIDs []string) (map[string][]domain.ChecklistItem, error) {
	query, args, err := psql.
		Select(checklistColumns...).
		From("checklist_items").
		Where(sq.Eq{"task_id": taskIDs}).
		OrderBy("task_id", "position ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build listChecklist query: %w", err)
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query checklist items: %w", err)
	}
	defer rows.Close()

	items := make(map[string][]domain.ChecklistItem, len(taskIDs))
	for rows.Next() {
		var item domain.ChecklistItem
		var taskID string
		err := rows.Scan(
			&item.ID,
			&taskID,
			&item.Name,
			&item.Required,
			&item.Checked,
			&item.CheckedBy,
			&item.CheckedAt,
			&item.Position,
		)
		if err != nil {
			return nil, fmt.Errorf("scan checklist item: %w", err)
		}
		items[taskID] = append(items[taskID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	return items, nil
}
