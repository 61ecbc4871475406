package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/habitd/internal/model"
)

// OwnerKind selects whether daily statuses and attributes hang off tasks or sub-tasks.
type OwnerKind int

const (
	OwnerTask OwnerKind = iota
	OwnerSubTask
)

func (k OwnerKind) statusTable() (table, fk string) {
	if k == OwnerSubTask {
		return "sub_task_statuses", "sub_task_id"
	}
	return "task_statuses", "task_id"
}

func (k OwnerKind) attributeTable() (table, fk string) {
	if k == OwnerSubTask {
		return "sub_task_attributes", "sub_task_id"
	}
	return "task_attributes", "task_id"
}

// TaskDetailStore holds the daily statuses and attributes of one owner kind.
type TaskDetailStore struct {
	db   *sql.DB
	kind OwnerKind
}

func NewTaskDetailStore(db *sql.DB, kind OwnerKind) *TaskDetailStore {
	return &TaskDetailStore{db: db, kind: kind}
}

// --- Daily status methods ---

func scanStatus(scanner interface{ Scan(...any) error }) (*model.DailyStatus, error) {
	var st model.DailyStatus
	err := scanner.Scan(&st.ID, &st.OwnerID, &st.Date, &st.CompletionValue, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// UpsertStatus sets the completion value for an owner and date.
func (s *TaskDetailStore) UpsertStatus(ctx context.Context, ownerID, date, value string) (*model.DailyStatus, error) {
	table, fk := s.kind.statusTable()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO `+table+` (id, `+fk+`, date, completion_value) VALUES (?, ?, ?, ?)
		 ON CONFLICT (`+fk+`, date) DO UPDATE SET completion_value = excluded.completion_value, updated_at = CURRENT_TIMESTAMP`,
		newID(), ownerID, date, value,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert status: %w", err)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, `+fk+`, date, completion_value, created_at, updated_at FROM `+table+` WHERE `+fk+` = ? AND date = ?`,
		ownerID, date,
	)
	return scanStatus(row)
}

func (s *TaskDetailStore) ListStatuses(ctx context.Context, ownerID string) ([]model.DailyStatus, error) {
	table, fk := s.kind.statusTable()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, `+fk+`, date, completion_value, created_at, updated_at FROM `+table+` WHERE `+fk+` = ? ORDER BY date DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list statuses: %w", err)
	}
	defer rows.Close()

	var statuses []model.DailyStatus
	for rows.Next() {
		st, err := scanStatus(rows)
		if err != nil {
			return nil, fmt.Errorf("scan status: %w", err)
		}
		statuses = append(statuses, *st)
	}
	return statuses, rows.Err()
}

// --- Attribute methods ---

func scanAttribute(scanner interface{ Scan(...any) error }) (*model.Attribute, error) {
	var a model.Attribute
	err := scanner.Scan(&a.ID, &a.OwnerID, &a.Key, &a.Value, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// SetAttribute creates or replaces the value stored under key.
func (s *TaskDetailStore) SetAttribute(ctx context.Context, ownerID, key, value string) (*model.Attribute, error) {
	table, fk := s.kind.attributeTable()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO `+table+` (id, `+fk+`, attribute_key, attribute_value) VALUES (?, ?, ?, ?)
		 ON CONFLICT (`+fk+`, attribute_key) DO UPDATE SET attribute_value = excluded.attribute_value, updated_at = CURRENT_TIMESTAMP`,
		newID(), ownerID, key, value,
	)
	if err != nil {
		return nil, fmt.Errorf("set attribute: %w", err)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, `+fk+`, attribute_key, attribute_value, created_at, updated_at FROM `+table+` WHERE `+fk+` = ? AND attribute_key = ?`,
		ownerID, key,
	)
	return scanAttribute(row)
}

func (s *TaskDetailStore) ListAttributes(ctx context.Context, ownerID string) ([]model.Attribute, error) {
	table, fk := s.kind.attributeTable()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, `+fk+`, attribute_key, attribute_value, created_at, updated_at FROM `+table+` WHERE `+fk+` = ? ORDER BY attribute_key ASC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list attributes: %w", err)
	}
	defer rows.Close()

	var attrs []model.Attribute
	for rows.Next() {
		a, err := scanAttribute(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attribute: %w", err)
		}
		attrs = append(attrs, *a)
	}
	return attrs, rows.Err()
}

func (s *TaskDetailStore) DeleteAttribute(ctx context.Context, ownerID, key string) (bool, error) {
	table, fk := s.kind.attributeTable()
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM `+table+` WHERE `+fk+` = ? AND attribute_key = ?`,
		ownerID, key,
	)
	if err != nil {
		return false, fmt.Errorf("delete attribute: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
