package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/habitd/internal/model"
)

type HabitStore struct {
	db *sql.DB
}

func NewHabitStore(db *sql.DB) *HabitStore {
	return &HabitStore{db: db}
}

func scanHabit(scanner interface{ Scan(...any) error }) (*model.Habit, error) {
	var h model.Habit
	var category, color, icon, startDate, endDate sql.NullString

	err := scanner.Scan(
		&h.ID, &h.UserID, &h.Name, &h.Description, &h.SortIndex,
		&category, &color, &icon, &startDate, &endDate, &h.Archived,
		&h.CreatedAt, &h.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if category.Valid {
		h.Category = &category.String
	}
	if color.Valid {
		h.Color = &color.String
	}
	if icon.Valid {
		h.Icon = &icon.String
	}
	if startDate.Valid {
		h.StartDate = &startDate.String
	}
	if endDate.Valid {
		h.EndDate = &endDate.String
	}
	return &h, nil
}

const habitCols = `id, user_id, name, description, sort_index, category, color, icon, start_date, end_date, archived, created_at, updated_at`

func (s *HabitStore) Create(ctx context.Context, h model.Habit) (*model.Habit, error) {
	id := newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO habits (id, user_id, name, description, sort_index, category, color, icon, start_date, end_date, archived)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, h.UserID, h.Name, h.Description, h.SortIndex,
		nullableString(h.Category), nullableString(h.Color), nullableString(h.Icon),
		nullableString(h.StartDate), nullableString(h.EndDate), h.Archived,
	)
	if err != nil {
		return nil, fmt.Errorf("insert habit: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *HabitStore) GetByID(ctx context.Context, id string) (*model.Habit, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+habitCols+` FROM habits WHERE id = ?`, id)
	h, err := scanHabit(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get habit: %w", err)
	}
	return h, nil
}

// ListByUser returns the user's habits in display order.
func (s *HabitStore) ListByUser(ctx context.Context, userID string, includeArchived bool) ([]model.Habit, error) {
	query := `SELECT ` + habitCols + ` FROM habits WHERE user_id = ?`
	if !includeArchived {
		query += ` AND archived = 0`
	}
	query += ` ORDER BY sort_index ASC, name ASC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list habits: %w", err)
	}
	defer rows.Close()

	var habits []model.Habit
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan habit: %w", err)
		}
		habits = append(habits, *h)
	}
	return habits, rows.Err()
}

func (s *HabitStore) Update(ctx context.Context, id string, p model.HabitPatch) (*model.Habit, error) {
	var set setClause
	if p.Name != nil {
		set.add("name", *p.Name)
	}
	if p.Description != nil {
		set.add("description", *p.Description)
	}
	if p.SortIndex != nil {
		set.add("sort_index", *p.SortIndex)
	}
	if p.Category != nil {
		set.add("category", *p.Category)
	}
	if p.Color != nil {
		set.add("color", *p.Color)
	}
	if p.Icon != nil {
		set.add("icon", *p.Icon)
	}
	if p.StartDate != nil {
		set.add("start_date", *p.StartDate)
	}
	if p.EndDate != nil {
		set.add("end_date", *p.EndDate)
	}
	if p.Archived != nil {
		set.add("archived", *p.Archived)
	}
	if set.empty() {
		return s.GetByID(ctx, id)
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE habits SET `+set.sql()+` WHERE id = ?`,
		append(set.args, id)...,
	)
	if err != nil {
		return nil, fmt.Errorf("update habit: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *HabitStore) Delete(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM habits WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete habit: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// UpdateSortOrder assigns sort_index by position in ids. Habits not owned by
// userID are left untouched.
func (s *HabitStore) UpdateSortOrder(ctx context.Context, userID string, ids []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for i, id := range ids {
		if _, err := tx.ExecContext(ctx,
			`UPDATE habits SET sort_index = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ? AND user_id = ?`,
			i, id, userID,
		); err != nil {
			return fmt.Errorf("update sort order: %w", err)
		}
	}
	return tx.Commit()
}
