package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/habitd/internal/model"
)

type SubHabitStore struct {
	db *sql.DB
}

func NewSubHabitStore(db *sql.DB) *SubHabitStore {
	return &SubHabitStore{db: db}
}

func scanSubHabit(scanner interface{ Scan(...any) error }) (*model.SubHabit, error) {
	var sh model.SubHabit
	err := scanner.Scan(&sh.ID, &sh.HabitID, &sh.Name, &sh.Description, &sh.SortIndex, &sh.CreatedAt, &sh.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &sh, nil
}

const subHabitCols = `id, habit_id, name, description, sort_index, created_at, updated_at`

func (s *SubHabitStore) Create(ctx context.Context, habitID, name, description string, sortIndex int) (*model.SubHabit, error) {
	id := newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sub_habits (id, habit_id, name, description, sort_index) VALUES (?, ?, ?, ?, ?)`,
		id, habitID, name, description, sortIndex,
	)
	if err != nil {
		return nil, fmt.Errorf("insert sub-habit: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *SubHabitStore) GetByID(ctx context.Context, id string) (*model.SubHabit, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+subHabitCols+` FROM sub_habits WHERE id = ?`, id)
	sh, err := scanSubHabit(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get sub-habit: %w", err)
	}
	return sh, nil
}

func (s *SubHabitStore) ListByHabit(ctx context.Context, habitID string) ([]model.SubHabit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+subHabitCols+` FROM sub_habits WHERE habit_id = ? ORDER BY sort_index ASC, name ASC`,
		habitID,
	)
	if err != nil {
		return nil, fmt.Errorf("list sub-habits: %w", err)
	}
	defer rows.Close()

	var subHabits []model.SubHabit
	for rows.Next() {
		sh, err := scanSubHabit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sub-habit: %w", err)
		}
		subHabits = append(subHabits, *sh)
	}
	return subHabits, rows.Err()
}

func (s *SubHabitStore) Update(ctx context.Context, id string, p model.SubHabitPatch) (*model.SubHabit, error) {
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
	if set.empty() {
		return s.GetByID(ctx, id)
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE sub_habits SET `+set.sql()+` WHERE id = ?`,
		append(set.args, id)...,
	)
	if err != nil {
		return nil, fmt.Errorf("update sub-habit: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *SubHabitStore) Delete(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sub_habits WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete sub-habit: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// --- Completion methods ---

func scanSubHabitCompletion(scanner interface{ Scan(...any) error }) (*model.SubHabitCompletion, error) {
	var c model.SubHabitCompletion
	err := scanner.Scan(&c.ID, &c.SubHabitID, &c.UserID, &c.Date, &c.Completed, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

const subHabitCompletionCols = `id, sub_habit_id, user_id, date, completed, created_at, updated_at`

// UpsertCompletion records the completed flag for a sub-habit and date.
func (s *SubHabitStore) UpsertCompletion(ctx context.Context, userID, subHabitID, date string, completed bool) (*model.SubHabitCompletion, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sub_habit_completions (id, sub_habit_id, user_id, date, completed) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (sub_habit_id, date) DO UPDATE SET completed = excluded.completed, updated_at = CURRENT_TIMESTAMP`,
		newID(), subHabitID, userID, date, completed,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert sub-habit completion: %w", err)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+subHabitCompletionCols+` FROM sub_habit_completions WHERE sub_habit_id = ? AND date = ?`,
		subHabitID, date,
	)
	return scanSubHabitCompletion(row)
}

func (s *SubHabitStore) ListCompletions(ctx context.Context, subHabitID string) ([]model.SubHabitCompletion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+subHabitCompletionCols+` FROM sub_habit_completions WHERE sub_habit_id = ? ORDER BY date DESC`,
		subHabitID,
	)
	if err != nil {
		return nil, fmt.Errorf("list sub-habit completions: %w", err)
	}
	defer rows.Close()

	var completions []model.SubHabitCompletion
	for rows.Next() {
		c, err := scanSubHabitCompletion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sub-habit completion: %w", err)
		}
		completions = append(completions, *c)
	}
	return completions, rows.Err()
}
