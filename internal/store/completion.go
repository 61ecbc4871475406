package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/habitd/internal/model"
)

type CompletionStore struct {
	db *sql.DB
}

func NewCompletionStore(db *sql.DB) *CompletionStore {
	return &CompletionStore{db: db}
}

func scanCompletion(scanner interface{ Scan(...any) error }) (*model.Completion, error) {
	var c model.Completion
	err := scanner.Scan(&c.ID, &c.HabitID, &c.UserID, &c.Date, &c.Completed, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

const completionCols = `id, habit_id, user_id, date, completed, created_at, updated_at`

// Create inserts a completion. A second record for the same habit and date
// yields ErrDuplicate.
func (s *CompletionStore) Create(ctx context.Context, c model.Completion) (*model.Completion, error) {
	id := newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO completions (id, habit_id, user_id, date, completed) VALUES (?, ?, ?, ?, ?)`,
		id, c.HabitID, c.UserID, c.Date, c.Completed,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("insert completion: %w", ErrDuplicate)
		}
		return nil, fmt.Errorf("insert completion: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *CompletionStore) GetByID(ctx context.Context, id string) (*model.Completion, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+completionCols+` FROM completions WHERE id = ?`, id)
	c, err := scanCompletion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get completion: %w", err)
	}
	return c, nil
}

func (s *CompletionStore) getByHabitDate(ctx context.Context, habitID, date string) (*model.Completion, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+completionCols+` FROM completions WHERE habit_id = ? AND date = ?`,
		habitID, date,
	)
	c, err := scanCompletion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get completion by date: %w", err)
	}
	return c, nil
}

// ListByHabit returns the habit's completions newest first. Empty from/to
// leave that end of the date range open.
func (s *CompletionStore) ListByHabit(ctx context.Context, habitID, from, to string) ([]model.Completion, error) {
	query := `SELECT ` + completionCols + ` FROM completions WHERE habit_id = ?`
	args := []any{habitID}
	if from != "" {
		query += ` AND date >= ?`
		args = append(args, from)
	}
	if to != "" {
		query += ` AND date <= ?`
		args = append(args, to)
	}
	query += ` ORDER BY date DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	defer rows.Close()

	var completions []model.Completion
	for rows.Next() {
		c, err := scanCompletion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		completions = append(completions, *c)
	}
	return completions, rows.Err()
}

// SetCompleted updates the completed flag in place. It returns nil if the
// completion does not exist.
func (s *CompletionStore) SetCompleted(ctx context.Context, id string, completed bool) (*model.Completion, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE completions SET completed = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		completed, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update completion: %w", err)
	}
	return s.GetByID(ctx, id)
}

// Upsert records the completed flag for a habit and date, creating the record
// if needed and updating it otherwise.
func (s *CompletionStore) Upsert(ctx context.Context, userID, habitID, date string, completed bool) (*model.Completion, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO completions (id, habit_id, user_id, date, completed) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (habit_id, date) DO UPDATE SET completed = excluded.completed, updated_at = CURRENT_TIMESTAMP`,
		newID(), habitID, userID, date, completed,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert completion: %w", err)
	}
	return s.getByHabitDate(ctx, habitID, date)
}

// CompletedDates returns the dates on which the habit was completed, newest first.
func (s *CompletionStore) CompletedDates(ctx context.Context, userID, habitID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date FROM completions WHERE user_id = ? AND habit_id = ? AND completed = 1 ORDER BY date DESC`,
		userID, habitID,
	)
	if err != nil {
		return nil, fmt.Errorf("list completed dates: %w", err)
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("scan date: %w", err)
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// PrepareDay makes sure every habit has a completion record for date, adding
// a not-completed record where one is missing. Existing records are never
// modified. It returns the number of records created.
func (s *CompletionStore) PrepareDay(ctx context.Context, date string) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO completions (id, habit_id, user_id, date, completed)
		 SELECT `+sqlUUID+`, h.id, h.user_id, ?, 0 FROM habits h WHERE true
		 ON CONFLICT (habit_id, date) DO NOTHING`,
		date,
	)
	if err != nil {
		return 0, fmt.Errorf("prepare completions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func (s *CompletionStore) Delete(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM completions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete completion: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
