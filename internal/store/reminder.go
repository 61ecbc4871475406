package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/habitd/internal/model"
)

// ReminderStore scopes every query to the owning user.
type ReminderStore struct {
	db *sql.DB
}

func NewReminderStore(db *sql.DB) *ReminderStore {
	return &ReminderStore{db: db}
}

func scanReminder(scanner interface{ Scan(...any) error }) (*model.Reminder, error) {
	var r model.Reminder
	err := scanner.Scan(&r.ID, &r.UserID, &r.Text, &r.DueDate, &r.Completed, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

const reminderCols = `id, user_id, text, due_date, completed, created_at`

func (s *ReminderStore) Create(ctx context.Context, userID, text string, dueDate time.Time, completed bool) (*model.Reminder, error) {
	id := newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reminders (id, user_id, text, due_date, completed) VALUES (?, ?, ?, ?, ?)`,
		id, userID, text, dueDate.UTC(), completed,
	)
	if err != nil {
		return nil, fmt.Errorf("insert reminder: %w", err)
	}
	return s.Get(ctx, userID, id)
}

func (s *ReminderStore) Get(ctx context.Context, userID, id string) (*model.Reminder, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+reminderCols+` FROM reminders WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	r, err := scanReminder(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reminder: %w", err)
	}
	return r, nil
}

func (s *ReminderStore) ListByUser(ctx context.Context, userID string) ([]model.Reminder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reminderCols+` FROM reminders WHERE user_id = ? ORDER BY due_date ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer rows.Close()

	var reminders []model.Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		reminders = append(reminders, *r)
	}
	return reminders, rows.Err()
}

// Update replaces every mutable field. It returns nil if the reminder does not
// exist for userID.
func (s *ReminderStore) Update(ctx context.Context, userID, id, text string, dueDate time.Time, completed bool) (*model.Reminder, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE reminders SET text = ?, due_date = ?, completed = ? WHERE id = ? AND user_id = ?`,
		text, dueDate.UTC(), completed, id, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("update reminder: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	return s.Get(ctx, userID, id)
}

func (s *ReminderStore) Delete(ctx context.Context, userID, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM reminders WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("delete reminder: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// ListDue returns open reminders that fell due in (since, until] and whose
// owners have notifications enabled, oldest first.
func (s *ReminderStore) ListDue(ctx context.Context, since, until time.Time) ([]model.Reminder, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.user_id, r.text, r.due_date, r.completed, r.created_at
		 FROM reminders r JOIN users u ON u.id = r.user_id
		 WHERE r.completed = 0 AND u.notifications_enabled = 1
		   AND r.due_date > ? AND r.due_date <= ?
		 ORDER BY r.due_date ASC`,
		since.UTC(), until.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("list due reminders: %w", err)
	}
	defer rows.Close()

	var reminders []model.Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		reminders = append(reminders, *r)
	}
	return reminders, rows.Err()
}
