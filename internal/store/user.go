package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/habitd/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	err := scanner.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.NotificationsEnabled, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

const userCols = `id, email, name, password_hash, notifications_enabled, created_at, updated_at`

// Create inserts a user. A taken email yields ErrDuplicate.
func (s *UserStore) Create(ctx context.Context, email, name, passwordHash string) (*model.User, error) {
	id := newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, password_hash) VALUES (?, ?, ?, ?)`,
		id, email, name, passwordHash,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("insert user: %w", ErrDuplicate)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// Update applies the non-nil patch fields. It returns nil if the user does not exist.
func (s *UserStore) Update(ctx context.Context, id string, p model.UserPatch) (*model.User, error) {
	var set setClause
	if p.Email != nil {
		set.add("email", *p.Email)
	}
	if p.Name != nil {
		set.add("name", *p.Name)
	}
	if p.PasswordHash != nil {
		set.add("password_hash", *p.PasswordHash)
	}
	if p.NotificationsEnabled != nil {
		set.add("notifications_enabled", *p.NotificationsEnabled)
	}
	if set.empty() {
		return s.GetByID(ctx, id)
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET `+set.sql()+` WHERE id = ?`,
		append(set.args, id)...,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("update user: %w", ErrDuplicate)
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return s.GetByID(ctx, id)
}

// Delete removes a user and everything it owns. It reports whether a row was deleted.
func (s *UserStore) Delete(ctx context.Context, id string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete user: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
