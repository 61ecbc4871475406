package handler

import (
	"context"

	"github.com/dukerupert/habitd/internal/model"
)

// Repositories shared by the SQLite and MongoDB backends.

type UserRepository interface {
	Create(ctx context.Context, email, name, passwordHash string) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Update(ctx context.Context, id string, p model.UserPatch) (*model.User, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type HabitRepository interface {
	Create(ctx context.Context, h model.Habit) (*model.Habit, error)
	GetByID(ctx context.Context, id string) (*model.Habit, error)
	ListByUser(ctx context.Context, userID string, includeArchived bool) ([]model.Habit, error)
	Update(ctx context.Context, id string, p model.HabitPatch) (*model.Habit, error)
	Delete(ctx context.Context, id string) (bool, error)
	UpdateSortOrder(ctx context.Context, userID string, ids []string) error
}

type CompletionRepository interface {
	Create(ctx context.Context, c model.Completion) (*model.Completion, error)
	GetByID(ctx context.Context, id string) (*model.Completion, error)
	ListByHabit(ctx context.Context, habitID, from, to string) ([]model.Completion, error)
	SetCompleted(ctx context.Context, id string, completed bool) (*model.Completion, error)
	Upsert(ctx context.Context, userID, habitID, date string, completed bool) (*model.Completion, error)
	CompletedDates(ctx context.Context, userID, habitID string) ([]string, error)
	PrepareDay(ctx context.Context, date string) (int64, error)
	Delete(ctx context.Context, id string) (bool, error)
}
