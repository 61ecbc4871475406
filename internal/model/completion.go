package model

import "time"

// Completion records whether a habit was performed on a given day.
// Date is a calendar day formatted as YYYY-MM-DD.
type Completion struct {
	ID        string    `json:"id"`
	HabitID   string    `json:"habit_id"`
	UserID    string    `json:"user_id"`
	Date      string    `json:"date"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SubHabitCompletion struct {
	ID         string    `json:"id"`
	SubHabitID string    `json:"sub_habit_id"`
	UserID     string    `json:"user_id"`
	Date       string    `json:"date"`
	Completed  bool      `json:"completed"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
