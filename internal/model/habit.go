package model

import "time"

type Habit struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	SortIndex   int       `json:"sort_index"`
	Category    *string   `json:"category"`
	Color       *string   `json:"color"`
	Icon        *string   `json:"icon"`
	StartDate   *string   `json:"start_date"`
	EndDate     *string   `json:"end_date"`
	Archived    bool      `json:"archived"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HabitPatch holds the fields of a partial habit update. Nil fields are left unchanged.
type HabitPatch struct {
	Name        *string
	Description *string
	SortIndex   *int
	Category    *string
	Color       *string
	Icon        *string
	StartDate   *string
	EndDate     *string
	Archived    *bool
}

func (p HabitPatch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.SortIndex == nil &&
		p.Category == nil && p.Color == nil && p.Icon == nil &&
		p.StartDate == nil && p.EndDate == nil && p.Archived == nil
}

// Apply returns a copy of h with the patch fields set.
func (p HabitPatch) Apply(h Habit) Habit {
	if p.Name != nil {
		h.Name = *p.Name
	}
	if p.Description != nil {
		h.Description = *p.Description
	}
	if p.SortIndex != nil {
		h.SortIndex = *p.SortIndex
	}
	if p.Category != nil {
		h.Category = p.Category
	}
	if p.Color != nil {
		h.Color = p.Color
	}
	if p.Icon != nil {
		h.Icon = p.Icon
	}
	if p.StartDate != nil {
		h.StartDate = p.StartDate
	}
	if p.EndDate != nil {
		h.EndDate = p.EndDate
	}
	if p.Archived != nil {
		h.Archived = *p.Archived
	}
	return h
}

type SubHabit struct {
	ID          string    `json:"id"`
	HabitID     string    `json:"habit_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	SortIndex   int       `json:"sort_index"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type SubHabitPatch struct {
	Name        *string
	Description *string
	SortIndex   *int
}

func (p SubHabitPatch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.SortIndex == nil
}
