package model

import "time"

// Completion modes for tasks and sub-tasks.
const (
	TaskModeAll     = "ALL"
	TaskModeAny     = "ANY"
	TaskModePartial = "PARTIAL"

	SubTaskModeFull    = "FULL"
	SubTaskModePartial = "PARTIAL"
)

// Daily status values.
const (
	StatusTrue    = "True"
	StatusFalse   = "False"
	StatusPartial = "Partial"
)

func ValidTaskMode(m string) bool {
	return m == TaskModeAll || m == TaskModeAny || m == TaskModePartial
}

func ValidSubTaskMode(m string) bool {
	return m == SubTaskModeFull || m == SubTaskModePartial
}

func ValidStatusValue(v string) bool {
	return v == StatusTrue || v == StatusFalse || v == StatusPartial
}

type Task struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	CompletionMode string    `json:"completion_mode"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type SubTask struct {
	ID             string    `json:"id"`
	TaskID         string    `json:"task_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	CompletionMode string    `json:"completion_mode"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TaskPatch is shared by tasks and sub-tasks.
type TaskPatch struct {
	Title          *string
	Description    *string
	CompletionMode *string
}

func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.CompletionMode == nil
}

// DailyStatus is the per-day completion value of a task or sub-task.
type DailyStatus struct {
	ID              string    `json:"id"`
	OwnerID         string    `json:"owner_id"`
	Date            string    `json:"date"`
	CompletionValue string    `json:"completion_value"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Attribute is a free-form key/value pair attached to a task or sub-task.
type Attribute struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Key       string    `json:"attribute_key"`
	Value     string    `json:"attribute_value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
