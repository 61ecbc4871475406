package model

import "time"

type User struct {
	ID                   string    `json:"id"`
	Email                string    `json:"email"`
	Name                 string    `json:"name"`
	PasswordHash         string    `json:"-"`
	NotificationsEnabled bool      `json:"notifications_enabled"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// UserPatch holds the fields of a partial user update. Nil fields are left unchanged.
type UserPatch struct {
	Email                *string
	Name                 *string
	PasswordHash         *string
	NotificationsEnabled *bool
}

func (p UserPatch) IsEmpty() bool {
	return p.Email == nil && p.Name == nil && p.PasswordHash == nil && p.NotificationsEnabled == nil
}
