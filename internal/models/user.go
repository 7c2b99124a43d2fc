package models

import "time"

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// StoredTimeLayout is the browser toISOString format: UTC, milliseconds
const StoredTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// User represents a registered user row
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	Password     string    `json:"-"` // Not serialized
	Role         string    `json:"role"`
	RegisteredAt time.Time `json:"registered_at"`
}

// StoredUser is the record kept in client local storage
type StoredUser struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	Phone        string   `json:"phone"`
	Password     string   `json:"password,omitempty"`
	Role         string   `json:"role"`
	RegisteredAt string   `json:"registeredAt"`
	Services     []string `json:"services"`
}

// IsAdmin reports whether the stored user has the admin role
func (u *StoredUser) IsAdmin() bool {
	return u.Role == RoleAdmin
}
