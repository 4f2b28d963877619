package models

import "time"

// Roles assignable to a user account.
const (
	RoleUser  = "User"
	RoleAdmin = "Admin"
)

// User represents a user account in the system.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	FirstName    *string   `json:"firstName,omitempty"`
	LastName     *string   `json:"lastName,omitempty"`
	Role         string    `json:"role"`
	IsAdmin      bool      `json:"isAdmin"`
	PasswordHash string    `json:"-"` // Never expose this to the client
	CreatedAt    time.Time `json:"createdAt"`
}
