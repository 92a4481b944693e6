package domain

import "time"

// User is a resource owner who can authenticate with username and password.
type User struct {
	ID           string
	Username     string
	PasswordHash string // argon2 encoded
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
