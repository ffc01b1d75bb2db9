package domain

import "time"

// User is the store-level identity owned by the user-store collaborator.
// Memberships reference it once the invited person registers.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
