package domain

import "time"

// Department is an organizational routing unit. Name is unique per
// organization, case-insensitive.
type Department struct {
	ID             string
	OrganizationID string
	Name           string
	Description    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
