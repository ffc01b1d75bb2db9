package domain

import "time"

// Organization is the tenant boundary. Every other entity carries its ID and
// every query is scoped by it.
type Organization struct {
	ID                string
	Name              string
	CreatedBy         string
	SystemInstruction string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
