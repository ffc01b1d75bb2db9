package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen               TicketStatus = "open"
	TicketStatusInProgress         TicketStatus = "in_progress"
	TicketStatusPendingInformation TicketStatus = "pending_information"
	TicketStatusResolved           TicketStatus = "resolved"
	TicketStatusClosed             TicketStatus = "closed"
)

var ticketStatuses = map[TicketStatus]struct{}{
	TicketStatusOpen:               {},
	TicketStatusInProgress:         {},
	TicketStatusPendingInformation: {},
	TicketStatusResolved:           {},
	TicketStatusClosed:             {},
}

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	_, ok := ticketStatuses[s]
	return ok
}

// TicketPriority enumerates urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

var ticketPriorities = map[TicketPriority]struct{}{
	TicketPriorityLow:    {},
	TicketPriorityMedium: {},
	TicketPriorityHigh:   {},
	TicketPriorityUrgent: {},
}

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	_, ok := ticketPriorities[p]
	return ok
}

// Ticket is the aggregate for support requests. OrganizationID is immutable
// after creation; TrackingNumber is assigned exactly once at creation and is
// globally unique.
type Ticket struct {
	ID             string
	TrackingNumber int64
	OrganizationID string
	Title          string
	Description    string
	Category       *string
	DepartmentID   *string
	Priority       TicketPriority
	Status         TicketStatus
	AssigneeIDs    []string
	CreatedBy      string
	Tags           []string
	DueDate        *time.Time
	ResolvedAt     *time.Time
	ClosedAt       *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
