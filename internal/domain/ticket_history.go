package domain

import "time"

// TicketChangeType captures what changed in a history entry.
type TicketChangeType string

const (
	ChangeTypeStatus     TicketChangeType = "status_change"
	ChangeTypeAssignees  TicketChangeType = "assignee_change"
	ChangeTypeDepartment TicketChangeType = "department_change"
	ChangeTypeFields     TicketChangeType = "field_change"
)

// TicketHistory is an immutable audit trail entry, scoped like every other
// ticket record by organization.
type TicketHistory struct {
	ID             string
	TicketID       string
	OrganizationID string
	ChangedBy      *string
	ChangeType     TicketChangeType
	OldValue       map[string]any
	NewValue       map[string]any
	CreatedAt      time.Time
}
