package events

import (
	"time"

	"github.com/opsdesk/helpdesk/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated           EventType = "ticket_created"
	EventTicketStatusChanged     EventType = "ticket_status_changed"
	EventTicketAssigned          EventType = "ticket_assigned"
	EventTicketDepartmentChanged EventType = "ticket_department_changed"
	EventTicketMessageAdded      EventType = "ticket_message_added"
	EventMemberAdded             EventType = "member_added"
	EventMemberRemoved           EventType = "member_removed"
)

// Actor encapsulates actor metadata for an event. MembershipID is empty for
// system-originated events.
type Actor struct {
	MembershipID string      `json:"membership_id,omitempty"`
	Role         domain.Role `json:"role,omitempty"`
	ViaAgent     bool        `json:"via_agent,omitempty"`
}

// Event represents a domain event emitted by services. Every event carries
// the organization it belongs to.
type Event struct {
	ID             string      `json:"id"`
	Type           EventType   `json:"type"`
	OrganizationID string      `json:"organization_id"`
	TicketID       string      `json:"ticket_id,omitempty"`
	Actor          Actor       `json:"actor"`
	Timestamp      time.Time   `json:"timestamp"`
	Payload        interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	TrackingNumber int64                 `json:"tracking_number"`
	DepartmentID   *string               `json:"department_id,omitempty"`
	Priority       domain.TicketPriority `json:"priority"`
	Title          string                `json:"title"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	AssigneeIDs []string `json:"assignee_ids"`
}

// TicketDepartmentChangedPayload payload.
type TicketDepartmentChangedPayload struct {
	OldDepartmentID *string `json:"old_department_id,omitempty"`
	NewDepartmentID *string `json:"new_department_id,omitempty"`
}

// TicketMessageAddedPayload payload.
type TicketMessageAddedPayload struct {
	MessageID   string             `json:"message_id"`
	AuthorRole  domain.MessageRole `json:"author_role"`
	Internal    bool               `json:"internal"`
	BodyPreview string             `json:"body_preview"`
}

// MemberAddedPayload payload.
type MemberAddedPayload struct {
	MembershipID string                  `json:"membership_id"`
	Role         domain.Role             `json:"role"`
	Status       domain.MembershipStatus `json:"status"`
}

// MemberRemovedPayload payload.
type MemberRemovedPayload struct {
	MembershipID string      `json:"membership_id"`
	Role         domain.Role `json:"role"`
}
