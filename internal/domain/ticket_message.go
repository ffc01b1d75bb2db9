package domain

import "time"

// MessageRole tags who authored a ticket message.
type MessageRole string

const (
	MessageRoleUser     MessageRole = "user"
	MessageRoleResolver MessageRole = "resolver"
	MessageRoleAgent    MessageRole = "agent"
	MessageRoleSystem   MessageRole = "system"
)

// TicketMessage captures communications in a ticket thread. Internal
// messages are staff-only regardless of ticket ownership.
type TicketMessage struct {
	ID             string
	TicketID       string
	OrganizationID string
	AuthorID       *string
	AuthorRole     MessageRole
	Body           string
	Internal       bool
	CreatedAt      time.Time
}
