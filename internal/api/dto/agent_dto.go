package dto

import "github.com/opsdesk/helpdesk/internal/domain"

// Agent tool payloads. Every request carries the per-call user token
// alongside the tool arguments; the tool-context token travels in the
// X-Tool-Context header.

// AgentCreateTicketRequest creates a ticket on behalf of the token's
// member.
type AgentCreateTicketRequest struct {
	UserToken      string                `json:"user_token"`
	Title          string                `json:"title"`
	Description    string                `json:"description"`
	DepartmentName *string               `json:"department_name"`
	Priority       domain.TicketPriority `json:"priority"`
}

// AgentUpdateTicketRequest changes status and/or appends a message.
type AgentUpdateTicketRequest struct {
	UserToken string               `json:"user_token"`
	TicketID  string               `json:"ticket_id"`
	Status    *domain.TicketStatus `json:"status"`
	Message   *string              `json:"message"`
}

// AgentListTicketsRequest lists tickets visible to the token's member.
type AgentListTicketsRequest struct {
	UserToken string                `json:"user_token"`
	Statuses  []domain.TicketStatus `json:"statuses"`
	Limit     int                   `json:"limit"`
	Offset    int                   `json:"offset"`
}
