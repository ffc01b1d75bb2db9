package dto

import (
	"time"

	"github.com/opsdesk/helpdesk/internal/domain"
)

// CreateTicketRequest payload. Title is optional (derived from the
// description when absent); department may be an ID or free text.
type CreateTicketRequest struct {
	Title          string                `json:"title"`
	Description    string                `json:"description"`
	Category       *string               `json:"category"`
	DepartmentID   *string               `json:"department_id"`
	DepartmentName *string               `json:"department_name"`
	Priority       domain.TicketPriority `json:"priority"`
	AssigneeIDs    []string              `json:"assignee_ids"`
	Tags           []string              `json:"tags"`
	DueDate        *time.Time            `json:"due_date"`
}

// UpdateTicketRequest payload; absent fields are unchanged.
type UpdateTicketRequest struct {
	Title       *string                `json:"title"`
	Description *string                `json:"description"`
	Category    *string                `json:"category"`
	Priority    *domain.TicketPriority `json:"priority"`
	Tags        []string               `json:"tags"`
	DueDate     *time.Time             `json:"due_date"`
	ClearDue    bool                   `json:"clear_due"`
}

// ChangeStatusRequest payload.
type ChangeStatusRequest struct {
	Status domain.TicketStatus `json:"status"`
}

// AssignRequest replaces the assignee set wholesale.
type AssignRequest struct {
	AssigneeIDs []string `json:"assignee_ids"`
}

// ReassignDepartmentRequest payload; both fields absent clears routing.
type ReassignDepartmentRequest struct {
	DepartmentID   *string `json:"department_id"`
	DepartmentName *string `json:"department_name"`
}

// CreateMessageRequest payload.
type CreateMessageRequest struct {
	Body     string `json:"body"`
	Internal bool   `json:"internal"`
}

// TicketSummary response.
type TicketSummary struct {
	ID             string                `json:"id"`
	TrackingNumber int64                 `json:"tracking_number"`
	Title          string                `json:"title"`
	DepartmentID   *string               `json:"department_id,omitempty"`
	Status         domain.TicketStatus   `json:"status"`
	Priority       domain.TicketPriority `json:"priority"`
	AssigneeIDs    []string              `json:"assignee_ids,omitempty"`
	Tags           []string              `json:"tags,omitempty"`
	CreatedBy      string                `json:"created_by"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// TicketDetailResponse provides full ticket info with its thread.
type TicketDetailResponse struct {
	TicketSummary
	Description string                  `json:"description"`
	Category    *string                 `json:"category,omitempty"`
	DueDate     *time.Time              `json:"due_date,omitempty"`
	ResolvedAt  *time.Time              `json:"resolved_at,omitempty"`
	ClosedAt    *time.Time              `json:"closed_at,omitempty"`
	Messages    []TicketMessageResponse `json:"messages"`
}

// TicketMessageResponse represents a thread message.
type TicketMessageResponse struct {
	ID         string             `json:"id"`
	AuthorID   *string            `json:"author_id,omitempty"`
	AuthorRole domain.MessageRole `json:"author_role"`
	Body       string             `json:"body"`
	Internal   bool               `json:"internal"`
	CreatedAt  time.Time          `json:"created_at"`
}

// TicketHistoryResponse represents an audit trail entry.
type TicketHistoryResponse struct {
	ID         string                  `json:"id"`
	ChangedBy  *string                 `json:"changed_by,omitempty"`
	ChangeType domain.TicketChangeType `json:"change_type"`
	OldValue   map[string]any          `json:"old_value,omitempty"`
	NewValue   map[string]any          `json:"new_value,omitempty"`
	CreatedAt  time.Time               `json:"created_at"`
}

// NewTicketSummary maps a ticket to its list view.
func NewTicketSummary(t *domain.Ticket) TicketSummary {
	return TicketSummary{
		ID:             t.ID,
		TrackingNumber: t.TrackingNumber,
		Title:          t.Title,
		DepartmentID:   t.DepartmentID,
		Status:         t.Status,
		Priority:       t.Priority,
		AssigneeIDs:    t.AssigneeIDs,
		Tags:           t.Tags,
		CreatedBy:      t.CreatedBy,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

// NewTicketDetail maps a ticket and its visible messages.
func NewTicketDetail(t *domain.Ticket, msgs []domain.TicketMessage) TicketDetailResponse {
	out := TicketDetailResponse{
		TicketSummary: NewTicketSummary(t),
		Description:   t.Description,
		Category:      t.Category,
		DueDate:       t.DueDate,
		ResolvedAt:    t.ResolvedAt,
		ClosedAt:      t.ClosedAt,
		Messages:      make([]TicketMessageResponse, 0, len(msgs)),
	}
	for i := range msgs {
		out.Messages = append(out.Messages, NewTicketMessageResponse(&msgs[i]))
	}
	return out
}

// NewTicketMessageResponse maps a message.
func NewTicketMessageResponse(m *domain.TicketMessage) TicketMessageResponse {
	return TicketMessageResponse{
		ID:         m.ID,
		AuthorID:   m.AuthorID,
		AuthorRole: m.AuthorRole,
		Body:       m.Body,
		Internal:   m.Internal,
		CreatedAt:  m.CreatedAt,
	}
}

// NewTicketHistoryResponse maps an audit entry.
func NewTicketHistoryResponse(h *domain.TicketHistory) TicketHistoryResponse {
	return TicketHistoryResponse{
		ID:         h.ID,
		ChangedBy:  h.ChangedBy,
		ChangeType: h.ChangeType,
		OldValue:   h.OldValue,
		NewValue:   h.NewValue,
		CreatedAt:  h.CreatedAt,
	}
}
