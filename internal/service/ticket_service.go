package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/opsdesk/helpdesk/internal/authz"
	"github.com/opsdesk/helpdesk/internal/domain"
	"github.com/opsdesk/helpdesk/internal/events"
	"github.com/opsdesk/helpdesk/internal/repository"
	apperrors "github.com/opsdesk/helpdesk/pkg/util"
)

const (
	titleWordLimit      = 8
	titleCharLimit      = 50
	maxTrackingAttempts = 5
)

// TicketService coordinates ticket workflows: creation with tracking-number
// allocation, the status machine, assignment, routing, and the message
// thread. Every operation takes the acting membership and consults the
// capability model before touching state.
type TicketService struct {
	tickets     repository.TicketRepository
	messages    repository.TicketMessageRepository
	departments repository.DepartmentRepository
	memberships repository.MembershipRepository
	history     repository.TicketHistoryRepository
	dispatcher  events.Dispatcher
	logger      *zap.Logger
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo     repository.TicketRepository
	MessageRepo    repository.TicketMessageRepository
	DepartmentRepo repository.DepartmentRepository
	MembershipRepo repository.MembershipRepository
	HistoryRepo    repository.TicketHistoryRepository
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
}

// TicketCreateInput describes the ticket creation payload. Title is
// optional; when absent it is derived from the description. Department may
// arrive as an identifier or as free text to resolve.
type TicketCreateInput struct {
	Title          string
	Description    string
	Category       *string
	DepartmentID   *string
	DepartmentName *string
	Priority       domain.TicketPriority
	AssigneeIDs    []string
	Tags           []string
	DueDate        *time.Time
}

// TicketUpdateInput carries optional field updates; nil means unchanged.
type TicketUpdateInput struct {
	Title       *string
	Description *string
	Category    *string
	Priority    *domain.TicketPriority
	Tags        []string
	DueDate     *time.Time
	ClearDue    bool
}

// TicketListFilter describes listing filters for the actor's organization.
type TicketListFilter struct {
	DepartmentID *string
	AssigneeID   *string
	CreatedBy    *string
	Statuses     []domain.TicketStatus
	Priorities   []domain.TicketPriority
	SearchTerm   *string
	Limit        int
	Offset       int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:     deps.TicketRepo,
		messages:    deps.MessageRepo,
		departments: deps.DepartmentRepo,
		memberships: deps.MembershipRepo,
		history:     deps.HistoryRepo,
		dispatcher:  deps.Dispatcher,
		logger:      deps.Logger,
	}
}

// CreateTicket creates a ticket on behalf of the actor. The tracking number
// is allocated max+1 and retried on unique-index collision; after the retry
// budget is exhausted the caller gets a conflict rather than a silent
// duplicate.
func (s *TicketService) CreateTicket(ctx context.Context, actor Actor, input TicketCreateInput) (*domain.Ticket, error) {
	if err := authz.Authorize(actor.Role(), authz.ActionTicketCreate, authz.Request{}); err != nil {
		return nil, err
	}

	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, apperrors.NewValidationError("description is required", nil)
	}

	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !priority.Valid() {
		return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": string(priority)})
	}

	departmentID, err := s.resolveDepartmentInput(ctx, actor.OrganizationID(), input.DepartmentID, input.DepartmentName)
	if err != nil {
		return nil, err
	}

	if len(input.AssigneeIDs) > 0 {
		if err := authz.Authorize(actor.Role(), authz.ActionTicketAssign, authz.Request{}); err != nil {
			return nil, err
		}
		if err := s.validateAssignees(ctx, actor.OrganizationID(), input.AssigneeIDs); err != nil {
			return nil, err
		}
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = deriveTitle(description)
	}

	ticket := &domain.Ticket{
		OrganizationID: actor.OrganizationID(),
		Title:          title,
		Description:    description,
		Category:       input.Category,
		DepartmentID:   departmentID,
		Priority:       priority,
		Status:         domain.TicketStatusOpen,
		AssigneeIDs:    input.AssigneeIDs,
		CreatedBy:      actor.ID(),
		Tags:           input.Tags,
		DueDate:        input.DueDate,
	}

	if err := s.createWithTrackingNumber(ctx, ticket); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:           events.EventTicketCreated,
		OrganizationID: ticket.OrganizationID,
		TicketID:       ticket.ID,
		Actor:          eventActor(actor),
		Payload: events.TicketCreatedPayload{
			TrackingNumber: ticket.TrackingNumber,
			DepartmentID:   ticket.DepartmentID,
			Priority:       ticket.Priority,
			Title:          ticket.Title,
		},
	})
	return ticket, nil
}

// GetTicket fetches a ticket with its message thread. Internal messages are
// stripped for non-staff actors.
func (s *TicketService) GetTicket(ctx context.Context, actor Actor, ticketID string) (*domain.Ticket, []domain.TicketMessage, error) {
	ticket, err := s.fetch(ctx, actor, ticketID)
	if err != nil {
		return nil, nil, err
	}
	if err := authz.Authorize(actor.Role(), authz.ActionTicketView, authz.Request{
		ActorIsCreator: ticket.CreatedBy == actor.ID(),
	}); err != nil {
		return nil, nil, err
	}

	msgs, err := s.messages.ListByTicket(ctx, actor.OrganizationID(), ticket.ID)
	if err != nil {
		return nil, nil, err
	}
	return ticket, visibleMessages(actor, msgs), nil
}

// ListMessages returns the ticket's message thread, internal notes stripped
// for non-staff actors.
func (s *TicketService) ListMessages(ctx context.Context, actor Actor, ticketID string) ([]domain.TicketMessage, error) {
	ticket, err := s.fetch(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(actor.Role(), authz.ActionTicketView, authz.Request{
		ActorIsCreator: ticket.CreatedBy == actor.ID(),
	}); err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListByTicket(ctx, actor.OrganizationID(), ticket.ID)
	if err != nil {
		return nil, err
	}
	return visibleMessages(actor, msgs), nil
}

func visibleMessages(actor Actor, msgs []domain.TicketMessage) []domain.TicketMessage {
	if actor.Role().IsStaff() {
		return msgs
	}
	visible := msgs[:0]
	for _, m := range msgs {
		if !m.Internal {
			visible = append(visible, m)
		}
	}
	return visible
}

// ListTickets lists tickets in the actor's organization. Employees only ever
// see their own tickets regardless of the requested filter.
func (s *TicketService) ListTickets(ctx context.Context, actor Actor, filter TicketListFilter) ([]domain.Ticket, error) {
	repoFilter := repository.TicketFilter{
		OrganizationID: actor.OrganizationID(),
		CreatedBy:      filter.CreatedBy,
		DepartmentID:   filter.DepartmentID,
		AssigneeID:     filter.AssigneeID,
		Statuses:       filter.Statuses,
		Priorities:     filter.Priorities,
		SearchTerm:     filter.SearchTerm,
		Limit:          filter.Limit,
		Offset:         filter.Offset,
	}
	if !actor.Role().IsStaff() {
		own := actor.ID()
		repoFilter.CreatedBy = &own
	}
	return s.tickets.ListWithFilter(ctx, repoFilter)
}

// UpdateFields applies staff edits to mutable ticket fields.
func (s *TicketService) UpdateFields(ctx context.Context, actor Actor, ticketID string, input TicketUpdateInput) (*domain.Ticket, error) {
	ticket, err := s.fetch(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(actor.Role(), authz.ActionTicketEditFields, authz.Request{
		ActorIsCreator: ticket.CreatedBy == actor.ID(),
	}); err != nil {
		return nil, err
	}
	if ticket.Status == domain.TicketStatusClosed {
		return nil, errTicketClosed()
	}

	old := map[string]any{}
	changed := map[string]any{}

	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, apperrors.NewValidationError("title cannot be empty", nil)
		}
		old["title"], changed["title"] = ticket.Title, title
		ticket.Title = title
	}
	if input.Description != nil {
		description := strings.TrimSpace(*input.Description)
		if description == "" {
			return nil, apperrors.NewValidationError("description cannot be empty", nil)
		}
		old["description"], changed["description"] = ticket.Description, description
		ticket.Description = description
	}
	if input.Category != nil {
		old["category"], changed["category"] = ticket.Category, *input.Category
		ticket.Category = input.Category
	}
	if input.Priority != nil {
		if !input.Priority.Valid() {
			return nil, apperrors.NewValidationError("invalid priority", map[string]any{"priority": string(*input.Priority)})
		}
		old["priority"], changed["priority"] = string(ticket.Priority), string(*input.Priority)
		ticket.Priority = *input.Priority
	}
	if input.Tags != nil {
		old["tags"], changed["tags"] = ticket.Tags, input.Tags
		ticket.Tags = input.Tags
	}
	if input.ClearDue {
		old["due_date"], changed["due_date"] = ticket.DueDate, nil
		ticket.DueDate = nil
	} else if input.DueDate != nil {
		old["due_date"], changed["due_date"] = ticket.DueDate, *input.DueDate
		ticket.DueDate = input.DueDate
	}

	if len(changed) == 0 {
		return ticket, nil
	}
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.recordHistory(ctx, actor, ticket, domain.ChangeTypeFields, old, changed)
	return ticket, nil
}

// ChangeStatus moves a ticket through the status machine. Closed is
// terminal. Resolution and closure timestamps are stamped on first entry
// only and survive re-entry untouched.
func (s *TicketService) ChangeStatus(ctx context.Context, actor Actor, ticketID string, newStatus domain.TicketStatus) (*domain.Ticket, error) {
	if !newStatus.Valid() {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{"status": string(newStatus)})
	}
	ticket, err := s.fetch(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(actor.Role(), authz.ActionTicketChangeStatus, authz.Request{
		ActorIsCreator: ticket.CreatedBy == actor.ID(),
		TargetStatus:   newStatus,
	}); err != nil {
		return nil, err
	}
	if ticket.Status == domain.TicketStatusClosed {
		return nil, errTicketClosed()
	}
	if ticket.Status == newStatus {
		return ticket, nil
	}

	oldStatus := ticket.Status
	ticket.Status = newStatus
	now := time.Now().UTC()
	if newStatus == domain.TicketStatusResolved && ticket.ResolvedAt == nil {
		ticket.ResolvedAt = &now
	}
	if newStatus == domain.TicketStatusClosed && ticket.ClosedAt == nil {
		ticket.ClosedAt = &now
	}

	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.recordHistory(ctx, actor, ticket, domain.ChangeTypeStatus,
		map[string]any{"status": string(oldStatus)},
		map[string]any{"status": string(newStatus)},
	)
	s.publishEvent(ctx, events.Event{
		Type:           events.EventTicketStatusChanged,
		OrganizationID: ticket.OrganizationID,
		TicketID:       ticket.ID,
		Actor:          eventActor(actor),
		Payload: events.TicketStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: newStatus,
		},
	})
	return ticket, nil
}

// Assign replaces the assignee set wholesale. Every requested assignee must
// be an active staff membership of the same organization or the whole call
// is rejected.
func (s *TicketService) Assign(ctx context.Context, actor Actor, ticketID string, assigneeIDs []string) (*domain.Ticket, error) {
	if err := authz.Authorize(actor.Role(), authz.ActionTicketAssign, authz.Request{}); err != nil {
		return nil, err
	}
	ticket, err := s.fetch(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status == domain.TicketStatusClosed {
		return nil, errTicketClosed()
	}
	if err := s.validateAssignees(ctx, actor.OrganizationID(), assigneeIDs); err != nil {
		return nil, err
	}

	oldAssignees := ticket.AssigneeIDs
	ticket.AssigneeIDs = assigneeIDs
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.recordHistory(ctx, actor, ticket, domain.ChangeTypeAssignees,
		map[string]any{"assignee_ids": oldAssignees},
		map[string]any{"assignee_ids": assigneeIDs},
	)
	s.publishEvent(ctx, events.Event{
		Type:           events.EventTicketAssigned,
		OrganizationID: ticket.OrganizationID,
		TicketID:       ticket.ID,
		Actor:          eventActor(actor),
		Payload:        events.TicketAssignedPayload{AssigneeIDs: assigneeIDs},
	})
	return ticket, nil
}

// ReassignDepartment moves a ticket to another department, identified by ID
// or resolved from free text. Both absent clears the routing.
func (s *TicketService) ReassignDepartment(ctx context.Context, actor Actor, ticketID string, departmentID, departmentName *string) (*domain.Ticket, error) {
	if err := authz.Authorize(actor.Role(), authz.ActionTicketReassignDept, authz.Request{}); err != nil {
		return nil, err
	}
	ticket, err := s.fetch(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.Status == domain.TicketStatusClosed {
		return nil, errTicketClosed()
	}

	newDept, err := s.resolveDepartmentInput(ctx, actor.OrganizationID(), departmentID, departmentName)
	if err != nil {
		return nil, err
	}

	oldDept := ticket.DepartmentID
	ticket.DepartmentID = newDept
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.recordHistory(ctx, actor, ticket, domain.ChangeTypeDepartment,
		map[string]any{"department_id": oldDept},
		map[string]any{"department_id": newDept},
	)
	s.publishEvent(ctx, events.Event{
		Type:           events.EventTicketDepartmentChanged,
		OrganizationID: ticket.OrganizationID,
		TicketID:       ticket.ID,
		Actor:          eventActor(actor),
		Payload: events.TicketDepartmentChangedPayload{
			OldDepartmentID: oldDept,
			NewDepartmentID: newDept,
		},
	})
	return ticket, nil
}

// AddMessage appends a message to the ticket thread. Internal messages are
// restricted to staff; the author tag reflects whether the call arrived via
// the agent delegation path.
func (s *TicketService) AddMessage(ctx context.Context, actor Actor, ticketID, body string, internal bool) (*domain.TicketMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.NewValidationError("message body is required", nil)
	}
	ticket, err := s.fetch(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(actor.Role(), authz.ActionTicketView, authz.Request{
		ActorIsCreator: ticket.CreatedBy == actor.ID(),
	}); err != nil {
		return nil, err
	}
	if internal {
		if err := authz.Authorize(actor.Role(), authz.ActionMessagePostInternal, authz.Request{}); err != nil {
			return nil, err
		}
	}
	if ticket.Status == domain.TicketStatusClosed {
		return nil, errTicketClosed()
	}

	authorID := actor.ID()
	msg := &domain.TicketMessage{
		TicketID:       ticket.ID,
		OrganizationID: ticket.OrganizationID,
		AuthorID:       &authorID,
		AuthorRole:     messageRoleFor(actor),
		Body:           body,
		Internal:       internal,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:           events.EventTicketMessageAdded,
		OrganizationID: ticket.OrganizationID,
		TicketID:       ticket.ID,
		Actor:          eventActor(actor),
		Payload: events.TicketMessageAddedPayload{
			MessageID:   msg.ID,
			AuthorRole:  msg.AuthorRole,
			Internal:    msg.Internal,
			BodyPreview: bodyPreview(msg.Body),
		},
	})
	return msg, nil
}

// ListHistory returns the audit trail of a ticket for staff actors.
func (s *TicketService) ListHistory(ctx context.Context, actor Actor, ticketID string, limit, offset int) ([]domain.TicketHistory, error) {
	ticket, err := s.fetch(ctx, actor, ticketID)
	if err != nil {
		return nil, err
	}
	if !actor.Role().IsStaff() {
		return nil, apperrors.NewForbidden()
	}
	return s.history.ListByTicket(ctx, actor.OrganizationID(), ticket.ID, limit, offset)
}

func (s *TicketService) fetch(ctx context.Context, actor Actor, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, actor.OrganizationID(), ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// createWithTrackingNumber allocates the next tracking number and retries
// on concurrent collisions, bounded by maxTrackingAttempts.
func (s *TicketService) createWithTrackingNumber(ctx context.Context, ticket *domain.Ticket) error {
	for attempt := 0; attempt < maxTrackingAttempts; attempt++ {
		max, err := s.tickets.MaxTrackingNumber(ctx)
		if err != nil {
			return apperrors.MapError(err)
		}
		ticket.TrackingNumber = max + 1
		err = s.tickets.Create(ctx, ticket)
		if err == nil {
			return nil
		}
		if apperrors.IsUniqueViolation(err) {
			continue
		}
		return apperrors.MapError(err)
	}
	return apperrors.NewConflict("could not allocate a tracking number, please retry", nil)
}

func (s *TicketService) resolveDepartmentInput(ctx context.Context, orgID string, departmentID, departmentName *string) (*string, error) {
	if departmentID != nil && *departmentID != "" {
		dept, err := s.departments.GetByID(ctx, orgID, *departmentID)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		return &dept.ID, nil
	}
	if departmentName != nil && strings.TrimSpace(*departmentName) != "" {
		all, err := s.departments.ListByOrganization(ctx, orgID)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		// an unmatched name leaves the ticket unrouted rather than failing
		if dept := ResolveDepartmentName(all, *departmentName); dept != nil {
			return &dept.ID, nil
		}
	}
	return nil, nil
}

func (s *TicketService) validateAssignees(ctx context.Context, orgID string, assigneeIDs []string) error {
	seen := make(map[string]struct{}, len(assigneeIDs))
	for _, id := range assigneeIDs {
		if _, dup := seen[id]; dup {
			return apperrors.NewValidationError("duplicate assignee", map[string]any{"assignee_id": id})
		}
		seen[id] = struct{}{}
	}
	members, err := s.memberships.ListByIDs(ctx, orgID, assigneeIDs)
	if err != nil {
		return apperrors.MapError(err)
	}
	byID := make(map[string]domain.Membership, len(members))
	for _, m := range members {
		byID[m.ID] = m
	}
	for _, id := range assigneeIDs {
		m, ok := byID[id]
		if !ok {
			return apperrors.NewValidationError("assignee not found in organization", map[string]any{"assignee_id": id})
		}
		if m.Status != domain.MembershipStatusActive {
			return apperrors.NewValidationError("assignee is not active", map[string]any{"assignee_id": id})
		}
		if !m.Role.IsStaff() {
			return apperrors.NewValidationError("assignee is not staff", map[string]any{"assignee_id": id})
		}
	}
	return nil
}

func (s *TicketService) recordHistory(ctx context.Context, actor Actor, ticket *domain.Ticket, changeType domain.TicketChangeType, oldValue, newValue map[string]any) {
	changedBy := actor.ID()
	entry := &domain.TicketHistory{
		TicketID:       ticket.ID,
		OrganizationID: ticket.OrganizationID,
		ChangedBy:      &changedBy,
		ChangeType:     changeType,
		OldValue:       oldValue,
		NewValue:       newValue,
	}
	if err := s.history.Create(ctx, entry); err != nil && s.logger != nil {
		s.logger.Warn("ticket history write failed",
			zap.String("ticket_id", ticket.ID),
			zap.Error(err),
		)
	}
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func eventActor(actor Actor) events.Actor {
	return events.Actor{
		MembershipID: actor.ID(),
		Role:         actor.Role(),
		ViaAgent:     actor.ViaAgent,
	}
}

func messageRoleFor(actor Actor) domain.MessageRole {
	if actor.ViaAgent {
		return domain.MessageRoleAgent
	}
	if actor.Role().IsStaff() {
		return domain.MessageRoleResolver
	}
	return domain.MessageRoleUser
}

func errTicketClosed() error {
	return apperrors.NewConflict("ticket closed", nil)
}

// deriveTitle builds a title from the first words of a description,
// truncated with a trailing ellipsis when over the character limit.
func deriveTitle(description string) string {
	words := strings.Fields(description)
	if len(words) > titleWordLimit {
		words = words[:titleWordLimit]
	}
	return truncateRunes(strings.Join(words, " "), titleCharLimit)
}

func bodyPreview(body string) string {
	return truncateRunes(body, 120)
}

// truncateRunes cuts s to limit characters, never mid-rune, appending an
// ellipsis when something was dropped.
func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
