package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/opsdesk/helpdesk/internal/api/dto"
	"github.com/opsdesk/helpdesk/internal/delegation"
	"github.com/opsdesk/helpdesk/internal/service"
	apperrors "github.com/opsdesk/helpdesk/pkg/util"
)

// AgentHandler exposes the tool endpoints the external AI agent calls on
// behalf of organization members. The tool-context token is verified by
// the delegation middleware; every request body carries the per-call user
// token that names the acting member. Responses use the success envelope
// the agent runtime expects, including for failures.
type AgentHandler struct {
	verifier *delegation.Verifier
	tickets  *service.TicketService
	orgs     *service.OrganizationService
}

// NewAgentHandler constructs handler.
func NewAgentHandler(verifier *delegation.Verifier, tickets *service.TicketService, orgs *service.OrganizationService) *AgentHandler {
	return &AgentHandler{verifier: verifier, tickets: tickets, orgs: orgs}
}

// CreateTicket POST /agent/tools/tickets/create.
func (h *AgentHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.AgentCreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return toolError(c, apperrors.NewValidationError("invalid payload", nil))
	}
	actor, err := h.resolveActor(c, req.UserToken)
	if err != nil {
		return toolError(c, err)
	}
	ticket, err := h.tickets.CreateTicket(c.Context(), actor, service.TicketCreateInput{
		Title:          req.Title,
		Description:    req.Description,
		DepartmentName: req.DepartmentName,
		Priority:       req.Priority,
	})
	if err != nil {
		return toolError(c, err)
	}
	return toolSuccess(c, fiber.StatusCreated, dto.NewTicketSummary(ticket))
}

// UpdateTicket POST /agent/tools/tickets/update. Changes status and/or
// appends a message in one tool call.
func (h *AgentHandler) UpdateTicket(c *fiber.Ctx) error {
	var req dto.AgentUpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return toolError(c, apperrors.NewValidationError("invalid payload", nil))
	}
	if req.TicketID == "" {
		return toolError(c, apperrors.NewValidationError("ticket_id required", nil))
	}
	if req.Status == nil && req.Message == nil {
		return toolError(c, apperrors.NewValidationError("nothing to update", nil))
	}
	actor, err := h.resolveActor(c, req.UserToken)
	if err != nil {
		return toolError(c, err)
	}

	if req.Message != nil {
		if _, err := h.tickets.AddMessage(c.Context(), actor, req.TicketID, *req.Message, false); err != nil {
			return toolError(c, err)
		}
	}
	if req.Status != nil {
		if _, err := h.tickets.ChangeStatus(c.Context(), actor, req.TicketID, *req.Status); err != nil {
			return toolError(c, err)
		}
	}

	ticket, msgs, err := h.tickets.GetTicket(c.Context(), actor, req.TicketID)
	if err != nil {
		return toolError(c, err)
	}
	return toolSuccess(c, fiber.StatusOK, dto.NewTicketDetail(ticket, msgs))
}

// ListTickets POST /agent/tools/tickets/list.
func (h *AgentHandler) ListTickets(c *fiber.Ctx) error {
	var req dto.AgentListTicketsRequest
	if err := c.BodyParser(&req); err != nil {
		return toolError(c, apperrors.NewValidationError("invalid payload", nil))
	}
	actor, err := h.resolveActor(c, req.UserToken)
	if err != nil {
		return toolError(c, err)
	}
	tickets, err := h.tickets.ListTickets(c.Context(), actor, service.TicketListFilter{
		Statuses: req.Statuses,
		Limit:    req.Limit,
		Offset:   req.Offset,
	})
	if err != nil {
		return toolError(c, err)
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.NewTicketSummary(&tickets[i]))
	}
	return toolSuccess(c, fiber.StatusOK, items)
}

// Describe POST /agent/tools/describe. Returns the organization name and
// the admin-maintained system instruction so the agent can prime itself.
func (h *AgentHandler) Describe(c *fiber.Ctx) error {
	var req struct {
		UserToken string `json:"user_token"`
	}
	if err := c.BodyParser(&req); err != nil {
		return toolError(c, apperrors.NewValidationError("invalid payload", nil))
	}
	actor, err := h.resolveActor(c, req.UserToken)
	if err != nil {
		return toolError(c, err)
	}
	org, err := h.orgs.Get(c.Context(), actor)
	if err != nil {
		return toolError(c, err)
	}
	return toolSuccess(c, fiber.StatusOK, fiber.Map{
		"organization_name":  org.Name,
		"system_instruction": org.SystemInstruction,
		"member_role":        actor.Role(),
	})
}

// resolveActor verifies the per-call user token against the tool-context
// payload the middleware stored.
func (h *AgentHandler) resolveActor(c *fiber.Ctx, userToken string) (service.Actor, error) {
	payload, ok := delegation.PayloadFromContext(c)
	if !ok {
		return service.Actor{}, apperrors.NewForbidden()
	}
	member, err := h.verifier.VerifyUserToken(c.Context(), payload, userToken)
	if err != nil {
		return service.Actor{}, err
	}
	return service.Actor{Membership: member, ViaAgent: true}, nil
}

func toolSuccess(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(fiber.Map{"success": true, "data": data})
}

func toolError(c *fiber.Ctx, err error) error {
	domainErr := apperrors.ToDomainError(err)
	body := fiber.Map{
		"code":    domainErr.Code,
		"message": domainErr.Message,
	}
	if len(domainErr.Details) > 0 {
		body["details"] = domainErr.Details
	}
	return c.Status(domainErr.HTTPStatus).JSON(fiber.Map{"success": false, "error": body})
}
