package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/opsdesk/helpdesk/internal/api/dto"
	"github.com/opsdesk/helpdesk/internal/auth"
	"github.com/opsdesk/helpdesk/internal/service"
	apperrors "github.com/opsdesk/helpdesk/pkg/util"
)

// OrganizationsHandler manages tenants and the agent integration surface.
type OrganizationsHandler struct {
	orgs *service.OrganizationService
}

// NewOrganizationsHandler constructs handler.
func NewOrganizationsHandler(orgs *service.OrganizationService) *OrganizationsHandler {
	return &OrganizationsHandler{orgs: orgs}
}

// Create POST /orgs. Requires only authentication: the creator becomes the
// organization's first admin.
func (h *OrganizationsHandler) Create(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateOrganizationRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	org, admin, err := h.orgs.Create(c.Context(), principal.User, req.Name)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": fiber.Map{
		"organization": dto.NewOrganizationResponse(org),
		"membership":   dto.NewMembershipResponse(admin),
	}})
}

// Get GET /orgs/:org_id.
func (h *OrganizationsHandler) Get(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	org, err := h.orgs.Get(c.Context(), actor)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewOrganizationResponse(org)})
}

// UpdateInstruction PUT /orgs/:org_id/instruction.
func (h *OrganizationsHandler) UpdateInstruction(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.UpdateInstructionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	org, err := h.orgs.UpdateSystemInstruction(c.Context(), actor, req.SystemInstruction)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewOrganizationResponse(org)})
}

// IssueAgentContext POST /orgs/:org_id/agent-context.
func (h *OrganizationsHandler) IssueAgentContext(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	token, err := h.orgs.IssueAgentContext(c.Context(), actor)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.AgentContextResponse{ToolContext: token}})
}

// actorFromContext builds the service actor from the membership the auth
// middleware resolved for the routed organization.
func actorFromContext(c *fiber.Ctx) (service.Actor, error) {
	member, ok := auth.ActorFromContext(c)
	if !ok {
		return service.Actor{}, apperrors.NewUnauthorized("membership required")
	}
	return service.Actor{Membership: member}, nil
}
