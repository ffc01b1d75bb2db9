package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/opsdesk/helpdesk/internal/api/dto"
	"github.com/opsdesk/helpdesk/internal/repository"
	"github.com/opsdesk/helpdesk/internal/service"
	apperrors "github.com/opsdesk/helpdesk/pkg/util"
)

// MembersHandler manages membership endpoints.
type MembersHandler struct {
	members *service.MembershipService
}

// NewMembersHandler constructs handler.
func NewMembersHandler(members *service.MembershipService) *MembersHandler {
	return &MembersHandler{members: members}
}

// Add POST /orgs/:org_id/members.
func (h *MembersHandler) Add(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.AddMemberRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	m, err := h.members.AddMember(c.Context(), actor, service.MemberAddInput{
		Email:        req.Email,
		Role:         req.Role,
		DepartmentID: req.DepartmentID,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewMembershipResponse(m)})
}

// List GET /orgs/:org_id/members.
func (h *MembersHandler) List(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	filter := repository.MembershipFilter{
		Limit:  c.QueryInt("limit", 50),
		Offset: c.QueryInt("offset", 0),
	}
	members, err := h.members.ListMembers(c.Context(), actor, filter)
	if err != nil {
		return err
	}
	items := make([]dto.MembershipResponse, 0, len(members))
	for i := range members {
		items = append(items, dto.NewMembershipResponse(&members[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /orgs/:org_id/members/:id.
func (h *MembersHandler) Get(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	m, err := h.members.GetMember(c.Context(), actor, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewMembershipResponse(m)})
}

// ChangeRole PUT /orgs/:org_id/members/:id/role.
func (h *MembersHandler) ChangeRole(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.ChangeRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	m, err := h.members.ChangeRole(c.Context(), actor, c.Params("id"), req.Role)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewMembershipResponse(m)})
}

// ChangeDepartment PUT /orgs/:org_id/members/:id/department.
func (h *MembersHandler) ChangeDepartment(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.ChangeDepartmentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	m, err := h.members.ChangeDepartment(c.Context(), actor, c.Params("id"), req.DepartmentID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewMembershipResponse(m)})
}

// Remove DELETE /orgs/:org_id/members/:id.
func (h *MembersHandler) Remove(c *fiber.Ctx) error {
	actor, err := actorFromContext(c)
	if err != nil {
		return err
	}
	if err := h.members.RemoveMember(c.Context(), actor, c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}
