package dto

import (
	"time"

	"github.com/opsdesk/helpdesk/internal/domain"
)

// CreateOrganizationRequest payload.
type CreateOrganizationRequest struct {
	Name string `json:"name"`
}

// UpdateInstructionRequest payload.
type UpdateInstructionRequest struct {
	SystemInstruction string `json:"system_instruction"`
}

// OrganizationResponse is the public view of a tenant.
type OrganizationResponse struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	SystemInstruction string    `json:"system_instruction,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// AgentContextResponse carries a freshly sealed tool-context token.
type AgentContextResponse struct {
	ToolContext string `json:"tool_context"`
}

// AddMemberRequest payload.
type AddMemberRequest struct {
	Email        string      `json:"email"`
	Role         domain.Role `json:"role"`
	DepartmentID *string     `json:"department_id"`
}

// ChangeRoleRequest payload.
type ChangeRoleRequest struct {
	Role domain.Role `json:"role"`
}

// ChangeDepartmentRequest payload. A null department clears placement.
type ChangeDepartmentRequest struct {
	DepartmentID *string `json:"department_id"`
}

// MembershipResponse is the public view of a membership.
type MembershipResponse struct {
	ID             string                  `json:"id"`
	OrganizationID string                  `json:"organization_id"`
	Email          string                  `json:"email"`
	UserID         *string                 `json:"user_id,omitempty"`
	Role           domain.Role             `json:"role"`
	Status         domain.MembershipStatus `json:"status"`
	DepartmentID   *string                 `json:"department_id,omitempty"`
	InvitedAt      time.Time               `json:"invited_at"`
	JoinedAt       *time.Time              `json:"joined_at,omitempty"`
}

// DepartmentRequest payload for create/update.
type DepartmentRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// DepartmentResponse is the public view of a department.
type DepartmentResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewOrganizationResponse maps an organization.
func NewOrganizationResponse(o *domain.Organization) OrganizationResponse {
	return OrganizationResponse{
		ID:                o.ID,
		Name:              o.Name,
		SystemInstruction: o.SystemInstruction,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
}

// NewMembershipResponse maps a membership.
func NewMembershipResponse(m *domain.Membership) MembershipResponse {
	return MembershipResponse{
		ID:             m.ID,
		OrganizationID: m.OrganizationID,
		Email:          m.Email,
		UserID:         m.UserID,
		Role:           m.Role,
		Status:         m.Status,
		DepartmentID:   m.DepartmentID,
		InvitedAt:      m.InvitedAt,
		JoinedAt:       m.JoinedAt,
	}
}

// NewDepartmentResponse maps a department.
func NewDepartmentResponse(d *domain.Department) DepartmentResponse {
	return DepartmentResponse{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		CreatedAt:   d.CreatedAt,
	}
}
