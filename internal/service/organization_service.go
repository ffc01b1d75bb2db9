package service

import (
	"context"
	"strings"
	"time"

	"github.com/opsdesk/helpdesk/internal/delegation"
	"github.com/opsdesk/helpdesk/internal/domain"
	"github.com/opsdesk/helpdesk/internal/repository"
	apperrors "github.com/opsdesk/helpdesk/pkg/util"
)

// OrganizationService manages tenants and the agent integration surface.
type OrganizationService struct {
	organizations repository.OrganizationRepository
	memberships   repository.MembershipRepository
	sealer        *delegation.TokenSealer
}

// OrganizationDependencies bundles collaborators.
type OrganizationDependencies struct {
	OrganizationRepo repository.OrganizationRepository
	MembershipRepo   repository.MembershipRepository
	Sealer           *delegation.TokenSealer
}

// NewOrganizationService constructs the service.
func NewOrganizationService(deps OrganizationDependencies) *OrganizationService {
	return &OrganizationService{
		organizations: deps.OrganizationRepo,
		memberships:   deps.MembershipRepo,
		sealer:        deps.Sealer,
	}
}

// Create provisions a new organization with the creating user as its first
// active admin, so every organization satisfies the admin invariant from
// birth.
func (s *OrganizationService) Create(ctx context.Context, user *domain.User, name string) (*domain.Organization, *domain.Membership, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil, apperrors.NewValidationError("organization name is required", nil)
	}

	org := &domain.Organization{
		Name:      name,
		CreatedBy: user.ID,
	}
	if err := s.organizations.Create(ctx, org); err != nil {
		return nil, nil, apperrors.MapError(err)
	}

	now := time.Now().UTC()
	admin := &domain.Membership{
		OrganizationID: org.ID,
		Email:          strings.ToLower(user.Email),
		UserID:         &user.ID,
		Role:           domain.RoleAdmin,
		Status:         domain.MembershipStatusActive,
		InvitedBy:      user.ID,
		JoinedAt:       &now,
	}
	if err := s.memberships.Create(ctx, admin); err != nil {
		return nil, nil, apperrors.MapError(err)
	}
	return org, admin, nil
}

// Get returns the actor's organization.
func (s *OrganizationService) Get(ctx context.Context, actor Actor) (*domain.Organization, error) {
	org, err := s.organizations.GetByID(ctx, actor.OrganizationID())
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return org, nil
}

// UpdateSystemInstruction sets the free-text instruction handed to the
// agent integration. Admin only.
func (s *OrganizationService) UpdateSystemInstruction(ctx context.Context, actor Actor, instruction string) (*domain.Organization, error) {
	if actor.Role() != domain.RoleAdmin {
		return nil, apperrors.NewForbidden()
	}
	org, err := s.organizations.GetByID(ctx, actor.OrganizationID())
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	org.SystemInstruction = strings.TrimSpace(instruction)
	if err := s.organizations.Update(ctx, org); err != nil {
		return nil, apperrors.MapError(err)
	}
	return org, nil
}

// IssueAgentContext seals a tool-context token bound to the requesting
// admin and their organization. The token is the tenant half of the agent
// delegation handshake; only admins may mint one.
func (s *OrganizationService) IssueAgentContext(ctx context.Context, actor Actor) (string, error) {
	if actor.Role() != domain.RoleAdmin {
		return "", apperrors.NewForbidden()
	}
	org, err := s.organizations.GetByID(ctx, actor.OrganizationID())
	if err != nil {
		return "", apperrors.MapError(err)
	}
	token, err := s.sealer.Seal(delegation.ContextPayload{
		MemberID:         actor.ID(),
		MemberEmail:      actor.Membership.Email,
		OrganizationID:   org.ID,
		OrganizationName: org.Name,
	})
	if err != nil {
		return "", apperrors.NewInternalError(err)
	}
	return token, nil
}
