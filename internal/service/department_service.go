package service

import (
	"context"
	"strings"

	"github.com/opsdesk/helpdesk/internal/authz"
	"github.com/opsdesk/helpdesk/internal/domain"
	"github.com/opsdesk/helpdesk/internal/repository"
	apperrors "github.com/opsdesk/helpdesk/pkg/util"
)

// DepartmentService manages the routing units of an organization.
type DepartmentService struct {
	departments repository.DepartmentRepository
	memberships repository.MembershipRepository
	tickets     repository.TicketRepository
}

// DepartmentDependencies bundles collaborators.
type DepartmentDependencies struct {
	DepartmentRepo repository.DepartmentRepository
	MembershipRepo repository.MembershipRepository
	TicketRepo     repository.TicketRepository
}

// NewDepartmentService constructs the service.
func NewDepartmentService(deps DepartmentDependencies) *DepartmentService {
	return &DepartmentService{
		departments: deps.DepartmentRepo,
		memberships: deps.MembershipRepo,
		tickets:     deps.TicketRepo,
	}
}

// Create adds a department. Names are unique per organization,
// case-insensitive; a duplicate surfaces as a conflict.
func (s *DepartmentService) Create(ctx context.Context, actor Actor, name, description string) (*domain.Department, error) {
	if err := authz.Authorize(actor.Role(), authz.ActionDepartmentManage, authz.Request{}); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewValidationError("department name is required", nil)
	}

	dept := &domain.Department{
		OrganizationID: actor.OrganizationID(),
		Name:           name,
		Description:    strings.TrimSpace(description),
	}
	if err := s.departments.Create(ctx, dept); err != nil {
		if apperrors.IsUniqueViolation(err) {
			return nil, apperrors.NewConflict("department name already exists", map[string]any{"name": name})
		}
		return nil, apperrors.MapError(err)
	}
	return dept, nil
}

// Update renames a department or changes its description.
func (s *DepartmentService) Update(ctx context.Context, actor Actor, id string, name, description *string) (*domain.Department, error) {
	if err := authz.Authorize(actor.Role(), authz.ActionDepartmentManage, authz.Request{}); err != nil {
		return nil, err
	}
	dept, err := s.departments.GetByID(ctx, actor.OrganizationID(), id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return nil, apperrors.NewValidationError("department name is required", nil)
		}
		dept.Name = trimmed
	}
	if description != nil {
		dept.Description = strings.TrimSpace(*description)
	}
	if err := s.departments.Update(ctx, dept); err != nil {
		if apperrors.IsUniqueViolation(err) {
			return nil, apperrors.NewConflict("department name already exists", map[string]any{"name": dept.Name})
		}
		return nil, apperrors.MapError(err)
	}
	return dept, nil
}

// Delete removes a department that nothing references. Members or tickets
// still pointing at it block the delete with a conflict.
func (s *DepartmentService) Delete(ctx context.Context, actor Actor, id string) error {
	if err := authz.Authorize(actor.Role(), authz.ActionDepartmentManage, authz.Request{}); err != nil {
		return err
	}
	dept, err := s.departments.GetByID(ctx, actor.OrganizationID(), id)
	if err != nil {
		return apperrors.MapError(err)
	}

	members, err := s.memberships.CountActiveByDepartment(ctx, actor.OrganizationID(), dept.ID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if members > 0 {
		return apperrors.NewConflict("department has members", map[string]any{"members": members})
	}
	open, err := s.tickets.CountByDepartment(ctx, actor.OrganizationID(), dept.ID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if open > 0 {
		return apperrors.NewConflict("department has tickets", map[string]any{"tickets": open})
	}

	if err := s.departments.Delete(ctx, actor.OrganizationID(), dept.ID); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

// List returns the organization's departments.
func (s *DepartmentService) List(ctx context.Context, actor Actor) ([]domain.Department, error) {
	return s.departments.ListByOrganization(ctx, actor.OrganizationID())
}

// Resolve matches free text against the organization's department names.
// A nil result is a valid "no department" answer, not an error.
func (s *DepartmentService) Resolve(ctx context.Context, orgID, name string) (*domain.Department, error) {
	all, err := s.departments.ListByOrganization(ctx, orgID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return ResolveDepartmentName(all, name), nil
}
