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
	"github.com/opsdesk/helpdesk/internal/persistence"
	"github.com/opsdesk/helpdesk/internal/repository"
	apperrors "github.com/opsdesk/helpdesk/pkg/util"
)

// MembershipService manages the people side of an organization: invites,
// role changes, department placement, and removal. Admin-sensitive
// mutations run under a per-organization lease on top of the guarded SQL
// so the last active admin can never disappear.
type MembershipService struct {
	memberships repository.MembershipRepository
	departments repository.DepartmentRepository
	users       repository.UserRepository
	locker      *persistence.OrgLocker
	dispatcher  events.Dispatcher
	logger      *zap.Logger
}

// MembershipDependencies bundles collaborators for the membership service.
type MembershipDependencies struct {
	MembershipRepo repository.MembershipRepository
	DepartmentRepo repository.DepartmentRepository
	UserRepo       repository.UserRepository
	Locker         *persistence.OrgLocker
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
}

// MemberAddInput describes an invite/add request.
type MemberAddInput struct {
	Email        string
	Role         domain.Role
	DepartmentID *string
}

// NewMembershipService constructs the service.
func NewMembershipService(deps MembershipDependencies) *MembershipService {
	return &MembershipService{
		memberships: deps.MembershipRepo,
		departments: deps.DepartmentRepo,
		users:       deps.UserRepo,
		locker:      deps.Locker,
		dispatcher:  deps.Dispatcher,
		logger:      deps.Logger,
	}
}

// AddMember adds a person to the actor's organization by email. A known
// user joins immediately as active; an unknown email becomes a pending
// invite that activates on registration.
func (s *MembershipService) AddMember(ctx context.Context, actor Actor, input MemberAddInput) (*domain.Membership, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperrors.NewValidationError("a valid email is required", nil)
	}
	if !input.Role.Valid() {
		return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": string(input.Role)})
	}
	if err := authz.Authorize(actor.Role(), authz.ActionMemberAdd, authz.Request{
		ResultRole: input.Role,
	}); err != nil {
		return nil, err
	}
	if input.DepartmentID != nil {
		if _, err := s.departments.GetByID(ctx, actor.OrganizationID(), *input.DepartmentID); err != nil {
			return nil, apperrors.MapError(err)
		}
	}
	if existing, err := s.memberships.GetByEmail(ctx, actor.OrganizationID(), email); err == nil && existing != nil {
		return nil, apperrors.NewConflict("member already exists", map[string]any{"email": email})
	} else if err != nil && !apperrors.IsCode(apperrors.MapError(err), apperrors.CodeNotFound) {
		return nil, apperrors.MapError(err)
	}

	m := &domain.Membership{
		OrganizationID: actor.OrganizationID(),
		Email:          email,
		Role:           input.Role,
		Status:         domain.MembershipStatusInvited,
		DepartmentID:   input.DepartmentID,
		InvitedBy:      actor.ID(),
	}
	if user, err := s.users.GetByEmail(ctx, email); err == nil && user != nil {
		now := time.Now().UTC()
		m.UserID = &user.ID
		m.Status = domain.MembershipStatusActive
		m.JoinedAt = &now
	}

	if err := s.memberships.Create(ctx, m); err != nil {
		if apperrors.IsUniqueViolation(err) {
			return nil, apperrors.NewConflict("member already exists", map[string]any{"email": email})
		}
		return nil, apperrors.MapError(err)
	}

	s.publishEvent(ctx, events.Event{
		Type:           events.EventMemberAdded,
		OrganizationID: m.OrganizationID,
		Actor:          eventActor(actor),
		Payload: events.MemberAddedPayload{
			MembershipID: m.ID,
			Role:         m.Role,
			Status:       m.Status,
		},
	})
	return m, nil
}

// ChangeRole updates a member's role. Demoting an active admin is refused
// when they are the organization's last one; the check and the update are a
// single guarded statement, serialized by the per-organization lease.
func (s *MembershipService) ChangeRole(ctx context.Context, actor Actor, membershipID string, newRole domain.Role) (*domain.Membership, error) {
	if !newRole.Valid() {
		return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": string(newRole)})
	}
	target, err := s.fetch(ctx, actor, membershipID)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(actor.Role(), authz.ActionMemberChangeRole, authz.Request{
		ActorIsTarget: target.ID == actor.ID(),
		TargetRole:    target.Role,
		ResultRole:    newRole,
	}); err != nil {
		return nil, err
	}
	if target.Role == newRole {
		return target, nil
	}

	demotingAdmin := target.Role == domain.RoleAdmin &&
		target.Status == domain.MembershipStatusActive &&
		newRole != domain.RoleAdmin
	if demotingAdmin {
		release, err := s.locker.Lock(ctx, actor.OrganizationID())
		if err != nil {
			return nil, err
		}
		defer release()
	}

	ok, err := s.memberships.UpdateRoleGuarded(ctx, actor.OrganizationID(), target.ID, newRole)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !ok {
		return nil, apperrors.NewConflict("cannot demote the last active admin", nil)
	}
	target.Role = newRole
	return target, nil
}

// ChangeDepartment moves a member to a department, or clears it with nil.
func (s *MembershipService) ChangeDepartment(ctx context.Context, actor Actor, membershipID string, departmentID *string) (*domain.Membership, error) {
	target, err := s.fetch(ctx, actor, membershipID)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(actor.Role(), authz.ActionMemberChangeDepartment, authz.Request{
		ActorIsTarget: target.ID == actor.ID(),
		TargetRole:    target.Role,
	}); err != nil {
		return nil, err
	}
	if departmentID != nil {
		if _, err := s.departments.GetByID(ctx, actor.OrganizationID(), *departmentID); err != nil {
			return nil, apperrors.MapError(err)
		}
	}
	if err := s.memberships.UpdateDepartment(ctx, actor.OrganizationID(), target.ID, departmentID); err != nil {
		return nil, apperrors.MapError(err)
	}
	target.DepartmentID = departmentID
	return target, nil
}

// RemoveMember deletes a membership. Removing the last active admin is
// refused the same way a demotion is.
func (s *MembershipService) RemoveMember(ctx context.Context, actor Actor, membershipID string) error {
	target, err := s.fetch(ctx, actor, membershipID)
	if err != nil {
		return err
	}
	if err := authz.Authorize(actor.Role(), authz.ActionMemberRemove, authz.Request{
		ActorIsTarget: target.ID == actor.ID(),
		TargetRole:    target.Role,
	}); err != nil {
		return err
	}

	if target.Role == domain.RoleAdmin && target.Status == domain.MembershipStatusActive {
		release, err := s.locker.Lock(ctx, actor.OrganizationID())
		if err != nil {
			return err
		}
		defer release()
	}

	ok, err := s.memberships.DeleteGuarded(ctx, actor.OrganizationID(), target.ID)
	if err != nil {
		return apperrors.MapError(err)
	}
	if !ok {
		return apperrors.NewConflict("cannot remove the last active admin", nil)
	}

	s.publishEvent(ctx, events.Event{
		Type:           events.EventMemberRemoved,
		OrganizationID: target.OrganizationID,
		Actor:          eventActor(actor),
		Payload: events.MemberRemovedPayload{
			MembershipID: target.ID,
			Role:         target.Role,
		},
	})
	return nil
}

// GetMember fetches a single membership in the actor's organization.
func (s *MembershipService) GetMember(ctx context.Context, actor Actor, membershipID string) (*domain.Membership, error) {
	return s.fetch(ctx, actor, membershipID)
}

// ListMembers lists memberships in the actor's organization.
func (s *MembershipService) ListMembers(ctx context.Context, actor Actor, filter repository.MembershipFilter) ([]domain.Membership, error) {
	return s.memberships.List(ctx, actor.OrganizationID(), filter)
}

// LinkPendingInvites activates every pending invite matching the email of a
// freshly registered user. Called by the registration flow.
func (s *MembershipService) LinkPendingInvites(ctx context.Context, userID, email string) error {
	invites, err := s.memberships.ListInvitedByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return apperrors.MapError(err)
	}
	for _, invite := range invites {
		if err := s.memberships.ActivateInvite(ctx, invite.ID, userID); err != nil {
			if s.logger != nil {
				s.logger.Warn("invite activation failed",
					zap.String("membership_id", invite.ID),
					zap.Error(err),
				)
			}
			continue
		}
	}
	return nil
}

func (s *MembershipService) fetch(ctx context.Context, actor Actor, membershipID string) (*domain.Membership, error) {
	m, err := s.memberships.GetByID(ctx, actor.OrganizationID(), membershipID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return m, nil
}

func (s *MembershipService) publishEvent(ctx context.Context, event events.Event) {
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
