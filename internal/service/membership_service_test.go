package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/opsdesk/helpdesk/internal/domain"
	"github.com/opsdesk/helpdesk/internal/persistence"
	apperrors "github.com/opsdesk/helpdesk/pkg/util"
)

type membershipFixture struct {
	svc         *MembershipService
	memberships *fakeMembershipRepo
	departments *fakeDepartmentRepo
	users       *fakeUserRepo
	dispatcher  *captureDispatcher
}

func newMembershipFixture() *membershipFixture {
	f := &membershipFixture{
		memberships: newFakeMembershipRepo(),
		departments: newFakeDepartmentRepo(),
		users:       newFakeUserRepo(),
		dispatcher:  &captureDispatcher{},
	}
	f.svc = NewMembershipService(MembershipDependencies{
		MembershipRepo: f.memberships,
		DepartmentRepo: f.departments,
		UserRepo:       f.users,
		Locker:         persistence.NewOrgLocker(nil, zap.NewNop()),
		Dispatcher:     f.dispatcher,
		Logger:         zap.NewNop(),
	})
	return f
}

func (f *membershipFixture) active(orgID, email string, role domain.Role) Actor {
	m := f.memberships.seed(domain.Membership{
		OrganizationID: orgID,
		Email:          email,
		Role:           role,
		Status:         domain.MembershipStatusActive,
	})
	return Actor{Membership: m}
}

func TestAddMember_UnknownEmailBecomesInvite(t *testing.T) {
	f := newMembershipFixture()
	admin := f.active("org1", "admin@example.com", domain.RoleAdmin)

	m, err := f.svc.AddMember(context.Background(), admin, MemberAddInput{
		Email: "New.Person@Example.com",
		Role:  domain.RoleEmployee,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.MembershipStatusInvited, m.Status)
	assert.Equal(t, "new.person@example.com", m.Email)
	assert.Nil(t, m.UserID)
}

func TestAddMember_KnownUserJoinsActive(t *testing.T) {
	f := newMembershipFixture()
	admin := f.active("org1", "admin@example.com", domain.RoleAdmin)
	user := f.users.seed(domain.User{Name: "Jo", Email: "jo@example.com"})

	m, err := f.svc.AddMember(context.Background(), admin, MemberAddInput{
		Email: "jo@example.com",
		Role:  domain.RoleResolver,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.MembershipStatusActive, m.Status)
	require.NotNil(t, m.UserID)
	assert.Equal(t, user.ID, *m.UserID)
	require.NotNil(t, m.JoinedAt)
}

func TestAddMember_DuplicateEmailConflicts(t *testing.T) {
	f := newMembershipFixture()
	admin := f.active("org1", "admin@example.com", domain.RoleAdmin)

	_, err := f.svc.AddMember(context.Background(), admin, MemberAddInput{
		Email: "dup@example.com", Role: domain.RoleEmployee,
	})
	require.NoError(t, err)

	_, err = f.svc.AddMember(context.Background(), admin, MemberAddInput{
		Email: "DUP@example.com", Role: domain.RoleEmployee,
	})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict))
}

func TestAddMember_SameEmailDifferentOrganizationsAllowed(t *testing.T) {
	f := newMembershipFixture()
	adminA := f.active("org1", "a@example.com", domain.RoleAdmin)
	adminB := f.active("org2", "b@example.com", domain.RoleAdmin)

	_, err := f.svc.AddMember(context.Background(), adminA, MemberAddInput{
		Email: "shared@example.com", Role: domain.RoleEmployee,
	})
	require.NoError(t, err)
	_, err = f.svc.AddMember(context.Background(), adminB, MemberAddInput{
		Email: "shared@example.com", Role: domain.RoleManager,
	})
	assert.NoError(t, err)
}

func TestAddMember_ManagerCannotMintAdmin(t *testing.T) {
	f := newMembershipFixture()
	manager := f.active("org1", "manager@example.com", domain.RoleManager)

	_, err := f.svc.AddMember(context.Background(), manager, MemberAddInput{
		Email: "new@example.com", Role: domain.RoleAdmin,
	})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))
}

func TestChangeRole_DemotionWithBackupAdminSucceeds(t *testing.T) {
	f := newMembershipFixture()
	adminA := f.active("org1", "a@example.com", domain.RoleAdmin)
	adminB := f.active("org1", "b@example.com", domain.RoleAdmin)

	demoted, err := f.svc.ChangeRole(context.Background(), adminA, adminB.ID(), domain.RoleManager)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleManager, demoted.Role)
}

func TestChangeRole_LastAdminGuardConflicts(t *testing.T) {
	f := newMembershipFixture()
	adminA := f.active("org1", "a@example.com", domain.RoleAdmin)
	adminB := f.active("org1", "b@example.com", domain.RoleAdmin)

	// Simulate the race: A's session still believes A is an admin, but a
	// concurrent demotion already landed. B is now the last active admin.
	_, err := f.memberships.UpdateRoleGuarded(context.Background(), "org1", adminA.ID(), domain.RoleManager)
	require.NoError(t, err)

	_, err = f.svc.ChangeRole(context.Background(), adminA, adminB.ID(), domain.RoleEmployee)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict),
		"demoting the last active admin must conflict, not succeed")

	// B is untouched
	b, err := f.memberships.GetByID(context.Background(), "org1", adminB.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, b.Role)
}

func TestChangeRole_ManagerCannotTouchAdmins(t *testing.T) {
	f := newMembershipFixture()
	manager := f.active("org1", "manager@example.com", domain.RoleManager)
	admin := f.active("org1", "admin@example.com", domain.RoleAdmin)
	f.active("org1", "backup@example.com", domain.RoleAdmin)

	// Denied outright, never silently downgraded to a lesser change.
	_, err := f.svc.ChangeRole(context.Background(), manager, admin.ID(), domain.RoleEmployee)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))

	got, err := f.memberships.GetByID(context.Background(), "org1", admin.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, got.Role, "target must be untouched after a deny")
}

func TestChangeRole_ManagerCannotPromoteToAdmin(t *testing.T) {
	f := newMembershipFixture()
	manager := f.active("org1", "manager@example.com", domain.RoleManager)
	employee := f.active("org1", "emp@example.com", domain.RoleEmployee)

	_, err := f.svc.ChangeRole(context.Background(), manager, employee.ID(), domain.RoleAdmin)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))
}

func TestChangeRole_SelfModificationBanned(t *testing.T) {
	f := newMembershipFixture()
	admin := f.active("org1", "admin@example.com", domain.RoleAdmin)
	f.active("org1", "backup@example.com", domain.RoleAdmin)

	_, err := f.svc.ChangeRole(context.Background(), admin, admin.ID(), domain.RoleEmployee)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden),
		"even with another admin present, self-demotion is banned outright")
}

func TestRemoveMember_LastAdminGuardConflicts(t *testing.T) {
	f := newMembershipFixture()
	adminA := f.active("org1", "a@example.com", domain.RoleAdmin)
	adminB := f.active("org1", "b@example.com", domain.RoleAdmin)

	// Same race shape as the demotion case: A's admin role is stale.
	_, err := f.memberships.UpdateRoleGuarded(context.Background(), "org1", adminA.ID(), domain.RoleManager)
	require.NoError(t, err)

	err = f.svc.RemoveMember(context.Background(), adminA, adminB.ID())
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict))

	_, err = f.memberships.GetByID(context.Background(), "org1", adminB.ID())
	assert.NoError(t, err, "the last admin must still exist")
}

func TestRemoveMember_OtherOrgAdminsDoNotCount(t *testing.T) {
	f := newMembershipFixture()
	adminA := f.active("org1", "a@example.com", domain.RoleAdmin)
	adminB := f.active("org1", "b@example.com", domain.RoleAdmin)
	// plenty of admins elsewhere
	f.active("org2", "x@example.com", domain.RoleAdmin)
	f.active("org2", "y@example.com", domain.RoleAdmin)

	_, err := f.memberships.UpdateRoleGuarded(context.Background(), "org1", adminA.ID(), domain.RoleManager)
	require.NoError(t, err)

	err = f.svc.RemoveMember(context.Background(), adminA, adminB.ID())
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict),
		"admin counts are per organization")
}

func TestRemoveMember_SelfRemovalBanned(t *testing.T) {
	f := newMembershipFixture()
	admin := f.active("org1", "admin@example.com", domain.RoleAdmin)
	f.active("org1", "backup@example.com", domain.RoleAdmin)

	err := f.svc.RemoveMember(context.Background(), admin, admin.ID())
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))
}

func TestRemoveMember_PublishesEvent(t *testing.T) {
	f := newMembershipFixture()
	admin := f.active("org1", "admin@example.com", domain.RoleAdmin)
	employee := f.active("org1", "emp@example.com", domain.RoleEmployee)

	require.NoError(t, f.svc.RemoveMember(context.Background(), admin, employee.ID()))
	published := f.dispatcher.published("member_removed")
	require.Len(t, published, 1)
	assert.Equal(t, "org1", published[0].OrganizationID)
}

func TestChangeDepartment_ManagerCannotTouchAdmin(t *testing.T) {
	f := newMembershipFixture()
	f.departments.seed("org1", "d1", "IT")
	manager := f.active("org1", "manager@example.com", domain.RoleManager)
	admin := f.active("org1", "admin@example.com", domain.RoleAdmin)
	employee := f.active("org1", "emp@example.com", domain.RoleEmployee)

	dept := "d1"
	_, err := f.svc.ChangeDepartment(context.Background(), manager, admin.ID(), &dept)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))

	moved, err := f.svc.ChangeDepartment(context.Background(), manager, employee.ID(), &dept)
	require.NoError(t, err)
	require.NotNil(t, moved.DepartmentID)
	assert.Equal(t, "d1", *moved.DepartmentID)
}

func TestChangeDepartment_UnknownDepartmentRejected(t *testing.T) {
	f := newMembershipFixture()
	admin := f.active("org1", "admin@example.com", domain.RoleAdmin)
	employee := f.active("org1", "emp@example.com", domain.RoleEmployee)

	dept := "no-such-dept"
	_, err := f.svc.ChangeDepartment(context.Background(), admin, employee.ID(), &dept)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))
}

func TestLinkPendingInvites_ActivatesAcrossOrganizations(t *testing.T) {
	f := newMembershipFixture()
	adminA := f.active("org1", "a@example.com", domain.RoleAdmin)
	adminB := f.active("org2", "b@example.com", domain.RoleAdmin)

	_, err := f.svc.AddMember(context.Background(), adminA, MemberAddInput{
		Email: "late@example.com", Role: domain.RoleEmployee,
	})
	require.NoError(t, err)
	_, err = f.svc.AddMember(context.Background(), adminB, MemberAddInput{
		Email: "late@example.com", Role: domain.RoleResolver,
	})
	require.NoError(t, err)

	user := f.users.seed(domain.User{Name: "Late", Email: "late@example.com"})
	require.NoError(t, f.svc.LinkPendingInvites(context.Background(), user.ID, "late@example.com"))

	for _, org := range []string{"org1", "org2"} {
		m, err := f.memberships.GetByEmail(context.Background(), org, "late@example.com")
		require.NoError(t, err)
		assert.Equal(t, domain.MembershipStatusActive, m.Status, "org %s", org)
		require.NotNil(t, m.UserID)
		assert.Equal(t, user.ID, *m.UserID)
	}
}

func TestCrossTenant_TargetInvisible(t *testing.T) {
	f := newMembershipFixture()
	adminOrg1 := f.active("org1", "a@example.com", domain.RoleAdmin)
	victim := f.active("org2", "v@example.com", domain.RoleEmployee)

	_, err := f.svc.ChangeRole(context.Background(), adminOrg1, victim.ID(), domain.RoleManager)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound),
		"a membership in another organization reads as nonexistent")
}
