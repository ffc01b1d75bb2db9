package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/opsdesk/helpdesk/internal/domain"
	apperrors "github.com/opsdesk/helpdesk/pkg/util"
)

var allRoles = []domain.Role{domain.RoleEmployee, domain.RoleResolver, domain.RoleManager, domain.RoleAdmin}

func TestDecide_TicketCreate_AllRoles(t *testing.T) {
	for _, role := range allRoles {
		assert.True(t, Decide(role, ActionTicketCreate, Request{}), "role %s", role)
	}
}

func TestDecide_TicketView(t *testing.T) {
	assert.False(t, Decide(domain.RoleEmployee, ActionTicketView, Request{}))
	assert.True(t, Decide(domain.RoleEmployee, ActionTicketView, Request{ActorIsCreator: true}))
	for _, role := range []domain.Role{domain.RoleResolver, domain.RoleManager, domain.RoleAdmin} {
		assert.True(t, Decide(role, ActionTicketView, Request{}), "role %s", role)
	}
}

func TestDecide_TicketEditFields(t *testing.T) {
	assert.False(t, Decide(domain.RoleEmployee, ActionTicketEditFields, Request{ActorIsCreator: true}))
	for _, role := range []domain.Role{domain.RoleResolver, domain.RoleManager, domain.RoleAdmin} {
		assert.True(t, Decide(role, ActionTicketEditFields, Request{}), "role %s", role)
	}
}

func TestDecide_TicketChangeStatus_Employee(t *testing.T) {
	cases := []struct {
		name    string
		req     Request
		allowed bool
	}{
		{"own ticket to resolved", Request{ActorIsCreator: true, TargetStatus: domain.TicketStatusResolved}, true},
		{"own ticket to closed", Request{ActorIsCreator: true, TargetStatus: domain.TicketStatusClosed}, true},
		{"own ticket to in_progress", Request{ActorIsCreator: true, TargetStatus: domain.TicketStatusInProgress}, false},
		{"own ticket to pending_information", Request{ActorIsCreator: true, TargetStatus: domain.TicketStatusPendingInformation}, false},
		{"foreign ticket to resolved", Request{TargetStatus: domain.TicketStatusResolved}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.allowed, Decide(domain.RoleEmployee, ActionTicketChangeStatus, tc.req))
		})
	}
}

func TestDecide_TicketChangeStatus_Staff(t *testing.T) {
	for _, role := range []domain.Role{domain.RoleResolver, domain.RoleManager, domain.RoleAdmin} {
		assert.True(t, Decide(role, ActionTicketChangeStatus, Request{TargetStatus: domain.TicketStatusInProgress}), "role %s", role)
	}
}

func TestDecide_AssignAndReassign_ManagerUp(t *testing.T) {
	for _, action := range []Action{ActionTicketAssign, ActionTicketReassignDept, ActionDepartmentManage} {
		assert.False(t, Decide(domain.RoleEmployee, action, Request{}), "action %s", action)
		assert.False(t, Decide(domain.RoleResolver, action, Request{}), "action %s", action)
		assert.True(t, Decide(domain.RoleManager, action, Request{}), "action %s", action)
		assert.True(t, Decide(domain.RoleAdmin, action, Request{}), "action %s", action)
	}
}

func TestDecide_InternalMessage_ResolverUp(t *testing.T) {
	assert.False(t, Decide(domain.RoleEmployee, ActionMessagePostInternal, Request{ActorIsCreator: true}))
	for _, role := range []domain.Role{domain.RoleResolver, domain.RoleManager, domain.RoleAdmin} {
		assert.True(t, Decide(role, ActionMessagePostInternal, Request{}), "role %s", role)
	}
}

func TestDecide_MemberAdd(t *testing.T) {
	assert.False(t, Decide(domain.RoleEmployee, ActionMemberAdd, Request{ResultRole: domain.RoleEmployee}))
	assert.False(t, Decide(domain.RoleResolver, ActionMemberAdd, Request{ResultRole: domain.RoleEmployee}))
	assert.True(t, Decide(domain.RoleManager, ActionMemberAdd, Request{ResultRole: domain.RoleResolver}))
	assert.False(t, Decide(domain.RoleManager, ActionMemberAdd, Request{ResultRole: domain.RoleAdmin}))
	assert.True(t, Decide(domain.RoleAdmin, ActionMemberAdd, Request{ResultRole: domain.RoleAdmin}))
}

func TestDecide_MemberChangeRole_ManagerNeverTouchesAdmin(t *testing.T) {
	// Manager attempting any admin-targeted or admin-producing change is a
	// deny, never a silent downgrade.
	assert.False(t, Decide(domain.RoleManager, ActionMemberChangeRole, Request{TargetRole: domain.RoleAdmin, ResultRole: domain.RoleManager}))
	assert.False(t, Decide(domain.RoleManager, ActionMemberChangeRole, Request{TargetRole: domain.RoleResolver, ResultRole: domain.RoleAdmin}))
	assert.True(t, Decide(domain.RoleManager, ActionMemberChangeRole, Request{TargetRole: domain.RoleResolver, ResultRole: domain.RoleManager}))
	assert.True(t, Decide(domain.RoleAdmin, ActionMemberChangeRole, Request{TargetRole: domain.RoleAdmin, ResultRole: domain.RoleManager}))
}

func TestDecide_MemberRemove(t *testing.T) {
	assert.True(t, Decide(domain.RoleManager, ActionMemberRemove, Request{TargetRole: domain.RoleResolver}))
	assert.False(t, Decide(domain.RoleManager, ActionMemberRemove, Request{TargetRole: domain.RoleAdmin}))
	assert.True(t, Decide(domain.RoleAdmin, ActionMemberRemove, Request{TargetRole: domain.RoleAdmin}))
}

func TestDecide_SelfModificationBan(t *testing.T) {
	// Even admins may never modify or remove their own membership record.
	for _, role := range allRoles {
		for action := range membershipActions {
			assert.False(t, Decide(role, action, Request{ActorIsTarget: true, TargetRole: role, ResultRole: role}),
				"role %s action %s", role, action)
		}
	}
}

func TestDecide_UnknownActionAndRole(t *testing.T) {
	assert.False(t, Decide(domain.RoleAdmin, Action("ticket.delete"), Request{}))
	assert.False(t, Decide(domain.Role("owner"), ActionTicketView, Request{}))
}

func TestDecide_IsPure(t *testing.T) {
	req := Request{ActorIsCreator: true, TargetStatus: domain.TicketStatusResolved}
	first := Decide(domain.RoleEmployee, ActionTicketChangeStatus, req)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, Decide(domain.RoleEmployee, ActionTicketChangeStatus, req))
	}
}

func TestAuthorize_DenyIsOpaque(t *testing.T) {
	err := Authorize(domain.RoleEmployee, ActionTicketAssign, Request{})
	assert.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))
	assert.Equal(t, "not authorized", apperrors.ToDomainError(err).Message)
}
