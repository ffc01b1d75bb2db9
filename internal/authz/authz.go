// Package authz is the capability model: a pure, table-driven decision
// function gating every mutation across tickets, departments, and
// memberships. It performs no I/O; callers supply the actor relationship
// facts it needs.
package authz

import (
	"github.com/opsdesk/helpdesk/internal/domain"
	apperrors "github.com/opsdesk/helpdesk/pkg/util"
)

// Action enumerates the operations the capability table covers.
type Action string

const (
	ActionTicketCreate           Action = "ticket.create"
	ActionTicketView             Action = "ticket.view"
	ActionTicketEditFields       Action = "ticket.edit_fields"
	ActionTicketChangeStatus     Action = "ticket.change_status"
	ActionTicketAssign           Action = "ticket.assign"
	ActionTicketReassignDept     Action = "ticket.reassign_department"
	ActionMessagePostInternal    Action = "message.post_internal"
	ActionDepartmentManage       Action = "department.manage"
	ActionMemberAdd              Action = "member.add"
	ActionMemberChangeRole       Action = "member.change_role"
	ActionMemberChangeDepartment Action = "member.change_department"
	ActionMemberRemove           Action = "member.remove"
)

// Request carries the actor-relationship context a decision depends on.
// Zero values are safe: an absent fact reads as "not established" and the
// table fails closed.
type Request struct {
	// ActorIsCreator is true when the actor created the target ticket.
	ActorIsCreator bool
	// ActorIsTarget is true when the target membership is the actor's own.
	ActorIsTarget bool
	// TargetStatus is the requested ticket status for status changes.
	TargetStatus domain.TicketStatus
	// TargetRole is the current role of the target membership.
	TargetRole domain.Role
	// ResultRole is the role the operation would leave the target with.
	ResultRole domain.Role
}

// rule resolves a single table cell given the request context.
type rule func(Request) bool

var always rule = func(Request) bool { return true }

// capabilityTable maps action × role to a decision rule. A missing cell is
// a deny.
var capabilityTable = map[Action]map[domain.Role]rule{
	ActionTicketCreate: {
		domain.RoleEmployee: always,
		domain.RoleResolver: always,
		domain.RoleManager:  always,
		domain.RoleAdmin:    always,
	},
	ActionTicketView: {
		domain.RoleEmployee: func(r Request) bool { return r.ActorIsCreator },
		domain.RoleResolver: always,
		domain.RoleManager:  always,
		domain.RoleAdmin:    always,
	},
	ActionTicketEditFields: {
		domain.RoleResolver: always,
		domain.RoleManager:  always,
		domain.RoleAdmin:    always,
	},
	ActionTicketChangeStatus: {
		domain.RoleEmployee: func(r Request) bool {
			if !r.ActorIsCreator {
				return false
			}
			return r.TargetStatus == domain.TicketStatusResolved || r.TargetStatus == domain.TicketStatusClosed
		},
		domain.RoleResolver: always,
		domain.RoleManager:  always,
		domain.RoleAdmin:    always,
	},
	ActionTicketAssign: {
		domain.RoleManager: always,
		domain.RoleAdmin:   always,
	},
	ActionTicketReassignDept: {
		domain.RoleManager: always,
		domain.RoleAdmin:   always,
	},
	ActionMessagePostInternal: {
		domain.RoleResolver: always,
		domain.RoleManager:  always,
		domain.RoleAdmin:    always,
	},
	ActionDepartmentManage: {
		domain.RoleManager: always,
		domain.RoleAdmin:   always,
	},
	ActionMemberAdd: {
		domain.RoleManager: func(r Request) bool { return r.ResultRole != domain.RoleAdmin },
		domain.RoleAdmin:   always,
	},
	ActionMemberChangeRole: {
		domain.RoleManager: func(r Request) bool {
			return r.TargetRole != domain.RoleAdmin && r.ResultRole != domain.RoleAdmin
		},
		domain.RoleAdmin: always,
	},
	ActionMemberChangeDepartment: {
		domain.RoleManager: func(r Request) bool { return r.TargetRole != domain.RoleAdmin },
		domain.RoleAdmin:   always,
	},
	ActionMemberRemove: {
		domain.RoleManager: func(r Request) bool { return r.TargetRole != domain.RoleAdmin },
		domain.RoleAdmin:   always,
	},
}

// membershipActions are subject to the self-modification ban: an actor may
// never modify or remove their own membership record, whatever their role.
var membershipActions = map[Action]struct{}{
	ActionMemberChangeRole:       {},
	ActionMemberChangeDepartment: {},
	ActionMemberRemove:           {},
}

// Decide is the pure capability decision: same inputs always yield the same
// answer.
func Decide(role domain.Role, action Action, req Request) bool {
	if _, selfGuarded := membershipActions[action]; selfGuarded && req.ActorIsTarget {
		return false
	}
	byRole, ok := capabilityTable[action]
	if !ok {
		return false
	}
	cell, ok := byRole[role]
	if !ok {
		return false
	}
	return cell(req)
}

// Authorize returns the uniform authorization error on deny. The error
// deliberately carries no detail about which rule failed.
func Authorize(role domain.Role, action Action, req Request) error {
	if !Decide(role, action, req) {
		return apperrors.NewForbidden()
	}
	return nil
}
