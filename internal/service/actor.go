package service

import "github.com/opsdesk/helpdesk/internal/domain"

// Actor is the acting membership for a service call, resolved either from a
// human session or from the agent delegation tokens.
type Actor struct {
	Membership *domain.Membership
	// ViaAgent marks calls arriving through the delegation protocol; it
	// only affects message author tagging and event metadata, never
	// authorization.
	ViaAgent bool
}

// Role returns the actor's effective role.
func (a Actor) Role() domain.Role {
	if a.Membership == nil {
		return ""
	}
	return a.Membership.Role
}

// ID returns the actor's membership identifier.
func (a Actor) ID() string {
	if a.Membership == nil {
		return ""
	}
	return a.Membership.ID
}

// OrganizationID returns the tenant the actor is operating in.
func (a Actor) OrganizationID() string {
	if a.Membership == nil {
		return ""
	}
	return a.Membership.OrganizationID
}
