package domain

import "time"

// Role enumerates member roles within an organization, ordered
// employee < resolver < manager < admin for escalation checks.
type Role string

const (
	RoleEmployee Role = "employee"
	RoleResolver Role = "resolver"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
)

var roleRank = map[Role]int{
	RoleEmployee: 0,
	RoleResolver: 1,
	RoleManager:  2,
	RoleAdmin:    3,
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

// AtLeast reports whether r ranks at or above other in the role order.
func (r Role) AtLeast(other Role) bool {
	return roleRank[r] >= roleRank[other]
}

// IsStaff reports whether the role can work tickets beyond its own.
func (r Role) IsStaff() bool {
	return r == RoleResolver || r == RoleManager || r == RoleAdmin
}

// MembershipStatus enumerates membership lifecycle states.
type MembershipStatus string

const (
	MembershipStatusInvited  MembershipStatus = "invited"
	MembershipStatusActive   MembershipStatus = "active"
	MembershipStatusInactive MembershipStatus = "inactive"
)

// Membership is a person's role record within one organization, keyed
// uniquely by (organization, email).
type Membership struct {
	ID             string
	OrganizationID string
	Email          string
	UserID         *string
	Role           Role
	Status         MembershipStatus
	DepartmentID   *string
	InvitedBy      string
	InvitedAt      time.Time
	JoinedAt       *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
