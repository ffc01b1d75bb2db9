package delegation

import (
	"context"

	"github.com/google/uuid"

	"github.com/opsdesk/helpdesk/internal/domain"
	"github.com/opsdesk/helpdesk/internal/repository"
	apperrors "github.com/opsdesk/helpdesk/pkg/util"
)

// Verifier resolves the per-call user token to the acting membership. The
// user token is the literal membership identifier sourced from the end
// user's session; it must belong to the organization named by the
// tool-context token and be active.
type Verifier struct {
	memberships repository.MembershipRepository
}

// NewVerifier constructs the verifier.
func NewVerifier(memberships repository.MembershipRepository) *Verifier {
	return &Verifier{memberships: memberships}
}

// VerifyUserToken returns the acting membership or the uniform
// authorization denial. Not-found, cross-tenant, and inactive all collapse
// into the same error so nothing about other tenants' members leaks.
func (v *Verifier) VerifyUserToken(ctx context.Context, payload *ContextPayload, userToken string) (*domain.Membership, error) {
	if payload == nil {
		return nil, apperrors.NewForbidden()
	}
	if _, err := uuid.Parse(userToken); err != nil {
		return nil, apperrors.NewForbidden()
	}
	member, err := v.memberships.GetByID(ctx, payload.OrganizationID, userToken)
	if err != nil {
		// Lookup is already scoped by the context token's organization, so a
		// membership from another tenant comes back as no-rows here.
		return nil, apperrors.NewForbidden()
	}
	if member.Status != domain.MembershipStatusActive {
		return nil, apperrors.NewForbidden()
	}
	return member, nil
}
