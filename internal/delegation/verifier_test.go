package delegation

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk/helpdesk/internal/domain"
	"github.com/opsdesk/helpdesk/internal/repository"
	apperrors "github.com/opsdesk/helpdesk/pkg/util"
)

// fakeMembershipStore backs the verifier tests with a map keyed by
// (organization, membership id) so cross-tenant lookups miss like the real
// scoped query does.
type fakeMembershipStore struct {
	repository.MembershipRepository
	byOrgAndID map[[2]string]*domain.Membership
}

func (f *fakeMembershipStore) GetByID(_ context.Context, orgID, id string) (*domain.Membership, error) {
	if m, ok := f.byOrgAndID[[2]string{orgID, id}]; ok {
		copied := *m
		return &copied, nil
	}
	return nil, pgx.ErrNoRows
}

const (
	orgA     = "0f0e0d0c-aaaa-4bbb-8ccc-dddd00001111"
	orgB     = "1a1b1c1d-bbbb-4ccc-8ddd-eeee00002222"
	memberA  = "7b9f8a2e-1111-4222-8333-444455556666"
	memberB  = "8c0f9b3f-2222-4333-8444-555566667777"
	inactive = "9d1f0c4f-3333-4444-8555-666677778888"
)

func newVerifier() *Verifier {
	store := &fakeMembershipStore{byOrgAndID: map[[2]string]*domain.Membership{
		{orgA, memberA}:  {ID: memberA, OrganizationID: orgA, Role: domain.RoleManager, Status: domain.MembershipStatusActive},
		{orgB, memberB}:  {ID: memberB, OrganizationID: orgB, Role: domain.RoleAdmin, Status: domain.MembershipStatusActive},
		{orgA, inactive}: {ID: inactive, OrganizationID: orgA, Role: domain.RoleResolver, Status: domain.MembershipStatusInactive},
	}}
	return NewVerifier(store)
}

func payloadForOrgA() *ContextPayload {
	return &ContextPayload{
		MemberID:         memberA,
		MemberEmail:      "admin@acme.test",
		OrganizationID:   orgA,
		OrganizationName: "Acme",
	}
}

func TestVerifyUserToken_Success(t *testing.T) {
	member, err := newVerifier().VerifyUserToken(context.Background(), payloadForOrgA(), memberA)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleManager, member.Role)
	assert.Equal(t, orgA, member.OrganizationID)
}

func TestVerifyUserToken_CrossTenantDelegation(t *testing.T) {
	// Valid context token for org A, user token naming a membership in org
	// B: denied, and indistinguishable from any other denial.
	member, err := newVerifier().VerifyUserToken(context.Background(), payloadForOrgA(), memberB)
	assert.Nil(t, member)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))
}

func TestVerifyUserToken_InactiveMembership(t *testing.T) {
	_, err := newVerifier().VerifyUserToken(context.Background(), payloadForOrgA(), inactive)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))
}

func TestVerifyUserToken_BadFormat(t *testing.T) {
	_, err := newVerifier().VerifyUserToken(context.Background(), payloadForOrgA(), "not-a-uuid")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))
}

func TestVerifyUserToken_NilPayload(t *testing.T) {
	_, err := newVerifier().VerifyUserToken(context.Background(), nil, memberA)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))
}
