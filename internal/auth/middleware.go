package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"

	"github.com/opsdesk/helpdesk/internal/domain"
	"github.com/opsdesk/helpdesk/internal/repository"
	apperrors "github.com/opsdesk/helpdesk/pkg/util"
)

const (
	principalKey = "auth_principal"
	actorKey     = "auth_actor"
)

// Principal represents the authenticated store-level identity.
type Principal struct {
	User *domain.User
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens      *TokenManager
	users       repository.UserRepository
	memberships repository.MembershipRepository
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, users repository.UserRepository, memberships repository.MembershipRepository) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, users: users, memberships: memberships}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	user, err := m.users.GetByID(c.Context(), claims.UserID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.NewUnauthorized("user not found")
		}
		return apperrors.MapError(err)
	}

	c.Locals(principalKey, &Principal{User: user})
	return c.Next()
}

// RequireMembership resolves the caller's active membership in the
// organization named by the :org_id route param. A missing membership is
// reported as organization-not-found so nothing about other tenants leaks.
func (m *AuthMiddleware) RequireMembership(c *fiber.Ctx) error {
	principal, ok := PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	orgID := c.Params("org_id")
	if orgID == "" {
		return apperrors.NewValidationError("organization id required", nil)
	}

	member, err := m.memberships.GetByUser(c.Context(), orgID, principal.User.ID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.NewNotFound("organization", nil)
		}
		return apperrors.MapError(err)
	}
	if member.Status != domain.MembershipStatusActive {
		return apperrors.NewForbidden()
	}

	c.Locals(actorKey, member)
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated identity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}

// ActorFromContext retrieves the caller's membership in the routed
// organization.
func ActorFromContext(c *fiber.Ctx) (*domain.Membership, bool) {
	val := c.Locals(actorKey)
	if val == nil {
		return nil, false
	}
	member, ok := val.(*domain.Membership)
	return member, ok
}
