package delegation

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/opsdesk/helpdesk/pkg/util"
)

// HeaderToolContext carries the tool-context token on every agent call.
const HeaderToolContext = "X-Tool-Context"

const contextPayloadKey = "delegation_context"

// Middleware validates the tool-context token header and stores the
// decrypted payload for handlers.
type Middleware struct {
	sealer *TokenSealer
}

// NewMiddleware constructs middleware.
func NewMiddleware(sealer *TokenSealer) *Middleware {
	return &Middleware{sealer: sealer}
}

// Handle enforces the tool-context token on agent tool routes.
func (m *Middleware) Handle(c *fiber.Ctx) error {
	token := c.Get(HeaderToolContext)
	if token == "" {
		return apperrors.NewForbidden()
	}
	payload, err := m.sealer.Open(token)
	if err != nil {
		return apperrors.NewForbidden()
	}
	c.Locals(contextPayloadKey, payload)
	return c.Next()
}

// PayloadFromContext retrieves the verified tool-context payload.
func PayloadFromContext(c *fiber.Ctx) (*ContextPayload, bool) {
	val := c.Locals(contextPayloadKey)
	if val == nil {
		return nil, false
	}
	payload, ok := val.(*ContextPayload)
	return payload, ok
}
