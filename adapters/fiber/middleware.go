package fiber

import (
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/lborres/tanod/core"
)

// Locals keys set by Protected.
const (
	LocalAccount = "account"
	LocalSession = "session"
)

// Protected is a Fiber middleware that validates the session token and
// stores the account and session in the context for downstream handlers.
func (a *Adapter) Protected(c fiber.Ctx) error {
	if ok, err := a.authenticate(c); !ok {
		return err
	}
	return c.Next()
}

// guard runs h only for requests carrying a valid session.
func (a *Adapter) guard(h fiber.Handler) fiber.Handler {
	return func(c fiber.Ctx) error {
		if ok, err := a.authenticate(c); !ok {
			return err
		}
		return h(c)
	}
}

// authenticate stores the session in the locals and reports true, or
// writes the rejection and reports false.
func (a *Adapter) authenticate(c fiber.Ctx) (bool, error) {
	token := extractToken(c)
	if token == "" {
		return false, a.writeError(c, fiber.StatusUnauthorized, errMissingToken)
	}

	data, err := a.auth.ValidateSession(c.Context(), token)
	if err != nil {
		return false, a.handleError(c, err)
	}

	c.Locals(LocalAccount, data.Account)
	c.Locals(LocalSession, data.Session)
	return true, nil
}

// extractToken extracts the authentication token from the request.
// Checks Authorization header (Bearer token) first, then falls back to cookie.
func extractToken(c fiber.Ctx) string {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if token, ok := strings.CutPrefix(authHeader, "Bearer "); ok && token != "" {
		return strings.TrimSpace(token)
	}

	return c.Cookies(TokenCookie)
}

// AccountFrom returns the account stored by Protected, or nil.
func AccountFrom(c fiber.Ctx) *core.Account {
	acc, _ := c.Locals(LocalAccount).(*core.Account)
	return acc
}

// SessionFrom returns the session stored by Protected, or nil.
func SessionFrom(c fiber.Ctx) *core.Session {
	s, _ := c.Locals(LocalSession).(*core.Session)
	return s
}
