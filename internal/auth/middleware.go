package auth

import (
	"strings"

	"tallyboard/internal/models"

	"github.com/gofiber/fiber/v2"
)

// Locals keys set by the middleware
const (
	sessionLocalKey = "session"
	tokenLocalKey   = "token"
)

// RequireSession resolves the token from the Authorization header and
// injects the session into the request context. Requests without a valid
// session get a 401.
func (m *SessionManager) RequireSession() fiber.Handler {
	return m.RequireRole("")
}

// RequireRole is RequireSession plus a role gate; a mismatched role is 403.
// An empty role accepts any authenticated session.
func (m *SessionManager) RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := tokenFromHeader(c)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(models.ErrorResponse{
				Error: "Missing session token",
			})
		}

		session, err := m.GetSession(c.Context(), token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(models.ErrorResponse{
				Error:   "Invalid session",
				Message: err.Error(),
			})
		}

		if role != "" && session.Role != role {
			return c.Status(fiber.StatusForbidden).JSON(models.ErrorResponse{
				Error: "Insufficient role",
			})
		}

		c.Locals(sessionLocalKey, session)
		c.Locals(tokenLocalKey, token)
		return c.Next()
	}
}

// SessionFromCtx returns the session injected by RequireRole
func SessionFromCtx(c *fiber.Ctx) models.Session {
	session, _ := c.Locals(sessionLocalKey).(models.Session)
	return session
}

// TokenFromCtx returns the raw token injected by RequireRole
func TokenFromCtx(c *fiber.Ctx) string {
	token, _ := c.Locals(tokenLocalKey).(string)
	return token
}

func tokenFromHeader(c *fiber.Ctx) string {
	header := c.Get(fiber.HeaderAuthorization)
	if after, ok := strings.CutPrefix(header, "Bearer "); ok {
		return after
	}
	return header
}
