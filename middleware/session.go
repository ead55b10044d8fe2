// middleware/session.go
package middleware

import (
	"errors"
	"strings"

	"scavenger-hunt/services"
	"scavenger-hunt/utils"

	"github.com/gofiber/fiber/v2"
)

const (
	LocalUserID    = "user_id"
	LocalUserEmail = "user_email"
	LocalRequestID = "request_id"
)

// SessionMiddleware resolves the Bearer session token to a user id and
// stores it in c.Locals for handlers.
func SessionMiddleware(idp services.IdentityProvider) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return unauthorized(c, "session token missing")
		}

		// Parse "Bearer <token>"; a raw token is accepted too
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			return unauthorized(c, "session token missing")
		}

		identity, err := idp.Identify(c.UserContext(), token)
		if err != nil {
			if errors.Is(err, services.ErrUnavailable) {
				utils.Sugar.Warnf("🔌 [SESSION] identity provider unavailable for %s: %v", c.Path(), err)
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"error":   "Unavailable",
					"message": "identity provider unavailable",
				})
			}
			utils.Sugar.Debugf("🚫 [SESSION] rejected token for %s (prefix: %.10s...): %v", c.Path(), token, err)
			return unauthorized(c, "invalid or expired session")
		}

		c.Locals(LocalUserID, identity.UserID)
		c.Locals(LocalUserEmail, identity.Email)
		return c.Next()
	}
}

// UserID returns the caller set by SessionMiddleware, or "".
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalUserID).(string)
	return id
}

// UserEmail returns the email claim of the session, if any.
func UserEmail(c *fiber.Ctx) string {
	email, _ := c.Locals(LocalUserEmail).(string)
	return email
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error":   "Unauthenticated",
		"message": msg,
	})
}
