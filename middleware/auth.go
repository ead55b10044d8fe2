// middleware/auth.go
package middleware

import (
	"context"
	"errors"

	"scavenger-hunt/models"
	"scavenger-hunt/services"
	"scavenger-hunt/utils"

	"github.com/gofiber/fiber/v2"
)

// ProfileLookup finds the stored profile of a caller.
type ProfileLookup interface {
	GetProfile(ctx context.Context, userID string) (*models.User, error)
}

// RequireAdmin lets through only callers whose profile carries the admin flag.
// It must run after SessionMiddleware.
func RequireAdmin(profiles ProfileLookup) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := UserID(c)
		if userID == "" {
			return unauthorized(c, "session required")
		}

		user, err := profiles.GetProfile(c.UserContext(), userID)
		switch {
		case errors.Is(err, services.ErrUserNotFound):
			// no profile, no admin rights
		case err != nil:
			utils.Sugar.Errorf("❌ [ADMIN] profile lookup failed for %s: %v", userID, err)
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"error":   services.Kind(err),
				"message": "could not verify admin rights",
			})
		case user.IsAdmin:
			return c.Next()
		}

		utils.Sugar.Warnf("🚫 [ADMIN] %s denied on %s %s", userID, c.Method(), c.Path())
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "Forbidden",
			"message": "admin access required",
		})
	}
}
