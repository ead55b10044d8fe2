package handlers

import (
	"context"

	"scavenger-hunt/middleware"
	"scavenger-hunt/services"

	"github.com/gofiber/fiber/v2"
)

// LeaderboardExporter publishes a leaderboard snapshot and returns where it landed.
type LeaderboardExporter interface {
	ExportOnce(ctx context.Context) (string, error)
}

// Deps is everything the routes call into.
type Deps struct {
	Identity services.IdentityProvider
	Users    *services.UserService
	Redeem   *services.RedemptionService
	Progress *services.ProgressService
	Claims   *services.ClaimService
	Catalog  *services.CatalogService

	RedeemLimiter *middleware.RateLimiter
	Exporter      LeaderboardExporter // nil when object storage is not configured
}

// Setup mounts the health check, player and admin routes.
func Setup(app *fiber.App, d Deps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// admin first: the player group is mounted at "/" and would match /admin too
	session := middleware.SessionMiddleware(d.Identity)
	SetupAdminRoutes(app.Group("/admin", session, middleware.RequireAdmin(d.Users)), d)
	SetupPlayerRoutes(app.Group("/", session), d)
}
