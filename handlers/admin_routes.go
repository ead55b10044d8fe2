// handlers/admin_routes.go
package handlers

import (
	"scavenger-hunt/middleware"
	"scavenger-hunt/services"
	"scavenger-hunt/utils"

	"github.com/gofiber/fiber/v2"
)

// SetupAdminRoutes mounts the dashboard API. r must already carry the
// session and admin middleware.
func SetupAdminRoutes(r fiber.Router, d Deps) {
	// 🏆 Leaderboard
	r.Get("/leaderboard", func(c *fiber.Ctx) error {
		entries, err := d.Users.Leaderboard(c.UserContext(), c.QueryInt("limit", services.DefaultLeaderboardSize))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"leaderboard": entries})
	})

	r.Post("/leaderboard/export", func(c *fiber.Ctx) error {
		if d.Exporter == nil {
			return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{
				"error":   "NotConfigured",
				"message": "object storage is not configured",
			})
		}
		url, err := d.Exporter.ExportOnce(c.UserContext())
		if err != nil {
			utils.Sugar.Errorf("❌ leaderboard export failed: %v", err)
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error":   "ExportFailed",
				"message": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"url": url})
	})

	// 🔑 Codes
	r.Get("/codes", func(c *fiber.Ctx) error {
		codes, err := d.Catalog.ListCodes(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"codes": codes})
	})

	r.Post("/codes", func(c *fiber.Ctx) error {
		var in services.CodeInput
		if err := c.BodyParser(&in); err != nil {
			return badRequest(c, "invalid JSON body")
		}
		code, err := d.Catalog.CreateCode(c.UserContext(), in)
		if err != nil {
			return respondError(c, err)
		}
		logAdmin(c, "created code %s", code.ID)
		return c.Status(fiber.StatusCreated).JSON(code)
	})

	r.Get("/codes/:id", func(c *fiber.Ctx) error {
		code, err := d.Catalog.GetCode(c.UserContext(), idParam(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(code)
	})

	r.Put("/codes/:id", func(c *fiber.Ctx) error {
		var patch services.CodePatch
		if err := c.BodyParser(&patch); err != nil {
			return badRequest(c, "invalid JSON body")
		}
		code, err := d.Catalog.UpdateCode(c.UserContext(), idParam(c), patch)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(code)
	})

	r.Patch("/codes/:id/active", func(c *fiber.Ctx) error {
		active, err := parseToggle(c, "active")
		if err != nil {
			return badRequest(c, err.Error())
		}
		code, err := d.Catalog.SetCodeActive(c.UserContext(), idParam(c), active)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(code)
	})

	r.Delete("/codes/:id", func(c *fiber.Ctx) error {
		if err := d.Catalog.DeleteCode(c.UserContext(), idParam(c)); err != nil {
			return respondError(c, err)
		}
		logAdmin(c, "deleted code %s", idParam(c))
		return c.SendStatus(fiber.StatusNoContent)
	})

	// 🎖️ Badges
	r.Get("/badges", func(c *fiber.Ctx) error {
		badges, err := d.Catalog.ListBadges(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"badges": badges})
	})

	r.Post("/badges", func(c *fiber.Ctx) error {
		var in services.BadgeInput
		if err := c.BodyParser(&in); err != nil {
			return badRequest(c, "invalid JSON body")
		}
		badge, err := d.Catalog.CreateBadge(c.UserContext(), in)
		if err != nil {
			return respondError(c, err)
		}
		logAdmin(c, "created badge %s", badge.ID)
		return c.Status(fiber.StatusCreated).JSON(badge)
	})

	r.Put("/badges/:id", func(c *fiber.Ctx) error {
		var patch services.BadgePatch
		if err := c.BodyParser(&patch); err != nil {
			return badRequest(c, "invalid JSON body")
		}
		badge, err := d.Catalog.UpdateBadge(c.UserContext(), idParam(c), patch)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(badge)
	})

	r.Patch("/badges/:id/active", func(c *fiber.Ctx) error {
		active, err := parseToggle(c, "active")
		if err != nil {
			return badRequest(c, err.Error())
		}
		badge, err := d.Catalog.SetBadgeActive(c.UserContext(), idParam(c), active)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(badge)
	})

	r.Delete("/badges/:id", func(c *fiber.Ctx) error {
		res, err := d.Catalog.DeleteBadge(c.UserContext(), idParam(c))
		if err != nil {
			return respondError(c, err)
		}
		logAdmin(c, "deleted badge %s", res.BadgeID)
		return c.JSON(res)
	})

	// 🎁 Prizes
	r.Get("/prizes", func(c *fiber.Ctx) error {
		prizes, err := d.Catalog.ListPrizes(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"prizes": prizes})
	})

	r.Post("/prizes", func(c *fiber.Ctx) error {
		var in services.PrizeInput
		if err := c.BodyParser(&in); err != nil {
			return badRequest(c, "invalid JSON body")
		}
		prize, err := d.Catalog.CreatePrize(c.UserContext(), in)
		if err != nil {
			return respondError(c, err)
		}
		logAdmin(c, "created prize %s", prize.ID)
		return c.Status(fiber.StatusCreated).JSON(prize)
	})

	r.Put("/prizes/:id", func(c *fiber.Ctx) error {
		var patch services.PrizePatch
		if err := c.BodyParser(&patch); err != nil {
			return badRequest(c, "invalid JSON body")
		}
		prize, err := d.Catalog.UpdatePrize(c.UserContext(), idParam(c), patch)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(prize)
	})

	r.Patch("/prizes/:id/stock", func(c *fiber.Ctx) error {
		inStock, err := parseToggle(c, "in_stock")
		if err != nil {
			return badRequest(c, err.Error())
		}
		prize, err := d.Catalog.SetPrizeInStock(c.UserContext(), idParam(c), inStock)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(prize)
	})

	r.Delete("/prizes/:id", func(c *fiber.Ctx) error {
		if err := d.Catalog.DeletePrize(c.UserContext(), idParam(c)); err != nil {
			return respondError(c, err)
		}
		logAdmin(c, "deleted prize %s", idParam(c))
		return c.SendStatus(fiber.StatusNoContent)
	})

	// 👥 Users
	r.Get("/users", func(c *fiber.Ctx) error {
		users, err := d.Catalog.ListUsers(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"users": users})
	})

	r.Put("/users/:id", func(c *fiber.Ctx) error {
		var patch services.UserPatch
		if err := c.BodyParser(&patch); err != nil {
			return badRequest(c, "invalid JSON body")
		}
		user, err := d.Catalog.UpdateUser(c.UserContext(), idParam(c), patch)
		if err != nil {
			return respondError(c, err)
		}
		logAdmin(c, "updated user %s", user.ID)
		return c.JSON(user)
	})
}

// parseToggle reads {"<field>": bool} from the body.
func parseToggle(c *fiber.Ctx, field string) (bool, error) {
	var body map[string]*bool
	if err := c.BodyParser(&body); err != nil {
		return false, fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}
	v, ok := body[field]
	if !ok || v == nil {
		return false, fiber.NewError(fiber.StatusBadRequest, field+" (bool) is required")
	}
	return *v, nil
}

func logAdmin(c *fiber.Ctx, format string, args ...any) {
	utils.Sugar.Infof("🛠️ [ADMIN %s] "+format, append([]any{middleware.UserID(c)}, args...)...)
}
