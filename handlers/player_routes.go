// handlers/player_routes.go
package handlers

import (
	"scavenger-hunt/middleware"

	"github.com/gofiber/fiber/v2"
)

// SetupPlayerRoutes mounts the routes a signed-in player uses. r must
// already carry the session middleware.
func SetupPlayerRoutes(r fiber.Router, d Deps) {
	r.Post("/profile", func(c *fiber.Ctx) error {
		var body struct {
			Email       string `json:"email"`
			DisplayName string `json:"display_name"`
		}
		if err := c.BodyParser(&body); err != nil {
			return badRequest(c, "invalid JSON body")
		}
		email := body.Email
		if email == "" {
			email = middleware.UserEmail(c)
		}
		user, err := d.Users.CreateProfile(c.UserContext(), middleware.UserID(c), email, body.DisplayName)
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(user)
	})

	r.Get("/me", func(c *fiber.Ctx) error {
		user, err := d.Users.GetProfile(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(user)
	})

	r.Patch("/me", func(c *fiber.Ctx) error {
		var body struct {
			DisplayName string `json:"display_name"`
		}
		if err := c.BodyParser(&body); err != nil {
			return badRequest(c, "invalid JSON body")
		}
		user, err := d.Users.UpdateDisplayName(c.UserContext(), middleware.UserID(c), body.DisplayName)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(user)
	})

	redeem := []fiber.Handler{}
	if d.RedeemLimiter != nil {
		redeem = append(redeem, d.RedeemLimiter.Handler())
	}
	redeem = append(redeem, func(c *fiber.Ctx) error {
		var body struct {
			Code string `json:"code"`
		}
		if err := c.BodyParser(&body); err != nil {
			return badRequest(c, "invalid JSON body")
		}
		res, err := d.Redeem.Redeem(c.UserContext(), middleware.UserID(c), body.Code)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(res)
	})
	r.Post("/redeem", redeem...)

	r.Get("/badges/progress", func(c *fiber.Ctx) error {
		progress, err := d.Progress.Progress(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"badges": progress})
	})

	r.Get("/prizes", func(c *fiber.Ctx) error {
		prizes, err := d.Catalog.ListPrizes(c.UserContext())
		if err != nil {
			return respondError(c, err)
		}
		out := make([]fiber.Map, 0, len(prizes))
		for _, p := range prizes {
			out = append(out, fiber.Map{
				"id":              p.ID,
				"name":            p.Name,
				"cost":            p.Cost,
				"description":     p.Description,
				"icon":            p.Icon,
				"in_stock":        p.InStock && p.Remaining() > 0,
				"total_available": p.TotalAvailable,
				"remaining":       p.Remaining(),
			})
		}
		return c.JSON(fiber.Map{"prizes": out})
	})

	r.Post("/prizes/:id/claim", func(c *fiber.Ctx) error {
		res, err := d.Claims.Claim(c.UserContext(), middleware.UserID(c), idParam(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	})

	r.Get("/me/claims", func(c *fiber.Ctx) error {
		claims, err := d.Claims.ListClaims(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"claims": claims})
	})
}
