package handlers

import (
	"net/url"

	"scavenger-hunt/services"
	"scavenger-hunt/utils"

	"github.com/gofiber/fiber/v2"
)

var kindStatus = map[string]int{
	"EmptyCode":          fiber.StatusBadRequest,
	"InvalidInput":       fiber.StatusBadRequest,
	"InvalidCode":        fiber.StatusNotFound,
	"PrizeNotFound":      fiber.StatusNotFound,
	"UserNotFound":       fiber.StatusNotFound,
	"CodeNotFound":       fiber.StatusNotFound,
	"BadgeNotFound":      fiber.StatusNotFound,
	"AlreadyRedeemed":    fiber.StatusConflict,
	"AlreadyClaimed":     fiber.StatusConflict,
	"DuplicateId":        fiber.StatusConflict,
	"SoldOut":            fiber.StatusGone,
	"InsufficientPoints": fiber.StatusUnprocessableEntity,
	"ClaimLimitReached":  fiber.StatusUnprocessableEntity,
	"Unauthenticated":    fiber.StatusUnauthorized,
	"Timeout":            fiber.StatusGatewayTimeout,
	"Unavailable":        fiber.StatusServiceUnavailable,
}

// respondError writes {"error": kind, "message": text} with the status of the kind.
func respondError(c *fiber.Ctx, err error) error {
	kind := services.Kind(err)
	status, ok := kindStatus[kind]
	if !ok {
		utils.Sugar.Errorf("❌ unclassified error on %s %s: %v", c.Method(), c.Path(), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Internal",
			"message": "internal error",
		})
	}
	if status >= fiber.StatusInternalServerError {
		utils.Sugar.Warnf("⚠️ %s %s failed: %v", c.Method(), c.Path(), err)
	}
	return c.Status(status).JSON(fiber.Map{
		"error":   kind,
		"message": err.Error(),
	})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":   "InvalidInput",
		"message": msg,
	})
}

// idParam is the :id segment, percent-decoded. A malformed escape is
// returned as sent and simply matches nothing.
func idParam(c *fiber.Ctx) string {
	raw := c.Params("id")
	id, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return id
}
