package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/shieldfi/shieldfi/internal/tokens"
)

// RegisterTokenRoutes wires token endpoints. guard, when set, runs before distribution.
func RegisterTokenRoutes(r fiber.Router, h *tokens.Handler, guard fiber.Handler) {
	r.Post("/tokens", h.Create)
	r.Get("/tokens/:address", h.Get)
	r.Get("/tokens/:address/holders", h.Holders)
	if guard != nil {
		r.Post("/tokens/:address/distribute", guard, h.Distribute)
		return
	}
	r.Post("/tokens/:address/distribute", h.Distribute)
}
