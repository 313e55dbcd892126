package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// HealthHandler answers the root liveness probe.
type HealthHandler struct{}

// NewHealthHandler creates a new health handler
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": 1,
		"message": "Servidor conectado",
	})
}
