package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/nachoDevOS/whatsapp-server/internal/whatsapp"
)

// SessionHandler manages WhatsApp session lifecycle over HTTP. Pairing is
// asynchronous: Login kicks off the QR flow and the QR code itself arrives
// over the websocket channel.
type SessionHandler struct {
	manager *whatsapp.Manager
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(manager *whatsapp.Manager) *SessionHandler {
	return &SessionHandler{manager: manager}
}

// Status reports whether the given session is currently started.
func (h *SessionHandler) Status(c *fiber.Ctx) error {
	sessionID := c.Query("id")
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Falta el parámetro id",
		})
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"session":   sessionID,
		"connected": h.manager.HasSession(sessionID),
	})
}

// Login starts a session. If the device is not yet paired the QR code is
// emitted to websocket subscribers; if it is already started this is a no-op.
func (h *SessionHandler) Login(c *fiber.Ctx) error {
	sessionID := c.Query("id")
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Falta el parámetro id",
		})
	}

	if h.manager.HasSession(sessionID) {
		return c.JSON(fiber.Map{
			"success": true,
			"message": "La sesión ya está iniciada",
		})
	}

	if err := h.manager.StartSession(c.Context(), sessionID); err != nil {
		log.Printf("❌ Error iniciando sesión %s: %v", sessionID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "No se pudo iniciar la sesión",
		})
	}

	log.Printf("📱 Sesión %s iniciada, esperando QR...", sessionID)
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Sesión iniciada. Escanea el código QR.",
	})
}

// Logout unpairs the device and removes the session.
func (h *SessionHandler) Logout(c *fiber.Ctx) error {
	sessionID := c.Query("id")
	if sessionID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Falta el parámetro id",
		})
	}

	if err := h.manager.DeleteSession(c.Context(), sessionID); err != nil {
		log.Printf("❌ Error cerrando sesión %s: %v", sessionID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": "No se pudo cerrar la sesión",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Sesión cerrada",
	})
}
