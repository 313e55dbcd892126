package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/nachoDevOS/whatsapp-server/internal/config"
	"github.com/nachoDevOS/whatsapp-server/internal/handlers"
	"github.com/nachoDevOS/whatsapp-server/internal/middleware"
	"github.com/nachoDevOS/whatsapp-server/internal/realtime"
	"github.com/nachoDevOS/whatsapp-server/internal/services"
	"github.com/nachoDevOS/whatsapp-server/internal/whatsapp"
)

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, cfg *config.Config, manager *whatsapp.Manager, tracker *services.SentTracker, hub *realtime.Hub) {
	healthHandler := handlers.NewHealthHandler()
	sessionHandler := handlers.NewSessionHandler(manager)
	messageHandler := handlers.NewMessageHandler(manager, tracker, cfg)

	app.Get("/", healthHandler.Health)

	// Session lifecycle; QR codes arrive over the websocket channel.
	app.Get("/status", sessionHandler.Status)
	app.Get("/login", sessionHandler.Login)
	app.Get("/logout", sessionHandler.Logout)

	// Outbound sends.
	app.Get("/test", messageHandler.Test)
	app.Post("/send", middleware.TokenAuth(cfg), messageHandler.Send)

	// Real-time push channel (qr, login, logout, shutdown events).
	app.Get("/ws", adaptor.HTTPHandler(hub.Handler()))
}
