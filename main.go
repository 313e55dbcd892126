package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"github.com/nachoDevOS/whatsapp-server/database"
	"github.com/nachoDevOS/whatsapp-server/internal/config"
	"github.com/nachoDevOS/whatsapp-server/internal/jobs"
	"github.com/nachoDevOS/whatsapp-server/internal/models"
	"github.com/nachoDevOS/whatsapp-server/internal/realtime"
	"github.com/nachoDevOS/whatsapp-server/internal/routes"
	"github.com/nachoDevOS/whatsapp-server/internal/services"
	"github.com/nachoDevOS/whatsapp-server/internal/storage"
	"github.com/nachoDevOS/whatsapp-server/internal/utils"
	"github.com/nachoDevOS/whatsapp-server/internal/whatsapp"
)

func main() {
	// Load .env file for local development
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️  No .env file found - checking environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	// Initialize storage
	var store storage.Store

	if cfg.UseMemoryStore {
		log.Println("⚠️  Using in-memory storage (not for production!)")
		store = storage.NewMemoryStore()
	} else {
		log.Println("📦 Connecting to MySQL database...")
		database.Connect()

		log.Println("🔄 Running database migrations...")
		err := database.DB.AutoMigrate(
			&models.Session{},
			&models.User{},
			&models.Group{},
			&models.Message{},
			&models.GroupMessage{},
		)
		if err != nil {
			log.Fatal("Failed to migrate database:", err)
		}
		log.Println("✅ Database migrations completed!")

		store = storage.NewDatabaseStore(database.DB)
	}

	// Websocket hub for QR codes and session events.
	hub := realtime.NewHub()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// WhatsApp multi-session manager.
	manager, err := whatsapp.NewManager(ctx, cfg.DeviceStorePath, store)
	if err != nil {
		log.Fatal("Failed to open the WhatsApp device store:", err)
	}
	manager.OnQR = func(sessionID, code string) {
		hub.Emit("qr", fiber.Map{"session": sessionID, "qr": code})
	}
	manager.OnConnected = func(sessionID string) {
		hub.Emit("login", fiber.Map{"session": sessionID})
	}
	manager.OnLoggedOut = func(sessionID string) {
		hub.Emit("logout", fiber.Map{"session": sessionID})
	}
	manager.LoadSessionsFromStorage(ctx)

	// Conversation pipeline: echo tracker, inbound router, agent supervisor.
	tracker := services.NewSentTracker(services.DefaultEchoTTL)
	router := services.NewMessageRouter(store, manager, tracker)

	routerDone := make(chan struct{})
	go func() {
		defer close(routerDone)
		router.Run(ctx, manager.Events())
	}()

	timeoutJob := jobs.NewAgentTimeoutJob(store, manager, tracker)
	timeoutJob.Start()

	log.Println("✅ All services initialized and scheduled jobs started")

	// Create fiber app
	app := fiber.New(fiber.Config{
		AppName: cfg.Name,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			utils.LogError(c.Method()+" "+c.Path(), err)
			return c.Status(code).JSON(fiber.Map{
				"error":   1,
				"message": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 15 * time.Minute,
	}))

	routes.SetupRoutes(app, cfg, manager, tracker, hub)

	// Start server
	go func() {
		var err error
		if cfg.IsDev() {
			log.Printf("🚀 %s listening on port %s", cfg.Name, cfg.Port)
			err = app.Listen(":" + cfg.Port)
		} else {
			log.Printf("🚀 %s listening on port %s (TLS, %s)", cfg.Name, cfg.Port, cfg.Domain)
			err = app.ListenTLS(":"+cfg.Port, cfg.CertFile(), cfg.KeyFile())
		}
		if err != nil {
			log.Fatal("Server error:", err)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down...")

	// Stop producers first so nothing races the closing stores.
	timeoutJob.Stop()
	cancel()
	<-routerDone
	manager.Disconnect()
	hub.Shutdown()
	if err := app.Shutdown(); err != nil {
		log.Printf("⚠️ Error shutting down HTTP server: %v", err)
	}
	tracker.Close()
	if !cfg.UseMemoryStore {
		database.Close()
	}

	log.Println("👋 Server stopped")
}
