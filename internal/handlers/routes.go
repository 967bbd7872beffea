package handlers

import (
	"io"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/speech-coach/internal/auth"
	"github.com/codebuildervaibhav/speech-coach/internal/recorder"
	"github.com/codebuildervaibhav/speech-coach/internal/recordings"
)

// AppConfig configures the fiber app
type AppConfig struct {
	BodyLimit int
	AccessLog io.Writer // nil disables request logging
	Logger    zerolog.Logger
}

// NewApp creates the fiber app with the shared middleware and error handler
func NewApp(cfg AppConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit:             cfg.BodyLimit,
		ErrorHandler:          ErrorHandler(cfg.Logger),
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	if cfg.AccessLog != nil {
		app.Use(logger.New(logger.Config{Output: cfg.AccessLog}))
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	return app
}

// Deps are the services the routes are served from
type Deps struct {
	Auth       *auth.Service
	Recordings *recordings.Service
	Recorder   *recorder.Registry
	Keys       KeyChecker
	Logs       LogSource
	Supabase   bool
	Logger     zerolog.Logger
}

// Register mounts all API routes on app
func Register(app *fiber.App, d Deps) {
	system := NewSystemHandler(d.Keys, d.Supabase, d.Recordings.DriveEnabled(), d.Logs)
	authHandler := NewAuthHandler(d.Auth)
	uploadHandler := NewUploadHandler(d.Recordings)
	recordingsHandler := NewRecordingsHandler(d.Recordings)
	gdriveHandler := NewGDriveHandler(d.Recordings)
	streamHandler := NewStreamHandler(d.Recorder, d.Recordings, d.Logger)

	requireAuth := auth.RequireAuth(d.Auth)

	app.Get("/health", system.Health)
	app.Get("/status/integrations", system.Integrations)
	app.Get("/logs", system.Logs)

	a := app.Group("/auth")
	a.Post("/magic-link", authHandler.MagicLink)
	a.Post("/verify", authHandler.Verify)
	a.Post("/login", authHandler.Login)
	a.Post("/refresh", authHandler.Refresh)
	a.Post("/logout", requireAuth, authHandler.Logout)
	a.Get("/me", requireAuth, authHandler.Me)
	a.Put("/password", requireAuth, authHandler.Password)

	r := app.Group("/recordings", requireAuth)
	r.Post("/", uploadHandler.Handle)
	r.Get("/", recordingsHandler.List)
	r.Post("/import/gdrive", gdriveHandler.Handle)
	r.Get("/:id", recordingsHandler.Get)
	r.Delete("/:id", recordingsHandler.Delete)
	r.Post("/:id/transcribe", recordingsHandler.Transcribe)
	r.Post("/:id/analyze", recordingsHandler.Analyze)
	r.Post("/:id/process", recordingsHandler.Process)
	r.Post("/:id/export", recordingsHandler.Export)

	app.Get("/jobs/:id", requireAuth, recordingsHandler.Job)
	app.Get("/dashboard", requireAuth, recordingsHandler.Dashboard)
	app.Get("/history", requireAuth, recordingsHandler.History)

	// browsers cannot set headers on upgrades; the token comes as ?access_token=
	app.Get("/ws/record", streamHandler.Upgrade, requireAuth, websocket.New(streamHandler.Handle))
}
