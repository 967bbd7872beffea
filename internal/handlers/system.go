package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/speech-coach/internal/analysis"
	"github.com/codebuildervaibhav/speech-coach/internal/transcription"
)

// Version is reported by /health
var Version = "1.0.0"

// KeyChecker reports whether an API key can be resolved
type KeyChecker interface {
	IsConfigured(ctx context.Context, name string) bool
}

// LogSource returns recent log lines
type LogSource interface {
	Lines() []string
}

// SystemHandler serves health, integration status and logs
type SystemHandler struct {
	keys     KeyChecker
	supabase bool
	drive    bool
	logs     LogSource
}

// NewSystemHandler creates a new system handler
func NewSystemHandler(keys KeyChecker, supabase, drive bool, logs LogSource) *SystemHandler {
	return &SystemHandler{
		keys:     keys,
		supabase: supabase,
		drive:    drive,
		logs:     logs,
	}
}

// Health reports liveness
func (h *SystemHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "healthy",
		"version": Version,
	})
}

// Integrations reports which external services are configured
func (h *SystemHandler) Integrations(c *fiber.Ctx) error {
	ctx := c.UserContext()
	return c.JSON(fiber.Map{
		"elevenlabs": h.keys.IsConfigured(ctx, transcription.KeyName),
		"anthropic":  h.keys.IsConfigured(ctx, analysis.KeyName),
		"supabase":   h.supabase,
		"drive":      h.drive,
	})
}

// Logs returns the buffered server logs
func (h *SystemHandler) Logs(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"logs": h.logs.Lines(),
	})
}
