package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/speech-coach/internal/recordings"
)

// GDriveHandler handles Google Drive link imports
type GDriveHandler struct {
	svc *recordings.Service
}

// NewGDriveHandler creates a new Google Drive handler
func NewGDriveHandler(svc *recordings.Service) *GDriveHandler {
	return &GDriveHandler{svc: svc}
}

// GDriveRequest represents the request body
type GDriveRequest struct {
	URL   string `json:"url" validate:"required"`
	Title string `json:"title" validate:"max=200"`
}

// Handle downloads a shared Drive file and stores it as a recording
func (h *GDriveHandler) Handle(c *fiber.Ctx) error {
	var req GDriveRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	created, err := h.svc.ImportFromDrive(c.UserContext(), userID(c), req.URL, req.Title)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}
