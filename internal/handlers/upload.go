package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/speech-coach/internal/apperr"
	"github.com/codebuildervaibhav/speech-coach/internal/auth"
	"github.com/codebuildervaibhav/speech-coach/internal/recordings"
	"github.com/codebuildervaibhav/speech-coach/internal/types"
)

// UploadHandler handles file uploads
type UploadHandler struct {
	svc *recordings.Service
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(svc *recordings.Service) *UploadHandler {
	return &UploadHandler{svc: svc}
}

// Handle stores a multipart upload (fields "file" and "title") as a new
// recording
func (h *UploadHandler) Handle(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return apperr.New(apperr.CodeNoFile, "No file uploaded", fiber.StatusBadRequest)
	}

	f, err := file.Open()
	if err != nil {
		return apperr.Internal(err)
	}
	defer f.Close()

	created, err := h.svc.Create(c.UserContext(), auth.CurrentUser(c).ID, recordings.Upload{
		Filename:    file.Filename,
		ContentType: file.Header.Get(fiber.HeaderContentType),
		Title:       c.FormValue("title"),
		Size:        file.Size,
		Source:      types.SourceUpload,
		Body:        f,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}
