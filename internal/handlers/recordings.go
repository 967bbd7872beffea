package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/codebuildervaibhav/speech-coach/internal/auth"
	"github.com/codebuildervaibhav/speech-coach/internal/recordings"
)

// RecordingsHandler serves the recording resources and the views derived
// from them
type RecordingsHandler struct {
	svc *recordings.Service
}

// NewRecordingsHandler creates a new recordings handler
func NewRecordingsHandler(svc *recordings.Service) *RecordingsHandler {
	return &RecordingsHandler{svc: svc}
}

func userID(c *fiber.Ctx) string {
	return auth.CurrentUser(c).ID
}

// List returns the caller's recordings, newest first
func (h *RecordingsHandler) List(c *fiber.Ctx) error {
	recs, err := h.svc.List(c.UserContext(), userID(c), c.QueryInt("limit", 50))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"recordings": recs})
}

// Get returns one recording
func (h *RecordingsHandler) Get(c *fiber.Ctx) error {
	rec, err := h.svc.Get(c.UserContext(), userID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(rec)
}

// Delete removes a recording
func (h *RecordingsHandler) Delete(c *fiber.Ctx) error {
	if err := h.svc.Delete(c.UserContext(), userID(c), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Transcribe runs speech-to-text synchronously
func (h *RecordingsHandler) Transcribe(c *fiber.Ctx) error {
	rec, err := h.svc.Transcribe(c.UserContext(), userID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(rec)
}

// Analyze critiques the transcript synchronously
func (h *RecordingsHandler) Analyze(c *fiber.Ctx) error {
	rec, err := h.svc.Analyze(c.UserContext(), userID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(rec)
}

// Process queues transcription and analysis
func (h *RecordingsHandler) Process(c *fiber.Ctx) error {
	job, err := h.svc.Process(c.UserContext(), userID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"job_id":  job.ID,
		"status":  job.Status,
		"message": "Recording queued for processing",
	})
}

// Export uploads the results to Google Drive
func (h *RecordingsHandler) Export(c *fiber.Ctx) error {
	url, err := h.svc.Export(c.UserContext(), userID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"drive_url": url})
}

// Job returns the state of a queued job
func (h *RecordingsHandler) Job(c *fiber.Ctx) error {
	job, err := h.svc.Job(userID(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(job)
}

// Dashboard returns the caller's totals and recent recordings
func (h *RecordingsHandler) Dashboard(c *fiber.Ctx) error {
	d, err := h.svc.Dashboard(c.UserContext(), userID(c))
	if err != nil {
		return err
	}
	return c.JSON(d)
}

// History returns the caller's progress over time
func (h *RecordingsHandler) History(c *fiber.Ctx) error {
	points, err := h.svc.History(c.UserContext(), userID(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"history": points})
}
