package queue

import (
	"time"

	"github.com/google/uuid"
)

// Job kinds
const (
	KindProcess    = "process"
	KindTranscribe = "transcribe"
	KindAnalyze    = "analyze"
)

// Job states
const (
	StatusQueued     = "QUEUED"
	StatusProcessing = "PROCESSING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// Job represents background work on one recording
type Job struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	UserID      string     `json:"-"`
	RecordingID string     `json:"recordingId"`
	Status      string     `json:"status"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty"`
}

// NewJob creates a new job with default values
func NewJob(kind, userID, recordingID string) *Job {
	return &Job{
		ID:          uuid.New().String(),
		Kind:        kind,
		UserID:      userID,
		RecordingID: recordingID,
		Status:      StatusQueued,
		CreatedAt:   time.Now(),
	}
}
