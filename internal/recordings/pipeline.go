package recordings

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/codebuildervaibhav/speech-coach/internal/apperr"
	"github.com/codebuildervaibhav/speech-coach/internal/logging"
	"github.com/codebuildervaibhav/speech-coach/internal/queue"
	"github.com/codebuildervaibhav/speech-coach/internal/storage"
	"github.com/codebuildervaibhav/speech-coach/internal/transcription"
	"github.com/codebuildervaibhav/speech-coach/internal/types"
)

// Transcribe runs speech-to-text on a recording and stores the transcript.
func (s *Service) Transcribe(ctx context.Context, userID, id string) (*types.Recording, error) {
	rec, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	rec.Status = types.StatusTranscribing
	rec.Error = ""
	if err := s.store.UpdateRecording(ctx, rec); err != nil {
		return nil, apperr.Internal(err)
	}

	transcript, err := s.transcribe(ctx, rec)
	if err != nil {
		s.fail(ctx, rec, "Transcription failed", err)
		if errors.Is(err, transcription.ErrNoKey) {
			return nil, apperr.NotConfigured("ElevenLabs").WithCause(err)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperr.Upstream("transcription", err)
	}

	rec.Transcript = transcript
	if d := transcript.Duration(); d > 0 {
		rec.Duration = d
	}
	rec.Status = types.StatusTranscribed
	if err := s.store.UpdateRecording(ctx, rec); err != nil {
		return nil, apperr.Internal(err)
	}

	s.logger.Info().
		Str(logging.FieldRecordingID, rec.ID).
		Int("segments", len(transcript.Segments)).
		Float64("duration", rec.Duration).
		Msg("Recording transcribed")
	return rec, nil
}

// transcribe feeds the stored media, or its extracted audio track, to the
// transcriber.
func (s *Service) transcribe(ctx context.Context, rec *types.Recording) (*types.Transcript, error) {
	media, err := s.media.Open(ctx, rec.MediaPath)
	if err != nil {
		return nil, fmt.Errorf("open media: %w", err)
	}
	defer media.Close()

	filename := filepath.Base(rec.MediaPath)
	if !s.extractAudio || !rec.IsVideo {
		return s.transcriber.Transcribe(ctx, filename, media)
	}

	// ffmpeg needs a seekable file
	if err := os.MkdirAll(s.tempDir, 0755); err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(s.tempDir, "media_*"+filepath.Ext(filename))
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, media); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("copy media: %w", err)
	}
	tmp.Close()

	wavPath, err := transcription.ExtractAudio(ctx, tmp.Name(), s.tempDir)
	if err != nil {
		return nil, err
	}
	defer os.Remove(wavPath)

	wav, err := os.Open(wavPath)
	if err != nil {
		return nil, err
	}
	defer wav.Close()
	return s.transcriber.Transcribe(ctx, filepath.Base(wavPath), wav)
}

// Analyze critiques the recording's transcript and stores the result.
func (s *Service) Analyze(ctx context.Context, userID, id string) (*types.Recording, error) {
	rec, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if rec.Transcript == nil || strings.TrimSpace(rec.Transcript.Text) == "" {
		return nil, apperr.New(apperr.CodeTranscriptRequired, "Transcript required", http.StatusBadRequest)
	}

	rec.Status = types.StatusAnalyzing
	rec.Error = ""
	if err := s.store.UpdateRecording(ctx, rec); err != nil {
		return nil, apperr.Internal(err)
	}

	result, err := s.analyzer.Analyze(ctx, rec.Transcript.Text)
	if err != nil {
		s.fail(ctx, rec, "Analysis failed", err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperr.Upstream("analysis", err)
	}
	if result.Fallback {
		s.logger.Warn().Str(logging.FieldRecordingID, rec.ID).Msg("Stored fallback analysis")
	}

	rec.Analysis = result
	rec.Status = types.StatusAnalyzed
	if err := s.store.UpdateRecording(ctx, rec); err != nil {
		return nil, apperr.Internal(err)
	}

	if s.reports != nil {
		if path, err := s.reports.Write(rec); err != nil {
			s.logger.Warn().Err(err).Str(logging.FieldRecordingID, rec.ID).Msg("Failed to write report")
		} else {
			s.logger.Debug().Str("path", path).Msg("Report written")
		}
	}

	s.logger.Info().
		Str(logging.FieldRecordingID, rec.ID).
		Float64("overall", result.OverallScore).
		Msg("Recording analyzed")
	return rec, nil
}

// Process queues transcription and analysis of a recording.
func (s *Service) Process(ctx context.Context, userID, id string) (*queue.Job, error) {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return nil, err
	}
	if s.queue == nil {
		return nil, apperr.NotConfigured("Job queue")
	}

	job := queue.NewJob(queue.KindProcess, userID, id)
	if err := s.queue.Enqueue(job); err != nil {
		if errors.Is(err, queue.ErrQueueFull) {
			return nil, apperr.New(apperr.CodeQueueFull, "Too many recordings are being processed. Please try again shortly.",
				http.StatusServiceUnavailable)
		}
		return nil, apperr.Internal(err)
	}
	snapshot, _ := s.queue.Status(job.ID)
	return &snapshot, nil
}

// Job returns the state of one of the user's jobs.
func (s *Service) Job(userID, jobID string) (*queue.Job, error) {
	if s.queue == nil {
		return nil, apperr.NotFound("Job")
	}
	job, ok := s.queue.Status(jobID)
	if !ok || job.UserID != userID {
		return nil, apperr.NotFound("Job")
	}
	return &job, nil
}

// Processor returns the queue processor that runs recording jobs.
func (s *Service) Processor() queue.Processor {
	return queue.ProcessorFunc(s.runJob)
}

func (s *Service) runJob(ctx context.Context, job *queue.Job) error {
	switch job.Kind {
	case queue.KindTranscribe:
		_, err := s.Transcribe(ctx, job.UserID, job.RecordingID)
		return err
	case queue.KindAnalyze:
		_, err := s.Analyze(ctx, job.UserID, job.RecordingID)
		return err
	case queue.KindProcess:
		rec, err := s.owned(ctx, job.UserID, job.RecordingID)
		if err != nil {
			return err
		}
		if rec.Transcript == nil {
			if _, err := s.Transcribe(ctx, job.UserID, job.RecordingID); err != nil {
				return err
			}
		}
		_, err = s.Analyze(ctx, job.UserID, job.RecordingID)
		return err
	default:
		return fmt.Errorf("unknown job kind %q", job.Kind)
	}
}

// owned loads a stored recording; sample recordings cannot be processed.
func (s *Service) owned(ctx context.Context, userID, id string) (*types.Recording, error) {
	rec, err := s.store.GetRecording(ctx, userID, id)
	if errors.Is(err, storage.ErrNotFound) {
		if s.sample(ctx, userID, id) != nil {
			return nil, apperr.InvalidInput("Sample recordings cannot be processed")
		}
		return nil, apperr.NotFound("Recording")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return rec, nil
}

func (s *Service) fail(ctx context.Context, rec *types.Recording, msg string, cause error) {
	rec.Status = types.StatusFailed
	rec.Error = msg
	s.logger.Error().Err(cause).Str(logging.FieldRecordingID, rec.ID).Msg(msg)
	if err := s.store.UpdateRecording(context.WithoutCancel(ctx), rec); err != nil {
		s.logger.Error().Err(err).Str(logging.FieldRecordingID, rec.ID).Msg("Failed to record failure")
	}
}
