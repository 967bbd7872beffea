// Package recordings owns the recording lifecycle: upload, transcription,
// analysis, reporting and the aggregate views built from them.
package recordings

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/speech-coach/internal/analysis"
	"github.com/codebuildervaibhav/speech-coach/internal/apperr"
	"github.com/codebuildervaibhav/speech-coach/internal/logging"
	"github.com/codebuildervaibhav/speech-coach/internal/queue"
	"github.com/codebuildervaibhav/speech-coach/internal/storage"
	"github.com/codebuildervaibhav/speech-coach/internal/transcription"
	"github.com/codebuildervaibhav/speech-coach/internal/types"
)

// DefaultTitle is used when an upload has no usable name.
const DefaultTitle = "Untitled Recording"

const sniffLen = 3072

// Store persists recording metadata.
type Store interface {
	SaveRecording(ctx context.Context, rec *types.Recording) error
	UpdateRecording(ctx context.Context, rec *types.Recording) error
	GetRecording(ctx context.Context, userID, id string) (*types.Recording, error)
	ListRecordings(ctx context.Context, userID string, limit int) ([]*types.Recording, error)
	DeleteRecording(ctx context.Context, userID, id string) error
}

// ReportWriter saves a finished analysis locally.
type ReportWriter interface {
	Write(rec *types.Recording) (string, error)
}

// Exporter publishes a recording's results elsewhere.
type Exporter interface {
	Export(ctx context.Context, rec *types.Recording) (string, error)
}

// JobQueue runs recording jobs in the background.
type JobQueue interface {
	Enqueue(job *queue.Job) error
	Status(id string) (queue.Job, bool)
}

// Options configures a Service.
type Options struct {
	Store        Store
	Media        storage.MediaStore
	Transcriber  transcription.Transcriber
	Analyzer     analysis.Analyzer
	Reports      ReportWriter // optional
	Drive        Exporter     // optional
	MaxFileSize  int64
	WarnFileSize int64
	ExtractAudio bool
	TempDir      string
	Samples      bool
	HTTPClient   *http.Client
	Logger       zerolog.Logger
}

// Service implements the recording operations.
type Service struct {
	store        Store
	media        storage.MediaStore
	transcriber  transcription.Transcriber
	analyzer     analysis.Analyzer
	reports      ReportWriter
	drive        Exporter
	queue        JobQueue
	maxFileSize  int64
	warnFileSize int64
	extractAudio bool
	tempDir      string
	samples      bool
	httpClient   *http.Client
	logger       zerolog.Logger
	now          func() time.Time
}

// NewService creates a Service. Call SetQueue before Process.
func NewService(opts Options) *Service {
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = 100 << 20
	}
	if opts.TempDir == "" {
		opts.TempDir = "temp"
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Minute}
	}
	return &Service{
		store:        opts.Store,
		media:        opts.Media,
		transcriber:  opts.Transcriber,
		analyzer:     opts.Analyzer,
		reports:      opts.Reports,
		drive:        opts.Drive,
		maxFileSize:  opts.MaxFileSize,
		warnFileSize: opts.WarnFileSize,
		extractAudio: opts.ExtractAudio,
		tempDir:      opts.TempDir,
		samples:      opts.Samples,
		httpClient:   opts.HTTPClient,
		logger:       logging.Component(opts.Logger, "recordings"),
		now:          time.Now,
	}
}

// SetQueue attaches the background job queue.
func (s *Service) SetQueue(q JobQueue) { s.queue = q }

// DriveEnabled reports whether Drive export is available.
func (s *Service) DriveEnabled() bool { return s.drive != nil }

// Upload is media to be stored as a new recording.
type Upload struct {
	Filename    string
	ContentType string
	Title       string
	Size        int64 // -1 when unknown
	Source      string
	Duration    float64
	Body        io.Reader
}

// Created is the result of Create.
type Created struct {
	Recording *types.Recording `json:"recording"`
	Warning   string           `json:"warning,omitempty"`
}

// Create validates and stores an upload and records its metadata.
func (s *Service) Create(ctx context.Context, userID string, up Upload) (*Created, error) {
	if up.Body == nil {
		return nil, apperr.New(apperr.CodeNoFile, "No file uploaded", http.StatusBadRequest)
	}
	if up.Size > s.maxFileSize {
		return nil, s.tooLarge()
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(up.Body, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, apperr.InvalidInput("Failed to read upload").WithCause(err)
	}
	head = head[:n]
	if n == 0 {
		return nil, apperr.New(apperr.CodeNoFile, "Uploaded file is empty", http.StatusBadRequest)
	}

	info, err := transcription.DetectMedia(up.Filename, up.ContentType, head)
	if err != nil {
		return nil, apperr.New(apperr.CodeInvalidFormat,
			"Please upload a video or audio file in MP4, WebM, MOV, MP3, WAV, or OGG format.",
			http.StatusUnsupportedMediaType).WithCause(err)
	}

	if up.Source == "" {
		up.Source = types.SourceUpload
	}
	rec := &types.Recording{
		ID:          uuid.New().String(),
		UserID:      userID,
		Title:       recordingTitle(up.Title, up.Filename),
		Date:        s.now().UTC(),
		Duration:    up.Duration,
		IsVideo:     info.IsVideo,
		ContentType: info.ContentType,
		Source:      up.Source,
		Status:      types.StatusUploaded,
	}
	rec.MediaPath = storage.MediaPath(userID, rec.ID, info.Ext)

	counter := &countingReader{r: io.MultiReader(bytes.NewReader(head), up.Body), limit: s.maxFileSize}
	if err := s.media.Put(ctx, rec.MediaPath, info.ContentType, counter); err != nil {
		if errors.Is(err, errTooLarge) || counter.exceeded {
			s.media.Delete(context.WithoutCancel(ctx), rec.MediaPath)
			return nil, s.tooLarge()
		}
		return nil, apperr.Upstream("storage", err)
	}
	rec.Size = counter.n
	rec.SetMediaURL(s.media.URL(rec.MediaPath))

	if err := s.store.SaveRecording(ctx, rec); err != nil {
		s.media.Delete(context.WithoutCancel(ctx), rec.MediaPath)
		return nil, apperr.Internal(err)
	}

	created := &Created{Recording: rec}
	if s.warnFileSize > 0 && rec.Size > s.warnFileSize {
		created.Warning = fmt.Sprintf("Large file (%.1f MB): processing may take longer. Files under %d MB are recommended.",
			float64(rec.Size)/(1<<20), s.warnFileSize>>20)
	}

	s.logger.Info().
		Str(logging.FieldRecordingID, rec.ID).
		Str(logging.FieldUserID, userID).
		Str("source", rec.Source).
		Int64("size", rec.Size).
		Msg("Recording stored")
	return created, nil
}

// Get returns one of the user's recordings.
func (s *Service) Get(ctx context.Context, userID, id string) (*types.Recording, error) {
	rec, err := s.store.GetRecording(ctx, userID, id)
	if errors.Is(err, storage.ErrNotFound) {
		if sample := s.sample(ctx, userID, id); sample != nil {
			return sample, nil
		}
		return nil, apperr.NotFound("Recording")
	}
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return rec, nil
}

// List returns the user's recordings, newest first. Users without any
// recordings see the sample set when samples are enabled.
func (s *Service) List(ctx context.Context, userID string, limit int) ([]*types.Recording, error) {
	recs, err := s.store.ListRecordings(ctx, userID, limit)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if len(recs) == 0 && s.samples {
		return SampleRecordings(), nil
	}
	return recs, nil
}

// Delete removes a recording and its media.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	rec, err := s.store.GetRecording(ctx, userID, id)
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound("Recording")
	}
	if err != nil {
		return apperr.Internal(err)
	}

	if err := s.store.DeleteRecording(ctx, userID, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return apperr.NotFound("Recording")
		}
		return apperr.Internal(err)
	}
	if err := s.media.Delete(ctx, rec.MediaPath); err != nil {
		s.logger.Warn().Err(err).Str(logging.FieldRecordingID, id).Msg("Failed to delete media")
	}

	s.logger.Info().Str(logging.FieldRecordingID, id).Msg("Recording deleted")
	return nil
}

// sample returns the sample recording with id when the user has none of
// their own.
func (s *Service) sample(ctx context.Context, userID, id string) *types.Recording {
	if !s.samples {
		return nil
	}
	recs, err := s.store.ListRecordings(ctx, userID, 1)
	if err != nil || len(recs) > 0 {
		return nil
	}
	for _, r := range SampleRecordings() {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func (s *Service) tooLarge() *apperr.Error {
	return apperr.New(apperr.CodeFileTooLarge,
		fmt.Sprintf("File size must be less than %dMB.", s.maxFileSize>>20),
		http.StatusRequestEntityTooLarge)
}

func recordingTitle(title, filename string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	base := filepath.Base(filename)
	if i := strings.Index(base, "."); i >= 0 {
		base = base[:i]
	}
	if base = strings.TrimSpace(base); base == "" || base == "/" {
		return DefaultTitle
	}
	return base
}

var errTooLarge = errors.New("upload exceeds the size limit")

// countingReader counts bytes and fails once limit is exceeded
type countingReader struct {
	r        io.Reader
	n        int64
	limit    int64
	exceeded bool
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	if c.limit > 0 && c.n > c.limit {
		c.exceeded = true
		return n, errTooLarge
	}
	return n, err
}
