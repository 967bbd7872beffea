package recordings

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/speech-coach/internal/apperr"
	"github.com/codebuildervaibhav/speech-coach/internal/queue"
	"github.com/codebuildervaibhav/speech-coach/internal/storage"
	"github.com/codebuildervaibhav/speech-coach/internal/transcription"
	"github.com/codebuildervaibhav/speech-coach/internal/types"
)

// webm magic followed by the doc type
var webmData = append([]byte{0x1A, 0x45, 0xDF, 0xA3, 0x9F, 0x42, 0x86, 0x81, 0x01, 0x42, 0xF7, 0x81, 0x01,
	0x42, 0xF2, 0x81, 0x04, 0x42, 0xF3, 0x81, 0x08, 0x42, 0x82, 0x84, 'w', 'e', 'b', 'm'}, bytes.Repeat([]byte{0}, 64)...)

var mp3Data = append([]byte{'I', 'D', '3', 0x04, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}, bytes.Repeat([]byte{0xFF}, 64)...)

type fakeTranscriber struct {
	mu       sync.Mutex
	calls    int
	gotBytes []byte
	err      error
}

func (f *fakeTranscriber) Transcribe(_ context.Context, _ string, r io.Reader) (*types.Transcript, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.gotBytes, _ = io.ReadAll(r)
	if f.err != nil {
		return nil, f.err
	}
	return &types.Transcript{
		Text: "Hello everyone. Um, welcome.",
		Segments: []types.TranscriptSegment{
			{Start: 0, End: 2, Text: "Hello everyone.", Confidence: 0.9},
			{Start: 2.5, End: 12.25, Text: "Um, welcome.", Confidence: 0.8},
		},
	}, nil
}

type fakeAnalyzer struct {
	calls int
	err   error
}

func (f *fakeAnalyzer) Analyze(_ context.Context, transcript string) (*types.SpeechAnalysisResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &types.SpeechAnalysisResult{
		FillerWordCount: 1,
		FillerWords:     []types.FillerWord{{Word: "um", Count: 1}},
		PaceWPM:         130,
		PaceRating:      types.PaceGood,
		ConfidenceScore: 80,
		OverallScore:    84,
		Feedback:        "Good",
	}, nil
}

type fakeReports struct{ written []string }

func (f *fakeReports) Write(rec *types.Recording) (string, error) {
	f.written = append(f.written, rec.ID)
	return "/reports/" + rec.ID + ".txt", nil
}

type fakeExporter struct{ err error }

func (f *fakeExporter) Export(_ context.Context, rec *types.Recording) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "https://drive.google.com/file/d/" + rec.ID + "/view", nil
}

type testEnv struct {
	svc         *Service
	db          *storage.MetadataDB
	media       *storage.LocalStore
	transcriber *fakeTranscriber
	analyzer    *fakeAnalyzer
	reports     *fakeReports
}

func newTestEnv(t *testing.T, mutate func(*Options)) *testEnv {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.NewMetadataDB(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewMetadataDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	media, err := storage.NewLocalStore(filepath.Join(dir, "media"), "http://localhost/media")
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	env := &testEnv{
		db:          db,
		media:       media,
		transcriber: &fakeTranscriber{},
		analyzer:    &fakeAnalyzer{},
		reports:     &fakeReports{},
	}
	opts := Options{
		Store:        db,
		Media:        media,
		Transcriber:  env.transcriber,
		Analyzer:     env.analyzer,
		Reports:      env.reports,
		MaxFileSize:  1 << 20,
		WarnFileSize: 64,
		TempDir:      filepath.Join(dir, "temp"),
		Logger:       zerolog.Nop(),
	}
	if mutate != nil {
		mutate(&opts)
	}
	env.svc = NewService(opts)
	return env
}

func (e *testEnv) upload(t *testing.T, userID string) *types.Recording {
	t.Helper()
	created, err := e.svc.Create(context.Background(), userID, Upload{
		Filename:    "pitch.webm",
		ContentType: "video/webm",
		Size:        int64(len(webmData)),
		Body:        bytes.NewReader(webmData),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return created.Recording
}

func TestService_Create(t *testing.T) {
	env := newTestEnv(t, nil)

	created, err := env.svc.Create(context.Background(), "user-1", Upload{
		Filename:    "Team intro.final.webm",
		ContentType: "video/webm;codecs=vp8,opus",
		Size:        -1,
		Body:        bytes.NewReader(webmData),
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	rec := created.Recording
	if rec.Title != "Team intro" {
		t.Errorf("Title = %q", rec.Title)
	}
	if !rec.IsVideo || rec.ContentType != "video/webm" || rec.Size != int64(len(webmData)) {
		t.Errorf("rec = %+v", rec)
	}
	if rec.Status != types.StatusUploaded || rec.Source != types.SourceUpload {
		t.Errorf("status=%q source=%q", rec.Status, rec.Source)
	}
	if rec.MediaPath != "user-1/"+rec.ID+".webm" || rec.VideoURL != "http://localhost/media/"+rec.MediaPath {
		t.Errorf("path=%q url=%q", rec.MediaPath, rec.VideoURL)
	}
	if created.Warning == "" {
		t.Error("expected a large file warning above the warn threshold")
	}

	stored, err := env.svc.Get(context.Background(), "user-1", rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if stored.Title != rec.Title {
		t.Errorf("stored title = %q", stored.Title)
	}

	rc, err := env.media.Open(context.Background(), rec.MediaPath)
	if err != nil {
		t.Fatalf("media not stored: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if !bytes.Equal(data, webmData) {
		t.Error("stored media differs from upload")
	}
}

func TestService_CreateValidation(t *testing.T) {
	env := newTestEnv(t, func(o *Options) { o.MaxFileSize = 50 })

	tests := []struct {
		name string
		up   Upload
		code string
	}{
		{"no body", Upload{Filename: "a.webm"}, apperr.CodeNoFile},
		{"declared too large", Upload{Filename: "a.webm", Size: 51, Body: bytes.NewReader(webmData)}, apperr.CodeFileTooLarge},
		{"streamed too large", Upload{Filename: "a.webm", Size: -1, Body: bytes.NewReader(webmData)}, apperr.CodeFileTooLarge},
		{"bad extension", Upload{Filename: "a.txt", Size: 5, Body: strings.NewReader("hello")}, apperr.CodeInvalidFormat},
		{"empty", Upload{Filename: "a.mp3", Size: 0, Body: strings.NewReader("")}, apperr.CodeNoFile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.Create(context.Background(), "u", tt.up)
			if !apperr.Is(err, tt.code) {
				t.Errorf("err = %v, want %s", err, tt.code)
			}
		})
	}

	list, _ := env.db.ListRecordings(context.Background(), "u", 0)
	if len(list) != 0 {
		t.Errorf("rejected uploads left %d rows", len(list))
	}
}

func TestService_DefaultTitle(t *testing.T) {
	if got := recordingTitle("", ".webm"); got != DefaultTitle {
		t.Errorf("recordingTitle = %q", got)
	}
	if got := recordingTitle("  My Talk ", "x.webm"); got != "My Talk" {
		t.Errorf("recordingTitle = %q", got)
	}
}

func TestService_TranscribeAndAnalyze(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	rec := env.upload(t, "user-1")

	if _, err := env.svc.Analyze(ctx, "user-1", rec.ID); !apperr.Is(err, apperr.CodeTranscriptRequired) {
		t.Errorf("Analyze before transcription err = %v", err)
	}

	got, err := env.svc.Transcribe(ctx, "user-1", rec.ID)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got.Status != types.StatusTranscribed || got.Duration != 12.25 {
		t.Errorf("status=%q duration=%v", got.Status, got.Duration)
	}
	if !bytes.Equal(env.transcriber.gotBytes, webmData) {
		t.Error("transcriber did not receive the stored media")
	}

	got, err = env.svc.Analyze(ctx, "user-1", rec.ID)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got.Status != types.StatusAnalyzed || got.Analysis == nil || got.Analysis.OverallScore != 84 {
		t.Errorf("rec = %+v", got)
	}
	if len(env.reports.written) != 1 {
		t.Errorf("reports written = %d", len(env.reports.written))
	}

	stored, _ := env.db.GetRecording(ctx, "user-1", rec.ID)
	if stored.Transcript == nil || stored.Analysis == nil {
		t.Error("results not persisted")
	}
}

func TestService_TranscribeFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.upload(t, "user-1")

	env.transcriber.err = fmt.Errorf("wrap: %w", transcription.ErrNoKey)
	if _, err := env.svc.Transcribe(context.Background(), "user-1", rec.ID); !apperr.Is(err, apperr.CodeNotConfigured) {
		t.Errorf("err = %v, want not configured", err)
	}

	env.transcriber.err = errors.New("http 500")
	if _, err := env.svc.Transcribe(context.Background(), "user-1", rec.ID); !apperr.Is(err, apperr.CodeUpstream) {
		t.Errorf("err = %v, want upstream", err)
	}

	stored, _ := env.db.GetRecording(context.Background(), "user-1", rec.ID)
	if stored.Status != types.StatusFailed || stored.Error == "" {
		t.Errorf("status=%q error=%q", stored.Status, stored.Error)
	}
}

func TestService_OwnershipAndDelete(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	rec := env.upload(t, "user-1")

	if _, err := env.svc.Get(ctx, "user-2", rec.ID); !apperr.Is(err, apperr.CodeNotFound) {
		t.Errorf("Get by other user err = %v", err)
	}
	if err := env.svc.Delete(ctx, "user-2", rec.ID); !apperr.Is(err, apperr.CodeNotFound) {
		t.Errorf("Delete by other user err = %v", err)
	}

	if err := env.svc.Delete(ctx, "user-1", rec.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := env.media.Open(ctx, rec.MediaPath); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("media still present: %v", err)
	}
	if _, err := env.svc.Get(ctx, "user-1", rec.ID); !apperr.Is(err, apperr.CodeNotFound) {
		t.Errorf("Get after delete err = %v", err)
	}
}

func TestService_Samples(t *testing.T) {
	env := newTestEnv(t, func(o *Options) { o.Samples = true })
	ctx := context.Background()

	list, err := env.svc.List(ctx, "new-user", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 3 || list[0].ID != "rec123" || list[0].Source != types.SourceSample {
		t.Fatalf("samples = %+v", list)
	}
	if got, err := env.svc.Get(ctx, "new-user", "rec456"); err != nil || got.Title != "Team Meeting Introduction" {
		t.Errorf("Get sample = %+v, %v", got, err)
	}
	if _, err := env.svc.Transcribe(ctx, "new-user", "rec789"); !apperr.Is(err, apperr.CodeInvalidInput) {
		t.Errorf("Transcribe sample err = %v", err)
	}

	env.upload(t, "new-user")
	list, _ = env.svc.List(ctx, "new-user", 0)
	if len(list) != 1 {
		t.Errorf("samples shown next to real recordings: %d", len(list))
	}
}

func TestService_DashboardAndHistory(t *testing.T) {
	env := newTestEnv(t, func(o *Options) { o.Samples = true })

	d, err := env.svc.Dashboard(context.Background(), "new-user")
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if d.TotalRecordings != 3 || d.AnalyzedRecordings != 3 || d.TotalDuration != 135 {
		t.Errorf("dashboard = %+v", d)
	}
	if d.AverageScore != 78.3 || d.AveragePace != 126.7 || d.TotalFillerWords != 14 {
		t.Errorf("averages = %v %v %d", d.AverageScore, d.AveragePace, d.TotalFillerWords)
	}
	if len(d.Recent) != 3 {
		t.Errorf("recent = %d", len(d.Recent))
	}

	points, err := env.svc.History(context.Background(), "new-user")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(points) != 3 || points[0].RecordingID != "rec789" || points[2].RecordingID != "rec123" {
		t.Errorf("history order = %+v", points)
	}
}

func TestService_ProcessQueuesJob(t *testing.T) {
	env := newTestEnv(t, nil)
	pool := queue.NewWorkerPool(1, 10, env.svc.Processor(), zerolog.Nop())
	env.svc.SetQueue(pool)
	pool.Start()
	defer pool.Stop()

	rec := env.upload(t, "user-1")
	job, err := env.svc.Process(context.Background(), "user-1", rec.ID)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		j, err := env.svc.Job("user-1", job.ID)
		if err != nil {
			t.Fatalf("Job: %v", err)
		}
		if j.Status == queue.StatusCompleted {
			break
		}
		if j.Status == queue.StatusFailed {
			t.Fatalf("job failed: %s", j.Error)
		}
		time.Sleep(5 * time.Millisecond)
	}

	stored, _ := env.db.GetRecording(context.Background(), "user-1", rec.ID)
	if stored.Status != types.StatusAnalyzed {
		t.Errorf("status = %q, want ANALYZED", stored.Status)
	}
	if _, err := env.svc.Job("user-2", job.ID); !apperr.Is(err, apperr.CodeNotFound) {
		t.Errorf("Job for other user err = %v", err)
	}
}

func TestService_ImportFromDrive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("id") {
		case "abc123":
			w.Header().Set("Content-Type", "audio/mpeg")
			w.Header().Set("Content-Disposition", `attachment; filename="keynote.mp3"`)
			w.Write(mp3Data)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	orig := DriveDownloadURL
	DriveDownloadURL = srv.URL + "/uc?export=download&id=%s"
	defer func() { DriveDownloadURL = orig }()

	env := newTestEnv(t, nil)
	created, err := env.svc.ImportFromDrive(context.Background(), "user-1", "https://drive.google.com/file/d/abc123/view", "")
	if err != nil {
		t.Fatalf("ImportFromDrive: %v", err)
	}
	rec := created.Recording
	if rec.Title != "keynote" || rec.Source != types.SourceGDrive || rec.IsVideo || rec.AudioURL == "" {
		t.Errorf("rec = %+v", rec)
	}

	if _, err := env.svc.ImportFromDrive(context.Background(), "user-1", "https://drive.google.com/open?id=missing", ""); !apperr.Is(err, apperr.CodeInvalidInput) {
		t.Errorf("missing file err = %v", err)
	}
	if _, err := env.svc.ImportFromDrive(context.Background(), "user-1", "not a link", ""); !apperr.Is(err, apperr.CodeInvalidInput) {
		t.Errorf("bad link err = %v", err)
	}
}

func TestService_Export(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.upload(t, "user-1")

	if _, err := env.svc.Export(context.Background(), "user-1", rec.ID); !apperr.Is(err, apperr.CodeNotConfigured) {
		t.Errorf("Export without Drive err = %v", err)
	}

	env = newTestEnv(t, func(o *Options) { o.Drive = &fakeExporter{} })
	rec = env.upload(t, "user-1")
	if _, err := env.svc.Export(context.Background(), "user-1", rec.ID); !apperr.Is(err, apperr.CodeTranscriptRequired) {
		t.Errorf("Export before transcription err = %v", err)
	}
	env.svc.Transcribe(context.Background(), "user-1", rec.ID)
	url, err := env.svc.Export(context.Background(), "user-1", rec.ID)
	if err != nil || !strings.Contains(url, rec.ID) {
		t.Errorf("Export = %q, %v", url, err)
	}
}

func TestExtractDriveFileID(t *testing.T) {
	tests := map[string]string{
		"https://drive.google.com/file/d/1AbC_d-E/view?usp=sharing": "1AbC_d-E",
		"https://drive.google.com/open?id=XYZ789":                   "XYZ789",
		"1234567890abcdefghijABCDEFGHIJ":                            "1234567890abcdefghijABCDEFGHIJ",
		"https://example.com/video.mp4":                             "",
	}
	for in, want := range tests {
		if got := ExtractDriveFileID(in); got != want {
			t.Errorf("ExtractDriveFileID(%q) = %q, want %q", in, got, want)
		}
	}
}
