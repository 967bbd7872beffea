package transcription

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/speech-coach/internal/types"
)

var whisperModels = []string{"tiny", "base", "small", "medium", "large"}

// WhisperTranscriber wraps Python's OpenAI Whisper for transcription
type WhisperTranscriber struct {
	modelName string
	language  string
	tempDir   string
	command   string
	logger    zerolog.Logger
	mu        sync.Mutex // one model load at a time
}

// NewWhisperTranscriber creates a new transcriber using Python Whisper.
// model may be a bare name ("small") or a path containing one.
func NewWhisperTranscriber(model, language, tempDir string, logger zerolog.Logger) (*WhisperTranscriber, error) {
	modelName := "small"
	for _, m := range whisperModels {
		if strings.Contains(model, m) {
			modelName = m
			break
		}
	}
	if tempDir == "" {
		tempDir = "temp"
	}
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	logger.Info().Str("model", modelName).Msg("Using Python Whisper (python -m whisper); availability is checked on first use")

	return &WhisperTranscriber{
		modelName: modelName,
		language:  language,
		tempDir:   tempDir,
		command:   "python",
		logger:    logger,
	}, nil
}

// Transcribe copies the media to a temp file and runs whisper on it
func (wt *WhisperTranscriber) Transcribe(ctx context.Context, filename string, r io.Reader) (*types.Transcript, error) {
	wt.mu.Lock()
	defer wt.mu.Unlock()

	workDir, err := os.MkdirTemp(wt.tempDir, "whisper_")
	if err != nil {
		return nil, fmt.Errorf("failed to create whisper work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	inputPath := filepath.Join(workDir, uuid.New().String()+strings.ToLower(filepath.Ext(filename)))
	if err := writeFile(inputPath, r); err != nil {
		return nil, err
	}

	absInput, err := filepath.Abs(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	args := []string{"-m", "whisper", absInput,
		"--model", wt.modelName,
		"--output_dir", workDir,
		"--output_format", "json",
		"--fp16", "False", // CPU compatibility
	}
	if wt.language != "" {
		args = append(args, "--language", wt.language)
	}

	wt.logger.Debug().Str("file", filename).Msg("Transcribing with Python Whisper")
	output, err := exec.CommandContext(ctx, wt.command, args...).CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("whisper transcription failed: %w\nOutput: %s", err, string(output))
	}

	baseName := strings.TrimSuffix(filepath.Base(absInput), filepath.Ext(absInput))
	jsonData, err := os.ReadFile(filepath.Join(workDir, baseName+".json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read whisper output: %w", err)
	}

	transcript, err := parseWhisperOutput(jsonData)
	if err != nil {
		return nil, err
	}

	wt.logger.Info().
		Int("segments", len(transcript.Segments)).
		Float64("duration", transcript.Duration()).
		Msg("Transcription completed")
	return transcript, nil
}

// whisperOutput matches Python Whisper's JSON output format
type whisperOutput struct {
	Text     string           `json:"text"`
	Language string           `json:"language"`
	Segments []whisperSegment `json:"segments"`
}

type whisperSegment struct {
	ID         int     `json:"id"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
	AvgLogprob float64 `json:"avg_logprob"`
}

func parseWhisperOutput(data []byte) (*types.Transcript, error) {
	var out whisperOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse whisper JSON: %w", err)
	}

	segments := make([]types.TranscriptSegment, 0, len(out.Segments))
	for _, seg := range out.Segments {
		segments = append(segments, types.TranscriptSegment{
			Start:      seg.Start,
			End:        seg.End,
			Text:       strings.TrimSpace(seg.Text),
			Confidence: logprobConfidence(seg.AvgLogprob),
		})
	}

	return &types.Transcript{
		Text:     strings.TrimSpace(out.Text),
		Language: out.Language,
		Segments: segments,
	}, nil
}

// logprobConfidence maps an average log probability onto [0,1];
// zero means whisper reported none.
func logprobConfidence(lp float64) float64 {
	if lp == 0 {
		return 1
	}
	return clamp01(math.Exp(lp))
}

func writeFile(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	return f.Close()
}
