package transcription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/speech-coach/internal/types"
)

const (
	// DefaultElevenLabsURL is the ElevenLabs API root.
	DefaultElevenLabsURL = "https://api.elevenlabs.io"

	// KeyName is the api_keys row holding the ElevenLabs key.
	KeyName = "elevenlabs_api_key"
)

// ErrNoKey is returned when no ElevenLabs key can be resolved.
var ErrNoKey = errors.New("elevenlabs: api key not configured")

// ElevenLabsConfig configures an ElevenLabsClient.
type ElevenLabsConfig struct {
	BaseURL    string
	Model      string
	Language   string
	SegmentGap time.Duration
	Timeout    time.Duration
	Keys       KeySource
	Logger     zerolog.Logger
}

// ElevenLabsClient transcribes media with the ElevenLabs speech-to-text API.
type ElevenLabsClient struct {
	baseURL    string
	model      string
	language   string
	segmentGap float64
	keys       KeySource
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewElevenLabsClient creates a client.
func NewElevenLabsClient(cfg ElevenLabsConfig) *ElevenLabsClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultElevenLabsURL
	}
	if cfg.Model == "" {
		cfg.Model = "scribe_v1"
	}
	if cfg.SegmentGap == 0 {
		cfg.SegmentGap = time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Minute
	}
	return &ElevenLabsClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		language:   cfg.Language,
		segmentGap: cfg.SegmentGap.Seconds(),
		keys:       cfg.Keys,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     cfg.Logger,
	}
}

type elevenLabsWord struct {
	Text      string   `json:"text"`
	Start     float64  `json:"start"`
	End       float64  `json:"end"`
	Type      string   `json:"type"`
	Logprob   *float64 `json:"logprob"`
	SpeakerID string   `json:"speaker_id"`
}

type elevenLabsResponse struct {
	LanguageCode string           `json:"language_code"`
	Text         string           `json:"text"`
	Words        []elevenLabsWord `json:"words"`
}

// Transcribe uploads the media and converts the word timings into segments.
func (c *ElevenLabsClient) Transcribe(ctx context.Context, filename string, r io.Reader) (*types.Transcript, error) {
	if c.keys == nil {
		return nil, ErrNoKey
	}
	apiKey, err := c.keys.Get(ctx, KeyName)
	if err != nil || apiKey == "" {
		return nil, fmt.Errorf("%w: %v", ErrNoKey, err)
	}

	// Stream the multipart body so large videos are not buffered twice
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(c.writeForm(mw, filename, r))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/speech-to-text", pr)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("elevenlabs: create request: %w", err)
	}
	req.Header.Set("xi-api-key", apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("elevenlabs: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("elevenlabs: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var er elevenLabsResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return nil, fmt.Errorf("elevenlabs: decode response: %w", err)
	}

	transcript := &types.Transcript{
		Text:     strings.TrimSpace(er.Text),
		Language: er.LanguageCode,
		Segments: groupWords(er.Words, c.segmentGap),
	}

	c.logger.Info().
		Int("segments", len(transcript.Segments)).
		Float64("duration", transcript.Duration()).
		Dur("took", time.Since(start)).
		Msg("Transcription completed")
	return transcript, nil
}

func (c *ElevenLabsClient) writeForm(mw *multipart.Writer, filename string, r io.Reader) error {
	if err := mw.WriteField("model_id", c.model); err != nil {
		return err
	}
	if err := mw.WriteField("timestamps_granularity", "word"); err != nil {
		return err
	}
	if c.language != "" {
		if err := mw.WriteField("language_code", c.language); err != nil {
			return err
		}
	}
	fw, err := mw.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return err
	}
	if _, err := io.Copy(fw, r); err != nil {
		return err
	}
	return mw.Close()
}

// groupWords builds segments from word timings. A segment ends after a word
// closing a sentence or before a pause longer than gap seconds.
func groupWords(words []elevenLabsWord, gap float64) []types.TranscriptSegment {
	segments := make([]types.TranscriptSegment, 0)

	var (
		text     strings.Builder
		start    float64
		end      float64
		probSum  float64
		probN    int
		hasWords bool
	)

	flush := func() {
		if !hasWords {
			return
		}
		confidence := 1.0
		if probN > 0 {
			confidence = clamp01(probSum / float64(probN))
		}
		segments = append(segments, types.TranscriptSegment{
			Start:      start,
			End:        end,
			Text:       strings.TrimSpace(text.String()),
			Confidence: confidence,
		})
		text.Reset()
		probSum, probN = 0, 0
		hasWords = false
	}

	for _, w := range words {
		switch w.Type {
		case "spacing":
			if hasWords {
				text.WriteString(" ")
			}
			continue
		case "audio_event":
			continue
		}

		word := strings.TrimSpace(w.Text)
		if word == "" {
			continue
		}

		if hasWords && w.Start-end > gap {
			flush()
		}
		if !hasWords {
			start = w.Start
			hasWords = true
		} else if !strings.HasSuffix(text.String(), " ") {
			text.WriteString(" ")
		}

		text.WriteString(word)
		end = w.End
		if w.Logprob != nil {
			probSum += math.Exp(*w.Logprob)
			probN++
		}

		if endsSentence(word) {
			flush()
		}
	}
	flush()

	return segments
}

func endsSentence(word string) bool {
	word = strings.TrimRight(word, `"')]”’`)
	return strings.HasSuffix(word, ".") || strings.HasSuffix(word, "?") || strings.HasSuffix(word, "!")
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
