// Package transcription turns recorded speech into timestamped transcripts.
//
// Supported providers:
//   - elevenlabs: ElevenLabs speech-to-text API (default)
//   - whisper: local OpenAI Whisper via python -m whisper
package transcription

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/speech-coach/internal/types"
)

// Transcriber converts a media stream into a transcript.
type Transcriber interface {
	// Transcribe reads the media in r. filename carries the original name
	// and extension, which some providers need to detect the container.
	Transcribe(ctx context.Context, filename string, r io.Reader) (*types.Transcript, error)
}

// KeySource resolves API keys by name.
type KeySource interface {
	Get(ctx context.Context, name string) (string, error)
}

// Options selects and configures a provider.
type Options struct {
	Provider     string
	BaseURL      string
	Model        string
	Language     string
	SegmentGap   time.Duration
	Timeout      time.Duration
	WhisperModel string
	TempDir      string
	Keys         KeySource
	Logger       zerolog.Logger
}

// New creates a Transcriber for opts.Provider.
func New(opts Options) (Transcriber, error) {
	switch opts.Provider {
	case "elevenlabs", "":
		return NewElevenLabsClient(ElevenLabsConfig{
			BaseURL:    opts.BaseURL,
			Model:      opts.Model,
			Language:   opts.Language,
			SegmentGap: opts.SegmentGap,
			Timeout:    opts.Timeout,
			Keys:       opts.Keys,
			Logger:     opts.Logger,
		}), nil
	case "whisper":
		return NewWhisperTranscriber(opts.WhisperModel, opts.Language, opts.TempDir, opts.Logger)
	default:
		return nil, fmt.Errorf("transcription: unknown provider %q (supported: elevenlabs, whisper)", opts.Provider)
	}
}
