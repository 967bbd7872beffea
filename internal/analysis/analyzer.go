// Package analysis critiques speech transcripts with Claude.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/speech-coach/internal/types"
)

// KeyName is the api_keys row holding the Anthropic key.
const KeyName = "anthropic_api_key"

// FallbackFeedback is returned when no real analysis could be produced.
const FallbackFeedback = "We were unable to provide a detailed analysis. Please try again later."

// Analyzer produces a speech critique for a transcript.
type Analyzer interface {
	Analyze(ctx context.Context, transcript string) (*types.SpeechAnalysisResult, error)
}

// KeySource resolves API keys by name.
type KeySource interface {
	Get(ctx context.Context, name string) (string, error)
}

// Config configures a ClaudeAnalyzer.
type Config struct {
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	MaxRetries  int // 0 disables retries
	Keys        KeySource
	Logger      zerolog.Logger
}

// ClaudeAnalyzer asks Claude for a structured critique. It never fails:
// any problem yields the fallback result, flagged with Fallback.
type ClaudeAnalyzer struct {
	cfg        Config
	httpClient *http.Client
	logger     zerolog.Logger

	mu        sync.Mutex
	client    *anthropic.Client
	clientKey string
}

// NewClaudeAnalyzer creates an analyzer.
func NewClaudeAnalyzer(cfg Config) *ClaudeAnalyzer {
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-5"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 4000
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &ClaudeAnalyzer{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     cfg.Logger,
	}
}

// Analyze implements Analyzer.
func (a *ClaudeAnalyzer) Analyze(ctx context.Context, transcript string) (*types.SpeechAnalysisResult, error) {
	result, err := a.analyze(ctx, transcript)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		a.logger.Error().Err(err).Msg("Claude analysis failed, using fallback result")
		return Fallback(), nil
	}
	return result, nil
}

// clientFor returns the cached client, rebuilding it when the key rotates.
func (a *ClaudeAnalyzer) clientFor(apiKey string) *anthropic.Client {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.client != nil && a.clientKey == apiKey {
		return a.client
	}
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(a.httpClient),
		option.WithMaxRetries(a.cfg.MaxRetries),
	}
	if a.cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(a.cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)
	a.client = &client
	a.clientKey = apiKey
	return a.client
}

func (a *ClaudeAnalyzer) analyze(ctx context.Context, transcript string) (*types.SpeechAnalysisResult, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, errors.New("empty transcript")
	}
	if a.cfg.Keys == nil {
		return nil, errors.New("no key source configured")
	}
	apiKey, err := a.cfg.Keys.Get(ctx, KeyName)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve Anthropic API key: %w", err)
	}

	client := a.clientFor(apiKey)

	start := time.Now()
	message, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.cfg.Model),
		MaxTokens: int64(a.cfg.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(BuildPrompt(transcript))),
		},
		Temperature: anthropic.Float(a.cfg.Temperature),
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic API error: %w", err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	result, err := ParseResult(text.String())
	if err != nil {
		return nil, err
	}

	a.logger.Info().
		Float64("overall", result.OverallScore).
		Int("fillers", result.FillerWordCount).
		Int64("output_tokens", message.Usage.OutputTokens).
		Dur("took", time.Since(start)).
		Msg("Analysis completed")
	return result, nil
}

// Fallback returns the static result used when analysis fails.
func Fallback() *types.SpeechAnalysisResult {
	return &types.SpeechAnalysisResult{
		FillerWordCount: 0,
		FillerWords:     []types.FillerWord{},
		PaceWPM:         120,
		PaceRating:      types.PaceGood,
		GrammarIssues:   []types.GrammarIssue{},
		ConfidenceScore: 75,
		BodyLanguage: &types.BodyLanguage{
			Posture:    75,
			Gestures:   75,
			EyeContact: 75,
		},
		OverallScore: 75,
		Feedback:     FallbackFeedback,
		Fallback:     true,
	}
}
