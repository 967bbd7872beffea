package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/codebuildervaibhav/speech-coach/internal/types"
)

// ErrNoJSON is returned when a reply holds no JSON object.
var ErrNoJSON = errors.New("could not extract JSON from Claude response")

// ErrInvalidStructure is returned when the JSON lacks required fields.
var ErrInvalidStructure = errors.New("invalid response structure from Claude")

// ExtractJSON returns the text between the first '{' and the last '}'.
func ExtractJSON(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", ErrNoJSON
	}
	return text[start : end+1], nil
}

// ParseResult extracts, validates and normalizes an analysis reply.
func ParseResult(text string) (*types.SpeechAnalysisResult, error) {
	raw, err := ExtractJSON(text)
	if err != nil {
		return nil, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("failed to parse Claude analysis result: %w", err)
	}
	if err := validateFields(fields); err != nil {
		return nil, err
	}

	var wire wireResult
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStructure, err)
	}
	result := wire.result()

	normalize(result)
	return result, nil
}

// JSON value kinds checked by validateFields
const (
	kindNumber = "number"
	kindString = "string"
	kindArray  = "array"
	kindObject = "object"
	kindBool   = "boolean"
	kindNull   = "null"
)

// validateFields checks that every field is present with the right JSON kind
func validateFields(fields map[string]json.RawMessage) error {
	checks := []struct {
		name string
		kind string
	}{
		{"fillerWordCount", kindNumber},
		{"fillerWords", kindArray},
		{"paceWpm", kindNumber},
		{"paceRating", kindString},
		{"grammarIssues", kindArray},
		{"confidenceScore", kindNumber},
		{"bodyLanguage", kindObject},
		{"overallScore", kindNumber},
		{"feedback", kindString},
	}
	for _, c := range checks {
		v, ok := fields[c.name]
		if !ok {
			return fmt.Errorf("%w: missing %s", ErrInvalidStructure, c.name)
		}
		if got := jsonKind(v); got != c.kind {
			return fmt.Errorf("%w: %s is %s, want %s", ErrInvalidStructure, c.name, got, c.kind)
		}
	}
	return nil
}

func jsonKind(v json.RawMessage) string {
	s := strings.TrimSpace(string(v))
	if s == "" {
		return ""
	}
	switch c := s[0]; {
	case c == '-' || (c >= '0' && c <= '9'):
		return kindNumber
	case c == '"':
		return kindString
	case c == '[':
		return kindArray
	case c == '{':
		return kindObject
	case c == 't' || c == 'f':
		return kindBool
	case c == 'n':
		return kindNull
	default:
		return ""
	}
}

// wireResult decodes counts and offsets as JSON numbers, so integral
// floats such as 3.0 are accepted and rounded.
type wireResult struct {
	FillerWordCount float64 `json:"fillerWordCount"`
	FillerWords     []struct {
		Word  string  `json:"word"`
		Count float64 `json:"count"`
	} `json:"fillerWords"`
	PaceWPM       float64 `json:"paceWpm"`
	PaceRating    string  `json:"paceRating"`
	GrammarIssues []struct {
		Text       string    `json:"text"`
		Suggestion string    `json:"suggestion"`
		Position   []float64 `json:"position"`
	} `json:"grammarIssues"`
	ConfidenceScore float64             `json:"confidenceScore"`
	BodyLanguage    *types.BodyLanguage `json:"bodyLanguage"`
	OverallScore    float64             `json:"overallScore"`
	Feedback        string              `json:"feedback"`
}

func (w *wireResult) result() *types.SpeechAnalysisResult {
	r := &types.SpeechAnalysisResult{
		FillerWordCount: roundInt(w.FillerWordCount),
		FillerWords:     make([]types.FillerWord, 0, len(w.FillerWords)),
		PaceWPM:         w.PaceWPM,
		PaceRating:      w.PaceRating,
		GrammarIssues:   make([]types.GrammarIssue, 0, len(w.GrammarIssues)),
		ConfidenceScore: w.ConfidenceScore,
		BodyLanguage:    w.BodyLanguage,
		OverallScore:    w.OverallScore,
		Feedback:        w.Feedback,
	}
	for _, f := range w.FillerWords {
		r.FillerWords = append(r.FillerWords, types.FillerWord{Word: f.Word, Count: roundInt(f.Count)})
	}
	for _, g := range w.GrammarIssues {
		issue := types.GrammarIssue{Text: g.Text, Suggestion: g.Suggestion}
		for i := 0; i < len(g.Position) && i < 2; i++ {
			issue.Position[i] = roundInt(g.Position[i])
		}
		r.GrammarIssues = append(r.GrammarIssues, issue)
	}
	return r
}

func roundInt(v float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return int(math.Round(v))
}

func normalize(r *types.SpeechAnalysisResult) {
	if r.FillerWords == nil {
		r.FillerWords = []types.FillerWord{}
	}
	if r.GrammarIssues == nil {
		r.GrammarIssues = []types.GrammarIssue{}
	}
	if r.FillerWordCount < 0 {
		r.FillerWordCount = 0
	}
	if r.PaceWPM < 0 {
		r.PaceWPM = 0
	}

	r.ConfidenceScore = clampScore(r.ConfidenceScore)
	r.OverallScore = clampScore(r.OverallScore)
	if r.BodyLanguage != nil {
		r.BodyLanguage.Posture = clampScore(r.BodyLanguage.Posture)
		r.BodyLanguage.Gestures = clampScore(r.BodyLanguage.Gestures)
		r.BodyLanguage.EyeContact = clampScore(r.BodyLanguage.EyeContact)
	}

	switch r.PaceRating {
	case types.PaceSlow, types.PaceGood, types.PaceFast:
	default:
		r.PaceRating = PaceRating(r.PaceWPM)
	}
}

// PaceRating buckets words per minute: Slow below 110, Fast above 150.
func PaceRating(wpm float64) string {
	switch {
	case wpm < 110:
		return types.PaceSlow
	case wpm > 150:
		return types.PaceFast
	default:
		return types.PaceGood
	}
}

func clampScore(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}
