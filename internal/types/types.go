package types

import "time"

// Recording status constants
const (
	StatusUploaded     = "UPLOADED"
	StatusTranscribing = "TRANSCRIBING"
	StatusTranscribed  = "TRANSCRIBED"
	StatusAnalyzing    = "ANALYZING"
	StatusAnalyzed     = "ANALYZED"
	StatusFailed       = "FAILED"
)

// Source type constants
const (
	SourceUpload   = "upload"
	SourceRecorder = "recorder"
	SourceGDrive   = "gdrive"
	SourceSample   = "sample"
)

// Pace ratings returned by the analyzer
const (
	PaceSlow = "Slow"
	PaceGood = "Good"
	PaceFast = "Fast"
)

// Recording is a captured or uploaded speech plus whatever has been
// produced for it so far.
type Recording struct {
	ID          string                `json:"id"`
	UserID      string                `json:"-"`
	Title       string                `json:"title"`
	Date        time.Time             `json:"date"`
	Duration    float64               `json:"duration"`
	MediaPath   string                `json:"-"`
	VideoURL    string                `json:"videoUrl,omitempty"`
	AudioURL    string                `json:"audioUrl,omitempty"`
	IsVideo     bool                  `json:"isVideo"`
	ContentType string                `json:"contentType,omitempty"`
	Size        int64                 `json:"size,omitempty"`
	Source      string                `json:"source"`
	Status      string                `json:"status"`
	Transcript  *Transcript           `json:"transcript,omitempty"`
	Analysis    *SpeechAnalysisResult `json:"analysis,omitempty"`
	Error       string                `json:"error,omitempty"`
}

// MediaURL returns whichever of the video or audio URL is set.
func (r *Recording) MediaURL() string {
	if r.IsVideo {
		return r.VideoURL
	}
	return r.AudioURL
}

// SetMediaURL stores url in the field matching the media kind.
func (r *Recording) SetMediaURL(url string) {
	if r.IsVideo {
		r.VideoURL, r.AudioURL = url, ""
		return
	}
	r.AudioURL, r.VideoURL = url, ""
}

// Transcript is the speech-to-text output for a recording
type Transcript struct {
	Text     string              `json:"text"`
	Language string              `json:"language,omitempty"`
	Segments []TranscriptSegment `json:"segments"`
}

// Duration returns the end time of the last segment
func (t *Transcript) Duration() float64 {
	if t == nil || len(t.Segments) == 0 {
		return 0
	}
	return t.Segments[len(t.Segments)-1].End
}

// TranscriptSegment represents a timestamped span of the transcript
type TranscriptSegment struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// FillerWord counts one filler word or phrase
type FillerWord struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// GrammarIssue is a flagged span with a suggested replacement.
// Position holds the [start, end) character offsets in the transcript.
type GrammarIssue struct {
	Text       string `json:"text"`
	Suggestion string `json:"suggestion"`
	Position   [2]int `json:"position"`
}

// BodyLanguage holds 0-100 scores for visual delivery
type BodyLanguage struct {
	Posture    float64 `json:"posture"`
	Gestures   float64 `json:"gestures"`
	EyeContact float64 `json:"eyeContact"`
}

// SpeechAnalysisResult is the structured critique of a transcript
type SpeechAnalysisResult struct {
	FillerWordCount int            `json:"fillerWordCount"`
	FillerWords     []FillerWord   `json:"fillerWords"`
	PaceWPM         float64        `json:"paceWpm"`
	PaceRating      string         `json:"paceRating"`
	GrammarIssues   []GrammarIssue `json:"grammarIssues"`
	ConfidenceScore float64        `json:"confidenceScore"`
	BodyLanguage    *BodyLanguage  `json:"bodyLanguage,omitempty"`
	OverallScore    float64        `json:"overallScore"`
	Feedback        string         `json:"feedback"`

	// Fallback is set when the analyzer could not produce a real result
	Fallback bool `json:"-"`
}
