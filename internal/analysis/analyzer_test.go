package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/speech-coach/internal/types"
)

type staticKeys map[string]string

func (k staticKeys) Get(_ context.Context, name string) (string, error) {
	v, ok := k[name]
	if !ok {
		return "", errors.New("missing")
	}
	return v, nil
}

const validReply = "Here is the analysis:\n```json\n" + `{
  "fillerWordCount": 3,
  "fillerWords": [{"word": "um", "count": 2}, {"word": "like", "count": 1}],
  "paceWpm": 135,
  "paceRating": "Good",
  "grammarIssues": [{"text": "we was", "suggestion": "we were", "position": [10, 16]}],
  "confidenceScore": 82,
  "bodyLanguage": {"posture": 70, "gestures": 75, "eyeContact": 80},
  "overallScore": 78,
  "feedback": "Solid delivery. Cut the filler words."
}` + "\n```"

func anthropicServer(t *testing.T, status int, reply string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "sk-test" {
			t.Errorf("x-api-key = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		var req map[string]any
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("request body: %v", err)
		}
		if req["model"] != "claude-test" || req["max_tokens"] != float64(4000) {
			t.Errorf("model=%v max_tokens=%v", req["model"], req["max_tokens"])
		}
		if !strings.Contains(string(body), "Hello everyone") {
			t.Error("prompt does not contain the transcript")
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`))
			return
		}
		resp := map[string]any{
			"id":            "msg_1",
			"type":          "message",
			"role":          "assistant",
			"model":         "claude-test",
			"content":       []map[string]any{{"type": "text", "text": reply}},
			"stop_reason":   "end_turn",
			"stop_sequence": nil,
			"usage":         map[string]any{"input_tokens": 100, "output_tokens": 200},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func newTestAnalyzer(url string) *ClaudeAnalyzer {
	return NewClaudeAnalyzer(Config{
		BaseURL:     url,
		Model:       "claude-test",
		Temperature: 0.1,
		Keys:        staticKeys{KeyName: "sk-test"},
		Logger:      zerolog.Nop(),
	})
}

func TestClaudeAnalyzer_Analyze(t *testing.T) {
	srv := anthropicServer(t, http.StatusOK, validReply)
	defer srv.Close()

	result, err := newTestAnalyzer(srv.URL).Analyze(context.Background(), "Hello everyone, um, we was here.")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.Fallback {
		t.Fatal("got fallback result")
	}
	if result.FillerWordCount != 3 || len(result.FillerWords) != 2 {
		t.Errorf("fillers = %d %+v", result.FillerWordCount, result.FillerWords)
	}
	if result.PaceWPM != 135 || result.PaceRating != types.PaceGood {
		t.Errorf("pace = %v %q", result.PaceWPM, result.PaceRating)
	}
	if len(result.GrammarIssues) != 1 || result.GrammarIssues[0].Position != [2]int{10, 16} {
		t.Errorf("grammar = %+v", result.GrammarIssues)
	}
	if result.BodyLanguage == nil || result.BodyLanguage.EyeContact != 80 {
		t.Errorf("body language = %+v", result.BodyLanguage)
	}
}

func TestClaudeAnalyzer_FallbackOnAPIError(t *testing.T) {
	srv := anthropicServer(t, http.StatusBadRequest, "")
	defer srv.Close()

	result, err := newTestAnalyzer(srv.URL).Analyze(context.Background(), "Hello everyone")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !result.Fallback || result.Feedback != FallbackFeedback || result.OverallScore != 75 {
		t.Errorf("result = %+v", result)
	}
}

func TestClaudeAnalyzer_FallbackOnBadReply(t *testing.T) {
	srv := anthropicServer(t, http.StatusOK, "I cannot analyze this.")
	defer srv.Close()

	result, err := newTestAnalyzer(srv.URL).Analyze(context.Background(), "Hello everyone")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !result.Fallback {
		t.Error("expected fallback for reply without JSON")
	}
}

func TestClaudeAnalyzer_FallbackWithoutKey(t *testing.T) {
	a := NewClaudeAnalyzer(Config{Keys: staticKeys{}, Logger: zerolog.Nop()})
	result, err := a.Analyze(context.Background(), "Hello")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !result.Fallback {
		t.Error("expected fallback without key")
	}
}

func TestFallback(t *testing.T) {
	f := Fallback()
	if f.FillerWordCount != 0 || f.PaceWPM != 120 || f.PaceRating != types.PaceGood ||
		f.ConfidenceScore != 75 || f.OverallScore != 75 {
		t.Errorf("fallback = %+v", f)
	}
	if f.BodyLanguage == nil || *f.BodyLanguage != (types.BodyLanguage{Posture: 75, Gestures: 75, EyeContact: 75}) {
		t.Errorf("body language = %+v", f.BodyLanguage)
	}
	b, _ := json.Marshal(f)
	if strings.Contains(string(b), "allback") {
		t.Errorf("fallback flag serialized: %s", b)
	}
}

func TestClaudeAnalyzer_ReusesClientPerKey(t *testing.T) {
	srv := anthropicServer(t, http.StatusOK, validReply)
	defer srv.Close()

	a := newTestAnalyzer(srv.URL)
	for i := 0; i < 2; i++ {
		result, err := a.Analyze(context.Background(), "Hello everyone")
		if err != nil || result.Fallback {
			t.Fatalf("Analyze #%d: err=%v fallback=%v", i, err, result != nil && result.Fallback)
		}
	}
	first := a.clientFor("sk-test")
	if again := a.clientFor("sk-test"); again != first {
		t.Error("client rebuilt for an unchanged key")
	}
	if rotated := a.clientFor("sk-other"); rotated == first {
		t.Error("client not rebuilt after key rotation")
	}
}

func TestClaudeAnalyzer_FallbackOnNullScore(t *testing.T) {
	reply := strings.Replace(validReply, `"overallScore": 78`, `"overallScore": null`, 1)
	srv := anthropicServer(t, http.StatusOK, reply)
	defer srv.Close()

	result, err := newTestAnalyzer(srv.URL).Analyze(context.Background(), "Hello everyone")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !result.Fallback {
		t.Errorf("null overallScore accepted: %+v", result)
	}
}
