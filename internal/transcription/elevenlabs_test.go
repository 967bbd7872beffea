package transcription

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type staticKeys map[string]string

func (k staticKeys) Get(_ context.Context, name string) (string, error) {
	v, ok := k[name]
	if !ok {
		return "", errors.New("missing")
	}
	return v, nil
}

const sampleResponse = `{
  "language_code": "en",
  "text": "Hello everyone. Um today we talk.",
  "words": [
    {"text": "Hello", "start": 0.0, "end": 0.4, "type": "word", "logprob": 0},
    {"text": " ", "start": 0.4, "end": 0.5, "type": "spacing"},
    {"text": "everyone.", "start": 0.5, "end": 1.0, "type": "word", "logprob": -0.6931471805599453},
    {"text": " ", "start": 1.0, "end": 1.1, "type": "spacing"},
    {"text": "(laughs)", "start": 1.1, "end": 1.5, "type": "audio_event"},
    {"text": "Um", "start": 1.5, "end": 1.7, "type": "word"},
    {"text": " ", "start": 1.7, "end": 1.8, "type": "spacing"},
    {"text": "today", "start": 1.8, "end": 2.1, "type": "word"},
    {"text": " ", "start": 2.1, "end": 4.0, "type": "spacing"},
    {"text": "we", "start": 4.0, "end": 4.2, "type": "word"},
    {"text": " ", "start": 4.2, "end": 4.3, "type": "spacing"},
    {"text": "talk.", "start": 4.3, "end": 4.8, "type": "word"}
  ]
}`

func TestElevenLabsClient_Transcribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/speech-to-text" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("xi-api-key"); got != "xi-test" {
			t.Errorf("xi-api-key = %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm: %v", err)
		}
		if got := r.FormValue("model_id"); got != "scribe_v1" {
			t.Errorf("model_id = %q", got)
		}
		if got := r.FormValue("timestamps_granularity"); got != "word" {
			t.Errorf("timestamps_granularity = %q", got)
		}
		if got := r.FormValue("language_code"); got != "en" {
			t.Errorf("language_code = %q", got)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("FormFile: %v", err)
		}
		data, _ := io.ReadAll(f)
		if hdr.Filename != "talk.webm" || string(data) != "media-bytes" {
			t.Errorf("file = %q (%q)", hdr.Filename, data)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	c := NewElevenLabsClient(ElevenLabsConfig{
		BaseURL:  srv.URL,
		Language: "en",
		Keys:     staticKeys{KeyName: "xi-test"},
		Logger:   zerolog.Nop(),
	})

	tr, err := c.Transcribe(context.Background(), "/tmp/x/talk.webm", strings.NewReader("media-bytes"))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if tr.Language != "en" || tr.Text != "Hello everyone. Um today we talk." {
		t.Errorf("transcript = %+v", tr)
	}
	if len(tr.Segments) != 3 {
		t.Fatalf("segments = %d, want 3: %+v", len(tr.Segments), tr.Segments)
	}

	first := tr.Segments[0]
	if first.Text != "Hello everyone." || first.Start != 0 || first.End != 1.0 {
		t.Errorf("first segment = %+v", first)
	}
	// mean of exp(0)=1 and exp(-ln2)=0.5
	if diff := first.Confidence - 0.75; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("confidence = %v, want 0.75", first.Confidence)
	}

	// the 1.9s pause splits "Um today" from "we talk."
	if tr.Segments[1].Text != "Um today" || tr.Segments[1].Confidence != 1 {
		t.Errorf("second segment = %+v", tr.Segments[1])
	}
	if tr.Segments[2].Text != "we talk." || tr.Duration() != 4.8 {
		t.Errorf("third segment = %+v, duration %v", tr.Segments[2], tr.Duration())
	}
}

func TestElevenLabsClient_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":{"status":"invalid_api_key"}}`))
	}))
	defer srv.Close()

	c := NewElevenLabsClient(ElevenLabsConfig{BaseURL: srv.URL, Keys: staticKeys{KeyName: "bad"}, Logger: zerolog.Nop()})
	_, err := c.Transcribe(context.Background(), "a.mp3", strings.NewReader("x"))
	if err == nil || !strings.Contains(err.Error(), "401") || !strings.Contains(err.Error(), "invalid_api_key") {
		t.Errorf("err = %v", err)
	}
}

func TestElevenLabsClient_NoKey(t *testing.T) {
	c := NewElevenLabsClient(ElevenLabsConfig{Keys: staticKeys{}, Logger: zerolog.Nop()})
	_, err := c.Transcribe(context.Background(), "a.mp3", strings.NewReader("x"))
	if !errors.Is(err, ErrNoKey) {
		t.Errorf("err = %v, want ErrNoKey", err)
	}
}

func TestGroupWords(t *testing.T) {
	lp := func(v float64) *float64 { return &v }
	tests := []struct {
		name  string
		words []elevenLabsWord
		want  []string
	}{
		{"empty", nil, []string{}},
		{
			"question and exclamation",
			[]elevenLabsWord{
				{Text: "Ready?", Start: 0, End: 0.5, Type: "word"},
				{Text: "Go!", Start: 0.6, End: 0.9, Type: "word"},
				{Text: "Now", Start: 1.0, End: 1.2, Type: "word", Logprob: lp(-20)},
			},
			[]string{"Ready?", "Go!", "Now"},
		},
		{
			"quoted sentence end",
			[]elevenLabsWord{
				{Text: `"Done."`, Start: 0, End: 0.5, Type: "word"},
				{Text: "next", Start: 0.6, End: 0.9, Type: "word"},
			},
			[]string{`"Done."`, "next"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := groupWords(tt.words, time.Second.Seconds())
			if len(got) != len(tt.want) {
				t.Fatalf("segments = %+v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i].Text != tt.want[i] {
					t.Errorf("segment %d = %q, want %q", i, got[i].Text, tt.want[i])
				}
				if got[i].Confidence < 0 || got[i].Confidence > 1 {
					t.Errorf("segment %d confidence %v out of range", i, got[i].Confidence)
				}
			}
		})
	}
}
