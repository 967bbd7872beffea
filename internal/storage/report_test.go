package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/codebuildervaibhav/speech-coach/internal/types"
)

func TestReportWriter_Write(t *testing.T) {
	dir := t.TempDir()
	rw := NewReportWriter(dir)
	rw.now = func() time.Time { return time.Date(2025, 1, 23, 14, 30, 22, 0, time.UTC) }

	rec := &types.Recording{
		ID:         "rec-1",
		Title:      "Team Intro",
		Transcript: &types.Transcript{Text: "Hello there."},
		Analysis:   &types.SpeechAnalysisResult{OverallScore: 80, PaceRating: types.PaceGood},
	}

	txtPath, err := rw.Write(rec)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	wantTxt := filepath.Join(dir, "2025", "01", "23", "20250123_143022_Team_Intro.txt")
	if txtPath != wantTxt {
		t.Errorf("path = %q, want %q", txtPath, wantTxt)
	}
	b, err := os.ReadFile(txtPath)
	if err != nil || string(b) != "Hello there." {
		t.Errorf("transcript file = %q, %v", b, err)
	}

	reportPath := strings.TrimSuffix(txtPath, ".txt") + "_analysis.json"
	raw, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var report map[string]any
	if err := json.Unmarshal(raw, &report); err != nil {
		t.Fatalf("report JSON: %v", err)
	}
	if report["recording_id"] != "rec-1" {
		t.Errorf("recording_id = %v", report["recording_id"])
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"Team Intro":   "Team_Intro",
		"a/b\\c:d?":    "a_b_c_d_",
		"   ":          "untitled",
		"tab\there":    "tabhere",
		"quote\"<x>|y": "quote__x__y",
	}
	for in, want := range tests {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
	if got := sanitizeFilename(strings.Repeat("x", 150)); len(got) != 100 {
		t.Errorf("long name length = %d, want 100", len(got))
	}
}
