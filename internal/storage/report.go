package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/codebuildervaibhav/speech-coach/internal/types"
)

// ReportWriter saves transcripts and analyses to the local filesystem
type ReportWriter struct {
	outputDir string
	now       func() time.Time
}

// NewReportWriter creates a new report writer
func NewReportWriter(outputDir string) *ReportWriter {
	return &ReportWriter{
		outputDir: outputDir,
		now:       time.Now,
	}
}

// Write saves the transcript text and a JSON report for rec and returns
// the path of the text file.
func (rw *ReportWriter) Write(rec *types.Recording) (string, error) {
	// outputs/2025/01/23/
	now := rw.now()
	dateDir := filepath.Join(rw.outputDir,
		fmt.Sprintf("%d", now.Year()),
		fmt.Sprintf("%02d", now.Month()),
		fmt.Sprintf("%02d", now.Day()))

	if err := os.MkdirAll(dateDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create date directory: %w", err)
	}

	// 20250123_143022_team_intro.txt
	baseFilename := ReportBaseName(now, rec.Title)

	txtPath := filepath.Join(dateDir, baseFilename+".txt")
	reportPath := filepath.Join(dateDir, baseFilename+"_analysis.json")

	var text string
	if rec.Transcript != nil {
		text = rec.Transcript.Text
	}
	if err := os.WriteFile(txtPath, []byte(text), 0644); err != nil {
		return "", fmt.Errorf("failed to save transcript: %w", err)
	}

	reportJSON, err := json.MarshalIndent(Report(rec), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(reportPath, reportJSON, 0644); err != nil {
		return "", fmt.Errorf("failed to save report: %w", err)
	}

	return txtPath, nil
}

// Report is the JSON document written next to a transcript.
func Report(rec *types.Recording) map[string]any {
	return map[string]any{
		"recording_id":     rec.ID,
		"title":            rec.Title,
		"recorded_at":      rec.Date,
		"duration_seconds": rec.Duration,
		"source":           rec.Source,
		"is_video":         rec.IsVideo,
		"transcript":       rec.Transcript,
		"analysis":         rec.Analysis,
	}
}

// ReportBaseName builds "<timestamp>_<title>" for report files.
func ReportBaseName(t time.Time, title string) string {
	return fmt.Sprintf("%s_%s", t.Format("20060102_150405"), sanitizeFilename(title))
}

// sanitizeFilename replaces characters that are invalid in file names
func sanitizeFilename(name string) string {
	result := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '_'
		}
		if r < 32 {
			return -1
		}
		return r
	}, strings.TrimSpace(name))

	if result == "" {
		result = "untitled"
	}
	if runes := []rune(result); len(runes) > 100 {
		result = string(runes[:100])
	}
	return result
}
