package recordings

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"regexp"

	"github.com/codebuildervaibhav/speech-coach/internal/apperr"
	"github.com/codebuildervaibhav/speech-coach/internal/logging"
	"github.com/codebuildervaibhav/speech-coach/internal/types"
)

var (
	driveFilePattern = regexp.MustCompile(`/file/d/([a-zA-Z0-9_-]+)`)
	driveIDPattern   = regexp.MustCompile(`[?&]id=([a-zA-Z0-9_-]+)`)
	driveRawPattern  = regexp.MustCompile(`^([a-zA-Z0-9_-]{25,40})$`)
)

// DriveDownloadURL is the public download endpoint for shared files.
var DriveDownloadURL = "https://drive.google.com/uc?export=download&id=%s"

// ImportFromDrive downloads a publicly shared Google Drive file and stores
// it as a new recording.
func (s *Service) ImportFromDrive(ctx context.Context, userID, link, title string) (*Created, error) {
	fileID := ExtractDriveFileID(link)
	if fileID == "" {
		return nil, apperr.InvalidInput("Invalid Google Drive URL")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(DriveDownloadURL, fileID), nil)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	s.logger.Info().Str("file_id", fileID).Msg("Downloading from Google Drive")
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, apperr.New(apperr.CodeDownloadFailed, "Failed to download file from Google Drive", http.StatusBadGateway).WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, apperr.InvalidInput("File not accessible (may be private or doesn't exist)")
	}

	filename := driveFilename(resp.Header.Get("Content-Disposition"), fileID)
	return s.Create(ctx, userID, Upload{
		Filename:    filename,
		ContentType: resp.Header.Get("Content-Type"),
		Title:       title,
		Size:        resp.ContentLength,
		Source:      types.SourceGDrive,
		Body:        resp.Body,
	})
}

// Export uploads the transcript and analysis to Google Drive.
func (s *Service) Export(ctx context.Context, userID, id string) (string, error) {
	if s.drive == nil {
		return "", apperr.NotConfigured("Google Drive")
	}
	rec, err := s.owned(ctx, userID, id)
	if err != nil {
		return "", err
	}
	if rec.Transcript == nil && rec.Analysis == nil {
		return "", apperr.New(apperr.CodeTranscriptRequired, "Transcript required", http.StatusBadRequest)
	}

	url, err := s.drive.Export(ctx, rec)
	if err != nil {
		return "", apperr.Upstream("Google Drive", err)
	}
	s.logger.Info().Str(logging.FieldRecordingID, id).Str("url", url).Msg("Recording exported to Google Drive")
	return url, nil
}

// ExtractDriveFileID extracts the file ID from various Google Drive URL formats
func ExtractDriveFileID(url string) string {
	// https://drive.google.com/file/d/{ID}/view
	if matches := driveFilePattern.FindStringSubmatch(url); len(matches) > 1 {
		return matches[1]
	}
	// https://drive.google.com/open?id={ID}
	if matches := driveIDPattern.FindStringSubmatch(url); len(matches) > 1 {
		return matches[1]
	}
	// bare ID
	if matches := driveRawPattern.FindStringSubmatch(url); len(matches) > 1 {
		return matches[1]
	}
	return ""
}

// driveFilename takes the name from Content-Disposition; Drive sends the
// original file name there.
func driveFilename(disposition, fileID string) string {
	if _, params, err := mime.ParseMediaType(disposition); err == nil {
		if name := filepath.Base(params["filename"]); name != "" && name != "." && name != "/" {
			return name
		}
	}
	return fileID + ".mp4"
}
