package transcription

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// ErrUnsupportedFormat is returned for media the service does not accept.
var ErrUnsupportedFormat = errors.New("unsupported media format")

// SupportedExtensions lists the accepted file extensions
var SupportedExtensions = []string{".mp4", ".webm", ".mov", ".mp3", ".wav", ".ogg"}

var extensionTypes = map[string]string{
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".mov":  "video/quicktime",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".ogg":  "audio/ogg",
}

// SupportedTypes lists the accepted MIME types
var SupportedTypes = []string{
	"video/mp4",
	"video/webm",
	"video/quicktime",
	"audio/mpeg",
	"audio/mp4",
	"audio/wav",
	"audio/ogg",
}

// sniffedTypes are detections accepted in addition to SupportedTypes
var sniffedTypes = []string{"audio/webm", "audio/x-m4a", "application/ogg", "video/ogg"}

// MediaInfo describes validated media
type MediaInfo struct {
	Ext         string
	ContentType string
	IsVideo     bool
}

// ValidateAudioFormat checks if the file extension is supported
func ValidateAudioFormat(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, format := range SupportedExtensions {
		if ext == format {
			return true
		}
	}
	return false
}

// DetectMedia validates an upload by extension, declared MIME type and the
// leading bytes of its content. head may be empty when nothing was read.
func DetectMedia(filename, declared string, head []byte) (MediaInfo, error) {
	if !ValidateAudioFormat(filename) {
		return MediaInfo{}, fmt.Errorf("%w: extension %q", ErrUnsupportedFormat, filepath.Ext(filename))
	}
	info := MediaInfo{Ext: strings.ToLower(filepath.Ext(filename))}

	base := baseType(declared)
	if base != "" && base != "application/octet-stream" {
		if !contains(SupportedTypes, base) && !contains(sniffedTypes, base) {
			return MediaInfo{}, fmt.Errorf("%w: content type %q", ErrUnsupportedFormat, declared)
		}
		info.ContentType = base
	}

	if len(head) > 0 {
		detected := mimetype.Detect(head)
		switch {
		case acceptedSniff(detected):
			info.ContentType = baseType(detected.String())
		case detected.Is("application/octet-stream"):
			// unknown container; trust the extension
		default:
			return MediaInfo{}, fmt.Errorf("%w: content looks like %s", ErrUnsupportedFormat, detected.String())
		}
	}

	if info.ContentType == "" {
		info.ContentType = extensionTypes[info.Ext]
	}

	info.IsVideo = strings.HasPrefix(info.ContentType, "video/")
	return info, nil
}

func acceptedSniff(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		for _, t := range SupportedTypes {
			if m.Is(t) {
				return true
			}
		}
		for _, t := range sniffedTypes {
			if m.Is(t) {
				return true
			}
		}
	}
	return false
}

func baseType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	}
	return strings.ToLower(mt)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ExtractAudio converts a media file to 16kHz mono WAV with ffmpeg and
// returns the output path. The caller removes the file.
func ExtractAudio(ctx context.Context, inputPath, tempDir string) (string, error) {
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create temp directory: %w", err)
	}
	outputPath := filepath.Join(tempDir, fmt.Sprintf("normalized_%s.wav", uuid.New().String()))

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", inputPath,
		"-vn",          // drop video
		"-ar", "16000", // 16kHz sample rate
		"-ac", "1", // Mono
		"-c:a", "pcm_s16le", // 16-bit PCM
		"-y", // Overwrite output
		outputPath,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		os.Remove(outputPath)
		return "", fmt.Errorf("ffmpeg failed: %w\nOutput: %s", err, string(output))
	}

	return outputPath, nil
}

// ExtensionFor returns the file extension for a supported content type,
// ignoring parameters such as codecs.
func ExtensionFor(contentType string) string {
	base := baseType(contentType)
	for ext, t := range extensionTypes {
		if t == base {
			return ext
		}
	}
	return ""
}
