package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

// ErrNotFound is returned when a stored object does not exist.
var ErrNotFound = errors.New("storage: object not found")

// MediaStore persists recording media (audio/video blobs).
type MediaStore interface {
	// Put stores r at objectPath, replacing any existing object.
	Put(ctx context.Context, objectPath, contentType string, r io.Reader) error
	// Open returns a reader for the object at objectPath.
	Open(ctx context.Context, objectPath string) (io.ReadCloser, error)
	// URL returns the public URL of the object at objectPath.
	URL(objectPath string) string
	// Delete removes the object. Deleting a missing object is not an error.
	Delete(ctx context.Context, objectPath string) error
}

// MediaPath builds the object path for a recording: <userID>/<recordingID><ext>.
func MediaPath(userID, recordingID, ext string) string {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return path.Join(sanitizeSegment(userID), sanitizeSegment(recordingID)+ext)
}

// sanitizeSegment keeps a path segment from escaping its directory
func sanitizeSegment(s string) string {
	s = strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(s)
	if s == "" {
		return "_"
	}
	return s
}
