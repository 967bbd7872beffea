package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore implements MediaStore on the local filesystem. It is used when
// no Supabase project is configured; files are served under urlPrefix.
type LocalStore struct {
	root      string
	urlPrefix string
}

// NewLocalStore creates a store rooted at root, serving URLs under urlPrefix.
func NewLocalStore(root, urlPrefix string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}
	return &LocalStore{
		root:      root,
		urlPrefix: strings.TrimRight(urlPrefix, "/"),
	}, nil
}

// Root returns the directory holding the media files.
func (ls *LocalStore) Root() string { return ls.root }

// Put writes the object atomically via a temp file in the same directory.
func (ls *LocalStore) Put(_ context.Context, objectPath, _ string, r io.Reader) error {
	dst, err := ls.resolve(objectPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create media directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write media: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write media: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("failed to store media: %w", err)
	}
	return nil
}

// Open opens the stored file.
func (ls *LocalStore) Open(_ context.Context, objectPath string) (io.ReadCloser, error) {
	p, err := ls.resolve(objectPath)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, objectPath)
	}
	return f, err
}

// URL returns the URL the file is served at.
func (ls *LocalStore) URL(objectPath string) string {
	return ls.urlPrefix + "/" + strings.TrimLeft(filepath.ToSlash(objectPath), "/")
}

// Delete removes the file.
func (ls *LocalStore) Delete(_ context.Context, objectPath string) error {
	p, err := ls.resolve(objectPath)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete media: %w", err)
	}
	return nil
}

func (ls *LocalStore) resolve(objectPath string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash("/" + objectPath))
	p := filepath.Join(ls.root, clean)
	rel, err := filepath.Rel(ls.root, p)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("storage: invalid object path %q", objectPath)
	}
	return p, nil
}
