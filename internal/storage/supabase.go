package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// SupabaseConfig holds Supabase Storage settings.
type SupabaseConfig struct {
	// URL is the Supabase project URL (e.g., https://xyz.supabase.co).
	URL string
	// Bucket is the storage bucket name.
	Bucket string
	// Key is the service-role (or anon) key used as Bearer token.
	Key string
	// CacheControl is the max-age in seconds served for uploaded objects.
	CacheControl int
}

// SupabaseStore implements MediaStore using the Supabase Storage REST API.
type SupabaseStore struct {
	baseURL      string
	bucket       string
	key          string
	cacheControl int
	httpClient   *http.Client
}

// NewSupabaseStore creates a new Supabase storage client.
func NewSupabaseStore(cfg SupabaseConfig) *SupabaseStore {
	if cfg.CacheControl == 0 {
		cfg.CacheControl = 3600
	}
	return &SupabaseStore{
		baseURL:      strings.TrimRight(cfg.URL, "/") + "/storage/v1",
		bucket:       cfg.Bucket,
		key:          cfg.Key,
		cacheControl: cfg.CacheControl,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

// Put uploads the object, overwriting any existing one.
func (s *SupabaseStore) Put(ctx context.Context, objectPath, contentType string, r io.Reader) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.objectURL(objectPath), r)
	if err != nil {
		return fmt.Errorf("storage: supabase create request: %w", err)
	}
	s.setHeaders(req)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Cache-Control", fmt.Sprintf("max-age=%d", s.cacheControl))
	req.Header.Set("x-upsert", "true")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("storage: supabase upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("storage: supabase upload failed (status %d): %s", resp.StatusCode, string(body))
	}
	return nil
}

// Open downloads the object.
func (s *SupabaseStore) Open(ctx context.Context, objectPath string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.objectURL(objectPath), nil)
	if err != nil {
		return nil, fmt.Errorf("storage: supabase create request: %w", err)
	}
	s.setHeaders(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("storage: supabase download: %w", err)
	}

	// Supabase answers 400 with a "not_found" body for missing objects
	if resp.StatusCode == http.StatusNotFound {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, objectPath)
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		if strings.Contains(string(body), "not_found") {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, objectPath)
		}
		return nil, fmt.Errorf("storage: supabase download failed (status %d): %s", resp.StatusCode, string(body))
	}
	return resp.Body, nil
}

// URL returns the public URL for the object.
func (s *SupabaseStore) URL(objectPath string) string {
	return fmt.Sprintf("%s/object/public/%s/%s", s.baseURL, s.bucket, objectPath)
}

// Delete removes the object. Returns nil if the object does not exist.
func (s *SupabaseStore) Delete(ctx context.Context, objectPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.objectURL(objectPath), nil)
	if err != nil {
		return fmt.Errorf("storage: supabase create request: %w", err)
	}
	s.setHeaders(req)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("storage: supabase delete: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusNotFound {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("storage: supabase delete failed (status %d): %s", resp.StatusCode, string(body))
	}
	return nil
}

func (s *SupabaseStore) objectURL(objectPath string) string {
	return fmt.Sprintf("%s/object/%s/%s", s.baseURL, s.bucket, strings.TrimLeft(objectPath, "/"))
}

func (s *SupabaseStore) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+s.key)
	req.Header.Set("apikey", s.key)
}
