package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSupabaseStore_Put(t *testing.T) {
	var gotPath, gotAuth, gotUpsert, gotType, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotUpsert = r.Header.Get("x-upsert")
		gotType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"Key":"recordings/u/r.webm"}`))
	}))
	defer srv.Close()

	s := NewSupabaseStore(SupabaseConfig{URL: srv.URL + "/", Bucket: "recordings", Key: "service-key"})
	if err := s.Put(context.Background(), "u/r.webm", "video/webm", strings.NewReader("blob")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	if gotPath != "/storage/v1/object/recordings/u/r.webm" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer service-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotUpsert != "true" {
		t.Errorf("x-upsert = %q", gotUpsert)
	}
	if gotType != "video/webm" {
		t.Errorf("Content-Type = %q", gotType)
	}
	if gotBody != "blob" {
		t.Errorf("body = %q", gotBody)
	}
}

func TestSupabaseStore_PutError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"bucket not found"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	s := NewSupabaseStore(SupabaseConfig{URL: srv.URL, Bucket: "missing", Key: "k"})
	err := s.Put(context.Background(), "a.webm", "", strings.NewReader("x"))
	if err == nil || !strings.Contains(err.Error(), "bucket not found") {
		t.Errorf("err = %v", err)
	}
}

func TestSupabaseStore_OpenNotFound(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"404", http.StatusNotFound, ""},
		{"400 not_found body", http.StatusBadRequest, `{"error":"not_found","message":"Object not found"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			s := NewSupabaseStore(SupabaseConfig{URL: srv.URL, Bucket: "b", Key: "k"})
			_, err := s.Open(context.Background(), "x.webm")
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("err = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestSupabaseStore_OpenAndDelete(t *testing.T) {
	deleted := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Write([]byte("media"))
		case http.MethodDelete:
			deleted = true
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	s := NewSupabaseStore(SupabaseConfig{URL: srv.URL, Bucket: "b", Key: "k"})
	rc, err := s.Open(context.Background(), "x.webm")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	b, _ := io.ReadAll(rc)
	rc.Close()
	if string(b) != "media" {
		t.Errorf("body = %q", b)
	}

	if err := s.Delete(context.Background(), "x.webm"); err != nil {
		t.Errorf("Delete of missing object: %v", err)
	}
	if !deleted {
		t.Error("delete request not sent")
	}
}

func TestSupabaseStore_URL(t *testing.T) {
	s := NewSupabaseStore(SupabaseConfig{URL: "https://xyz.supabase.co", Bucket: "recordings"})
	want := "https://xyz.supabase.co/storage/v1/object/public/recordings/u/r.mp4"
	if got := s.URL("u/r.mp4"); got != want {
		t.Errorf("URL = %q, want %q", got, want)
	}
}
