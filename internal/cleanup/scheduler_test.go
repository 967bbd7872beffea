package cleanup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestCleanOldFiles(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	oldFile := filepath.Join(dir, "old.wav")
	nested := filepath.Join(dir, "work", "old.webm")
	freshFile := filepath.Join(dir, "fresh.wav")
	for _, p := range []string{oldFile, nested, freshFile} {
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("data"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	past := now.Add(-48 * time.Hour)
	os.Chtimes(oldFile, past, past)
	os.Chtimes(nested, past, past)

	count, size := CleanOldFiles(dir, 24*time.Hour, now, zerolog.Nop())
	if count != 2 || size != 8 {
		t.Errorf("CleanOldFiles = %d, %d; want 2, 8", count, size)
	}
	if _, err := os.Stat(freshFile); err != nil {
		t.Errorf("fresh file removed: %v", err)
	}
	if _, err := os.Stat(oldFile); !os.IsNotExist(err) {
		t.Errorf("old file still present: %v", err)
	}
}

func TestCleanOldFiles_MissingDir(t *testing.T) {
	count, _ := CleanOldFiles(filepath.Join(t.TempDir(), "missing"), time.Hour, time.Now(), zerolog.Nop())
	if count != 0 {
		t.Errorf("count = %d", count)
	}
}

func TestScheduler_RunOnce(t *testing.T) {
	s := NewScheduler(time.Hour, zerolog.Nop())

	var order []string
	s.Add("first", func() int { order = append(order, "first"); return 2 })
	s.Add("broken", func() int { panic("boom") })
	s.Add("second", func() int { order = append(order, "second"); return 1 })

	if got := s.RunOnce(); got != 3 {
		t.Errorf("RunOnce = %d, want 3", got)
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("order = %v", order)
	}
}

func TestScheduler_StartStop(t *testing.T) {
	s := NewScheduler(time.Hour, zerolog.Nop())
	ran := 0
	s.Add("count", func() int { ran++; return 0 })

	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)

	if ran != 1 {
		t.Errorf("initial pass ran %d times", ran)
	}
}
