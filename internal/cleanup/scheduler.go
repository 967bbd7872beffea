// Package cleanup runs the periodic housekeeping jobs: old temp files,
// idle recorder sessions and finished queue jobs.
package cleanup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/speech-coach/internal/logging"
)

// Task is a housekeeping job. It returns the number of items it removed.
type Task func() int

// Scheduler runs cleanup tasks on a fixed interval
type Scheduler struct {
	cron     *cron.Cron
	interval time.Duration
	tasks    map[string]Task
	order    []string
	logger   zerolog.Logger
}

// NewScheduler creates a scheduler that runs every interval
func NewScheduler(interval time.Duration, logger zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	return &Scheduler{
		cron:     cron.New(cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger))),
		interval: interval,
		tasks:    make(map[string]Task),
		logger:   logging.Component(logger, "cleanup"),
	}
}

// Add registers a named task. Add must be called before Start.
func (s *Scheduler) Add(name string, task Task) {
	if _, ok := s.tasks[name]; !ok {
		s.order = append(s.order, name)
	}
	s.tasks[name] = task
}

// Start runs every task once, then schedules them
func (s *Scheduler) Start() error {
	s.logger.Info().Msg("Running initial cleanup")
	s.RunOnce()

	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), func() { s.RunOnce() }); err != nil {
		return fmt.Errorf("failed to schedule cleanup: %w", err)
	}
	s.cron.Start()

	s.logger.Info().
		Dur("interval", s.interval).
		Strs("tasks", s.order).
		Msg("Cleanup scheduler started")
	return nil
}

// Stop stops scheduling and waits for a running pass to finish
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
	s.logger.Info().Msg("Cleanup scheduler stopped")
}

// RunOnce runs all tasks in registration order and returns the total
// number of items removed.
func (s *Scheduler) RunOnce() int {
	total := 0
	for _, name := range s.order {
		removed := s.run(name, s.tasks[name])
		if removed > 0 {
			s.logger.Info().Str("task", name).Int("removed", removed).Msg("Cleanup task finished")
		}
		total += removed
	}
	return total
}

func (s *Scheduler) run(name string, task Task) (removed int) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("task", name).Interface("panic", r).Msg("Cleanup task panicked")
			removed = 0
		}
	}()
	return task()
}

// TempFiles returns a task deleting files under dir older than maxAge
func TempFiles(dir string, maxAge time.Duration, logger zerolog.Logger) Task {
	return func() int {
		count, size := CleanOldFiles(dir, maxAge, time.Now(), logger)
		if count > 0 {
			logger.Info().
				Int("files", count).
				Str("freed", fmt.Sprintf("%.2fMB", float64(size)/(1024*1024))).
				Msg("Temp cleanup complete")
		}
		return count
	}
}

// CleanOldFiles removes files under dir whose modification time is more
// than maxAge before now.
func CleanOldFiles(dir string, maxAge time.Duration, now time.Time, logger zerolog.Logger) (int, int64) {
	var deletedCount int
	var deletedSize int64

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip files we can't access
		}
		if info.IsDir() {
			return nil
		}

		age := now.Sub(info.ModTime())
		if age <= maxAge {
			return nil
		}
		if err := os.Remove(path); err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("Failed to delete old file")
			return nil
		}
		deletedCount++
		deletedSize += info.Size()
		logger.Debug().
			Str("file", filepath.Base(path)).
			Dur("age", age.Round(time.Hour)).
			Int64("size_kb", info.Size()/1024).
			Msg("Deleted old temp file")
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Msg("Error during cleanup")
	}
	return deletedCount, deletedSize
}

// EnsureDir creates dir if it doesn't exist
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return nil
}
