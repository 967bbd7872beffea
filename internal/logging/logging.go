// Package logging configures the process-wide zerolog logger and keeps the
// most recent log lines in memory for the /logs endpoint.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Field names shared by all components
const (
	FieldComponent   = "component"
	FieldRecordingID = "recording_id"
	FieldUserID      = "user_id"
	FieldJobID       = "job_id"
	FieldSessionID   = "session_id"
)

// DefaultBufferLines is the number of log lines retained in memory
const DefaultBufferLines = 1000

// Setup builds the root logger, installs it as the global zerolog logger
// and returns it with the buffer that mirrors its output.
// The returned writer is the shared sink for other loggers (fiber).
func Setup(level, format string) (zerolog.Logger, *Buffer, io.Writer) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	buffer := NewBuffer(DefaultBufferLines)

	var console io.Writer = os.Stdout
	if strings.ToLower(format) != "json" {
		console = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	sink := io.MultiWriter(console, buffer)

	logger := zerolog.New(sink).With().Timestamp().Logger()
	log.Logger = logger
	return logger, buffer, sink
}

// Component returns a child logger tagged with a component name.
func Component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str(FieldComponent, name).Logger()
}

// Buffer captures logs in memory
type Buffer struct {
	lines []string
	max   int
	mu    sync.Mutex
}

// NewBuffer creates a buffer keeping the last max lines.
func NewBuffer(max int) *Buffer {
	if max <= 0 {
		max = DefaultBufferLines
	}
	return &Buffer{
		lines: make([]string, 0, max),
		max:   max,
	}
}

func (b *Buffer) Write(p []byte) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lines = append(b.lines, strings.TrimRight(string(p), "\n"))

	if len(b.lines) > b.max {
		b.lines = b.lines[len(b.lines)-b.max:]
	}

	return len(p), nil
}

// Lines returns a copy of the buffered lines, oldest first
func (b *Buffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	logs := make([]string, len(b.lines))
	copy(logs, b.lines)
	return logs
}
