// Package recorder runs server-side recording sessions: browser media
// chunks are buffered while recording, paused time is excluded, and a
// session stops itself once the maximum duration is reached.
package recorder

import (
	"bytes"
	"encoding/base64"
	"errors"
	"sync"
	"time"
)

// DefaultMaxDuration is the recording cutoff.
const DefaultMaxDuration = 45 * time.Second

// SupportedMIMETypes lists recording formats in order of preference.
var SupportedMIMETypes = []string{
	"video/webm;codecs=vp8,opus",
	"video/webm;codecs=vp9,opus",
	"video/webm;codecs=h264,opus",
	"video/webm",
	"video/mp4",
}

// State of a session
type State string

const (
	StateIdle      State = "idle"
	StateRecording State = "recording"
	StatePaused    State = "paused"
	StateStopped   State = "stopped"
)

var (
	ErrAlreadyRecording = errors.New("recording already in progress")
	ErrNotRecording     = errors.New("not recording")
	ErrNotPaused        = errors.New("recording is not paused")
	ErrAlreadyPaused    = errors.New("recording is already paused")
	ErrUnsupportedMIME  = errors.New("no supported MIME type found for recording")
	ErrNoRecording      = errors.New("no saved recording to play")
	ErrTooLarge         = errors.New("recording exceeds the size limit")
)

// Result is a finished recording
type Result struct {
	SessionID string
	MIMEType  string
	Data      []byte
	Duration  time.Duration
}

// Status is a point-in-time view of a session
type Status struct {
	State        State  `json:"state"`
	Recording    bool   `json:"recording"`
	Paused       bool   `json:"paused"`
	Elapsed      int    `json:"elapsed"`
	Remaining    int    `json:"remaining"`
	MaxDuration  int    `json:"maxDuration"`
	MIMEType     string `json:"mimeType,omitempty"`
	Bytes        int    `json:"bytes"`
	HasRecording bool   `json:"hasRecording"`
}

// Config configures sessions
type Config struct {
	MaxDuration time.Duration
	MaxBytes    int // 0 means unlimited
	Clock       Clock
}

func (c Config) withDefaults() Config {
	if c.MaxDuration <= 0 {
		c.MaxDuration = DefaultMaxDuration
	}
	if c.Clock == nil {
		c.Clock = realClock{}
	}
	return c
}

// Session buffers one recording at a time
type Session struct {
	id     string
	cfg    Config
	onStop func(Result)

	mu         sync.Mutex
	state      State
	mimeType   string
	chunks     [][]byte
	size       int
	elapsed    time.Duration // recorded time before the current run
	runStart   time.Time
	timer      Timer
	gen        int
	stored     string // base64 of the last stopped recording
	lastActive time.Time
}

// NewSession creates an idle session. onStop, if set, is called once per
// recording when it stops, manually or at the cutoff.
func NewSession(id string, cfg Config, onStop func(Result)) *Session {
	cfg = cfg.withDefaults()
	return &Session{
		id:         id,
		cfg:        cfg,
		onStop:     onStop,
		state:      StateIdle,
		lastActive: cfg.Clock.Now(),
	}
}

// ID returns the session ID
func (s *Session) ID() string { return s.id }

// SelectMIMEType returns the first supported type, or requested if it is
// supported. An empty request picks the preferred type.
func SelectMIMEType(requested string) (string, error) {
	if requested == "" {
		return SupportedMIMETypes[0], nil
	}
	for _, t := range SupportedMIMETypes {
		if t == requested {
			return t, nil
		}
	}
	return "", ErrUnsupportedMIME
}

// Start begins a new recording, discarding any previous one.
func (s *Session) Start(mimeType string) error {
	mt, err := SelectMIMEType(mimeType)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateRecording || s.state == StatePaused {
		return ErrAlreadyRecording
	}
	s.startLocked(mt)
	return nil
}

func (s *Session) startLocked(mimeType string) {
	s.mimeType = mimeType
	s.chunks = nil
	s.size = 0
	s.elapsed = 0
	s.stored = ""
	s.state = StateRecording
	s.runStart = s.cfg.Clock.Now()
	s.lastActive = s.runStart
	s.armLocked(s.cfg.MaxDuration)
}

// Append adds a media chunk. Empty chunks are ignored.
func (s *Session) Append(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRecording {
		return ErrNotRecording
	}
	if s.cfg.MaxBytes > 0 && s.size+len(chunk) > s.cfg.MaxBytes {
		return ErrTooLarge
	}
	s.chunks = append(s.chunks, bytes.Clone(chunk))
	s.size += len(chunk)
	s.lastActive = s.cfg.Clock.Now()
	return nil
}

// Pause suspends the recording and its cutoff timer.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StatePaused:
		return ErrAlreadyPaused
	case StateRecording:
	default:
		return ErrNotRecording
	}

	now := s.cfg.Clock.Now()
	s.elapsed += now.Sub(s.runStart)
	s.cancelTimerLocked()
	s.state = StatePaused
	s.lastActive = now
	return nil
}

// Resume continues a paused recording with the remaining time.
func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StatePaused:
	case StateRecording:
		return ErrNotPaused
	default:
		return ErrNotRecording
	}

	s.state = StateRecording
	s.runStart = s.cfg.Clock.Now()
	s.lastActive = s.runStart
	s.armLocked(s.cfg.MaxDuration - s.elapsed)
	return nil
}

// Stop finishes the recording and stores it for playback.
func (s *Session) Stop() (Result, error) {
	s.mu.Lock()
	res, err := s.stopLocked()
	s.mu.Unlock()
	if err != nil {
		return Result{}, err
	}

	if s.onStop != nil {
		s.onStop(res)
	}
	return res, nil
}

func (s *Session) stopLocked() (Result, error) {
	now := s.cfg.Clock.Now()
	switch s.state {
	case StateRecording:
		s.elapsed += now.Sub(s.runStart)
	case StatePaused:
	default:
		return Result{}, ErrNotRecording
	}
	if s.elapsed > s.cfg.MaxDuration {
		s.elapsed = s.cfg.MaxDuration
	}
	s.cancelTimerLocked()

	blob := bytes.Join(s.chunks, nil)
	s.chunks = nil
	s.size = 0
	s.stored = base64.StdEncoding.EncodeToString(blob)
	s.state = StateStopped
	s.lastActive = now

	return Result{
		SessionID: s.id,
		MIMEType:  s.mimeType,
		Data:      blob,
		Duration:  s.elapsed,
	}, nil
}

// Reset discards the current or stored recording and starts a new one
// with the same MIME type.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelTimerLocked()
	mt := s.mimeType
	if mt == "" {
		mt = SupportedMIMETypes[0]
	}
	s.startLocked(mt)
	return nil
}

// Playback returns the stored recording.
func (s *Session) Playback() ([]byte, string, error) {
	s.mu.Lock()
	stored, mt := s.stored, s.mimeType
	s.lastActive = s.cfg.Clock.Now()
	s.mu.Unlock()

	if stored == "" {
		return nil, "", ErrNoRecording
	}
	data, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return nil, "", err
	}
	return data, mt, nil
}

// Elapsed returns the recorded time in whole seconds.
func (s *Session) Elapsed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(s.elapsedLocked() / time.Second)
}

// Remaining returns the recording time left before the cutoff.
func (s *Session) Remaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.MaxDuration - s.elapsedLocked()
}

// Status returns a snapshot for clients.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	elapsed := s.elapsedLocked()
	return Status{
		State:        s.state,
		Recording:    s.state == StateRecording || s.state == StatePaused,
		Paused:       s.state == StatePaused,
		Elapsed:      int(elapsed / time.Second),
		Remaining:    int((s.cfg.MaxDuration - elapsed) / time.Second),
		MaxDuration:  int(s.cfg.MaxDuration / time.Second),
		MIMEType:     s.mimeType,
		Bytes:        s.size,
		HasRecording: s.stored != "",
	}
}

// Close drops all data without firing the stop callback.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelTimerLocked()
	s.chunks = nil
	s.size = 0
	s.stored = ""
	s.state = StateIdle
}

// IdleSince returns the time of the last client activity.
func (s *Session) IdleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

func (s *Session) elapsedLocked() time.Duration {
	e := s.elapsed
	if s.state == StateRecording {
		e += s.cfg.Clock.Now().Sub(s.runStart)
	}
	if e > s.cfg.MaxDuration {
		e = s.cfg.MaxDuration
	}
	return e
}

func (s *Session) armLocked(d time.Duration) {
	s.cancelTimerLocked()
	gen := s.gen
	s.timer = s.cfg.Clock.AfterFunc(d, func() { s.cutoff(gen) })
}

// cancelTimerLocked stops the timer and invalidates any callback already
// in flight.
func (s *Session) cancelTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}

func (s *Session) cutoff(gen int) {
	s.mu.Lock()
	if gen != s.gen || s.state != StateRecording {
		s.mu.Unlock()
		return
	}
	res, err := s.stopLocked()
	s.mu.Unlock()

	if err == nil && s.onStop != nil {
		s.onStop(res)
	}
}
