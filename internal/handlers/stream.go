package handlers

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/speech-coach/internal/apperr"
	"github.com/codebuildervaibhav/speech-coach/internal/auth"
	"github.com/codebuildervaibhav/speech-coach/internal/logging"
	"github.com/codebuildervaibhav/speech-coach/internal/recorder"
	"github.com/codebuildervaibhav/speech-coach/internal/recordings"
	"github.com/codebuildervaibhav/speech-coach/internal/transcription"
	"github.com/codebuildervaibhav/speech-coach/internal/types"
)

const saveTimeout = 2 * time.Minute

// StreamHandler runs the in-browser recorder over a WebSocket. Text frames
// carry JSON commands, binary frames carry media chunks.
type StreamHandler struct {
	registry *recorder.Registry
	svc      *recordings.Service
	logger   zerolog.Logger
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(registry *recorder.Registry, svc *recordings.Service, logger zerolog.Logger) *StreamHandler {
	return &StreamHandler{
		registry: registry,
		svc:      svc,
		logger:   logging.Component(logger, "recorder"),
	}
}

// Upgrade rejects plain HTTP requests to the WebSocket route
func (h *StreamHandler) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	return c.Next()
}

// streamConn serializes writes; the cutoff timer saves from its own goroutine.
// The pooled websocket.Conn is reused once Handle returns, so writes after
// close are dropped.
type streamConn struct {
	conn   *websocket.Conn
	logger zerolog.Logger
	saves  sync.WaitGroup

	mu     sync.Mutex
	closed bool
	title  string
}

func (sc *streamConn) send(ev recorder.Event) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.closed {
		sc.logger.Debug().Str("event", ev.Type).Msg("Connection closed, event dropped")
		return
	}
	if err := sc.conn.WriteJSON(ev); err != nil {
		sc.logger.Debug().Err(err).Str("event", ev.Type).Msg("WebSocket write failed")
	}
}

func (sc *streamConn) sendBinary(data []byte) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.closed {
		return
	}
	if err := sc.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		sc.logger.Debug().Err(err).Int("bytes", len(data)).Msg("WebSocket write failed")
	}
}

// track registers an in-flight save. It reports false once the connection
// is closed; the save still runs but nothing is sent.
func (sc *streamConn) track() bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.closed {
		return false
	}
	sc.saves.Add(1)
	return true
}

// close drops the connection and waits for tracked saves to finish.
func (sc *streamConn) close() {
	sc.mu.Lock()
	sc.closed = true
	sc.conn = nil
	sc.mu.Unlock()
	sc.saves.Wait()
}

func (sc *streamConn) setTitle(title string) {
	sc.mu.Lock()
	sc.title = title
	sc.mu.Unlock()
}

func (sc *streamConn) getTitle() string {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.title
}

// Handle processes WebSocket connections. It returns once in-flight saves
// have finished; their results are not sent after the client is gone.
func (h *StreamHandler) Handle(c *websocket.Conn) {
	defer c.Close()

	user, _ := c.Locals(auth.LocalUserKey).(*auth.User)
	if user == nil {
		c.WriteJSON(recorder.ErrorEvent(errors.New("not authenticated")))
		return
	}

	sc := &streamConn{
		conn:   c,
		logger: h.logger.With().Str(logging.FieldUserID, user.ID).Logger(),
	}
	session := h.registry.Create(func(res recorder.Result) {
		if sc.track() {
			defer sc.saves.Done()
		}
		h.save(sc, user.ID, res)
	})
	defer func() {
		h.registry.Remove(session.ID())
		sc.close()
	}()

	logger := sc.logger.With().Str(logging.FieldSessionID, session.ID()).Logger()
	logger.Info().Msg("WebSocket connection established")

	sc.send(recorder.StateEvent(session))

	for {
		messageType, message, err := c.ReadMessage()
		if err != nil {
			logger.Debug().Err(err).Msg("WebSocket closed")
			break
		}

		switch messageType {
		case websocket.BinaryMessage:
			if err := session.Append(message); err != nil {
				sc.send(recorder.ErrorEvent(err))
			}
		case websocket.TextMessage:
			h.command(sc, session, message, logger)
		}
	}

	logger.Info().Int("elapsed", session.Elapsed()).Msg("WebSocket connection closed")
}

func (h *StreamHandler) command(sc *streamConn, session *recorder.Session, message []byte, logger zerolog.Logger) {
	cmd, err := recorder.ParseCommand(message)
	if err != nil {
		sc.send(recorder.ErrorEvent(err))
		return
	}
	if cmd.Title != "" {
		sc.setTitle(cmd.Title)
	}

	switch cmd.Type {
	case recorder.CmdStart:
		err = session.Start(cmd.MIMEType)
	case recorder.CmdPause:
		err = session.Pause()
	case recorder.CmdResume:
		err = session.Resume()
	case recorder.CmdStop:
		// the stop callback saves and reports the recording
		_, err = session.Stop()
	case recorder.CmdReset:
		err = session.Reset()
	case recorder.CmdPlay:
		var data []byte
		data, _, err = session.Playback()
		if err == nil {
			sc.sendBinary(data)
		}
	}
	if err != nil {
		logger.Debug().Err(err).Str("command", cmd.Type).Msg("Command rejected")
		sc.send(recorder.ErrorEvent(err))
		return
	}
	sc.send(recorder.StateEvent(session))
}

// save stores a finished recording and reports it to the client
func (h *StreamHandler) save(sc *streamConn, userID string, res recorder.Result) {
	logger := h.logger.With().Str(logging.FieldSessionID, res.SessionID).Logger()
	if len(res.Data) == 0 {
		logger.Warn().Msg("No media data received in recording")
		sc.send(recorder.ErrorEvent(errors.New("no media data received")))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	title := sc.getTitle()
	if title == "" {
		title = "Recording " + time.Now().UTC().Format("Jan 2, 2006 15:04")
	}

	created, err := h.svc.Create(ctx, userID, recordings.Upload{
		Filename:    "recording" + transcription.ExtensionFor(res.MIMEType),
		ContentType: res.MIMEType,
		Title:       title,
		Size:        int64(len(res.Data)),
		Source:      types.SourceRecorder,
		Duration:    res.Duration.Seconds(),
		Body:        bytes.NewReader(res.Data),
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to save recording")
		sc.send(recorder.Event{Type: recorder.EventError, SessionID: res.SessionID, Message: apperr.From(err).Message})
		return
	}

	logger.Info().
		Str(logging.FieldRecordingID, created.Recording.ID).
		Int("bytes", len(res.Data)).
		Dur("duration", res.Duration).
		Msg("Recording saved")
	sc.send(recorder.Event{
		Type:      recorder.EventSaved,
		SessionID: res.SessionID,
		Recording: created.Recording,
		Warning:   created.Warning,
	})
}
