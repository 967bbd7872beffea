package recorder

import (
	"encoding/json"
	"fmt"
)

// Command types sent by the client as text frames
const (
	CmdStart  = "start"
	CmdPause  = "pause"
	CmdResume = "resume"
	CmdStop   = "stop"
	CmdReset  = "reset"
	CmdPlay   = "play"
)

// Event types sent to the client
const (
	EventState = "state"
	EventSaved = "saved"
	EventError = "error"
)

// Command is a client control message
type Command struct {
	Type     string `json:"type"`
	MIMEType string `json:"mime_type,omitempty"`
	Title    string `json:"title,omitempty"`
}

// ParseCommand decodes a text frame
func ParseCommand(data []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return Command{}, fmt.Errorf("invalid command: %w", err)
	}
	switch cmd.Type {
	case CmdStart, CmdPause, CmdResume, CmdStop, CmdReset, CmdPlay:
		return cmd, nil
	default:
		return Command{}, fmt.Errorf("unknown command %q", cmd.Type)
	}
}

// Event is a server message
type Event struct {
	Type      string  `json:"type"`
	SessionID string  `json:"session_id,omitempty"`
	Status    *Status `json:"status,omitempty"`
	Recording any     `json:"recording,omitempty"`
	Warning   string  `json:"warning,omitempty"`
	Message   string  `json:"message,omitempty"`
}

// StateEvent reports the session status
func StateEvent(s *Session) Event {
	st := s.Status()
	return Event{Type: EventState, SessionID: s.ID(), Status: &st}
}

// ErrorEvent reports a failed command
func ErrorEvent(err error) Event {
	return Event{Type: EventError, Message: err.Error()}
}
