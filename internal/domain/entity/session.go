package entity

import (
	"strings"
	"time"
)

// SessionState tracks where a session sits in the hook lifecycle.
type SessionState string

const (
	StateActive            SessionState = "active"
	StateIdle              SessionState = "idle"
	StatePermissionPending SessionState = "permission_pending"
)

// SyntheticSessionPrefix marks a session entry created by a startup scan of
// the terminal multiplexer, before any hook has been received for it.
const SyntheticSessionPrefix = "tmux_"

// SessionInfo is the registry's record for one agent session. Label is set
// once at first registration and never changes afterward; TranscriptPath is
// set the first time a hook provides one.
type SessionInfo struct {
	SessionID      string       `json:"session_id"`
	Cwd            string       `json:"cwd"`
	StartedAt      time.Time    `json:"started_at"`
	State          SessionState `json:"state"`
	LastToolName   string       `json:"last_tool_name,omitempty"`
	LastActivity   time.Time    `json:"last_activity"`
	DenialCount    int          `json:"denial_count"`
	Label          string       `json:"label"`
	PaneID         string       `json:"pane_id,omitempty"`
	TranscriptPath string       `json:"transcript_path,omitempty"`
}

// IsSynthetic reports whether this entry was created by a startup scan of
// the terminal multiplexer rather than by a real hook event.
func (s SessionInfo) IsSynthetic() bool {
	return strings.HasPrefix(s.SessionID, SyntheticSessionPrefix)
}
