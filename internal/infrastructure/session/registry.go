// Package session implements the in-memory session registry (C4).
package session

import (
	"context"
	"sync"
	"time"

	"github.com/claudecube/claudecube/internal/domain/entity"
	"github.com/claudecube/claudecube/internal/domain/service"
)

// Registry is the sessionId → SessionInfo table. All operations are
// coarse-locked. The only I/O is Register's multiplexer lookup (label and
// pane), which runs before the lock is taken, so the lock is cheap to hold.
type Registry struct {
	mux service.MultiplexerAdapter

	mu       sync.Mutex
	sessions map[string]entity.SessionInfo
}

var _ service.SessionRegistry = (*Registry)(nil)

// New builds an empty registry. mux may be nil, in which case label
// resolution always falls back to the truncated session id.
func New(mux service.MultiplexerAdapter) *Registry {
	return &Registry{mux: mux, sessions: make(map[string]entity.SessionInfo)}
}

// Register creates a new entry, resolving its label from the multiplexer by
// exact cwd match, falling back to the first 12 characters of sessionId.
func (r *Registry) Register(sessionID, cwd, transcriptPath string) entity.SessionInfo {
	label := r.resolveLabel(sessionID, cwd)

	info := entity.SessionInfo{
		SessionID:      sessionID,
		Cwd:            cwd,
		StartedAt:      time.Now(),
		State:          entity.StateActive,
		LastActivity:   time.Now(),
		Label:          label,
		TranscriptPath: transcriptPath,
	}
	if r.mux != nil {
		if paneID, ok := r.mux.FindPaneForCwd(context.Background(), cwd); ok {
			info.PaneID = paneID
		}
	}

	r.mu.Lock()
	r.sessions[sessionID] = info
	r.mu.Unlock()
	return info
}

func (r *Registry) resolveLabel(sessionID, cwd string) string {
	if r.mux != nil {
		if name, ok := r.mux.ResolveLabel(context.Background(), cwd); ok && name != "" {
			return name
		}
	}
	if len(sessionID) > 12 {
		return sessionID[:12]
	}
	return sessionID
}

// EnsureRegistered is idempotent: a known sessionId is a no-op (filling in a
// still-empty transcriptPath), an existing synthetic session at the same cwd
// is merged into the real id, and otherwise a fresh Register runs.
func (r *Registry) EnsureRegistered(sessionID, cwd, transcriptPath string) entity.SessionInfo {
	r.mu.Lock()
	if existing, ok := r.sessions[sessionID]; ok {
		if existing.TranscriptPath == "" && transcriptPath != "" {
			existing.TranscriptPath = transcriptPath
			r.sessions[sessionID] = existing
		}
		r.mu.Unlock()
		return existing
	}

	var syntheticID string
	for id, info := range r.sessions {
		if info.IsSynthetic() && info.Cwd == cwd {
			syntheticID = id
			break
		}
	}
	if syntheticID != "" {
		synthetic := r.sessions[syntheticID]
		delete(r.sessions, syntheticID)
		merged := synthetic
		merged.SessionID = sessionID
		merged.State = entity.StateActive
		merged.LastActivity = time.Now()
		if transcriptPath != "" {
			merged.TranscriptPath = transcriptPath
		}
		r.sessions[sessionID] = merged
		r.mu.Unlock()
		return merged
	}
	r.mu.Unlock()

	return r.Register(sessionID, cwd, transcriptPath)
}

// Deregister removes a session entirely.
func (r *Registry) Deregister(sessionID string) {
	r.mu.Lock()
	delete(r.sessions, sessionID)
	r.mu.Unlock()
}

// UpdateState silently no-ops on an unknown session id.
func (r *Registry) UpdateState(sessionID string, state entity.SessionState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	info.State = state
	info.LastActivity = time.Now()
	r.sessions[sessionID] = info
}

// UpdateToolUse records the most recent tool name and bumps activity.
func (r *Registry) UpdateToolUse(sessionID, toolName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	info.LastToolName = toolName
	info.LastActivity = time.Now()
	r.sessions[sessionID] = info
}

// RecordDenial increments the denial count and returns the new total, or 0
// for an unknown session.
func (r *Registry) RecordDenial(sessionID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.sessions[sessionID]
	if !ok {
		return 0
	}
	info.DenialCount++
	r.sessions[sessionID] = info
	return info.DenialCount
}

// TouchActivity bumps lastActivity without changing any other field.
func (r *Registry) TouchActivity(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	info.LastActivity = time.Now()
	r.sessions[sessionID] = info
}

func (r *Registry) GetLabel(sessionID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[sessionID].Label
}

func (r *Registry) GetPaneID(sessionID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[sessionID].PaneID
}

func (r *Registry) GetTranscriptPath(sessionID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[sessionID].TranscriptPath
}

// GetAll returns a snapshot of every session, in no particular order.
func (r *Registry) GetAll() []entity.SessionInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entity.SessionInfo, 0, len(r.sessions))
	for _, info := range r.sessions {
		out = append(out, info)
	}
	return out
}

// FindByCwd returns the first session whose cwd matches exactly.
func (r *Registry) FindByCwd(cwd string) (entity.SessionInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, info := range r.sessions {
		if info.Cwd == cwd {
			return info, true
		}
	}
	return entity.SessionInfo{}, false
}

// RegisterFromTmux creates a synthetic session entry for a pane discovered
// at startup, before any hook has arrived for it.
func (r *Registry) RegisterFromTmux(paneID, cwd, windowName string) entity.SessionInfo {
	info := entity.SessionInfo{
		SessionID:    entity.SyntheticSessionPrefix + paneID,
		Cwd:          cwd,
		StartedAt:    time.Now(),
		State:        entity.StateIdle,
		LastActivity: time.Now(),
		Label:        windowName,
		PaneID:       paneID,
	}
	r.mu.Lock()
	r.sessions[info.SessionID] = info
	r.mu.Unlock()
	return info
}
