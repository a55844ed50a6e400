package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/claudecube/claudecube/internal/domain/entity"
	"github.com/claudecube/claudecube/internal/domain/service"
)

// Lifecycle handles SessionStart, SessionEnd, and Notification hooks. None
// of these influence control flow: every path returns an empty response.
type Lifecycle struct {
	registry           service.SessionRegistry
	chat               service.ChatAdapter // nil disables chat notifications entirely
	notifyOnStart      bool
	notifyOnComplete   bool
	logger             *zap.Logger
}

// LifecycleConfig is the wiring for Lifecycle.
type LifecycleConfig struct {
	Registry         service.SessionRegistry
	Chat             service.ChatAdapter
	NotifyOnStart    bool
	NotifyOnComplete bool
}

// NewLifecycle builds a Lifecycle handler set.
func NewLifecycle(cfg LifecycleConfig, logger *zap.Logger) *Lifecycle {
	return &Lifecycle{
		registry:         cfg.Registry,
		chat:             cfg.Chat,
		notifyOnStart:    cfg.NotifyOnStart,
		notifyOnComplete: cfg.NotifyOnComplete,
		logger:           logger,
	}
}

// HandleSessionStart registers the session and optionally sends a
// "session started" notification.
func (l *Lifecycle) HandleSessionStart(ctx context.Context, ev entity.LifecycleEvent) entity.LifecycleEvent {
	l.registry.EnsureRegistered(ev.SessionID, ev.Cwd, ev.TranscriptPath)
	if l.notifyOnStart && l.chat != nil {
		label := l.registry.GetLabel(ev.SessionID)
		l.notify(ctx, "🟢 Session started: "+label)
	}
	return entity.LifecycleEvent{}
}

// HandleSessionEnd deregisters the session and optionally sends a
// "session ended" notification.
func (l *Lifecycle) HandleSessionEnd(ctx context.Context, ev entity.LifecycleEvent) entity.LifecycleEvent {
	label := l.registry.GetLabel(ev.SessionID)
	l.registry.Deregister(ev.SessionID)
	if l.notifyOnComplete && l.chat != nil {
		l.notify(ctx, "⚪ Session ended: "+label)
	}
	return entity.LifecycleEvent{}
}

// HandleNotification touches the session's activity timestamp.
func (l *Lifecycle) HandleNotification(ctx context.Context, ev entity.LifecycleEvent) entity.LifecycleEvent {
	l.registry.TouchActivity(ev.SessionID)
	return entity.LifecycleEvent{}
}

func (l *Lifecycle) notify(ctx context.Context, text string) {
	if _, err := l.chat.SendMessage(ctx, text, "", nil); err != nil {
		l.logger.Warn("lifecycle notification failed", zap.Error(err))
	}
}
