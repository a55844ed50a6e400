package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claudecube/claudecube/internal/domain/entity"
	"github.com/claudecube/claudecube/internal/domain/service"
)

type fakeChat struct {
	sent []string
}

func newFakeChat() *fakeChat { return &fakeChat{} }

func (f *fakeChat) SendMessage(ctx context.Context, text, parseMode string, keyboard service.InlineKeyboard) (int, error) {
	f.sent = append(f.sent, text)
	return 1, nil
}
func (f *fakeChat) EditMessage(ctx context.Context, messageID int, text string) error { return nil }
func (f *fakeChat) ReplyMessage(ctx context.Context, replyToMessageID int, text, parseMode string) (int, error) {
	return 1, nil
}
func (f *fakeChat) AnswerButton(ctx context.Context, callbackID, text string) error { return nil }

func TestLifecycle_SessionStart_NotifiesWhenEnabled(t *testing.T) {
	reg := newFakeRegistry()
	chat := newFakeChat()
	l := NewLifecycle(LifecycleConfig{Registry: reg, Chat: chat, NotifyOnStart: true}, testLogger())

	resp := l.HandleSessionStart(t.Context(), entity.LifecycleEvent{SessionID: "s1", Cwd: "/p"})

	assert.Equal(t, entity.LifecycleEvent{}, resp)
	require.Len(t, chat.sent, 1)
	assert.Contains(t, chat.sent[0], "Session started")
}

func TestLifecycle_SessionStart_SilentWhenDisabled(t *testing.T) {
	reg := newFakeRegistry()
	chat := newFakeChat()
	l := NewLifecycle(LifecycleConfig{Registry: reg, Chat: chat, NotifyOnStart: false}, testLogger())

	l.HandleSessionStart(t.Context(), entity.LifecycleEvent{SessionID: "s1", Cwd: "/p"})
	assert.Empty(t, chat.sent)
}

func TestLifecycle_SessionEnd_Deregisters(t *testing.T) {
	reg := newFakeRegistry()
	l := NewLifecycle(LifecycleConfig{Registry: reg}, testLogger())

	resp := l.HandleSessionEnd(t.Context(), entity.LifecycleEvent{SessionID: "s1"})
	assert.Equal(t, entity.LifecycleEvent{}, resp)
	assert.Equal(t, []string{"s1"}, reg.deregistered)
}

func TestLifecycle_Notification_NeverInfluencesControl(t *testing.T) {
	reg := newFakeRegistry()
	l := NewLifecycle(LifecycleConfig{Registry: reg}, testLogger())

	resp := l.HandleNotification(t.Context(), entity.LifecycleEvent{SessionID: "s1"})
	assert.Equal(t, entity.LifecycleEvent{}, resp)
}
