// Package telegram implements the chat adapter capability (see spec §6):
// a thin wrapper over the Telegram Bot API that the approval coordinator
// sends outgoing messages through and receives button/reply events from.
package telegram

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/claudecube/claudecube/internal/domain/service"
)

// Config is the Telegram adapter's wiring: a single allowlisted chat, not a
// multi-tenant bot.
type Config struct {
	BotToken string
	ChatID   int64
	Debug    bool
}

// Adapter implements service.ChatAdapter over go-telegram-bot-api. All
// inbound events from chats other than the configured one are rejected
// silently, per spec §6.
type Adapter struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger *zap.Logger

	mu      sync.RWMutex
	handler service.MuxHandler

	cancel context.CancelFunc
}

var _ service.ChatAdapter = (*Adapter)(nil)

// NewAdapter authorizes against the Telegram Bot API and returns a ready
// adapter. The polling loop is not started until Start is called.
func NewAdapter(cfg Config, logger *zap.Logger) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	bot.Debug = cfg.Debug

	logger.Info("telegram bot authorized", zap.String("username", bot.Self.UserName))

	return &Adapter{bot: bot, chatID: cfg.ChatID, logger: logger}, nil
}

// SetHandler wires the receiver of inbound button presses and text replies.
// Set once at bootstrap by the approval coordinator, which is itself the
// only consumer of inbound events.
func (a *Adapter) SetHandler(h service.MuxHandler) {
	a.mu.Lock()
	a.handler = h
	a.mu.Unlock()
}

// Start begins long-polling for updates. Each update is dispatched on its
// own goroutine so one slow handler never blocks the poll loop.
func (a *Adapter) Start(ctx context.Context) {
	innerCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := a.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-innerCtx.Done():
				a.bot.StopReceivingUpdates()
				return
			case update := <-updates:
				go a.handleUpdate(innerCtx, update)
			}
		}
	}()
}

// Stop ends the polling loop.
func (a *Adapter) Stop() {
	if a.cancel != nil {
		a.cancel()
	}
}

func (a *Adapter) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		a.handleCallback(ctx, update.CallbackQuery)
		return
	}
	if update.Message == nil {
		return
	}
	a.handleMessage(ctx, update.Message)
}

func (a *Adapter) handleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	if callback.Message == nil || callback.Message.Chat.ID != a.chatID {
		a.logger.Warn("rejected callback from unauthorized chat", zap.Int64("chat_id", chatIDOf(callback)))
		return
	}

	a.mu.RLock()
	handler := a.handler
	a.mu.RUnlock()
	if handler == nil {
		return
	}
	handler.HandleButton(ctx, callback.ID, callback.Data)
}

func chatIDOf(callback *tgbotapi.CallbackQuery) int64 {
	if callback.Message == nil {
		return 0
	}
	return callback.Message.Chat.ID
}

func (a *Adapter) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Chat.ID != a.chatID {
		a.logger.Warn("rejected message from unauthorized chat", zap.Int64("chat_id", msg.Chat.ID))
		return
	}
	if msg.ReplyToMessage == nil {
		return
	}

	a.mu.RLock()
	handler := a.handler
	a.mu.RUnlock()
	if handler == nil {
		return
	}
	handler.HandleTextReply(ctx, msg.ReplyToMessage.MessageID, msg.Text)
}

// SendMessage posts a new message, optionally with an inline keyboard.
func (a *Adapter) SendMessage(ctx context.Context, text, parseMode string, keyboard service.InlineKeyboard) (int, error) {
	msg := tgbotapi.NewMessage(a.chatID, text)
	if parseMode != "" {
		msg.ParseMode = parseMode
	}
	if len(keyboard) > 0 {
		msg.ReplyMarkup = buildKeyboard(keyboard)
	}

	sent, err := a.bot.Send(msg)
	if err != nil && parseMode != "" && strings.Contains(err.Error(), "can't parse entities") {
		a.logger.Warn("telegram parse_mode rejected, retrying as plain text", zap.Error(err))
		msg.ParseMode = ""
		sent, err = a.bot.Send(msg)
	}
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// ReplyMessage posts a message threaded as a reply to an earlier one.
func (a *Adapter) ReplyMessage(ctx context.Context, replyToMessageID int, text, parseMode string) (int, error) {
	msg := tgbotapi.NewMessage(a.chatID, text)
	msg.ReplyToMessageID = replyToMessageID
	if parseMode != "" {
		msg.ParseMode = parseMode
	}
	sent, err := a.bot.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

// EditMessage replaces the text of a previously sent message.
func (a *Adapter) EditMessage(ctx context.Context, messageID int, text string) error {
	edit := tgbotapi.NewEditMessageText(a.chatID, messageID, text)
	_, err := a.bot.Send(edit)
	return err
}

// AnswerButton acknowledges a callback query, dismissing the button's
// loading state with a short toast.
func (a *Adapter) AnswerButton(ctx context.Context, callbackID, text string) error {
	_, err := a.bot.Send(tgbotapi.NewCallback(callbackID, text))
	return err
}

func buildKeyboard(keyboard service.InlineKeyboard) tgbotapi.InlineKeyboardMarkup {
	buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(keyboard))
	for _, b := range keyboard {
		buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.CallbackData))
	}
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(buttons...))
}

// ResolvedAt formats a time for appending to a resolved approval message,
// e.g. "✅ Approved at 14:32:07".
func ResolvedAt(t time.Time) string {
	return t.Format("15:04:05")
}
