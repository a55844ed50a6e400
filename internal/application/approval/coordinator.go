// Package approval implements the approval coordinator (C7): a
// promise-per-request broker that turns an outgoing chat message into an
// awaited resolution, driven by button presses, classified text replies, or
// a timeout.
package approval

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/claudecube/claudecube/internal/domain/entity"
	"github.com/claudecube/claudecube/internal/domain/service"
	"github.com/claudecube/claudecube/internal/infrastructure/telegram"
	"github.com/claudecube/claudecube/internal/infrastructure/transcript"
	"github.com/claudecube/claudecube/pkg/safego"
)

const (
	defaultTimeout   = 300 * time.Second
	transcriptLastN  = 15
	recentActivityN  = 15
	detailsParseMode = "HTML"
)

// Coordinator implements service.ApprovalCoordinator and service.MuxHandler.
// It owns the two maps spec §4.7 describes: pending approvals keyed by
// approval id, and message contexts keyed by the chat message id that
// carries them, so an inbound reply can be routed back to the right
// pending entry.
type Coordinator struct {
	chat       service.ChatAdapter
	registry   service.SessionRegistry
	reader     service.TranscriptReader
	summarizer service.Summarizer
	mux        service.MultiplexerAdapter
	classifier service.LLMEvaluator
	rulesPath  string
	timeout    time.Duration
	logger     *zap.Logger

	mu             sync.Mutex
	pending        map[string]*entity.PendingApproval
	messageContext map[int]entity.MessageContext
}

var (
	_ service.ApprovalCoordinator = (*Coordinator)(nil)
	_ service.MuxHandler          = (*Coordinator)(nil)
)

// Config is the Coordinator's wiring.
type Config struct {
	Chat       service.ChatAdapter
	Registry   service.SessionRegistry
	Reader     service.TranscriptReader
	Summarizer service.Summarizer
	Mux        service.MultiplexerAdapter
	Classifier service.LLMEvaluator
	RulesPath  string
	Timeout    time.Duration
}

// New builds a Coordinator. Timeout defaults to 300s when zero.
func New(cfg Config, logger *zap.Logger) *Coordinator {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Coordinator{
		chat:           cfg.Chat,
		registry:       cfg.Registry,
		reader:         cfg.Reader,
		summarizer:     cfg.Summarizer,
		mux:            cfg.Mux,
		classifier:     cfg.Classifier,
		rulesPath:      cfg.RulesPath,
		timeout:        timeout,
		logger:         logger,
		pending:        map[string]*entity.PendingApproval{},
		messageContext: map[int]entity.MessageContext{},
	}
}

// RequestApproval opens a tool-approval prompt and awaits its resolution.
func (c *Coordinator) RequestApproval(ctx context.Context, req service.ApprovalRequest) entity.ApprovalResolution {
	text := formatApprovalText(req)
	keyboard := service.InlineKeyboard{
		{Text: "✅ Approve", CallbackData: "approve:%s"},
		{Text: "❌ Deny", CallbackData: "deny:%s"},
		{Text: "🔍 Details", CallbackData: "details:%s"},
	}
	return c.open(ctx, req.SessionID, req.ToolName, req.PaneID, req.Label, false, text, keyboard)
}

// RequestStopDecision opens a stop-escalation prompt and awaits its resolution.
func (c *Coordinator) RequestStopDecision(ctx context.Context, req service.StopDecisionRequest) entity.ApprovalResolution {
	text := formatStopText(req)
	keyboard := service.InlineKeyboard{
		{Text: "▶️ Continue", CallbackData: "continue:%s"},
		{Text: "🛑 Let stop", CallbackData: "stop:%s"},
	}
	return c.open(ctx, req.SessionID, "", req.PaneID, req.Label, true, text, keyboard)
}

func (c *Coordinator) open(ctx context.Context, sessionID, toolName, paneID, label string, isStop bool, text string, keyboardTemplate service.InlineKeyboard) entity.ApprovalResolution {
	id := c.nextID()
	resultCh := make(chan entity.ApprovalResolution, 1)

	pending := entity.NewPendingApproval(id, toolName, sessionID, isStop, func(res entity.ApprovalResolution) {
		resultCh <- res
	})

	c.mu.Lock()
	c.pending[id] = pending
	c.mu.Unlock()

	// Everything from here on runs detached from the caller's context: the
	// hook transport's own timeout (60s) is shorter than the approval
	// timeout (300s) by design, and a resolution arriving after the HTTP
	// response has already gone out must still land in the pending map and
	// the eventual audit entry. Cancelling this wait when the inbound
	// request's context expires would contradict that.
	bg := context.Background()

	keyboard := bindApprovalID(keyboardTemplate, id)
	html := telegram.MarkdownToHTML(text)
	messageID, err := c.chat.SendMessage(bg, html, detailsParseMode, keyboard)
	if err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return entity.ApprovalResolution{Approved: false, Reason: fmt.Sprintf("Telegram send failed: %v", err)}
	}

	c.mu.Lock()
	pending.MessageID = messageID
	c.messageContext[messageID] = entity.MessageContext{
		ApprovalID: id,
		SessionID:  sessionID,
		PaneID:     paneID,
		Label:      label,
		IsStop:     isStop,
	}
	c.mu.Unlock()

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case res := <-resultCh:
		return res
	case <-timer.C:
		return c.resolveTimeout(bg, id, messageID, resultCh)
	}
}

func (c *Coordinator) resolveTimeout(ctx context.Context, id string, messageID int, resultCh <-chan entity.ApprovalResolution) entity.ApprovalResolution {
	res := entity.ApprovalResolution{Approved: false, Reason: "Telegram approval timed out"}

	c.mu.Lock()
	pending, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
		delete(c.messageContext, messageID)
	}
	c.mu.Unlock()

	if !ok {
		// Already resolved by an inbound event racing the timer; that
		// resolution is on resultCh (or about to be), so it wins.
		return <-resultCh
	}
	pending.Resolve(res)

	safego.Go(c.logger, "approval-timeout-notice", func() {
		notifyCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.chat.EditMessage(notifyCtx, messageID, "⏰ timed out (denied)"); err != nil {
			c.logger.Warn("failed to send approval timeout notice", zap.Error(err))
		}
	})

	return res
}

func (c *Coordinator) nextID() string {
	return uuid.NewString()
}

func bindApprovalID(template service.InlineKeyboard, id string) service.InlineKeyboard {
	bound := make(service.InlineKeyboard, len(template))
	for i, b := range template {
		bound[i] = service.InlineButton{Text: b.Text, CallbackData: fmt.Sprintf(b.CallbackData, id)}
	}
	return bound
}

// HandleButton dispatches an inbound callback query by its "<action>:<id>"
// callback data.
func (c *Coordinator) HandleButton(ctx context.Context, callbackID, callbackData string) {
	action, id, ok := strings.Cut(callbackData, ":")
	if !ok {
		return
	}

	c.mu.Lock()
	pending, found := c.pending[id]
	c.mu.Unlock()

	if !found {
		if err := c.chat.AnswerButton(ctx, callbackID, "expired or already handled"); err != nil {
			c.logger.Warn("failed to answer expired callback", zap.Error(err))
		}
		return
	}

	switch action {
	case "approve", "continue":
		c.resolveFromButton(ctx, callbackID, pending, entity.ApprovalResolution{Approved: true, Reason: "Approved via Telegram"}, "✅ Approved at "+telegram.ResolvedAt(time.Now()))
	case "deny", "stop":
		c.resolveFromButton(ctx, callbackID, pending, entity.ApprovalResolution{Approved: false, Reason: "Denied via Telegram"}, "❌ Denied at "+telegram.ResolvedAt(time.Now()))
	case "details":
		c.handleDetails(ctx, callbackID, pending)
	default:
		c.logger.Warn("unknown callback action", zap.String("action", action))
	}
}

func (c *Coordinator) resolveFromButton(ctx context.Context, callbackID string, pending *entity.PendingApproval, res entity.ApprovalResolution, editSuffix string) {
	c.mu.Lock()
	delete(c.pending, pending.ID)
	delete(c.messageContext, pending.MessageID)
	c.mu.Unlock()

	pending.Resolve(res)

	if err := c.chat.AnswerButton(ctx, callbackID, res.Reason); err != nil {
		c.logger.Warn("failed to answer callback", zap.Error(err))
	}
	if err := c.chat.EditMessage(ctx, pending.MessageID, editSuffix); err != nil {
		c.logger.Warn("failed to edit resolved approval message", zap.Error(err))
	}
}

// handleDetails is non-resolving: the original approval stays pending, and
// a summary of recent transcript activity is sent as a reply.
func (c *Coordinator) handleDetails(ctx context.Context, callbackID string, pending *entity.PendingApproval) {
	if err := c.chat.AnswerButton(ctx, callbackID, "Fetching details..."); err != nil {
		c.logger.Warn("failed to acknowledge details button", zap.Error(err))
	}

	path := c.registry.GetTranscriptPath(pending.SessionID)
	excerpt := c.reader.Read(path, transcriptLastN)

	summary, err := c.summarizer.Summarize(ctx, excerpt)
	if err != nil {
		c.logger.Warn("transcript summary failed for details request", zap.Error(err))
		summary = "Summary unavailable."
	}

	body := summary + "\n\n" + transcript.FormatRecentActivity(excerpt, recentActivityN)
	html := telegram.MarkdownToHTML(body)
	if _, err := c.chat.ReplyMessage(ctx, pending.MessageID, html, detailsParseMode); err != nil {
		c.logger.Warn("failed to send details reply", zap.Error(err))
	}
}

// HandleTextReply routes a text message replying to a tracked outgoing
// message to the pending approval it belongs to.
func (c *Coordinator) HandleTextReply(ctx context.Context, replyToMessageID int, text string) {
	c.mu.Lock()
	mc, found := c.messageContext[replyToMessageID]
	var pending *entity.PendingApproval
	if found {
		pending, found = c.pending[mc.ApprovalID]
	}
	c.mu.Unlock()
	if !found {
		return
	}

	if mc.IsStop {
		c.resolveTextReply(pending, mc, entity.ApprovalResolution{
			Approved:   true,
			Reason:     "User replied to agent question",
			PolicyText: text,
		})
		c.injectIntoPane(ctx, mc.PaneID, text)
		return
	}

	evaluation := c.classifier.ClassifyReply(ctx, service.ReplyClassifyRequest{
		Text:     text,
		ToolName: pending.ToolName,
		Label:    mc.Label,
	})

	switch evaluation.Intent {
	case entity.IntentDeny:
		c.resolveTextReply(pending, mc, entity.ApprovalResolution{Approved: false, Reason: "Denied via Telegram: " + text})
	case entity.IntentForward:
		forwardText := evaluation.ForwardText
		if forwardText == "" {
			forwardText = text
		}
		c.resolveTextReply(pending, mc, entity.ApprovalResolution{Approved: true, Reason: "Forwarded via Telegram reply"})
		c.injectIntoPane(ctx, mc.PaneID, forwardText)
	case entity.IntentAddPolicy:
		c.resolveTextReply(pending, mc, entity.ApprovalResolution{Approved: true, PolicyText: evaluation.PolicyText})
	case entity.IntentAddRule:
		c.appendRuleYAML(evaluation.RuleYAML)
		c.resolveTextReply(pending, mc, entity.ApprovalResolution{Approved: true, Reason: "Rule added via Telegram reply"})
	default: // approve, including classifier-failure fallback
		c.resolveTextReply(pending, mc, entity.ApprovalResolution{Approved: true, Reason: "Approved via Telegram reply", PolicyText: evaluation.PolicyText})
	}
}

func (c *Coordinator) resolveTextReply(pending *entity.PendingApproval, mc entity.MessageContext, res entity.ApprovalResolution) {
	c.mu.Lock()
	delete(c.pending, pending.ID)
	delete(c.messageContext, pending.MessageID)
	c.mu.Unlock()
	pending.Resolve(res)
}

func (c *Coordinator) injectIntoPane(ctx context.Context, paneID, text string) {
	if paneID == "" || c.mux == nil {
		return
	}
	if err := c.mux.SendKeys(ctx, paneID, text); err != nil {
		c.logger.Warn("failed to inject text into pane", zap.String("pane_id", paneID), zap.Error(err))
	}
}

func (c *Coordinator) appendRuleYAML(ruleYAML string) {
	if ruleYAML == "" || c.rulesPath == "" {
		return
	}
	f, err := os.OpenFile(c.rulesPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		c.logger.Warn("failed to open rules file for append", zap.Error(err))
		return
	}
	defer f.Close()
	if _, err := f.WriteString("\n" + ruleYAML + "\n"); err != nil {
		c.logger.Warn("failed to append rule to rules file", zap.Error(err))
	}
}

func formatApprovalText(req service.ApprovalRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Permission requested**\n\n")
	fmt.Fprintf(&b, "Session: `%s`\n", req.Label)
	fmt.Fprintf(&b, "Tool: `%s`\n", req.ToolName)
	fmt.Fprintf(&b, "Reason: %s\n\n", req.Reason)
	fmt.Fprintf(&b, "Input:\n```\n%s\n```", formatToolInput(req.ToolInput))
	return b.String()
}

func formatStopText(req service.StopDecisionRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Agent wants to stop**\n\n")
	fmt.Fprintf(&b, "Session: `%s` (%s)\n\n", req.Label, req.Cwd)
	fmt.Fprintf(&b, "Last message: %s\n\n", req.LastMessage)
	if req.Summary != "" {
		fmt.Fprintf(&b, "Summary: %s\n\n", req.Summary)
	}
	if req.RecentToolsText != "" {
		fmt.Fprintf(&b, "Recent tools: %s\n", req.RecentToolsText)
	}
	return b.String()
}

func formatToolInput(input map[string]any) string {
	if len(input) == 0 {
		return "{}"
	}
	var b strings.Builder
	first := true
	for k, v := range input {
		if !first {
			b.WriteString("\n")
		}
		first = false
		fmt.Fprintf(&b, "%s: %v", k, v)
	}
	return b.String()
}
