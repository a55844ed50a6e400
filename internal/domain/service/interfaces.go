// Package service declares the narrow interfaces components depend on,
// so the approval coordinator, the pipelines, and the ingress layer can be
// built and tested against fakes without importing concrete infrastructure.
package service

import (
	"context"

	"github.com/claudecube/claudecube/internal/domain/entity"
)

// RuleEngine evaluates one tool call against a fixed, immutable rule set.
// Implementations are pure functions of their input and safe to share across
// concurrent evaluations.
type RuleEngine interface {
	Evaluate(toolName string, toolInput map[string]any) entity.EvaluationResult
	Version() int
}

// SessionRegistry is the in-memory session table (C4).
type SessionRegistry interface {
	Register(sessionID, cwd, transcriptPath string) entity.SessionInfo
	EnsureRegistered(sessionID, cwd, transcriptPath string) entity.SessionInfo
	Deregister(sessionID string)
	UpdateState(sessionID string, state entity.SessionState)
	UpdateToolUse(sessionID, toolName string)
	RecordDenial(sessionID string) int
	TouchActivity(sessionID string)
	GetLabel(sessionID string) string
	GetPaneID(sessionID string) string
	GetTranscriptPath(sessionID string) string
	GetAll() []entity.SessionInfo
	FindByCwd(cwd string) (entity.SessionInfo, bool)
	RegisterFromTmux(paneID, cwd, windowName string) entity.SessionInfo
}

// ChatAdapter is the capability the approval coordinator sends outgoing
// messages and inline keyboards through (see spec §6). Button callback data
// uses the "<action>:<id>" convention the coordinator parses.
type ChatAdapter interface {
	SendMessage(ctx context.Context, text, parseMode string, keyboard InlineKeyboard) (messageID int, err error)
	EditMessage(ctx context.Context, messageID int, text string) error
	ReplyMessage(ctx context.Context, replyToMessageID int, text, parseMode string) (messageID int, err error)
	AnswerButton(ctx context.Context, callbackID, text string) error
}

// InlineButton is one button in an outgoing approval/stop message.
type InlineButton struct {
	Text         string
	CallbackData string
}

// InlineKeyboard is a single row of buttons attached to an outgoing message.
type InlineKeyboard []InlineButton

// MuxHandler receives inbound chat events once the adapter has parsed them.
// The approval coordinator registers itself as the handler at wiring time.
type MuxHandler interface {
	HandleButton(ctx context.Context, callbackID, callbackData string)
	HandleTextReply(ctx context.Context, replyToMessageID int, text string)
}

// PaneInfo describes one terminal multiplexer pane running the agent CLI.
type PaneInfo struct {
	SessionName string
	WindowIndex int
	WindowName  string
	PaneIndex   int
	PaneID      string
	PaneCwd     string
	Command     string
}

// MultiplexerAdapter is the terminal multiplexer capability (see spec §6).
// All operations are best-effort: failures return empty/nil rather than an
// error, except SendKeys, whose failure must propagate to the caller.
type MultiplexerAdapter interface {
	ListPanes(ctx context.Context) []PaneInfo
	FindPaneForCwd(ctx context.Context, cwd string) (paneID string, ok bool)
	SendKeys(ctx context.Context, paneID, text string) error
	ResolveLabel(ctx context.Context, cwd string) (windowName string, ok bool)
}

// LLMEvaluator is the two call shapes of C6, both backed by the same model.
type LLMEvaluator interface {
	EvaluateToolCall(ctx context.Context, req ToolEvalRequest) entity.ToolEvalVerdict
	ClassifyReply(ctx context.Context, req ReplyClassifyRequest) entity.ReplyEvaluation
}

// ToolEvalRequest bundles the inputs to the tool-call evaluator prompt.
type ToolEvalRequest struct {
	ToolName         string
	ToolInput        map[string]any
	RulesContext     string
	EscalationReason string
	PoliciesText     string
}

// ReplyClassifyRequest bundles the inputs to the reply classifier prompt.
type ReplyClassifyRequest struct {
	Text      string
	ToolName  string
	Label     string
	IsRuleAdd bool // selects the add_rule vs add_policy intent wording
}

// TranscriptReader parses a transcript JSONL file into an excerpt (C5).
type TranscriptReader interface {
	Read(path string, lastN int) entity.TranscriptExcerpt
}

// Summarizer produces a short natural-language status summary from an
// excerpt via a single LLM call (C5).
type Summarizer interface {
	Summarize(ctx context.Context, excerpt entity.TranscriptExcerpt) (string, error)
}

// PolicyStore owns the persisted, tagged list of human-defined policies.
type PolicyStore interface {
	Add(description, tool string) entity.Policy
	ForTool(toolName string) []entity.Policy
	RenderForPrompt(toolName string) string
	All() []entity.Policy
}

// AuditSink is the append-only decision log (out of scope per spec §1; this
// is the default JSONL-writing implementation of its interface).
type AuditSink interface {
	Write(entry entity.AuditEntry)
}

// CostSink is the append-only LLM cost log.
type CostSink interface {
	Write(entry entity.CostEntry)
}

// ApprovalCoordinator is the minimal surface the escalation handler and stop
// pipeline need from C7 (kept narrow per the design note on cyclic refs
// between the handler and the coordinator).
type ApprovalCoordinator interface {
	RequestApproval(ctx context.Context, req ApprovalRequest) entity.ApprovalResolution
	RequestStopDecision(ctx context.Context, req StopDecisionRequest) entity.ApprovalResolution
}

// ApprovalRequest bundles the inputs needed to open a tool-approval prompt.
type ApprovalRequest struct {
	SessionID string
	ToolName  string
	ToolInput map[string]any
	Label     string
	PaneID    string
	Reason    string
}

// StopDecisionRequest bundles the inputs needed to open a stop-escalation
// prompt, including the best-effort transcript context gathered by C8.
type StopDecisionRequest struct {
	SessionID       string
	LastMessage     string
	Label           string
	Cwd             string
	PaneID          string
	Summary         string
	RecentToolsText string
}

// RulesWatcher hot-reloads a RuleEngine from a file, publishing new engines
// atomically (C3).
type RulesWatcher interface {
	Current() RuleEngine
	Close() error
}
