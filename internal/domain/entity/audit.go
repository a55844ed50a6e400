package entity

import "time"

// DecidedBy records which stage of the pipeline produced the final verdict.
type DecidedBy string

const (
	DecidedByRule     DecidedBy = "rule"
	DecidedByLLM      DecidedBy = "llm"
	DecidedByTelegram DecidedBy = "telegram"
	DecidedByTimeout  DecidedBy = "timeout"
)

// AuditEntry is one append-only record of a pre-tool-use decision.
type AuditEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	SessionID string         `json:"session_id"`
	ToolName  string         `json:"tool_name"`
	ToolInput map[string]any `json:"tool_input"`
	Decision  string         `json:"decision"` // "allow" | "deny"
	Reason    string         `json:"reason"`
	DecidedBy DecidedBy      `json:"decided_by"`
	RuleName  string         `json:"rule_name,omitempty"`
}

// CostEntry is one append-only record of an LLM call's accounting.
type CostEntry struct {
	Timestamp    time.Time `json:"timestamp"`
	Purpose      string    `json:"purpose"` // "tool-eval" | "reply-eval" | "summary"
	Model        string    `json:"model"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
}
