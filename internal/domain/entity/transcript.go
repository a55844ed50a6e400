package entity

// ToolUseSummary is one tool invocation extracted from a transcript message,
// with its input truncated for display.
type ToolUseSummary struct {
	Name         string
	InputSummary string
}

// TranscriptMessage is one user/assistant turn extracted from a transcript.
type TranscriptMessage struct {
	Role     string // "user" | "assistant"
	Text     string
	ToolUses []ToolUseSummary
}

// TranscriptExcerpt is the result of reading a transcript file, optionally
// limited to the last N messages. TotalMessages always reflects the full
// count regardless of truncation.
type TranscriptExcerpt struct {
	Messages      []TranscriptMessage
	TotalMessages int
}
