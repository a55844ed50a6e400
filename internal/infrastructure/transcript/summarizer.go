package transcript

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/claudecube/claudecube/internal/domain/entity"
	"github.com/claudecube/claudecube/internal/domain/service"
	"github.com/claudecube/claudecube/internal/infrastructure/llm/anthropic"
)

const (
	perMessageTruncate = 600
	aggregateCap       = 8000
	summaryMaxTokens   = 300
	summarizerModel    = "claude-haiku-4-5-20251001"
	emptyExcerptText   = "No transcript messages available."
)

const summarizerSystemPrompt = `Summarize an autonomous coding agent's session transcript in 3 to 5 sentences, covering the goal, progress so far, and current status. Be concise and factual.`

// Summarizer produces a short status summary from a transcript excerpt via a
// single LLM call.
type Summarizer struct {
	client   *anthropic.Client
	costSink service.CostSink
}

var _ service.Summarizer = (*Summarizer)(nil)

func NewSummarizer(client *anthropic.Client, costSink service.CostSink) *Summarizer {
	return &Summarizer{client: client, costSink: costSink}
}

// Summarize returns the literal emptyExcerptText without calling the LLM
// when the excerpt has no messages.
func (s *Summarizer) Summarize(ctx context.Context, excerpt entity.TranscriptExcerpt) (string, error) {
	if len(excerpt.Messages) == 0 {
		return emptyExcerptText, nil
	}

	prompt := buildPrompt(excerpt)

	result, err := s.client.Complete(ctx, anthropic.Request{
		Model:     summarizerModel,
		MaxTokens: summaryMaxTokens,
		System:    summarizerSystemPrompt,
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", err
	}

	if s.costSink != nil {
		s.costSink.Write(entity.CostEntry{
			Timestamp:    time.Now(),
			Purpose:      "summary",
			Model:        result.Model,
			InputTokens:  result.InputTokens,
			OutputTokens: result.OutputTokens,
		})
	}

	return result.Text, nil
}

func buildPrompt(excerpt entity.TranscriptExcerpt) string {
	var b strings.Builder
	for _, m := range excerpt.Messages {
		fmt.Fprintf(&b, "[%s] %s\n", m.Role, truncate(m.Text, perMessageTruncate))
		for _, tu := range m.ToolUses {
			fmt.Fprintf(&b, "  tool_use: %s(%s)\n", tu.Name, tu.InputSummary)
		}
	}
	return truncate(b.String(), aggregateCap)
}
