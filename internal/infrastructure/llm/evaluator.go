package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/claudecube/claudecube/internal/domain/entity"
	"github.com/claudecube/claudecube/internal/domain/service"
	"github.com/claudecube/claudecube/internal/infrastructure/llm/anthropic"
)

const (
	toolEvalMaxTokens   = 256
	replyEvalMaxTokens  = 512
	defaultModel        = "claude-haiku-4-5-20251001"
	toolEvalSystemPrompt = `You are a permission-evaluation assistant for an autonomous coding agent.
Read-only operations are generally safe. Edits confined to the project's own source tree are generally safe.
Commands that modify the system outside the project, touch credentials, or act on the network are cautious and usually need a human.
Human-defined policies take precedence over your own judgement.
When in doubt, set confident to false so a human is asked.
Respond with a single JSON object: {"allowed": bool, "confident": bool, "reason": string}. Output nothing else.`
)

// Evaluator implements service.LLMEvaluator against a single Anthropic
// client shared by both call shapes.
type Evaluator struct {
	client   *anthropic.Client
	model    string
	costSink service.CostSink
	logger   *zap.Logger
}

var _ service.LLMEvaluator = (*Evaluator)(nil)

// NewEvaluator builds an Evaluator. model defaults to defaultModel when empty.
func NewEvaluator(client *anthropic.Client, model string, costSink service.CostSink, logger *zap.Logger) *Evaluator {
	if model == "" {
		model = defaultModel
	}
	return &Evaluator{client: client, model: model, costSink: costSink, logger: logger}
}

// EvaluateToolCall is the C6 tool-call evaluator shape.
func (e *Evaluator) EvaluateToolCall(ctx context.Context, req service.ToolEvalRequest) entity.ToolEvalVerdict {
	inputJSON, _ := json.Marshal(req.ToolInput)

	userMessage := fmt.Sprintf(
		"Tool: %s\nTool input: %s\nRule engine context: %s\nEscalation reason: %s\n%s\n\nRespond with the JSON verdict only.",
		req.ToolName, string(inputJSON), req.RulesContext, req.EscalationReason, req.PoliciesText,
	)

	result, err := e.client.Complete(ctx, anthropic.Request{
		Model:     e.model,
		MaxTokens: toolEvalMaxTokens,
		System:    toolEvalSystemPrompt,
		Messages:  []anthropic.Message{{Role: "user", Content: userMessage}},
	})
	if err != nil {
		e.logger.Warn("tool-eval LLM call failed", zap.Error(err))
		return entity.ToolEvalVerdict{Allowed: false, Confident: false, Reason: "LLM evaluation error: " + err.Error()}
	}
	e.recordCost("tool-eval", result)

	var verdict entity.ToolEvalVerdict
	if !ExtractJSONObject(result.Text, &verdict) {
		return entity.ToolEvalVerdict{Allowed: false, Confident: false, Reason: "LLM response unparseable"}
	}
	return verdict
}

func (e *Evaluator) recordCost(purpose string, result anthropic.Result) {
	if e.costSink == nil {
		return
	}
	e.costSink.Write(entity.CostEntry{
		Timestamp:    time.Now(),
		Purpose:      purpose,
		Model:        result.Model,
		InputTokens:  result.InputTokens,
		OutputTokens: result.OutputTokens,
	})
}
