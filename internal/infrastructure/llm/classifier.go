package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/claudecube/claudecube/internal/domain/entity"
	"github.com/claudecube/claudecube/internal/domain/service"
	"github.com/claudecube/claudecube/internal/infrastructure/llm/anthropic"
)

const replyClassifierSystemPromptTemplate = `You classify a human's free-text reply to an agent permission prompt into one of four intents:
- approve: the human wants the action to proceed.
- deny: the human wants the action blocked.
- forward: the human's text is an instruction meant for the agent itself, not a verdict on this one action.
- %s: the human is stating a standing instruction that should apply beyond this one request.

The tool in question is %q, labeled %q for the human.

Respond with a single JSON object: {"intent": string, "forward_text"?: string, "%s"?: string}. Output nothing else.`

// ClassifyReply is the C6 reply-classifier shape.
func (e *Evaluator) ClassifyReply(ctx context.Context, req service.ReplyClassifyRequest) entity.ReplyEvaluation {
	policyKeyword := "add_policy"
	policyField := "policy_text"
	if req.IsRuleAdd {
		policyKeyword = "add_rule"
		policyField = "rule_yaml"
	}

	system := fmt.Sprintf(replyClassifierSystemPromptTemplate, policyKeyword, req.ToolName, req.Label, policyField)

	result, err := e.client.Complete(ctx, anthropic.Request{
		Model:     e.model,
		MaxTokens: replyEvalMaxTokens,
		System:    system,
		Messages:  []anthropic.Message{{Role: "user", Content: req.Text}},
	})
	if err != nil {
		e.logger.Warn("reply-eval LLM call failed, falling back to approve", zap.Error(err))
		return entity.ReplyEvaluation{Intent: entity.IntentApprove, PolicyText: req.Text}
	}
	e.recordCost("reply-eval", result)

	var evaluation entity.ReplyEvaluation
	if !ExtractJSONObject(result.Text, &evaluation) {
		return entity.ReplyEvaluation{Intent: entity.IntentApprove, PolicyText: req.Text}
	}
	return evaluation
}
