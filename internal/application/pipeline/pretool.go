// Package pipeline implements C8: the escalation handler and the pre-tool
// and stop event pipelines that drive the session state machine from rule
// evaluation through LLM escalation to human approval.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/claudecube/claudecube/internal/domain/entity"
	"github.com/claudecube/claudecube/internal/domain/service"
)

// PreTool runs the pre-tool-use pipeline: rule evaluation, optional LLM
// escalation, optional human approval, and the resulting audit entry.
type PreTool struct {
	registry   service.SessionRegistry
	rules      service.RuleEngine
	evaluator  service.LLMEvaluator
	approval   service.ApprovalCoordinator // nil when no chat channel is configured
	policies   service.PolicyStore
	audit      service.AuditSink
	logger     *zap.Logger
}

// PreToolConfig is the wiring for PreTool. Approval may be nil.
type PreToolConfig struct {
	Registry  service.SessionRegistry
	Rules     service.RuleEngine
	Evaluator service.LLMEvaluator
	Approval  service.ApprovalCoordinator
	Policies  service.PolicyStore
	Audit     service.AuditSink
}

// NewPreTool builds a PreTool pipeline.
func NewPreTool(cfg PreToolConfig, logger *zap.Logger) *PreTool {
	return &PreTool{
		registry:  cfg.Registry,
		rules:     cfg.Rules,
		evaluator: cfg.Evaluator,
		approval:  cfg.Approval,
		policies:  cfg.Policies,
		audit:     cfg.Audit,
		logger:    logger,
	}
}

// Handle runs one PreToolUse event through the pipeline and returns the
// response to send back to the hook.
func (p *PreTool) Handle(ctx context.Context, ev entity.PreToolUseEvent) entity.PreToolUseResponse {
	p.registry.EnsureRegistered(ev.SessionID, ev.Cwd, ev.TranscriptPath)
	p.registry.UpdateToolUse(ev.SessionID, ev.ToolName)
	p.registry.UpdateState(ev.SessionID, entity.StatePermissionPending)

	result := p.rules.Evaluate(ev.ToolName, ev.ToolInput)

	switch result.Action {
	case entity.ActionAllow:
		p.recordAudit(ev, true, result.Reason, entity.DecidedByRule, ruleNameOf(result.Rule))
		p.registry.UpdateState(ev.SessionID, entity.StateActive)
		return allowResponse(result.Reason)

	case entity.ActionDeny:
		p.recordAudit(ev, false, result.Reason, entity.DecidedByRule, ruleNameOf(result.Rule))
		p.registry.RecordDenial(ev.SessionID)
		p.registry.UpdateState(ev.SessionID, entity.StateActive)
		return denyResponse(result.Reason)

	default: // escalate
		approved, reason, decidedBy := p.escalate(ctx, ev, result)
		p.recordAudit(ev, approved, reason, decidedBy, ruleNameOf(result.Rule))
		if !approved {
			p.registry.RecordDenial(ev.SessionID)
		}
		p.registry.UpdateState(ev.SessionID, entity.StateActive)
		if approved {
			resp := allowResponse(reason)
			resp.Decision = "approve"
			return resp
		}
		return denyResponse(reason)
	}
}

func (p *PreTool) escalate(ctx context.Context, ev entity.PreToolUseEvent, result entity.EvaluationResult) (approved bool, reason string, decidedBy entity.DecidedBy) {
	rulesContext := "No rule matched"
	if result.Rule != nil {
		rulesContext = fmt.Sprintf("Matched rule: %s (%s)", result.Rule.Name, result.Action)
	}

	verdict := p.evaluator.EvaluateToolCall(ctx, service.ToolEvalRequest{
		ToolName:         ev.ToolName,
		ToolInput:        ev.ToolInput,
		RulesContext:     rulesContext,
		EscalationReason: result.Reason,
		PoliciesText:     p.policies.RenderForPrompt(ev.ToolName),
	})

	if verdict.Confident && verdict.Allowed {
		return true, verdict.Reason, entity.DecidedByLLM
	}

	if p.approval == nil {
		return false, "LLM uncertain and no Telegram available", entity.DecidedByTimeout
	}

	res := p.approval.RequestApproval(ctx, service.ApprovalRequest{
		SessionID: ev.SessionID,
		ToolName:  ev.ToolName,
		ToolInput: ev.ToolInput,
		Label:     p.registry.GetLabel(ev.SessionID),
		PaneID:    p.registry.GetPaneID(ev.SessionID),
		Reason:    verdict.Reason,
	})

	if res.PolicyText != "" {
		p.policies.Add(res.PolicyText, ev.ToolName)
	}

	decidedBy = entity.DecidedByTelegram
	if strings.Contains(res.Reason, "timed out") {
		decidedBy = entity.DecidedByTimeout
	}
	return res.Approved, res.Reason, decidedBy
}

func (p *PreTool) recordAudit(ev entity.PreToolUseEvent, approved bool, reason string, decidedBy entity.DecidedBy, ruleName string) {
	decision := "deny"
	if approved {
		decision = "allow"
	}
	p.audit.Write(entity.AuditEntry{
		SessionID: ev.SessionID,
		ToolName:  ev.ToolName,
		ToolInput: ev.ToolInput,
		Decision:  decision,
		Reason:    reason,
		DecidedBy: decidedBy,
		RuleName:  ruleName,
	})
}

func ruleNameOf(r *entity.Rule) string {
	if r == nil {
		return ""
	}
	return r.Name
}

func allowResponse(reason string) entity.PreToolUseResponse {
	return entity.PreToolUseResponse{
		HookSpecificOutput: entity.HookSpecificOutput{
			HookEventName:             "PreToolUse",
			PermissionDecision:        "allow",
			PermissionDecisionReason:  reason,
		},
	}
}

func denyResponse(reason string) entity.PreToolUseResponse {
	return entity.PreToolUseResponse{
		Decision: "block",
		Reason:   reason,
		HookSpecificOutput: entity.HookSpecificOutput{
			HookEventName:            "PreToolUse",
			PermissionDecision:       "deny",
			PermissionDecisionReason: reason,
		},
	}
}
