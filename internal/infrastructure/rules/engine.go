// Package rules implements the rule engine (C2): a stateless, pure
// evaluator built once per loaded RulesConfig, plus the loader and watcher
// that keep it current.
package rules

import (
	"fmt"

	"github.com/claudecube/claudecube/internal/domain/entity"
	"github.com/claudecube/claudecube/internal/domain/service"
	"github.com/claudecube/claudecube/internal/infrastructure/matcher"
)

// Engine is an immutable, partitioned view of a RulesConfig. Safe to share
// across concurrent evaluations.
type Engine struct {
	version  int
	defaults entity.Defaults
	deny     []entity.Rule
	allow    []entity.Rule
	escalate []entity.Rule
}

var _ service.RuleEngine = (*Engine)(nil)

// New partitions cfg's rules by action, preserving declaration order within
// each partition.
func New(cfg entity.RulesConfig) *Engine {
	e := &Engine{version: cfg.Version, defaults: cfg.Defaults}
	for _, r := range cfg.Rules {
		switch r.Action {
		case entity.ActionDeny:
			e.deny = append(e.deny, r)
		case entity.ActionAllow:
			e.allow = append(e.allow, r)
		case entity.ActionEscalate:
			e.escalate = append(e.escalate, r)
		}
	}
	return e
}

// Version reports the RulesConfig version this engine was built from.
func (e *Engine) Version() int {
	return e.version
}

// Evaluate applies the deny-then-allow-then-escalate-then-default order.
func (e *Engine) Evaluate(toolName string, toolInput map[string]any) entity.EvaluationResult {
	if r, ok := firstMatch(e.deny, toolName, toolInput); ok {
		return result(entity.ActionDeny, r)
	}
	if r, ok := firstMatch(e.allow, toolName, toolInput); ok {
		return result(entity.ActionAllow, r)
	}
	if r, ok := firstMatch(e.escalate, toolName, toolInput); ok {
		return result(entity.ActionEscalate, r)
	}
	return entity.EvaluationResult{
		Action: e.defaults.Unmatched,
		Reason: "No matching rule; default " + string(e.defaults.Unmatched),
	}
}

func firstMatch(candidates []entity.Rule, toolName string, toolInput map[string]any) (*entity.Rule, bool) {
	for i := range candidates {
		r := &candidates[i]
		if matcher.MatchesTool(toolName, r.ToolSelector) && matcher.MatchesRule(toolInput, r.Match) {
			return r, true
		}
	}
	return nil, false
}

func result(action entity.Action, r *entity.Rule) entity.EvaluationResult {
	reason := r.Reason
	if reason == "" {
		switch action {
		case entity.ActionDeny:
			reason = fmt.Sprintf("Denied by rule: %s", r.Name)
		case entity.ActionAllow:
			reason = fmt.Sprintf("Allowed by rule: %s", r.Name)
		default:
			reason = fmt.Sprintf("Matched rule: %s", r.Name)
		}
	}
	return entity.EvaluationResult{Action: action, Rule: r, Reason: reason}
}
