package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/claudecube/claudecube/internal/domain/entity"
	"github.com/claudecube/claudecube/internal/domain/service"
)

type fakeRuleEngine struct {
	result entity.EvaluationResult
}

func (f fakeRuleEngine) Evaluate(toolName string, toolInput map[string]any) entity.EvaluationResult {
	return f.result
}
func (f fakeRuleEngine) Version() int { return 1 }

type fakeRegistry struct {
	denials      map[string]int
	states       map[string]entity.SessionState
	deregistered []string
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{denials: map[string]int{}, states: map[string]entity.SessionState{}}
}

func (f *fakeRegistry) Register(sessionID, cwd, transcriptPath string) entity.SessionInfo {
	return entity.SessionInfo{}
}
func (f *fakeRegistry) EnsureRegistered(sessionID, cwd, transcriptPath string) entity.SessionInfo {
	return entity.SessionInfo{}
}
func (f *fakeRegistry) Deregister(sessionID string) {
	f.deregistered = append(f.deregistered, sessionID)
}
func (f *fakeRegistry) UpdateState(sessionID string, state entity.SessionState) {
	f.states[sessionID] = state
}
func (f *fakeRegistry) UpdateToolUse(sessionID, toolName string) {}
func (f *fakeRegistry) RecordDenial(sessionID string) int {
	f.denials[sessionID]++
	return f.denials[sessionID]
}
func (f *fakeRegistry) TouchActivity(sessionID string)                  {}
func (f *fakeRegistry) GetLabel(sessionID string) string                { return "label-" + sessionID }
func (f *fakeRegistry) GetPaneID(sessionID string) string               { return "" }
func (f *fakeRegistry) GetTranscriptPath(sessionID string) string       { return "" }
func (f *fakeRegistry) GetAll() []entity.SessionInfo                    { return nil }
func (f *fakeRegistry) FindByCwd(cwd string) (entity.SessionInfo, bool) { return entity.SessionInfo{}, false }
func (f *fakeRegistry) RegisterFromTmux(paneID, cwd, windowName string) entity.SessionInfo {
	return entity.SessionInfo{}
}

type fakeEvaluator struct {
	verdict entity.ToolEvalVerdict
}

func (f fakeEvaluator) EvaluateToolCall(ctx context.Context, req service.ToolEvalRequest) entity.ToolEvalVerdict {
	return f.verdict
}
func (f fakeEvaluator) ClassifyReply(ctx context.Context, req service.ReplyClassifyRequest) entity.ReplyEvaluation {
	return entity.ReplyEvaluation{}
}

type fakeApproval struct {
	resolution entity.ApprovalResolution
	called     bool
}

func (f *fakeApproval) RequestApproval(ctx context.Context, req service.ApprovalRequest) entity.ApprovalResolution {
	f.called = true
	return f.resolution
}
func (f *fakeApproval) RequestStopDecision(ctx context.Context, req service.StopDecisionRequest) entity.ApprovalResolution {
	f.called = true
	return f.resolution
}

type fakePolicyStore struct {
	added []entity.Policy
}

func (f *fakePolicyStore) Add(description, tool string) entity.Policy {
	p := entity.Policy{ID: "pol_0", Description: description, Tool: tool}
	f.added = append(f.added, p)
	return p
}
func (f *fakePolicyStore) ForTool(toolName string) []entity.Policy { return nil }
func (f *fakePolicyStore) RenderForPrompt(toolName string) string  { return "" }
func (f *fakePolicyStore) All() []entity.Policy                    { return nil }

type fakeAudit struct {
	entries []entity.AuditEntry
}

func (f *fakeAudit) Write(entry entity.AuditEntry) { f.entries = append(f.entries, entry) }

func testLogger() *zap.Logger { return zap.NewNop() }

func TestPreTool_AllowByRule(t *testing.T) {
	reg := newFakeRegistry()
	audit := &fakeAudit{}
	pt := NewPreTool(PreToolConfig{
		Registry: reg,
		Rules: fakeRuleEngine{result: entity.EvaluationResult{
			Action: entity.ActionAllow,
			Rule:   &entity.Rule{Name: "Allow read-only tools"},
			Reason: "Allowed by rule: Allow read-only tools",
		}},
		Audit: audit,
	}, testLogger())

	resp := pt.Handle(t.Context(), entity.PreToolUseEvent{SessionID: "s1", ToolName: "Read"})

	assert.Equal(t, "allow", resp.HookSpecificOutput.PermissionDecision)
	assert.Equal(t, "Allowed by rule: Allow read-only tools", resp.HookSpecificOutput.PermissionDecisionReason)
	require.Len(t, audit.entries, 1)
	assert.Equal(t, entity.DecidedByRule, audit.entries[0].DecidedBy)
	assert.Equal(t, entity.StateActive, reg.states["s1"])
}

func TestPreTool_DenyPrecedence(t *testing.T) {
	reg := newFakeRegistry()
	audit := &fakeAudit{}
	pt := NewPreTool(PreToolConfig{
		Registry: reg,
		Rules: fakeRuleEngine{result: entity.EvaluationResult{
			Action: entity.ActionDeny,
			Rule:   &entity.Rule{Name: "Block destructive commands"},
			Reason: "Destructive filesystem command blocked",
		}},
		Audit: audit,
	}, testLogger())

	resp := pt.Handle(t.Context(), entity.PreToolUseEvent{SessionID: "s1", ToolName: "Bash", ToolInput: map[string]any{"command": "rm -rf /"}})

	assert.Equal(t, "block", resp.Decision)
	assert.Equal(t, "deny", resp.HookSpecificOutput.PermissionDecision)
	assert.Equal(t, 1, reg.denials["s1"])
}

func TestPreTool_EscalateConfidentAllowDecidesByLLM(t *testing.T) {
	reg := newFakeRegistry()
	audit := &fakeAudit{}
	approval := &fakeApproval{}
	pt := NewPreTool(PreToolConfig{
		Registry:  reg,
		Rules:     fakeRuleEngine{result: entity.EvaluationResult{Action: entity.ActionEscalate}},
		Evaluator: fakeEvaluator{verdict: entity.ToolEvalVerdict{Allowed: true, Confident: true, Reason: "read-only, safe"}},
		Approval:  approval,
		Policies:  &fakePolicyStore{},
		Audit:     audit,
	}, testLogger())

	resp := pt.Handle(t.Context(), entity.PreToolUseEvent{SessionID: "s1", ToolName: "Read"})

	assert.Equal(t, "allow", resp.HookSpecificOutput.PermissionDecision)
	assert.False(t, approval.called, "a confident allow must not escalate to the approval coordinator")
	require.Len(t, audit.entries, 1)
	assert.Equal(t, entity.DecidedByLLM, audit.entries[0].DecidedBy)
}

func TestPreTool_ConfidentDenyStillEscalatesToApproval(t *testing.T) {
	reg := newFakeRegistry()
	audit := &fakeAudit{}
	approval := &fakeApproval{resolution: entity.ApprovalResolution{Approved: true, Reason: "Approved via Telegram"}}
	pt := NewPreTool(PreToolConfig{
		Registry:  reg,
		Rules:     fakeRuleEngine{result: entity.EvaluationResult{Action: entity.ActionEscalate}},
		Evaluator: fakeEvaluator{verdict: entity.ToolEvalVerdict{Allowed: false, Confident: true, Reason: "drops DB"}},
		Approval:  approval,
		Policies:  &fakePolicyStore{},
		Audit:     audit,
	}, testLogger())

	resp := pt.Handle(t.Context(), entity.PreToolUseEvent{SessionID: "s1", ToolName: "Bash"})

	assert.True(t, approval.called, "confident-deny must still escalate to a human per spec")
	assert.Equal(t, "allow", resp.HookSpecificOutput.PermissionDecision)
	assert.Equal(t, entity.DecidedByTelegram, audit.entries[0].DecidedBy)
}

func TestPreTool_NoCoordinatorConfiguredDefaultsToTimeoutDeny(t *testing.T) {
	reg := newFakeRegistry()
	audit := &fakeAudit{}
	pt := NewPreTool(PreToolConfig{
		Registry:  reg,
		Rules:     fakeRuleEngine{result: entity.EvaluationResult{Action: entity.ActionEscalate}},
		Evaluator: fakeEvaluator{verdict: entity.ToolEvalVerdict{Allowed: false, Confident: true, Reason: "drops DB"}},
		Policies:  &fakePolicyStore{},
		Audit:     audit,
	}, testLogger())

	resp := pt.Handle(t.Context(), entity.PreToolUseEvent{SessionID: "s1", ToolName: "Bash"})

	assert.Equal(t, "deny", resp.HookSpecificOutput.PermissionDecision)
	assert.Contains(t, resp.HookSpecificOutput.PermissionDecisionReason, "no Telegram available")
	assert.Equal(t, entity.DecidedByTimeout, audit.entries[0].DecidedBy)
	assert.Equal(t, 1, reg.denials["s1"])
}

func TestPreTool_TimeoutReasonTagsDecidedByTimeout(t *testing.T) {
	reg := newFakeRegistry()
	audit := &fakeAudit{}
	approval := &fakeApproval{resolution: entity.ApprovalResolution{Approved: false, Reason: "Telegram approval timed out"}}
	pt := NewPreTool(PreToolConfig{
		Registry:  reg,
		Rules:     fakeRuleEngine{result: entity.EvaluationResult{Action: entity.ActionEscalate}},
		Evaluator: fakeEvaluator{verdict: entity.ToolEvalVerdict{Confident: false}},
		Approval:  approval,
		Policies:  &fakePolicyStore{},
		Audit:     audit,
	}, testLogger())

	pt.Handle(t.Context(), entity.PreToolUseEvent{SessionID: "s1", ToolName: "Bash"})

	assert.Equal(t, entity.DecidedByTimeout, audit.entries[0].DecidedBy)
}

func TestPreTool_PolicyTextPersistedWhenSet(t *testing.T) {
	reg := newFakeRegistry()
	audit := &fakeAudit{}
	policies := &fakePolicyStore{}
	approval := &fakeApproval{resolution: entity.ApprovalResolution{Approved: true, PolicyText: "always allow npm install"}}
	pt := NewPreTool(PreToolConfig{
		Registry:  reg,
		Rules:     fakeRuleEngine{result: entity.EvaluationResult{Action: entity.ActionEscalate}},
		Evaluator: fakeEvaluator{verdict: entity.ToolEvalVerdict{Confident: false}},
		Approval:  approval,
		Policies:  policies,
		Audit:     audit,
	}, testLogger())

	pt.Handle(t.Context(), entity.PreToolUseEvent{SessionID: "s1", ToolName: "Bash"})

	require.Len(t, policies.added, 1)
	assert.Equal(t, "Bash", policies.added[0].Tool)
	assert.Equal(t, "always allow npm install", policies.added[0].Description)
}
