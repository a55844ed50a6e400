package llm

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/claudecube/claudecube/internal/domain/entity"
	"github.com/claudecube/claudecube/internal/domain/service"
	"github.com/claudecube/claudecube/internal/infrastructure/llm/anthropic"
)

type fakeCostSink struct {
	entries []entity.CostEntry
}

func (f *fakeCostSink) Write(e entity.CostEntry) { f.entries = append(f.entries, e) }

func newTestServer(t *testing.T, responseText string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"model": "claude-haiku-4-5-20251001",
			"content": []map[string]string{
				{"type": "text", "text": responseText},
			},
			"usage": map[string]int{"input_tokens": 10, "output_tokens": 5},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestEvaluator_EvaluateToolCall_ParsesVerdict(t *testing.T) {
	srv := newTestServer(t, `{"allowed": true, "confident": true, "reason": "read-only"}`)
	defer srv.Close()

	client := anthropic.New("test-key", srv.URL)
	sink := &fakeCostSink{}
	e := NewEvaluator(client, "", sink, zap.NewNop())

	verdict := e.EvaluateToolCall(t.Context(), service.ToolEvalRequest{
		ToolName:  "Read",
		ToolInput: map[string]any{"path": "/tmp/x"},
	})

	require.True(t, verdict.Confident)
	assert.True(t, verdict.Allowed)
	require.Len(t, sink.entries, 1)
	assert.Equal(t, "tool-eval", sink.entries[0].Purpose)
}

func TestEvaluator_EvaluateToolCall_UnparseableDefaultsToUnconfidentDeny(t *testing.T) {
	srv := newTestServer(t, "I cannot help with that.")
	defer srv.Close()

	client := anthropic.New("test-key", srv.URL)
	e := NewEvaluator(client, "", &fakeCostSink{}, zap.NewNop())

	verdict := e.EvaluateToolCall(t.Context(), service.ToolEvalRequest{ToolName: "Bash"})

	assert.False(t, verdict.Allowed)
	assert.False(t, verdict.Confident)
	assert.Equal(t, "LLM response unparseable", verdict.Reason)
}

func TestEvaluator_ClassifyReply_FallsBackToApproveOnParseFailure(t *testing.T) {
	srv := newTestServer(t, "not json at all")
	defer srv.Close()

	client := anthropic.New("test-key", srv.URL)
	e := NewEvaluator(client, "", &fakeCostSink{}, zap.NewNop())

	eval := e.ClassifyReply(t.Context(), service.ReplyClassifyRequest{Text: "sure go ahead"})

	assert.Equal(t, entity.IntentApprove, eval.Intent)
	assert.Equal(t, "sure go ahead", eval.PolicyText)
}

func TestEvaluator_ClassifyReply_Intents(t *testing.T) {
	srv := newTestServer(t, `{"intent": "deny"}`)
	defer srv.Close()

	client := anthropic.New("test-key", srv.URL)
	e := NewEvaluator(client, "", &fakeCostSink{}, zap.NewNop())

	eval := e.ClassifyReply(t.Context(), service.ReplyClassifyRequest{Text: "no, stop"})
	assert.Equal(t, entity.IntentDeny, eval.Intent)
}
