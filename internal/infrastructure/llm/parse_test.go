package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONObject_Bare(t *testing.T) {
	var out struct {
		Allowed bool `json:"allowed"`
	}
	ok := ExtractJSONObject(`{"allowed": true}`, &out)
	require.True(t, ok)
	assert.True(t, out.Allowed)
}

func TestExtractJSONObject_WrappedInProse(t *testing.T) {
	var out struct {
		Allowed bool `json:"allowed"`
	}
	text := "Here is my verdict:\n```json\n{\"allowed\": false}\n```\nLet me know if you need more."
	ok := ExtractJSONObject(text, &out)
	require.True(t, ok)
	assert.False(t, out.Allowed)
}

func TestExtractJSONObject_NestedBraces(t *testing.T) {
	var out map[string]any
	ok := ExtractJSONObject(`prefix {"a": {"b": 1}} suffix`, &out)
	require.True(t, ok)
	assert.NotNil(t, out["a"])
}

func TestExtractJSONObject_NoObjectReturnsFalse(t *testing.T) {
	var out map[string]any
	ok := ExtractJSONObject("no json here", &out)
	assert.False(t, ok)
}

func TestExtractJSONObject_BraceInsideString(t *testing.T) {
	var out struct {
		Reason string `json:"reason"`
	}
	ok := ExtractJSONObject(`{"reason": "looks like a { brace"}`, &out)
	require.True(t, ok)
	assert.Contains(t, out.Reason, "{")
}
