package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claudecube/claudecube/internal/domain/entity"
)

func TestRegistry_RegisterResolvesLabelFallback(t *testing.T) {
	r := New(nil)
	info := r.Register("abcdefghijklmnop", "/tmp/proj", "")
	assert.Equal(t, "abcdefghijkl", info.Label)
}

func TestRegistry_EnsureRegistered_NoopOnKnownID(t *testing.T) {
	r := New(nil)
	r.Register("sess1", "/tmp/proj", "")
	before := r.GetLabel("sess1")

	r.EnsureRegistered("sess1", "/tmp/proj", "/tmp/transcript.jsonl")

	assert.Equal(t, before, r.GetLabel("sess1"))
	assert.Equal(t, "/tmp/transcript.jsonl", r.GetTranscriptPath("sess1"))
}

func TestRegistry_EnsureRegistered_MergesSyntheticSession(t *testing.T) {
	r := New(nil)
	synthetic := r.RegisterFromTmux("%3", "/tmp/proj", "my-window")
	require.True(t, synthetic.IsSynthetic())

	merged := r.EnsureRegistered("real-session-id", "/tmp/proj", "")

	assert.Equal(t, "my-window", merged.Label)
	assert.Equal(t, entity.StateActive, merged.State)

	all := r.GetAll()
	count := 0
	for _, info := range all {
		if info.Cwd == "/tmp/proj" {
			count++
		}
	}
	assert.Equal(t, 1, count)

	found, ok := r.FindByCwd("/tmp/proj")
	require.True(t, ok)
	assert.Equal(t, "real-session-id", found.SessionID)
}

func TestRegistry_UnknownSessionOpsNoop(t *testing.T) {
	r := New(nil)
	r.UpdateState("missing", entity.StateIdle)
	r.UpdateToolUse("missing", "Bash")
	assert.Equal(t, 0, r.RecordDenial("missing"))
}

func TestRegistry_RecordDenialIncrements(t *testing.T) {
	r := New(nil)
	r.Register("sess1", "/tmp", "")
	assert.Equal(t, 1, r.RecordDenial("sess1"))
	assert.Equal(t, 2, r.RecordDenial("sess1"))
}

func TestRegistry_LabelImmutableAfterMerge(t *testing.T) {
	r := New(nil)
	r.RegisterFromTmux("%1", "/tmp/x", "window-one")
	merged := r.EnsureRegistered("sessA", "/tmp/x", "")
	r.UpdateToolUse("sessA", "Bash")

	assert.Equal(t, merged.Label, r.GetLabel("sessA"))
}
