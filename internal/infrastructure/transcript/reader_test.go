package transcript

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claudecube/claudecube/internal/domain/entity"
)

func writeTranscript(t *testing.T, lines ...string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "transcript.jsonl")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReader_ParsesStringContent(t *testing.T) {
	path := writeTranscript(t, `{"type":"user","message":{"role":"user","content":"hello there"}}`)
	excerpt := Reader{}.Read(path, 0)
	require.Len(t, excerpt.Messages, 1)
	assert.Equal(t, "hello there", excerpt.Messages[0].Text)
	assert.Equal(t, 1, excerpt.TotalMessages)
}

func TestReader_ParsesBlockArrayContentWithToolUse(t *testing.T) {
	path := writeTranscript(t, `{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"running a command"},{"type":"tool_use","name":"Bash","input":{"command":"ls"}}]}}`)
	excerpt := Reader{}.Read(path, 0)
	require.Len(t, excerpt.Messages, 1)
	assert.Equal(t, "running a command", excerpt.Messages[0].Text)
	require.Len(t, excerpt.Messages[0].ToolUses, 1)
	assert.Equal(t, "Bash", excerpt.Messages[0].ToolUses[0].Name)
}

func TestReader_SkipsNonUserAssistantLines(t *testing.T) {
	path := writeTranscript(t,
		`{"type":"system","message":{"role":"system","content":"boot"}}`,
		`{"type":"user","message":{"role":"user","content":"hi"}}`,
	)
	excerpt := Reader{}.Read(path, 0)
	assert.Equal(t, 1, excerpt.TotalMessages)
}

func TestReader_LastNTruncatesButKeepsTotal(t *testing.T) {
	path := writeTranscript(t,
		`{"type":"user","message":{"role":"user","content":"one"}}`,
		`{"type":"user","message":{"role":"user","content":"two"}}`,
		`{"type":"user","message":{"role":"user","content":"three"}}`,
	)
	excerpt := Reader{}.Read(path, 2)
	require.Len(t, excerpt.Messages, 2)
	assert.Equal(t, 3, excerpt.TotalMessages)
	assert.Equal(t, "two", excerpt.Messages[0].Text)
}

func TestReader_MissingFileDegradesToEmpty(t *testing.T) {
	excerpt := Reader{}.Read("/nonexistent/path.jsonl", 0)
	assert.Empty(t, excerpt.Messages)
	assert.Equal(t, 0, excerpt.TotalMessages)
}

func TestFormatRecentActivity_Empty(t *testing.T) {
	assert.Equal(t, "No recent activity.", FormatRecentActivity(entity.TranscriptExcerpt{}, 5))
}

func TestExtractRecentTools_Empty(t *testing.T) {
	assert.Equal(t, "No tool calls yet.", ExtractRecentTools(entity.TranscriptExcerpt{}, 6))
}
