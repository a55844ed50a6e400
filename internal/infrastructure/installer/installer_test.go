package installer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readRawHooks(t *testing.T, path string) map[string][]hookEntry {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw struct {
		Hooks map[string][]hookEntry `json:"hooks"`
	}
	require.NoError(t, json.Unmarshal(data, &raw))
	return raw.Hooks
}

func TestInstall_CreatesSettingsFileWithAllEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	require.NoError(t, Install(path, "/usr/local/bin/claudecube"))

	hooks := readRawHooks(t, path)
	for _, event := range hookEventOrder {
		require.Len(t, hooks[event], 1)
		assert.Contains(t, hooks[event][0].Hooks[0].Command, "claudecube")
	}
	assert.Equal(t, 120, hooks["PreToolUse"][0].Hooks[0].Timeout)
	assert.Equal(t, 30, hooks["Stop"][0].Hooks[0].Timeout)
	assert.Equal(t, 5, hooks["SessionStart"][0].Hooks[0].Timeout)
}

func TestInstall_PreservesForeignHooksAndReplacesOwnEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	initial := `{
		"hooks": {
			"PreToolUse": [
				{"hooks": [{"type": "command", "command": "/opt/other-tool/bridge", "timeout": 10}]}
			]
		},
		"other_setting": "preserved"
	}`
	require.NoError(t, os.WriteFile(path, []byte(initial), 0o644))

	require.NoError(t, Install(path, "/usr/local/bin/claudecube"))

	hooks := readRawHooks(t, path)
	require.Len(t, hooks["PreToolUse"], 2)
	assert.Contains(t, hooks["PreToolUse"][0].Hooks[0].Command, "other-tool")
	assert.Contains(t, hooks["PreToolUse"][1].Hooks[0].Command, "claudecube")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "preserved")
}

func TestInstall_IsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	require.NoError(t, Install(path, "/usr/local/bin/claudecube"))
	require.NoError(t, Install(path, "/usr/local/bin/claudecube"))

	hooks := readRawHooks(t, path)
	for _, event := range hookEventOrder {
		assert.Len(t, hooks[event], 1, "event %s should have exactly one owned entry after reinstall", event)
	}
}

func TestUninstall_RemovesOnlyOwnedEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, Install(path, "/usr/local/bin/claudecube"))

	doc, raw, err := readSettings(path)
	require.NoError(t, err)
	doc.Hooks["PreToolUse"] = append(doc.Hooks["PreToolUse"], hookEntry{
		Hooks: []hookAction{{Type: "command", Command: "/opt/other-tool/bridge"}},
	})
	require.NoError(t, writeSettings(path, doc, raw))

	require.NoError(t, Uninstall(path))

	hooks := readRawHooks(t, path)
	require.Len(t, hooks["PreToolUse"], 1)
	assert.Contains(t, hooks["PreToolUse"][0].Hooks[0].Command, "other-tool")
	_, hasStop := hooks["Stop"]
	assert.False(t, hasStop)
}

func TestInstall_MissingFileCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "settings.json")
	require.NoError(t, Install(path, "/usr/local/bin/claudecube"))
	_, err := os.Stat(path)
	assert.NoError(t, err)
}
