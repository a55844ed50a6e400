package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claudecube/claudecube/internal/domain/entity"
)

func writeTempRules(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoad_ValidFile(t *testing.T) {
	path := writeTempRules(t, `
version: 1
defaults:
  unmatched: escalate
rules:
  - name: deny-rm
    action: deny
    tool: Bash
    match:
      command:
        - pattern: "rm -rf"
          kind: literal
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Version)
	require.Len(t, cfg.Rules, 1)
	assert.Equal(t, entity.ActionDeny, cfg.Rules[0].Action)
}

func TestLoad_InvalidRegexRejected(t *testing.T) {
	path := writeTempRules(t, `
rules:
  - name: bad
    action: deny
    tool: Bash
    match:
      command:
        - pattern: "(unclosed"
          kind: regex
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_MissingFileErrors(t *testing.T) {
	_, err := Load("/nonexistent/rules.yaml")
	assert.Error(t, err)
}

func TestLoad_DefaultsUnmatchedWhenOmitted(t *testing.T) {
	path := writeTempRules(t, "rules: []\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, entity.ActionEscalate, cfg.Defaults.Unmatched)
}
