package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenFileMissing(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("TELEGRAM_CHAT_ID", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 7080, cfg.Server.Port)
	assert.Equal(t, 300, cfg.Escalation.TelegramTimeoutSeconds)
	assert.True(t, cfg.Stop.RetryOnError)
	assert.Equal(t, 2, cfg.Stop.MaxRetries)
	assert.False(t, cfg.Telegram.Enabled, "human channel must be disabled without both Telegram env vars")
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orchestrator.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9001\nstop:\n  maxRetries: 5\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, 5, cfg.Stop.MaxRetries)
}

func TestLoad_EnvVarOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orchestrator.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9001\n"), 0o644))
	t.Setenv("CLAUDECUBE_SERVER_PORT", "9500")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9500, cfg.Server.Port)
}

func TestLoad_TelegramEnabledOnlyWhenBothVarsPresent(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "bot-token")
	t.Setenv("TELEGRAM_CHAT_ID", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.False(t, cfg.Telegram.Enabled)

	t.Setenv("TELEGRAM_CHAT_ID", "12345")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.True(t, cfg.Telegram.Enabled)
	assert.Equal(t, int64(12345), cfg.TelegramChatID)
}

func TestLoad_ConfidenceThresholdIsParsedButVestigial(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 0.8, cfg.Escalation.ConfidenceThreshold)
}
