// Package config loads the orchestrator's own settings — server port,
// escalation knobs, Telegram wiring, and the Stop pipeline's retry policy —
// layered from defaults, an orchestrator.yaml file, and CLAUDECUBE_*
// environment overrides. Rules and policies have their own loaders
// (internal/infrastructure/rules, internal/infrastructure/policy) and are
// not part of this schema.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config is the orchestrator's own configuration, distinct from the
// rules.yaml / policies.yaml files the rule engine and policy store load
// independently.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Escalation EscalationConfig `mapstructure:"escalation"`
	Telegram   TelegramConfig   `mapstructure:"telegram"`
	Stop       StopConfig       `mapstructure:"stop"`

	// Populated from the environment, never from the config file.
	AnthropicAPIKey string `mapstructure:"-"`
	TelegramToken   string `mapstructure:"-"`
	TelegramChatID  int64  `mapstructure:"-"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// EscalationConfig configures the LLM evaluator used to classify escalated
// tool calls and interpret Telegram replies.
type EscalationConfig struct {
	EvaluatorModel string `mapstructure:"evaluatorModel"`
	// ConfidenceThreshold is parsed but unused: the LLM's own `confident`
	// boolean is authoritative. Kept for config-file compatibility.
	ConfidenceThreshold   float64 `mapstructure:"confidenceThreshold"`
	TelegramTimeoutSeconds int    `mapstructure:"telegramTimeoutSeconds"`
}

// TelegramConfig configures the human approval channel. Enabled is derived
// at load time from the presence of both TELEGRAM_BOT_TOKEN and
// TELEGRAM_CHAT_ID, not read from the file.
type TelegramConfig struct {
	Enabled          bool `mapstructure:"enabled"`
	NotifyOnStart    bool `mapstructure:"notifyOnStart"`
	NotifyOnComplete bool `mapstructure:"notifyOnComplete"`
	// NotifyOnError is accepted for compatibility but not wired to any
	// send site.
	NotifyOnError       bool `mapstructure:"notifyOnError"`
	// DenialAlertThreshold is parsed but no component reads it: no alert is
	// sent when a session's denial count crosses it.
	DenialAlertThreshold int  `mapstructure:"denialAlertThreshold"`
}

// StopConfig configures the Stop pipeline's retry-on-error and escalation
// behavior.
type StopConfig struct {
	RetryOnError       bool `mapstructure:"retryOnError"`
	MaxRetries         int  `mapstructure:"maxRetries"`
	EscalateToTelegram bool `mapstructure:"escalateToTelegram"`
}

// Load reads orchestrator.yaml (if present) at path, applies defaults, then
// layers CLAUDECUBE_* environment overrides on top. A missing file is not
// an error — defaults plus environment variables are enough to run with
// the human channel disabled.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	v.SetEnvPrefix("CLAUDECUBE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyEnvironment(&cfg)
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 7080)

	v.SetDefault("escalation.evaluatorModel", "claude-haiku-4-5-20251001")
	v.SetDefault("escalation.confidenceThreshold", 0.8)
	v.SetDefault("escalation.telegramTimeoutSeconds", 300)

	v.SetDefault("telegram.notifyOnStart", true)
	v.SetDefault("telegram.notifyOnComplete", true)
	v.SetDefault("telegram.notifyOnError", true)
	v.SetDefault("telegram.denialAlertThreshold", 3)

	v.SetDefault("stop.retryOnError", true)
	v.SetDefault("stop.maxRetries", 2)
	v.SetDefault("stop.escalateToTelegram", true)
}

// applyEnvironment reads the three hook environment variables directly
// (rather than through viper's config-file layer) and derives
// Telegram.Enabled: both TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID absent
// disables the human channel entirely, and the LLM then makes every
// escalation decision on its own, defaulting to denial when uncertain.
func applyEnvironment(cfg *Config) {
	cfg.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	cfg.TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")

	var chatID int64
	if raw := os.Getenv("TELEGRAM_CHAT_ID"); raw != "" {
		fmt.Sscanf(raw, "%d", &chatID)
	}
	cfg.TelegramChatID = chatID

	cfg.Telegram.Enabled = cfg.TelegramToken != "" && chatID != 0
}
