package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/claudecube/claudecube/internal/domain/entity"
	"github.com/claudecube/claudecube/internal/infrastructure/matcher"
	apperrors "github.com/claudecube/claudecube/pkg/errors"
)

// Load parses and validates a rules.yaml file at path, returning a RulesConfig.
// Every regex pattern is compiled here so a bad edit is caught before it ever
// reaches the engine.
func Load(path string) (entity.RulesConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return entity.RulesConfig{}, apperrors.NewInvalidInput(fmt.Sprintf("read rules file %s: %v", path, err))
	}

	var cfg entity.RulesConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return entity.RulesConfig{}, apperrors.NewInvalidInput(fmt.Sprintf("parse rules file %s: %v", path, err))
	}

	if cfg.Defaults.Unmatched == "" {
		cfg.Defaults.Unmatched = entity.ActionEscalate
	}

	if err := Validate(cfg); err != nil {
		return entity.RulesConfig{}, err
	}

	return cfg, nil
}

// Validate checks that every rule names a real action and every regex
// pattern compiles.
func Validate(cfg entity.RulesConfig) error {
	for _, r := range cfg.Rules {
		switch r.Action {
		case entity.ActionDeny, entity.ActionAllow, entity.ActionEscalate:
		default:
			return apperrors.NewInvalidInput(fmt.Sprintf("rule %q: invalid action %q", r.Name, r.Action))
		}
		for field, patterns := range r.Match {
			for _, p := range patterns {
				if err := matcher.ValidatePattern(p); err != nil {
					return apperrors.NewInvalidInput(fmt.Sprintf("rule %q field %q: %v", r.Name, field, err))
				}
			}
		}
	}
	return nil
}
