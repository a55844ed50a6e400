package entity

import "time"

// Policy is a free-text human instruction, optionally scoped to one or more
// pipe-separated tool names, injected into future LLM evaluation prompts.
// Policies are never deduplicated — a repeated instruction simply appears
// twice in the rendered context.
type Policy struct {
	ID          string    `yaml:"id"`
	Description string    `yaml:"description"`
	Tool        string    `yaml:"tool,omitempty"`
	CreatedAt   time.Time `yaml:"created_at"`
}

// AppliesTo reports whether the policy is global or scoped to toolName.
func (p Policy) AppliesTo(toolName string) bool {
	if p.Tool == "" {
		return true
	}
	for _, t := range splitPipe(p.Tool) {
		if t == toolName {
			return true
		}
	}
	return false
}
