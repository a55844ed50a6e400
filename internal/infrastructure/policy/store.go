// Package policy implements the human-defined policy store: a tagged list
// persisted to policies.yaml and rendered into the LLM evaluator's prompt.
package policy

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/claudecube/claudecube/internal/domain/entity"
	"github.com/claudecube/claudecube/internal/domain/service"
)

type policiesFile struct {
	Policies []entity.Policy `yaml:"policies"`
}

// Store is the runtime-writable policies.yaml. Never deduplicates: the same
// instruction added twice appears twice.
type Store struct {
	path string

	mu       sync.Mutex
	policies []entity.Policy
	nextID   int
}

var _ service.PolicyStore = (*Store)(nil)

// Load reads path if it exists, seeding the id counter past the maximum
// observed numeric id; a missing file starts empty.
func Load(path string) (*Store, error) {
	s := &Store{path: path, nextID: 0}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}

	var f policiesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	s.policies = f.Policies
	for _, p := range s.policies {
		if n, ok := parsePolicyID(p.ID); ok && n >= s.nextID {
			s.nextID = n + 1
		}
	}
	return s, nil
}

func parsePolicyID(id string) (int, bool) {
	const prefix = "pol_"
	if !strings.HasPrefix(id, prefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(id, prefix))
	if err != nil {
		return 0, false
	}
	return n, true
}

// Add appends a new policy and persists the full file atomically.
func (s *Store) Add(description, tool string) entity.Policy {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := entity.Policy{
		ID:          fmt.Sprintf("pol_%d", s.nextID),
		Description: description,
		Tool:        tool,
		CreatedAt:   time.Now(),
	}
	s.nextID++
	s.policies = append(s.policies, p)
	s.persistLocked()
	return p
}

func (s *Store) persistLocked() {
	data, err := yaml.Marshal(policiesFile{Policies: s.policies})
	if err != nil {
		return
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return
	}
	os.Rename(tmp, s.path)
}

// ForTool returns every policy applicable to toolName (global or scoped).
func (s *Store) ForTool(toolName string) []entity.Policy {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []entity.Policy
	for _, p := range s.policies {
		if p.AppliesTo(toolName) {
			out = append(out, p)
		}
	}
	return out
}

// RenderForPrompt formats the policies applicable to toolName for inclusion
// in an LLM prompt, or "" when none apply.
func (s *Store) RenderForPrompt(toolName string) string {
	applicable := s.ForTool(toolName)
	if len(applicable) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Human-defined policies:\n")
	for _, p := range applicable {
		scope := p.Tool
		if scope == "" {
			scope = "all tools"
		}
		fmt.Fprintf(&b, "- [%s] %s (applies to: %s)\n", p.ID, p.Description, scope)
	}
	return strings.TrimRight(b.String(), "\n")
}

// All returns every policy regardless of scope.
func (s *Store) All() []entity.Policy {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.Policy, len(s.policies))
	copy(out, s.policies)
	return out
}
