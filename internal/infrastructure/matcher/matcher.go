// Package matcher implements the field-matching primitive the rule engine
// builds on: given a tool's input map and a rule's match spec, decide
// whether the rule applies.
package matcher

import (
	"path"
	"regexp"
	"strings"
	"sync"

	"github.com/claudecube/claudecube/internal/domain/entity"
)

// compiledRegexCache avoids recompiling the same pattern on every
// evaluation; rule sets are small and reloaded rarely, but a hot path is a
// hot path.
var (
	regexCacheMu sync.RWMutex
	regexCache   = map[string]*regexp.Regexp{}
)

func compile(pattern string) (*regexp.Regexp, error) {
	regexCacheMu.RLock()
	re, ok := regexCache[pattern]
	regexCacheMu.RUnlock()
	if ok {
		return re, nil
	}

	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, err
	}

	regexCacheMu.Lock()
	regexCache[pattern] = re
	regexCacheMu.Unlock()
	return re, nil
}

// ValidatePattern reports whether pattern compiles under its kind, used at
// rules.yaml load time to reject bad regexes before they reach the engine.
func ValidatePattern(p entity.Pattern) error {
	if p.Kind != entity.PatternRegex {
		return nil
	}
	_, err := compile(p.Pattern)
	return err
}

// MatchesField reports whether fieldValue satisfies pattern. Non-string
// field values never match a string pattern; the caller is expected to have
// already stringified anything comparable.
func MatchesField(fieldValue string, p entity.Pattern) bool {
	switch p.Kind {
	case entity.PatternRegex:
		re, err := compile(p.Pattern)
		if err != nil {
			return false
		}
		return re.MatchString(fieldValue)
	case entity.PatternGlob:
		ok, err := path.Match(p.Pattern, fieldValue)
		return err == nil && ok
	default: // literal
		return fieldValue == p.Pattern
	}
}

// MatchesAny reports whether fieldValue satisfies at least one pattern in
// patterns (OR within a field).
func MatchesAny(fieldValue string, patterns []entity.Pattern) bool {
	for _, p := range patterns {
		if MatchesField(fieldValue, p) {
			return true
		}
	}
	return false
}

// ExtractField resolves a dotted path like "command" or "tool_input.path"
// against a tool-input map. A missing segment or a non-map intermediate
// value yields ("", false) rather than a panic — an absent field never
// matches and the caller must treat the field as skipped.
func ExtractField(toolInput map[string]any, dottedPath string) (string, bool) {
	segments := strings.Split(dottedPath, ".")
	var cur any = toolInput

	for _, seg := range segments {
		m, ok := cur.(map[string]any)
		if !ok {
			return "", false
		}
		v, ok := m[seg]
		if !ok {
			return "", false
		}
		cur = v
	}

	switch v := cur.(type) {
	case string:
		return v, true
	case nil:
		return "", false
	default:
		return "", false
	}
}

// MatchesTool reports whether toolName is one of selector's pipe-separated
// exact names. An empty selector matches every tool.
func MatchesTool(toolName, selector string) bool {
	if selector == "" {
		return true
	}
	for _, name := range strings.Split(selector, "|") {
		if strings.TrimSpace(name) == toolName {
			return true
		}
	}
	return false
}

// MatchesRule reports whether a rule's full match spec is satisfied by
// toolInput. Fields are OR'd with each other: if any field's patterns match,
// the rule matches. A rule with no match spec matches every call to its
// selected tools.
func MatchesRule(toolInput map[string]any, match map[string][]entity.Pattern) bool {
	if len(match) == 0 {
		return true
	}
	for fieldPath, patterns := range match {
		value, ok := ExtractField(toolInput, fieldPath)
		if !ok {
			continue
		}
		if MatchesAny(value, patterns) {
			return true
		}
	}
	return false
}
