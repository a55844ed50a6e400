package entity

import "strings"

// splitPipe splits a pipe-separated selector like "Bash|Read" into its
// trimmed, non-empty parts.
func splitPipe(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, "|")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
