package llm

import "encoding/json"

// ExtractJSONObject scans text for the first balanced {...} span and
// unmarshals it into v. LLM replies sometimes wrap the JSON verdict in prose
// despite instructions, so a brace-scan is more robust than requiring the
// whole reply to be valid JSON.
func ExtractJSONObject(text string, v any) bool {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i, r := range text {
		if start == -1 {
			if r == '{' {
				start = i
				depth = 1
			}
			continue
		}

		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}

		switch r {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				candidate := text[start : i+1]
				return json.Unmarshal([]byte(candidate), v) == nil
			}
		}
	}
	return false
}
