package extract

import (
	"encoding/json"
	"strings"
)

// Model replies are untrusted text that usually, but not always, contains
// the requested JSON. Decoding is maximally permissive: direct parse, then
// markdown-fence stripping, then the first balanced object or array
// substring. A multi-call extraction run is expensive; degraded-but-
// inspectable beats a hard stop, so callers fall back to a raw-notes
// escape hatch when every rung fails.

// decodeModelJSON tries the recovery ladder and reports whether any rung
// produced a successful decode into v.
func decodeModelJSON(raw string, v any) bool {
	if json.Unmarshal([]byte(raw), v) == nil {
		return true
	}

	stripped := stripFences(raw)
	if stripped != raw && json.Unmarshal([]byte(stripped), v) == nil {
		return true
	}

	if candidate := firstBalanced(stripped); candidate != "" {
		if json.Unmarshal([]byte(candidate), v) == nil {
			return true
		}
	}
	return false
}

func stripFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// firstBalanced returns the first balanced {...} or [...] substring,
// respecting JSON string literals and escapes.
func firstBalanced(s string) string {
	start := -1
	var open, close byte
	for i := 0; i < len(s); i++ {
		if s[i] == '{' || s[i] == '[' {
			start = i
			open = s[i]
			close = '}'
			if open == '[' {
				close = ']'
			}
			break
		}
	}
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escape := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escape {
			escape = false
			continue
		}
		switch {
		case c == '\\':
			escape = true
		case c == '"':
			inString = !inString
		case inString:
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
