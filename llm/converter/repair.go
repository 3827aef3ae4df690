package converter

import (
	"encoding/json"
	"strings"
)

// parseArgs decodes tool-call arguments. Truncated JSON is closed before a
// second attempt; anything still unparseable is kept under "raw". Non-object
// values are wrapped under "value".
func parseArgs(raw string) map[string]any {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return map[string]any{}
	}
	if v, ok := decodeArgs(raw); ok {
		return v
	}
	if repaired := repairJSON(raw); repaired != raw {
		if v, ok := decodeArgs(repaired); ok {
			return v
		}
	}
	return map[string]any{"raw": raw}
}

func decodeArgs(s string) (map[string]any, bool) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, false
	}
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case nil:
		return map[string]any{}, true
	default:
		return map[string]any{"value": t}, true
	}
}

// repairJSON closes an unterminated string and any open objects or arrays,
// dropping a dangling comma or completing a dangling key.
func repairJSON(s string) string {
	var (
		stack    []byte
		inString bool
		escaped  bool
	)
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	var b strings.Builder
	b.WriteString(s)
	if inString {
		if escaped {
			b.WriteByte('\\')
		}
		b.WriteByte('"')
	}
	out := strings.TrimRight(b.String(), " \t\r\n")
	switch {
	case strings.HasSuffix(out, ","):
		out = strings.TrimSuffix(out, ",")
	case strings.HasSuffix(out, ":"):
		out += "null"
	}
	b.Reset()
	b.WriteString(out)
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteByte(stack[i])
	}
	return b.String()
}
