package mcp

import "strings"

// unsupportedSchemaKeys are JSON Schema keywords the downstream model's
// function-calling validator rejects. They are stripped at every nesting
// depth when a remote tool declaration is imported.
var unsupportedSchemaKeys = map[string]bool{
	"$schema":              true,
	"additionalProperties": true,
	"default":              true,
	"examples":             true,
	"exclusiveMaximum":     true,
	"exclusiveMinimum":     true,
	"format":               true,
	"maxItems":             true,
	"maxLength":            true,
	"maximum":              true,
	"minItems":             true,
	"minLength":            true,
	"minimum":              true,
	"nullable":             true,
}

// SanitizeSchema returns a copy of a tool parameter schema with unsupported
// keywords removed and backticks scrubbed from description strings. The
// input map is not modified.
func SanitizeSchema(schema map[string]any) map[string]any {
	out, _ := sanitizeValue(schema).(map[string]any)
	if out == nil {
		out = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return out
}

func sanitizeValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			if unsupportedSchemaKeys[k] {
				continue
			}
			if k == "description" {
				if s, ok := inner.(string); ok {
					out[k] = strings.ReplaceAll(s, "`", "")
					continue
				}
			}
			out[k] = sanitizeValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = sanitizeValue(inner)
		}
		return out
	default:
		return v
	}
}

// ScrubDescription removes backticks from a tool description so it passes
// the declaration validator.
func ScrubDescription(s string) string {
	return strings.ReplaceAll(s, "`", "")
}
