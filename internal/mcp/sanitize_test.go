package mcp

import (
	"testing"
)

func TestSanitizeSchema_StripsUnsupportedKeys(t *testing.T) {
	in := map[string]any{
		"$schema":              "http://json-schema.org/draft-07/schema#",
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"count": map[string]any{
				"type":    "integer",
				"minimum": float64(0),
				"maximum": float64(10),
				"default": float64(5),
			},
			"name": map[string]any{
				"type":      "string",
				"format":    "hostname",
				"maxLength": float64(64),
			},
		},
	}

	out := SanitizeSchema(in)

	if _, ok := out["$schema"]; ok {
		t.Error("$schema should be stripped at the top level")
	}
	if _, ok := out["additionalProperties"]; ok {
		t.Error("additionalProperties should be stripped")
	}
	props := out["properties"].(map[string]any)
	count := props["count"].(map[string]any)
	for _, key := range []string{"minimum", "maximum", "default"} {
		if _, ok := count[key]; ok {
			t.Errorf("%s should be stripped from nested property", key)
		}
	}
	if count["type"] != "integer" {
		t.Errorf("supported keys must survive, got %+v", count)
	}
	name := props["name"].(map[string]any)
	if _, ok := name["format"]; ok {
		t.Error("format should be stripped from nested property")
	}
}

func TestSanitizeSchema_StripsInsideArrays(t *testing.T) {
	in := map[string]any{
		"type": "object",
		"anyOf": []any{
			map[string]any{"type": "string", "format": "uri"},
			map[string]any{"type": "integer", "exclusiveMinimum": float64(1)},
		},
	}

	out := SanitizeSchema(in)

	anyOf := out["anyOf"].([]any)
	if _, ok := anyOf[0].(map[string]any)["format"]; ok {
		t.Error("format should be stripped inside array elements")
	}
	if _, ok := anyOf[1].(map[string]any)["exclusiveMinimum"]; ok {
		t.Error("exclusiveMinimum should be stripped inside array elements")
	}
}

func TestSanitizeSchema_ScrubsDescriptions(t *testing.T) {
	in := map[string]any{
		"type":        "object",
		"description": "Use the `query` field",
		"properties": map[string]any{
			"query": map[string]any{"type": "string", "description": "wrap in `quotes`"},
		},
	}

	out := SanitizeSchema(in)

	if got := out["description"]; got != "Use the query field" {
		t.Errorf("top-level description not scrubbed: %q", got)
	}
	q := out["properties"].(map[string]any)["query"].(map[string]any)
	if got := q["description"]; got != "wrap in quotes" {
		t.Errorf("nested description not scrubbed: %q", got)
	}
}

func TestSanitizeSchema_DoesNotMutateInput(t *testing.T) {
	in := map[string]any{
		"type":    "object",
		"$schema": "x",
	}
	_ = SanitizeSchema(in)
	if _, ok := in["$schema"]; !ok {
		t.Error("input map must not be modified")
	}
}

func TestSanitizeSchema_NilInput(t *testing.T) {
	out := SanitizeSchema(nil)
	if out["type"] != "object" {
		t.Errorf("nil schema should become an empty object schema, got %+v", out)
	}
}

func TestScrubDescription(t *testing.T) {
	if got := ScrubDescription("call `ls` now"); got != "call ls now" {
		t.Errorf("got %q", got)
	}
}
