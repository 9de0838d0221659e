package schema

import (
	"context"
	"encoding/json"
)

// Tool is the interface all LLM-callable tools must satisfy.
// Built-in tools and remote MCP-wrapped tools both implement this interface.
//
// Execute may return any value; the conversation loop coerces non-mapping
// results into {"result": ...} before handing them back to the model.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns the JSON Schema (as raw JSON bytes) for this tool's parameters.
	Parameters() json.RawMessage
	Execute(ctx context.Context, params map[string]any) (any, error)
}

// ToolRegistrar is the narrow registration surface the MCP manager needs.
// The full registry in internal/tools implements it.
type ToolRegistrar interface {
	Add(t Tool) Tool
}

// ObjectSchema builds a minimal object parameter schema from property
// definitions. Convenience for built-in tools.
func ObjectSchema(properties map[string]any, required ...string) json.RawMessage {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	data, _ := json.Marshal(s)
	return data
}
