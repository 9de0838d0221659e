package schema

import "encoding/json"

// ToolCall represents one function call in an assistant message.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// ToWireMap serialises a ToolCall into the OpenAI wire-format map.
// Used by provider implementations when building the JSON request body.
func (tc ToolCall) ToWireMap() map[string]any {
	argsJSON, _ := json.Marshal(tc.Arguments)
	return map[string]any{
		"id":   tc.ID,
		"type": "function",
		"function": map[string]any{
			"name":      tc.Name,
			"arguments": string(argsJSON),
		},
	}
}

// Message is one entry in the conversation history.
//
// Role is one of: "system", "user", "assistant", "tool".
//
// Content holds the message text:
//   - system / user / tool: plain string
//   - assistant: *string (may be nil when only tool calls are present)
//
// ToolCalls is populated for assistant messages that invoke tools.
// ToolCallID and ToolName are set for tool-result messages.
type Message struct {
	Role       string
	Content    any // string | *string
	ToolCalls  []ToolCall
	ToolCallID string // "tool" role only
	ToolName   string // "tool" role only
}

// ToWireMap serialises a Message into the OpenAI wire-format map.
func (m Message) ToWireMap() map[string]any {
	out := map[string]any{"role": m.Role}

	switch c := m.Content.(type) {
	case string:
		out["content"] = c
	case *string:
		if c != nil {
			out["content"] = *c
		} else {
			out["content"] = nil
		}
	default:
		out["content"] = nil
	}

	if len(m.ToolCalls) > 0 {
		calls := make([]map[string]any, 0, len(m.ToolCalls))
		for _, tc := range m.ToolCalls {
			calls = append(calls, tc.ToWireMap())
		}
		out["tool_calls"] = calls
	}
	if m.Role == "tool" {
		out["tool_call_id"] = m.ToolCallID
		if m.ToolName != "" {
			out["name"] = m.ToolName
		}
	}
	return out
}
