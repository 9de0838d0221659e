package mcp

import "encoding/json"

// rpcRequest is the JSON-RPC 2.0 request envelope.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// rpcMessage is any inbound JSON-RPC message: a response (ID + Result/Error)
// or a notification (Method + Params, no ID).
type rpcMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// matchesID reports whether an inbound message id equals the request id the
// client generated. Ids are uuid strings on the wire, but a server echoing
// them through a JSON number decoder is tolerated via string conversion.
func (m *rpcMessage) matchesID(id string) bool {
	switch v := m.ID.(type) {
	case string:
		return v == id
	case nil:
		return false
	default:
		data, _ := json.Marshal(v)
		return string(data) == id
	}
}

// isNotification reports whether the message is a server-initiated event
// (streaming partial/final frames arrive this way over stdio).
func (m *rpcMessage) isNotification() bool { return m.ID == nil && m.Method != "" }

// streamContent is the payload of tool.stream.partial / tool.stream.final
// events: a list of typed content blocks.
type streamContent struct {
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// textOf concatenates the text blocks of a content list.
func textOf(blocks []contentBlock) []string {
	var parts []string
	for _, b := range blocks {
		if b.Type == "text" && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return parts
}

// ToolInfo is one tool entry returned by tools/list.
type ToolInfo struct {
	Name              string         `json:"name"`
	Description       string         `json:"description"`
	InputSchema       map[string]any `json:"inputSchema"`
	SupportsStreaming bool           `json:"supportsStreaming"`
}
