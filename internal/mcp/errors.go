package mcp

import (
	"errors"
	"fmt"
)

// ErrTimeout marks a transport-level timeout. Callers may retry the request;
// the connection itself stays usable.
var ErrTimeout = errors.New("timeout waiting for MCP response")

// ProtocolError reports a malformed JSON-RPC exchange (id mismatch, missing
// fields). Not retryable for the affected call.
type ProtocolError struct {
	Server string
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("MCP protocol error from %q: %s", e.Server, e.Reason)
}

// ErrUnauthenticated marks a 401-equivalent response from the server.
var ErrUnauthenticated = errors.New("MCP server rejected credentials")
