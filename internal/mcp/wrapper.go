package mcp

import (
	"context"
	"encoding/json"

	"github.com/lunardrift/lunardrift/internal/schema"
)

// remoteTool wraps a single tool discovered on an MCP server and implements
// schema.Tool. Execution forwards to the owning client with the tool's
// declared streaming capability.
type remoteTool struct {
	client      *Client
	name        string
	description string
	parameters  json.RawMessage
	streaming   bool
}

func (t *remoteTool) Name() string                { return t.name }
func (t *remoteTool) Description() string         { return t.description }
func (t *remoteTool) Parameters() json.RawMessage { return t.parameters }

func (t *remoteTool) Execute(ctx context.Context, params map[string]any) (any, error) {
	return t.client.CallTool(ctx, t.name, params, t.streaming)
}

var _ schema.Tool = (*remoteTool)(nil)
