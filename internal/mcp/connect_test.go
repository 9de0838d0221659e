package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	cfg "github.com/lunardrift/lunardrift/internal/config"
	"github.com/lunardrift/lunardrift/internal/schema"
)

type captureRegistrar struct {
	tools []schema.Tool
}

func (c *captureRegistrar) Add(t schema.Tool) schema.Tool {
	c.tools = append(c.tools, t)
	return t
}

// fakeMCPServer answers tools/list with one named tool and tools/call with a
// fixed reply.
func fakeMCPServer(t *testing.T, toolName string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeRPC(t, r)
		switch req.Method {
		case "tools/list":
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%q,"result":{"tools":[{"name":%q,"description":"desc with a backtick: `+"`code`"+`","inputSchema":{"type":"object","$schema":"x","properties":{"q":{"type":"string","format":"uri"}}}}]}}`, req.ID, toolName)
		case "tools/call":
			fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%q,"result":{"content":[{"type":"text","text":"reply from %s"}]}}`, req.ID, toolName)
		default:
			t.Errorf("unexpected method %q", req.Method)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestManager_ConnectOnce(t *testing.T) {
	srvA := fakeMCPServer(t, "alpha_tool")
	srvB := fakeMCPServer(t, "beta_tool")

	disabled := false
	servers := map[string]cfg.MCPServerConfig{
		"beta":  {URL: srvB.URL},
		"alpha": {URL: srvA.URL},
		"off":   {URL: srvA.URL, Enabled: &disabled},
		"dead":  {URL: "http://127.0.0.1:1/nope"},
	}

	m := NewManager(servers, nil)
	defer m.Close()

	reg := &captureRegistrar{}
	m.ConnectOnce(context.Background(), reg)

	if len(reg.tools) != 2 {
		t.Fatalf("expected 2 remote tools, got %d", len(reg.tools))
	}
	// Servers register in sorted name order regardless of connect order.
	if reg.tools[0].Name() != "alpha_tool" || reg.tools[1].Name() != "beta_tool" {
		t.Errorf("registration order: %s, %s", reg.tools[0].Name(), reg.tools[1].Name())
	}

	// Descriptions and schemas are sanitized at registration.
	if strings.Contains(reg.tools[0].Description(), "`") {
		t.Errorf("description not scrubbed: %q", reg.tools[0].Description())
	}
	var params map[string]any
	if err := json.Unmarshal(reg.tools[0].Parameters(), &params); err != nil {
		t.Fatalf("parameters not valid JSON: %v", err)
	}
	if _, ok := params["$schema"]; ok {
		t.Error("$schema should be stripped from registered parameters")
	}
	q := params["properties"].(map[string]any)["q"].(map[string]any)
	if _, ok := q["format"]; ok {
		t.Error("format should be stripped from registered parameters")
	}

	// Repeated calls must not reconnect or re-register.
	m.ConnectOnce(context.Background(), reg)
	if len(reg.tools) != 2 {
		t.Errorf("second ConnectOnce must be a no-op, got %d tools", len(reg.tools))
	}
}

func TestRemoteTool_Execute(t *testing.T) {
	srv := fakeMCPServer(t, "alpha_tool")

	m := NewManager(map[string]cfg.MCPServerConfig{"alpha": {URL: srv.URL}}, nil)
	defer m.Close()

	reg := &captureRegistrar{}
	m.ConnectOnce(context.Background(), reg)
	if len(reg.tools) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(reg.tools))
	}

	out, err := reg.tools[0].Execute(context.Background(), map[string]any{"q": "hi"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out != "reply from alpha_tool" {
		t.Errorf("out = %v", out)
	}
}
