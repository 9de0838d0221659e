package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newHTTPClient(t *testing.T, url string) *Client {
	t.Helper()
	c := NewClient("test", ServerConfig{URL: url}, nil)
	t.Cleanup(c.Close)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	return c
}

func decodeRPC(t *testing.T, r *http.Request) rpcRequest {
	t.Helper()
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		t.Fatalf("decode rpc request: %v", err)
	}
	return req
}

func TestListTools_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeRPC(t, r)
		if req.Method != "tools/list" {
			t.Errorf("expected tools/list, got %s", req.Method)
		}
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%q,"result":{"tools":[{"name":"remote_echo","description":"echoes","inputSchema":{"type":"object"},"supportsStreaming":true}]}}`, req.ID)
	}))
	defer srv.Close()

	c := newHTTPClient(t, srv.URL)
	tools, err := c.ListTools(context.Background())
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	if len(tools) != 1 || tools[0].Name != "remote_echo" || !tools[0].SupportsStreaming {
		t.Errorf("unexpected tools: %+v", tools)
	}
}

func TestCallTool_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeRPC(t, r)
		params, _ := req.Params.(map[string]any)
		if params["name"] != "remote_echo" {
			t.Errorf("expected tool name remote_echo, got %v", params["name"])
		}
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%q,"result":{"content":[{"type":"text","text":"first"},{"type":"text","text":"second"}]}}`, req.ID)
	}))
	defer srv.Close()

	c := newHTTPClient(t, srv.URL)
	out, err := c.CallTool(context.Background(), "remote_echo", map[string]any{"x": "hi"}, false)
	if err != nil {
		t.Fatalf("call tool: %v", err)
	}
	if out != "first\nsecond" {
		t.Errorf("got %q", out)
	}
}

func TestCallTool_HTTP_IsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeRPC(t, r)
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%q,"result":{"isError":true,"content":[{"type":"text","text":"boom"}]}}`, req.ID)
	}))
	defer srv.Close()

	c := newHTTPClient(t, srv.URL)
	if _, err := c.CallTool(context.Background(), "remote_echo", nil, false); err == nil {
		t.Fatal("expected error for isError result")
	}
}

func TestCallHTTP_IDMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":"not-the-request-id","result":{}}`)
	}))
	defer srv.Close()

	c := newHTTPClient(t, srv.URL)
	_, err := c.ListTools(context.Background())
	var perr *ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
}

func TestCallHTTP_RPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := decodeRPC(t, r)
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%q,"error":{"code":-32601,"message":"method not found"}}`, req.ID)
	}))
	defer srv.Close()

	c := newHTTPClient(t, srv.URL)
	if _, err := c.ListTools(context.Background()); err == nil {
		t.Fatal("expected error from rpc error response")
	}
}

func TestCallHTTP_UnauthorizedWithoutAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newHTTPClient(t, srv.URL)
	_, err := c.ListTools(context.Background())
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestCallTool_HTTP_Streaming(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Accept"); got != "text/event-stream" {
			t.Errorf("expected SSE accept header, got %q", got)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"type\":\"tool.stream.partial\",\"result\":{\"content\":[{\"type\":\"text\",\"text\":\"par\"}]}}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"tool.stream.final\",\"result\":{\"content\":[{\"type\":\"text\",\"text\":\"final text\"}]}}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c := newHTTPClient(t, srv.URL)
	out, err := c.CallTool(context.Background(), "streamer", nil, true)
	if err != nil {
		t.Fatalf("streaming call: %v", err)
	}
	if out != "final text" {
		t.Errorf("got %q", out)
	}
}

// ---------------------------------------------------------------------------
// Stdio transport
// ---------------------------------------------------------------------------

func newStdioClient(t *testing.T, script string) *Client {
	t.Helper()
	c := NewClient("test", ServerConfig{Command: "sh", Args: []string{"-c", script}}, nil)
	t.Cleanup(c.Close)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	return c
}

func TestListTools_Stdio(t *testing.T) {
	// The responder extracts the request id and echoes it back.
	script := `read line
id=$(printf '%s' "$line" | sed 's/.*"id":"\([^"]*\)".*/\1/')
printf '{"jsonrpc":"2.0","id":"%s","result":{"tools":[{"name":"remote_echo","description":"echoes","inputSchema":{"type":"object"}}]}}\n' "$id"`

	c := newStdioClient(t, script)
	tools, err := c.ListTools(context.Background())
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	if len(tools) != 1 || tools[0].Name != "remote_echo" {
		t.Errorf("unexpected tools: %+v", tools)
	}
}

func TestCallStdio_SkipsLogNoise(t *testing.T) {
	script := `read line
echo "starting up, not json"
id=$(printf '%s' "$line" | sed 's/.*"id":"\([^"]*\)".*/\1/')
printf '{"jsonrpc":"2.0","id":"%s","result":{"content":[{"type":"text","text":"ok"}]}}\n' "$id"`

	c := newStdioClient(t, script)
	out, err := c.CallTool(context.Background(), "x", nil, false)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if out != "ok" {
		t.Errorf("got %q", out)
	}
}

func TestCallStdio_Timeout(t *testing.T) {
	c := newStdioClient(t, "read line; sleep 30")
	c.timeout = 200 * time.Millisecond

	_, err := c.ListTools(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestCallStdio_IDMismatch(t *testing.T) {
	script := `read line
echo '{"jsonrpc":"2.0","id":"wrong-id","result":{}}'`

	c := newStdioClient(t, script)
	_, err := c.ListTools(context.Background())
	var perr *ProtocolError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
}

func TestCallStdio_ServerExits(t *testing.T) {
	c := newStdioClient(t, "read line; exit 0")
	if _, err := c.ListTools(context.Background()); err == nil {
		t.Fatal("expected error when server closes its output stream")
	}
}

func TestStreamStdio_PartialsAndFinal(t *testing.T) {
	script := `read line
echo '{"jsonrpc":"2.0","method":"tool.stream.partial","params":{"content":[{"type":"text","text":"ab"}]}}'
echo '{"jsonrpc":"2.0","method":"tool.stream.partial","params":{"content":[{"type":"text","text":"cd"}]}}'
echo '{"jsonrpc":"2.0","method":"tool.stream.final","params":{"content":[{"type":"text","text":"final"}]}}'`

	c := newStdioClient(t, script)
	out, err := c.CallTool(context.Background(), "streamer", nil, true)
	if err != nil {
		t.Fatalf("streaming call: %v", err)
	}
	if out != "final" {
		t.Errorf("got %q", out)
	}
}

func TestStreamStdio_FinalWithoutContentUsesPartials(t *testing.T) {
	script := `read line
echo '{"jsonrpc":"2.0","method":"tool.stream.partial","params":{"content":[{"type":"text","text":"ab"}]}}'
echo '{"jsonrpc":"2.0","method":"tool.stream.final","params":{"content":[]}}'`

	c := newStdioClient(t, script)
	out, err := c.CallTool(context.Background(), "streamer", nil, true)
	if err != nil {
		t.Fatalf("streaming call: %v", err)
	}
	if out != "ab" {
		t.Errorf("got %q", out)
	}
}

func TestClose_Idempotent(t *testing.T) {
	c := newStdioClient(t, "read line; sleep 60")
	c.Close()
	c.Close()
}

func TestConnect_NoTransportConfigured(t *testing.T) {
	c := NewClient("test", ServerConfig{}, nil)
	if err := c.Connect(context.Background()); err == nil {
		t.Fatal("expected error for server with neither command nor url")
	}
}
