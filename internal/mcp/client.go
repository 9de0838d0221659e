// Package mcp implements the client side of the MCP tool protocol: JSON-RPC
// over a child process's standard streams or over HTTP, plus the OAuth 2.1
// PKCE flow used to authenticate against remote servers.
package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
)

const (
	requestTimeout = 60 * time.Second
	streamTimeout  = 300 * time.Second
	killGrace      = 5 * time.Second
)

// Client manages JSON-RPC communication with a single MCP server.
// Stdio requests are serialized behind mu because the pipe has no
// multiplexing; HTTP requests are independent.
type Client struct {
	name       string
	cfg        ServerConfig
	httpClient *http.Client
	auth       *Authenticator // nil when the server has no OAuth config
	timeout    time.Duration

	// Stdio fields (non-nil when command-based)
	cmd   *exec.Cmd
	stdin io.WriteCloser
	lines chan string

	mu        sync.Mutex // serializes stdio request/response exchange
	tokenMu   sync.Mutex
	token     string
	closeOnce sync.Once
}

// NewClient creates a client for one configured server. auth may be nil.
func NewClient(name string, cfg ServerConfig, auth *Authenticator) *Client {
	return &Client{
		name:       name,
		cfg:        cfg,
		auth:       auth,
		timeout: requestTimeout,
		// Per-request deadlines come from the context; a client-level
		// timeout would cut streaming responses short.
		httpClient: &http.Client{},
	}
}

// Name returns the configured server name.
func (c *Client) Name() string { return c.name }

// Connect prepares the transport. Stdio servers need the token at spawn time
// (it rides in the child's environment), so authentication is eager there;
// HTTP servers pick up a cached token and run the flow on first 401.
func (c *Client) Connect(ctx context.Context) error {
	if c.cfg.Command != "" {
		if c.auth != nil {
			token, err := c.auth.EnsureToken(ctx)
			if err != nil {
				return fmt.Errorf("authenticate %q: %w", c.name, err)
			}
			c.setToken(token)
		}
		return c.startStdio()
	}
	if c.cfg.URL != "" {
		if c.auth != nil {
			c.setToken(c.auth.CachedToken())
		}
		return nil
	}
	return fmt.Errorf("MCP server %q: no command or url configured", c.name)
}

// ListTools returns the tools exposed by this MCP server.
func (c *Client) ListTools(ctx context.Context) ([]ToolInfo, error) {
	result, err := c.call(ctx, "tools/list", map[string]any{})
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Tools []ToolInfo `json:"tools"`
	}
	if err := json.Unmarshal(result, &parsed); err != nil {
		return nil, &ProtocolError{Server: c.name, Reason: "malformed tools/list result: " + err.Error()}
	}
	return parsed.Tools, nil
}

// CallTool invokes a named tool. Streaming-capable tools receive partial
// events concatenated under the final event's authoritative text.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any, stream bool) (string, error) {
	if args == nil {
		args = map[string]any{}
	}
	params := map[string]any{
		"name":      name,
		"arguments": args,
		"stream":    stream,
	}
	if stream {
		return c.callStreaming(ctx, params)
	}

	result, err := c.call(ctx, "tools/call", params)
	if err != nil {
		return "", err
	}
	var parsed struct {
		IsError bool           `json:"isError"`
		Content []contentBlock `json:"content"`
	}
	if err := json.Unmarshal(result, &parsed); err != nil {
		return string(result), nil
	}
	if parsed.IsError {
		return "", fmt.Errorf("tool %q on server %q reported an execution error", name, c.name)
	}
	out := strings.Join(textOf(parsed.Content), "\n")
	if out == "" {
		out = "(no output)"
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// JSON-RPC dispatch
// ---------------------------------------------------------------------------

func (c *Client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      uuid.NewString(),
		Method:  method,
		Params:  params,
	}
	if c.cfg.Command != "" {
		return c.callStdio(ctx, req)
	}
	return c.callHTTP(ctx, req)
}

func (c *Client) callStreaming(ctx context.Context, params any) (string, error) {
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      uuid.NewString(),
		Method:  "tools/call",
		Params:  params,
	}
	if c.cfg.Command != "" {
		return c.streamStdio(ctx, req)
	}
	return c.streamHTTP(ctx, req)
}

// ---------------------------------------------------------------------------
// Stdio transport
// ---------------------------------------------------------------------------

func (c *Client) startStdio() error {
	cmd := exec.Command(c.cfg.Command, c.cfg.Args...)
	cmd.Env = os.Environ()
	for k, v := range c.cfg.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	if token := c.getToken(); token != "" {
		cmd.Env = append(cmd.Env, "MCP_ACCESS_TOKEN="+token)
	}
	// Own process group so teardown reclaims grandchildren too.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start MCP server %q: %w", c.name, err)
	}
	c.cmd = cmd
	c.stdin = stdin
	c.lines = make(chan string, 64)

	go c.pumpStdout(stdout)
	go drainStderr(c.name, stderr)

	slog.Info("MCP server started", "server", c.name, "pid", cmd.Process.Pid)
	return nil
}

// pumpStdout reads stdout lines into c.lines so request handling can apply a
// timeout without abandoning a blocked read.
func (c *Client) pumpStdout(r io.Reader) {
	defer close(c.lines)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			c.lines <- line
		}
	}
}

func (c *Client) writeRequest(req rpcRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	if c.stdin == nil {
		return fmt.Errorf("MCP server %q: stdin not available", c.name)
	}
	if _, err := fmt.Fprintf(c.stdin, "%s\n", data); err != nil {
		return fmt.Errorf("write to MCP stdin: %w", err)
	}
	return nil
}

// nextMessage waits for the next parseable stdout line within the deadline.
// Non-JSON lines (server log noise) are skipped.
func (c *Client) nextMessage(ctx context.Context, deadline <-chan time.Time) (*rpcMessage, error) {
	for {
		select {
		case line, ok := <-c.lines:
			if !ok {
				return nil, fmt.Errorf("MCP server %q closed its output stream", c.name)
			}
			var msg rpcMessage
			if err := json.Unmarshal([]byte(line), &msg); err != nil {
				continue
			}
			return &msg, nil
		case <-deadline:
			return nil, fmt.Errorf("%w (server %q)", ErrTimeout, c.name)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (c *Client) callStdio(ctx context.Context, req rpcRequest) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.writeRequest(req); err != nil {
		return nil, err
	}

	deadline := time.After(c.timeout)
	for {
		msg, err := c.nextMessage(ctx, deadline)
		if err != nil {
			return nil, err
		}
		if msg.isNotification() {
			continue
		}
		if !msg.matchesID(req.ID) {
			return nil, &ProtocolError{Server: c.name, Reason: fmt.Sprintf("response id %v does not match request id %s", msg.ID, req.ID)}
		}
		if msg.Error != nil {
			return nil, fmt.Errorf("MCP error from %q: %s", c.name, msg.Error.Message)
		}
		return msg.Result, nil
	}
}

func (c *Client) streamStdio(ctx context.Context, req rpcRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.writeRequest(req); err != nil {
		return "", err
	}

	var partials strings.Builder
	deadline := time.After(streamTimeout)
	for {
		msg, err := c.nextMessage(ctx, deadline)
		if err != nil {
			return "", err
		}

		switch {
		case msg.isNotification():
			var sc streamContent
			if err := json.Unmarshal(msg.Params, &sc); err != nil {
				continue
			}
			switch msg.Method {
			case "tool.stream.partial":
				for _, part := range textOf(sc.Content) {
					partials.WriteString(part)
				}
			case "tool.stream.final":
				if final := textOf(sc.Content); len(final) > 0 {
					return strings.Join(final, "\n"), nil
				}
				return partials.String(), nil
			}
		case msg.matchesID(req.ID):
			if msg.Error != nil {
				return "", fmt.Errorf("MCP error from %q: %s", c.name, msg.Error.Message)
			}
			// Server answered without streaming; treat the result as final.
			var sc streamContent
			if err := json.Unmarshal(msg.Result, &sc); err == nil {
				if final := textOf(sc.Content); len(final) > 0 {
					return strings.Join(final, "\n"), nil
				}
			}
			return partials.String(), nil
		default:
			return "", &ProtocolError{Server: c.name, Reason: fmt.Sprintf("stream response id %v does not match request id %s", msg.ID, req.ID)}
		}
	}
}

// ---------------------------------------------------------------------------
// HTTP transport
// ---------------------------------------------------------------------------

func (c *Client) callHTTP(ctx context.Context, req rpcRequest) (json.RawMessage, error) {
	resp, err := c.postJSON(ctx, req, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var msg rpcMessage
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return nil, &ProtocolError{Server: c.name, Reason: "malformed response body: " + err.Error()}
	}
	if !msg.matchesID(req.ID) {
		return nil, &ProtocolError{Server: c.name, Reason: fmt.Sprintf("response id %v does not match request id %s", msg.ID, req.ID)}
	}
	if msg.Error != nil {
		return nil, fmt.Errorf("MCP error from %q: %s", c.name, msg.Error.Message)
	}
	return msg.Result, nil
}

// postJSON sends the JSON-RPC envelope with the bearer token. A 401 clears
// the cached token, re-runs the auth flow once, and retries exactly once.
func (c *Client) postJSON(ctx context.Context, req rpcRequest, accept string) (*http.Response, error) {
	resp, err := c.postOnce(ctx, req, accept)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized && c.auth != nil {
		resp.Body.Close()
		slog.Info("MCP server rejected token, re-authenticating", "server", c.name)
		token, err := c.auth.Reauthenticate(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: re-authentication failed: %v", ErrUnauthenticated, err)
		}
		c.setToken(token)
		resp, err = c.postOnce(ctx, req, accept)
		if err != nil {
			return nil, err
		}
	}
	if resp.StatusCode == http.StatusUnauthorized {
		resp.Body.Close()
		return nil, ErrUnauthenticated
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		resp.Body.Close()
		return nil, fmt.Errorf("MCP server %q returned HTTP %d: %s", c.name, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return resp, nil
}

func (c *Client) postOnce(ctx context.Context, req rpcRequest, accept string) (*http.Response, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	timeout := c.timeout
	if accept == "text/event-stream" {
		timeout = streamTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(data))
	if err != nil {
		cancel()
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", accept)
	if token := c.getToken(); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range c.cfg.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		cancel()
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return nil, fmt.Errorf("%w (server %q)", ErrTimeout, c.name)
		}
		return nil, fmt.Errorf("MCP request to %q: %w", c.name, err)
	}
	resp.Body = &cancelReadCloser{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// cancelReadCloser ties a request context's cancel func to body close.
type cancelReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Close() error {
	c.cancel()
	return c.ReadCloser.Close()
}

func (c *Client) getToken() string {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	return c.token
}

func (c *Client) setToken(token string) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	c.token = token
}

// ---------------------------------------------------------------------------
// Teardown
// ---------------------------------------------------------------------------

// Close tears down the subprocess, if any. The whole process group is
// signalled so children spawned by the proxy are reclaimed as well; SIGKILL
// follows if the group ignores SIGTERM past the grace period.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		if c.cmd == nil || c.cmd.Process == nil {
			return
		}
		pid := c.cmd.Process.Pid
		slog.Info("Shutting down MCP server", "server", c.name, "pid", pid)

		if c.stdin != nil {
			c.stdin.Close()
		}
		_ = syscall.Kill(-pid, syscall.SIGTERM)

		done := make(chan struct{})
		go func() {
			_, _ = c.cmd.Process.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(killGrace):
			slog.Warn("MCP server did not exit, killing process group", "server", c.name)
			_ = syscall.Kill(-pid, syscall.SIGKILL)
			<-done
		}
	})
}
