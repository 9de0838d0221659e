package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
)

// streamHTTP runs a streaming tools/call over SSE. Each frame carries a
// tool.stream.partial or tool.stream.final event; the stream ends with the
// final event or a [DONE] sentinel.
func (c *Client) streamHTTP(ctx context.Context, req rpcRequest) (string, error) {
	resp, err := c.postJSON(ctx, req, "text/event-stream")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	return consumeToolStream(resp.Body)
}

// consumeToolStream parses SSE frames into the tool's final text. The final
// event's fragments are authoritative; accumulated partials are the fallback
// when the final frame carries none.
func consumeToolStream(body io.Reader) (string, error) {
	var partials strings.Builder

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(line[len("data:"):])
		if data == "" || data == "[DONE]" {
			if data == "[DONE]" {
				break
			}
			continue
		}

		var event struct {
			Type   string        `json:"type"`
			Result streamContent `json:"result"`
		}
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			continue
		}

		switch event.Type {
		case "tool.stream.partial":
			for _, part := range textOf(event.Result.Content) {
				partials.WriteString(part)
			}
		case "tool.stream.final":
			if final := textOf(event.Result.Content); len(final) > 0 {
				return strings.Join(final, "\n"), nil
			}
			return partials.String(), nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return partials.String(), nil
}
