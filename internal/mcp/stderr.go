package mcp

import (
	"bufio"
	"io"
	"log/slog"
	"strings"
)

// drainStderr continuously logs a stdio child's error stream so diagnostic
// output never stalls the pipe. Proxy children are known to dump a multi-line
// "Body Timeout Error" trace whenever their upstream connection drops; that
// trace is collapsed into a single notice, suppressing lines until the
// closing brace that ends the pretty-printed stack.
func drainStderr(server string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	suppressing := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.Contains(line, "Body Timeout Error") && !suppressing {
			slog.Warn("MCP proxy connection to remote server timed out, it may reconnect automatically", "server", server)
			suppressing = true
			continue
		}
		if suppressing {
			if line == "}" {
				suppressing = false
			}
			continue
		}

		slog.Debug("MCP server stderr", "server", server, "line", line)
	}
}
