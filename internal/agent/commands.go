package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// handleCommand answers slash commands from tool metadata directly, without
// spending a model turn. Returns (reply, true) when input was a command.
func (l *Loop) handleCommand(ctx context.Context, input string) (string, bool) {
	lower := strings.ToLower(input)

	switch {
	case lower == "/tool list" || lower == "/tools":
		return l.toolList(ctx), true
	case lower == "/help" || strings.HasPrefix(lower, "/help "):
		fields := strings.Fields(input)
		if len(fields) != 2 {
			return "Usage: /help <tool_name>\nExample: /help get_weather\n\nUse /tool list to see all available tools.", true
		}
		return l.toolHelp(ctx, fields[1]), true
	}
	return "", false
}

func (l *Loop) toolList(ctx context.Context) string {
	all := l.registry.All(ctx)
	names := l.registry.Names(ctx)
	if len(names) == 0 {
		return "No tools are currently available."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Available tools (%d):\n", len(names))
	for _, name := range names {
		fmt.Fprintf(&b, "  %s - %s\n", name, all[name].Description())
	}
	b.WriteString("\nUse /help <tool_name> for a tool's parameters.")
	return b.String()
}

func (l *Loop) toolHelp(ctx context.Context, name string) string {
	t := l.registry.Get(name)
	if t == nil {
		// Remote tools only exist after discovery; All triggers it.
		t = l.registry.All(ctx)[name]
	}
	if t == nil {
		return fmt.Sprintf("Sorry, I couldn't find a tool named %q.\n\nAvailable tools: %s",
			name, strings.Join(l.registry.Names(ctx), ", "))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Tool: %s\n\n%s\n", t.Name(), t.Description())

	var buf bytes.Buffer
	if err := json.Indent(&buf, t.Parameters(), "", "  "); err == nil {
		fmt.Fprintf(&b, "\nParameters:\n%s\n", buf.String())
	}
	return b.String()
}
