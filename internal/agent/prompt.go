package agent

import (
	"context"
	"fmt"
	"strings"
)

// systemPrompt builds the system instruction for a turn. Tool descriptions
// are enumerated so the model knows what it can call; listing them here also
// triggers remote discovery before the first request goes out.
func (l *Loop) systemPrompt(ctx context.Context) string {
	var b strings.Builder
	b.WriteString("You are a helpful assistant with access to tools. ")
	b.WriteString("Use a tool when it is the best way to answer; otherwise answer directly. ")
	b.WriteString("Call at most one tool at a time and wait for its result before deciding the next step. ")
	b.WriteString("Do not repeat a tool call whose result you already have.\n\n")
	b.WriteString("Available tools:\n")

	all := l.registry.All(ctx)
	for _, name := range l.registry.Names(ctx) {
		fmt.Fprintf(&b, "- %s: %s\n", name, all[name].Description())
	}
	b.WriteString("\nWhen you have everything you need, reply to the user in plain text.")
	return b.String()
}
