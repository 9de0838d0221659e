// Package agent runs the conversation loop between the user, the model and
// the tool registry.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lunardrift/lunardrift/internal/schema"
	"github.com/lunardrift/lunardrift/internal/session"
	"github.com/lunardrift/lunardrift/internal/tools"
)

// repeatThreshold is the number of identical (name, arguments) tool calls
// after which the loop stops dispatching and forces a final answer.
const repeatThreshold = 3

// Settings carries the per-loop model configuration.
type Settings struct {
	Model        string
	MaxToolCalls int
	MaxTokens    int
	Temperature  float64
}

// Loop drives one model conversation: send, inspect for a tool call,
// dispatch, repeat. It guards against runaway tool use with a call budget
// and a repeated-call detector, and it never lets an error escape to the
// caller as anything but text.
type Loop struct {
	provider schema.LLMProvider
	registry *tools.Registry
	sessions *session.Manager
	settings Settings
}

func New(provider schema.LLMProvider, registry *tools.Registry, sessions *session.Manager, settings Settings) *Loop {
	if settings.MaxToolCalls <= 0 {
		settings.MaxToolCalls = 10
	}
	if settings.Model == "" {
		settings.Model = provider.DefaultModel()
	}
	return &Loop{provider: provider, registry: registry, sessions: sessions, settings: settings}
}

// turnState is created fresh for every user message and discarded once a
// terminal response is produced.
type turnState struct {
	toolCalls int
	repeats   map[string]int
}

// Process handles one user message end to end and returns the reply text.
// It never returns an error; failures become an apology string.
func (l *Loop) Process(ctx context.Context, sessionKey, input string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return "Please enter a message to continue."
	}
	if reply, handled := l.handleCommand(ctx, input); handled {
		return reply
	}

	sess := l.sessions.GetOrCreate(sessionKey)

	conversation := schema.NewMessages()
	conversation.AddSystem(l.systemPrompt(ctx))
	conversation.Messages = append(conversation.Messages, sess.History(0)...)
	conversation.AddUser(input)

	reply := l.run(ctx, &conversation)

	sess.AddUser(input)
	sess.AddAssistant(reply)
	return reply
}

func (l *Loop) run(ctx context.Context, conversation *schema.Messages) string {
	decls := l.registry.Declarations(ctx)
	opts := schema.NewChatOptions(l.settings.Model, l.settings.MaxTokens, l.settings.Temperature)
	state := turnState{repeats: map[string]int{}}

	for {
		resp, err := l.provider.Chat(ctx, *conversation, decls, opts)
		if err != nil {
			return apology(err)
		}

		if !resp.HasToolCalls() {
			return textOrPlaceholder(resp)
		}
		// Only the first tool call is honored; the model is asked for one
		// instruction at a time.
		tc := resp.ToolCalls[0]

		state.toolCalls++
		if state.toolCalls >= l.settings.MaxToolCalls {
			slog.Warn("Maximum tool call limit reached, forcing final summary",
				"limit", l.settings.MaxToolCalls, "tool", tc.Name)
			return l.forceSummary(ctx, conversation, decls, opts, fmt.Sprintf(
				"The maximum number of tool calls (%d) has been reached. Please provide a final response to the user without calling any more tools.",
				l.settings.MaxToolCalls))
		}

		key := repeatKey(tc)
		state.repeats[key]++
		if state.repeats[key] >= repeatThreshold {
			slog.Warn("Detected repeated tool call, forcing final summary", "tool", tc.Name)
			return l.forceSummary(ctx, conversation, decls, opts, fmt.Sprintf(
				"The tool %s has been called multiple times with the same arguments and has completed successfully. Please provide a final response to the user without calling any more tools.",
				tc.Name))
		}

		slog.Info("Tool requested", "tool", tc.Name, "args", tc.Arguments)
		result := l.dispatch(ctx, tc)

		resultJSON, err := json.Marshal(result)
		if err != nil {
			resultJSON = []byte(fmt.Sprintf(`{"error":"failed to encode tool result: %v"}`, err))
		}
		conversation.AddAssistant(resp.Content, []schema.ToolCall{{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments}})
		conversation.AddToolResult(tc.ID, tc.Name, string(resultJSON))
	}
}

// dispatch executes a single tool call and always produces a well-formed
// result object: errors and panics are wrapped, never propagated, so the
// model receives a response it can act on.
func (l *Loop) dispatch(ctx context.Context, tc schema.ToolCallRequest) (result map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Tool panicked", "tool", tc.Name, "panic", r)
			result = map[string]any{"error": fmt.Sprintf("Error executing tool %s: %v", tc.Name, r)}
		}
	}()

	t := l.registry.Get(tc.Name)
	if t == nil {
		slog.Error("Unknown tool requested", "tool", tc.Name)
		return map[string]any{"error": fmt.Sprintf("Unknown or non-executable tool: %s", tc.Name)}
	}

	out, err := t.Execute(ctx, tc.Arguments)
	if err != nil {
		slog.Error("Tool execution failed", "tool", tc.Name, "error", err)
		return map[string]any{"error": fmt.Sprintf("Error executing tool %s: %v", tc.Name, err)}
	}

	switch v := out.(type) {
	case map[string]any:
		return v
	case nil:
		return map[string]any{"result": ""}
	default:
		slog.Warn("Tool returned a non-mapping result, wrapping", "tool", tc.Name)
		return map[string]any{"result": fmt.Sprint(v)}
	}
}

// forceSummary makes one final model call with an explicit instruction to
// stop calling tools, then returns whatever text comes back.
func (l *Loop) forceSummary(ctx context.Context, conversation *schema.Messages, decls []map[string]any, opts schema.ChatOptions, instruction string) string {
	conversation.AddUser(instruction)

	resp, err := l.provider.Chat(ctx, *conversation, decls, opts)
	if err != nil {
		return apology(err)
	}
	if text := textOf(resp); text != "" {
		return text
	}
	if resp.HasToolCalls() {
		return fmt.Sprintf("(Task ended after reaching tool call limit. Model wanted to call: %s)", resp.ToolCalls[0].Name)
	}
	return "(Task completed, but model provided no final summary after reaching tool call limit.)"
}

// repeatKey canonicalizes a tool call for the repetition detector. JSON
// object keys marshal in sorted order, so identical argument bundles map to
// identical keys regardless of how the model ordered them.
func repeatKey(tc schema.ToolCallRequest) string {
	args, err := json.Marshal(tc.Arguments)
	if err != nil {
		args = []byte(fmt.Sprint(tc.Arguments))
	}
	return tc.Name + ":" + string(args)
}

func textOf(resp schema.LLMResponse) string {
	if resp.Content == nil {
		return ""
	}
	return strings.TrimSpace(*resp.Content)
}

// textOrPlaceholder returns the response text, substituting a diagnostic
// placeholder when the model produced none.
func textOrPlaceholder(resp schema.LLMResponse) string {
	if text := textOf(resp); text != "" {
		return text
	}
	if resp.FinishReason == "stop" {
		return "(Model generated no text content before stopping)"
	}
	reason := resp.FinishReason
	if reason == "" {
		reason = "N/A"
	}
	return fmt.Sprintf("(No textual response. Finish reason: %s)", reason)
}

func apology(err error) string {
	slog.Error("Conversation loop failed", "error", err)
	return fmt.Sprintf("I'm sorry, but I encountered a critical error: %v", err)
}
