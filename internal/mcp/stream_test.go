package mcp

import (
	"strings"
	"testing"
)

func sseFrame(event string) string {
	return "data: " + event + "\n\n"
}

func TestConsumeToolStream_PartialsThenFinal(t *testing.T) {
	body := sseFrame(`{"type":"tool.stream.partial","result":{"content":[{"type":"text","text":"Hel"}]}}`) +
		sseFrame(`{"type":"tool.stream.partial","result":{"content":[{"type":"text","text":"lo"}]}}`) +
		sseFrame(`{"type":"tool.stream.final","result":{"content":[{"type":"text","text":"Hello, world"}]}}`) +
		sseFrame(`[DONE]`)

	got, err := consumeToolStream(strings.NewReader(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The final event overrides everything accumulated.
	if got != "Hello, world" {
		t.Errorf("got %q, want %q", got, "Hello, world")
	}
}

func TestConsumeToolStream_FinalWithoutContentUsesPartials(t *testing.T) {
	body := sseFrame(`{"type":"tool.stream.partial","result":{"content":[{"type":"text","text":"Hel"}]}}`) +
		sseFrame(`{"type":"tool.stream.partial","result":{"content":[{"type":"text","text":"lo"}]}}`) +
		sseFrame(`{"type":"tool.stream.final","result":{"content":[]}}`)

	got, err := consumeToolStream(strings.NewReader(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Hello" {
		t.Errorf("got %q, want %q", got, "Hello")
	}
}

func TestConsumeToolStream_FinalJoinsFragments(t *testing.T) {
	body := sseFrame(`{"type":"tool.stream.final","result":{"content":[{"type":"text","text":"line one"},{"type":"text","text":"line two"}]}}`)

	got, err := consumeToolStream(strings.NewReader(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "line one\nline two" {
		t.Errorf("got %q", got)
	}
}

func TestConsumeToolStream_DoneWithoutFinal(t *testing.T) {
	body := sseFrame(`{"type":"tool.stream.partial","result":{"content":[{"type":"text","text":"partial only"}]}}`) +
		sseFrame(`[DONE]`)

	got, err := consumeToolStream(strings.NewReader(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "partial only" {
		t.Errorf("got %q", got)
	}
}

func TestConsumeToolStream_SkipsNoise(t *testing.T) {
	body := ": keepalive comment\n\n" +
		"event: message\n" +
		sseFrame(`not json at all`) +
		sseFrame(`{"type":"tool.stream.final","result":{"content":[{"type":"text","text":"ok"}]}}`)

	got, err := consumeToolStream(strings.NewReader(body))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" {
		t.Errorf("got %q", got)
	}
}
