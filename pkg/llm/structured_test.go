package llm

import (
	"testing"
)

func TestExtractJSON_PlainObject(t *testing.T) {
	input := `{"action": "add", "memory": "prefers dark mode"}`
	result, err := ExtractJSON(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != input {
		t.Errorf("expected %q, got %q", input, result)
	}
}

func TestExtractJSON_WithThinkTags(t *testing.T) {
	input := `<think>
The user mentioned they work in Go, worth remembering.
</think>
{"action": "add", "memory": "works in Go"}`

	expected := `{"action": "add", "memory": "works in Go"}`
	result, err := ExtractJSON(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != expected {
		t.Errorf("expected %q, got %q", expected, result)
	}
}

func TestExtractJSON_MarkdownFence(t *testing.T) {
	input := "Here is the result:\n```json\n{\"action\": \"none\"}\n```\nDone."
	result, err := ExtractJSON(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != `{"action": "none"}` {
		t.Errorf("got %q", result)
	}
}

func TestExtractJSON_BracesInsideStrings(t *testing.T) {
	input := `{"memory": "likes {curly} braces and \"quotes\""}`
	result, err := ExtractJSON(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != input {
		t.Errorf("expected %q, got %q", input, result)
	}
}

func TestExtractJSON_SurroundingProse(t *testing.T) {
	input := `Sure! Based on the exchange, {"action": "none"} is my answer.`
	result, err := ExtractJSON(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != `{"action": "none"}` {
		t.Errorf("got %q", result)
	}
}

func TestExtractJSON_NoJSON(t *testing.T) {
	if _, err := ExtractJSON("no structured content here"); err == nil {
		t.Fatal("expected error for response without JSON")
	}
}

func TestExtractJSON_UnbalancedBraces(t *testing.T) {
	if _, err := ExtractJSON(`{"action": "add"`); err == nil {
		t.Fatal("expected error for truncated JSON")
	}
}

func TestParseStructured(t *testing.T) {
	type action struct {
		Action string `json:"action"`
		Memory string `json:"memory"`
	}

	got, err := ParseStructured[action](`<think>hmm</think>{"action": "add", "memory": "uses vim"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Action != "add" || got.Memory != "uses vim" {
		t.Errorf("unexpected result: %+v", got)
	}
}

func TestParseStructured_TypeMismatch(t *testing.T) {
	type action struct {
		Action string `json:"action"`
	}
	if _, err := ParseStructured[action](`{"action": 42}`); err == nil {
		t.Fatal("expected unmarshal error for mismatched types")
	}
}
