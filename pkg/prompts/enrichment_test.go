package prompts

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/threadline-ai/threadline-engine/pkg/models"
)

func TestBuildMemoryExtractionPrompt_NoExisting(t *testing.T) {
	got := BuildMemoryExtractionPrompt(nil, "I use emacs", "Noted!")

	if !strings.Contains(got, "Existing memories: (none)") {
		t.Errorf("expected explicit empty marker in:\n%s", got)
	}
	if !strings.Contains(got, "User: I use emacs") || !strings.Contains(got, "Assistant: Noted!") {
		t.Errorf("exchange missing from prompt:\n%s", got)
	}
}

func TestBuildMemoryExtractionPrompt_ListsIDs(t *testing.T) {
	id := uuid.New()
	existing := []models.MemoryEntry{{ID: id, Text: "prefers dark mode"}}

	got := BuildMemoryExtractionPrompt(existing, "u", "a")
	if !strings.Contains(got, "- ["+id.String()+"] prefers dark mode") {
		t.Errorf("memory id not rendered for the model to reference:\n%s", got)
	}
}

func TestBuildTranscript(t *testing.T) {
	history := []*models.Message{
		{Role: models.RoleUser, Content: "first question"},
		{Role: models.RoleAssistant, Content: "first answer"},
	}

	got := BuildTranscript(history, "second question", "second answer", 0)

	want := "user: first question\nassistant: first answer\nuser: second question\nassistant: second answer\n"
	if got != want {
		t.Errorf("expected:\n%q\ngot:\n%q", want, got)
	}
}

func TestBuildTranscript_CapKeepsMostRecent(t *testing.T) {
	history := []*models.Message{
		{Role: models.RoleUser, Content: strings.Repeat("old ", 100)},
	}

	got := BuildTranscript(history, "latest question", "latest answer", 40)

	if len(got) != 40 {
		t.Fatalf("expected exactly 40 chars, got %d", len(got))
	}
	if !strings.HasSuffix(got, "assistant: latest answer\n") {
		t.Errorf("cap should preserve the end of the transcript, got %q", got)
	}
}

func TestBuildTranscript_UnderCapUntouched(t *testing.T) {
	got := BuildTranscript(nil, "hi", "hello", 10000)
	if got != "user: hi\nassistant: hello\n" {
		t.Errorf("got %q", got)
	}
}
