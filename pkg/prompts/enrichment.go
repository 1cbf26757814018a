package prompts

import (
	"fmt"
	"strings"

	"github.com/threadline-ai/threadline-engine/pkg/models"
)

// MemoryExtractionSystem instructs the model to return exactly one memory
// action as JSON. The same instruction serves user-level and project-level
// memory; only the existing list differs.
const MemoryExtractionSystem = `You maintain a small list of durable facts learned about a user from their conversations.
Given the latest exchange and the existing memories, decide on exactly one action and respond with JSON only:
{"action": "none"} if nothing new and durable was revealed,
{"action": "add", "memory": "<new fact>"} for a genuinely new fact,
{"action": "update", "id": "<existing id>", "memory": "<revised fact>"} if an existing memory is now wrong or incomplete.
Record only stable, useful facts (preferences, circumstances, expertise). Never record transient conversation details.`

// SummarizationSystem is the fixed instruction for conversation summaries.
const SummarizationSystem = `Summarize the conversation as terse factual bullet points covering topics discussed, decisions made and open threads.
No meta-commentary, no introduction, bullets only.`

// BuildMemoryExtractionPrompt renders the extraction input: the existing
// memory list with ids, then the exchange to learn from.
func BuildMemoryExtractionPrompt(existing []models.MemoryEntry, userText, assistantText string) string {
	var b strings.Builder

	if len(existing) == 0 {
		b.WriteString("Existing memories: (none)\n")
	} else {
		b.WriteString("Existing memories:\n")
		for _, m := range existing {
			fmt.Fprintf(&b, "- [%s] %s\n", m.ID, m.Text)
		}
	}

	b.WriteString("\nLatest exchange:\n")
	fmt.Fprintf(&b, "User: %s\n", userText)
	fmt.Fprintf(&b, "Assistant: %s\n", assistantText)

	return b.String()
}

// BuildTranscript concatenates prior messages plus the just-completed
// exchange into one summarization input, capped at maxChars. Over-long
// transcripts lose their oldest characters: the most recent content is
// preserved and the cut is a plain length cut, not word-boundary aware.
func BuildTranscript(history []*models.Message, userText, assistantText string, maxChars int) string {
	var b strings.Builder

	for _, m := range history {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	fmt.Fprintf(&b, "%s: %s\n", models.RoleUser, userText)
	fmt.Fprintf(&b, "%s: %s\n", models.RoleAssistant, assistantText)

	transcript := b.String()
	if maxChars > 0 && len(transcript) > maxChars {
		transcript = transcript[len(transcript)-maxChars:]
	}
	return transcript
}
