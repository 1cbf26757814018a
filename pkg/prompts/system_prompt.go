// Package prompts builds the text sent to models: the layered system prompt
// and the fixed instructions used by the enrichment jobs.
package prompts

import (
	"fmt"
	"strings"

	"github.com/threadline-ai/threadline-engine/pkg/models"
)

// BasePersona is the opening sentence of every system prompt.
const BasePersona = "You are a helpful, knowledgeable assistant. Answer clearly and concisely."

// SiblingSummary is a summary of another conversation in the same project,
// fed back into prompts so context crosses conversation boundaries.
type SiblingSummary struct {
	Title   string
	Summary string
}

// ProjectContext is the project-derived portion of a system prompt.
type ProjectContext struct {
	Instructions     string
	Documents        []models.Document
	Memories         []models.MemoryEntry
	SiblingSummaries []SiblingSummary
}

// ComposeSystemPrompt layers the system message content in a fixed order:
// base persona, user preferences, user memories, then project context.
// Empty sections are omitted entirely; no headers without content. The
// function is pure: identical inputs yield identical output.
func ComposeSystemPrompt(memories []models.MemoryEntry, preferences string, project *ProjectContext) string {
	var b strings.Builder
	b.WriteString(BasePersona)

	if preferences != "" {
		b.WriteString("\n\nUser preferences:\n")
		b.WriteString(preferences)
	}

	if len(memories) > 0 {
		b.WriteString("\n\nWhat you remember about this user:\n")
		writeMemoryList(&b, memories)
	}

	if project != nil {
		writeProjectContext(&b, project)
	}

	return b.String()
}

// writeProjectContext appends the project block: instructions, documents,
// project memories, then sibling conversation summaries, in that order.
func writeProjectContext(b *strings.Builder, project *ProjectContext) {
	if project.Instructions != "" {
		b.WriteString("\n\nProject instructions:\n")
		b.WriteString(project.Instructions)
	}

	if len(project.Documents) > 0 {
		b.WriteString("\n\nProject documents:")
		for _, doc := range project.Documents {
			fmt.Fprintf(b, "\n\n--- %s ---\n%s", doc.Title, doc.Content)
		}
	}

	if len(project.Memories) > 0 {
		b.WriteString("\n\nWhat you remember about this project:\n")
		writeMemoryList(b, project.Memories)
	}

	if len(project.SiblingSummaries) > 0 {
		b.WriteString("\n\nSummaries of other conversations in this project:")
		for _, sib := range project.SiblingSummaries {
			fmt.Fprintf(b, "\n\n--- %s ---\n%s", sib.Title, sib.Summary)
		}
	}
}

func writeMemoryList(b *strings.Builder, memories []models.MemoryEntry) {
	for i, m := range memories {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- ")
		b.WriteString(m.Text)
	}
}
