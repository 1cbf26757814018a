package llm

import "github.com/threadline-ai/threadline-engine/pkg/models"

// DefaultSystemPrompt is used when the composer produced no text at all.
const DefaultSystemPrompt = "You are a helpful assistant."

// ChatMessage is the role/content pair actually sent to a model. History
// metadata (ids, timestamps, attachments) is stripped before transport.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// BuildWindow assembles the ordered message list for one turn: a system
// message, at most the last maxMessages history entries in their original
// order, and the current user text.
func BuildWindow(history []*models.Message, currentUserText string, maxMessages int, systemPrompt string) []ChatMessage {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}

	window := make([]ChatMessage, 0, len(history)+2)
	window = append(window, ChatMessage{Role: string(models.RoleSystem), Content: systemPrompt})

	start := 0
	if maxMessages > 0 && len(history) > maxMessages {
		start = len(history) - maxMessages
	}
	for _, m := range history[start:] {
		window = append(window, ChatMessage{Role: string(m.Role), Content: m.Content})
	}

	window = append(window, ChatMessage{Role: string(models.RoleUser), Content: currentUserText})
	return window
}

// TrimToBudget drops middle history until the window fits maxTokens. The
// system message and the final user message are never dropped; they are the
// non-negotiable boundary of the window. The middle is walked from most
// recent to oldest, keeping each message only if it still fits the remaining
// budget. A message too large for the remaining budget is skipped entirely
// and older, smaller messages are still tried; this recency-biased
// best-effort policy is intentional and must not be replaced with
// token-exact packing.
func TrimToBudget(messages []ChatMessage, maxTokens int) []ChatMessage {
	if len(messages) <= 2 {
		return messages
	}

	system := messages[0]
	finalUser := messages[len(messages)-1]
	middle := messages[1 : len(messages)-1]

	remaining := maxTokens - EstimateTokens(system.Content) - EstimateTokens(finalUser.Content)

	var kept []ChatMessage
	for i := len(middle) - 1; i >= 0; i-- {
		cost := EstimateTokens(middle[i].Content)
		if cost > remaining {
			continue
		}
		remaining -= cost
		kept = append([]ChatMessage{middle[i]}, kept...)
	}

	result := make([]ChatMessage, 0, len(kept)+2)
	result = append(result, system)
	result = append(result, kept...)
	result = append(result, finalUser)
	return result
}
