// Package models contains domain types for threadline-engine.
package models

import (
	"time"

	"github.com/google/uuid"
)

// MessageRole identifies the author of a chat message.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is a single entry in a conversation transcript.
// Messages are immutable once persisted; ordering within a conversation
// is by CreatedAt, strictly ascending.
type Message struct {
	ID          uuid.UUID    `json:"id"`
	Role        MessageRole  `json:"role"`
	Content     string       `json:"content"`
	Model       string       `json:"model,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// NewUserMessage creates a user message with a fresh id.
func NewUserMessage(content string) *Message {
	return &Message{
		ID:        uuid.New(),
		Role:      RoleUser,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// NewAssistantMessage creates an assistant message with a fresh id.
func NewAssistantMessage(content, model string) *Message {
	return &Message{
		ID:        uuid.New(),
		Role:      RoleAssistant,
		Content:   content,
		Model:     model,
		CreatedAt: time.Now().UTC(),
	}
}
