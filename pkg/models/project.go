package models

import (
	"time"

	"github.com/google/uuid"
)

// Project groups conversations with shared instructions, documents and
// memories. ConversationIDs is a weak back-reference maintained by the
// persistence layer; the engine only reads it.
type Project struct {
	ID              uuid.UUID     `json:"id"`
	UserID          uuid.UUID     `json:"user_id"`
	Title           string        `json:"title"`
	Description     string        `json:"description"`
	Instructions    string        `json:"instructions,omitempty"`
	Documents       []Document    `json:"documents"`
	Memories        []MemoryEntry `json:"memories"`
	ConversationIDs []uuid.UUID   `json:"conversation_ids"`
	IsArchived      bool          `json:"is_archived"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Document is a project-scoped text document. Identity is immutable,
// content is mutable.
type Document struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
