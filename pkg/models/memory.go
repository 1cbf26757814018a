package models

import (
	"time"

	"github.com/google/uuid"
)

// MemorySource records how a memory entry came to exist.
type MemorySource string

const (
	MemorySourceAuto   MemorySource = "auto"
	MemorySourceManual MemorySource = "manual"
)

// MemoryEntry is one learned fact about a user or project. The list is
// append/update-in-place and never reordered; id stability is what lets the
// extraction job decide add vs update instead of duplicating.
type MemoryEntry struct {
	ID        uuid.UUID    `json:"id"`
	Text      string       `json:"text"`
	Source    MemorySource `json:"source"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt *time.Time   `json:"updated_at,omitempty"`
}

// NewAutoMemory creates an extraction-sourced memory entry.
func NewAutoMemory(text string) MemoryEntry {
	return MemoryEntry{
		ID:        uuid.New(),
		Text:      text,
		Source:    MemorySourceAuto,
		CreatedAt: time.Now().UTC(),
	}
}

// MemoryActionType enumerates the decisions a memory extraction call can
// return.
type MemoryActionType string

const (
	MemoryActionNone   MemoryActionType = "none"
	MemoryActionAdd    MemoryActionType = "add"
	MemoryActionUpdate MemoryActionType = "update"
)

// MemoryAction is the structured output of a memory extraction call.
// Memory is set for add and update; ID only for update.
type MemoryAction struct {
	Action MemoryActionType `json:"action"`
	ID     string           `json:"id,omitempty"`
	Memory string           `json:"memory,omitempty"`
}
