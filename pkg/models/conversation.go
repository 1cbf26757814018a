package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation is a thread of messages owned by a single user.
// Summary is a derived, best-effort cache regenerated after each completed
// turn; its absence is valid. UpdatedAt advances on every message append and
// is the sort key for recency views.
type Conversation struct {
	ID               uuid.UUID  `json:"id"`
	UserID           uuid.UUID  `json:"user_id"`
	Title            string     `json:"title"`
	Model            string     `json:"model"`
	ProjectID        *uuid.UUID `json:"project_id,omitempty"`
	Summary          string     `json:"summary,omitempty"`
	SummaryUpdatedAt *time.Time `json:"summary_updated_at,omitempty"`
	IsArchived       bool       `json:"is_archived"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}
