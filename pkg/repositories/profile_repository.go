package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/threadline-ai/threadline-engine/pkg/apperrors"
	"github.com/threadline-ai/threadline-engine/pkg/database"
	"github.com/threadline-ai/threadline-engine/pkg/models"
)

// UserProfile is the per-user state fed into system prompt composition.
type UserProfile struct {
	UserID      uuid.UUID            `json:"user_id"`
	Preferences string               `json:"preferences"`
	Memories    []models.MemoryEntry `json:"memories"`
}

// ProfileRepository defines data access for user profiles.
type ProfileRepository interface {
	// GetProfile retrieves a user's preferences and memories. Returns
	// apperrors.ErrNotFound for unknown users.
	GetProfile(ctx context.Context, userID uuid.UUID) (*UserProfile, error)

	// UpdateMemories replaces the user's memory list.
	UpdateMemories(ctx context.Context, userID uuid.UUID, memories []models.MemoryEntry) error
}

type profileRepository struct {
	db *database.DB
}

// NewProfileRepository creates a new profile repository.
func NewProfileRepository(db *database.DB) ProfileRepository {
	return &profileRepository{db: db}
}

var _ ProfileRepository = (*profileRepository)(nil)

func (r *profileRepository) GetProfile(ctx context.Context, userID uuid.UUID) (*UserProfile, error) {
	var profile UserProfile
	var memories []byte
	err := r.db.QueryRow(ctx,
		`SELECT id, preferences, memories FROM users WHERE id = $1`, userID).Scan(
		&profile.UserID, &profile.Preferences, &memories)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("query user profile: %w", err)
	}

	if err := json.Unmarshal(memories, &profile.Memories); err != nil {
		return nil, fmt.Errorf("unmarshal memories: %w", err)
	}

	return &profile, nil
}

func (r *profileRepository) UpdateMemories(ctx context.Context, userID uuid.UUID, memories []models.MemoryEntry) error {
	if memories == nil {
		memories = []models.MemoryEntry{}
	}
	data, err := json.Marshal(memories)
	if err != nil {
		return fmt.Errorf("marshal memories: %w", err)
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE users SET memories = $2, updated_at = now() WHERE id = $1`,
		userID, data)
	if err != nil {
		return fmt.Errorf("update user memories: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
