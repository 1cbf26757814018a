// Package repositories provides data access for threadline-engine.
package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/threadline-ai/threadline-engine/pkg/apperrors"
	"github.com/threadline-ai/threadline-engine/pkg/database"
	"github.com/threadline-ai/threadline-engine/pkg/models"
)

// ConversationRepository defines data access for conversations and their
// messages.
type ConversationRepository interface {
	// GetByID retrieves a conversation. Returns apperrors.ErrNotFound if it
	// does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error)

	// ListByProject retrieves all conversations belonging to a project,
	// most recently updated first.
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Conversation, error)

	// GetMessages retrieves a conversation's messages in creation order.
	GetMessages(ctx context.Context, conversationID uuid.UUID) ([]*models.Message, error)

	// AppendMessage persists a message and advances the conversation's
	// updated_at in the same transaction so recency ordering never regresses.
	AppendMessage(ctx context.Context, conversationID uuid.UUID, msg *models.Message) error

	// UpdateSummary stores a regenerated conversation summary and its
	// timestamp.
	UpdateSummary(ctx context.Context, conversationID uuid.UUID, summary string, updatedAt time.Time) error
}

type conversationRepository struct {
	db *database.DB
}

// NewConversationRepository creates a new conversation repository.
func NewConversationRepository(db *database.DB) ConversationRepository {
	return &conversationRepository{db: db}
}

var _ ConversationRepository = (*conversationRepository)(nil)

func (r *conversationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	query := `SELECT id, user_id, project_id, title, model, summary, summary_updated_at,
	                 is_archived, created_at, updated_at
	          FROM conversations WHERE id = $1`

	var c models.Conversation
	err := r.db.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.UserID, &c.ProjectID, &c.Title, &c.Model, &c.Summary,
		&c.SummaryUpdatedAt, &c.IsArchived, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("query conversation: %w", err)
	}

	return &c, nil
}

func (r *conversationRepository) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Conversation, error) {
	query := `SELECT id, user_id, project_id, title, model, summary, summary_updated_at,
	                 is_archived, created_at, updated_at
	          FROM conversations WHERE project_id = $1 ORDER BY updated_at DESC`

	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("query project conversations: %w", err)
	}
	defer rows.Close()

	var conversations []*models.Conversation
	for rows.Next() {
		var c models.Conversation
		if err := rows.Scan(&c.ID, &c.UserID, &c.ProjectID, &c.Title, &c.Model, &c.Summary,
			&c.SummaryUpdatedAt, &c.IsArchived, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		conversations = append(conversations, &c)
	}

	return conversations, rows.Err()
}

func (r *conversationRepository) GetMessages(ctx context.Context, conversationID uuid.UUID) ([]*models.Message, error) {
	query := `SELECT id, role, content, model, attachments, created_at
	          FROM messages WHERE conversation_id = $1 ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		var m models.Message
		var attachments []byte
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &m.Model, &attachments, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if err := json.Unmarshal(attachments, &m.Attachments); err != nil {
			return nil, fmt.Errorf("unmarshal attachments: %w", err)
		}
		messages = append(messages, &m)
	}

	return messages, rows.Err()
}

func (r *conversationRepository) AppendMessage(ctx context.Context, conversationID uuid.UUID, msg *models.Message) error {
	attachments := []byte("[]")
	if len(msg.Attachments) > 0 {
		var err error
		attachments, err = json.Marshal(msg.Attachments)
		if err != nil {
			return fmt.Errorf("marshal attachments: %w", err)
		}
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin append message: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, model, attachments, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		msg.ID, conversationID, msg.Role, msg.Content, msg.Model, attachments, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	// GREATEST keeps updated_at monotonic even if the message carries an
	// older timestamp than a concurrent append.
	tag, err := tx.Exec(ctx,
		`UPDATE conversations SET updated_at = GREATEST(updated_at, $2) WHERE id = $1`,
		conversationID, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return tx.Commit(ctx)
}

func (r *conversationRepository) UpdateSummary(ctx context.Context, conversationID uuid.UUID, summary string, updatedAt time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE conversations SET summary = $2, summary_updated_at = $3 WHERE id = $1`,
		conversationID, summary, updatedAt)
	if err != nil {
		return fmt.Errorf("update summary: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
