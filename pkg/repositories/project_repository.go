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

// ProjectRepository defines data access for projects. Documents and memories
// are stored as JSONB lists on the project row; memory writes are whole-list
// replacements scoped to one project, which is all the extraction job's
// read-modify-write needs.
type ProjectRepository interface {
	// GetByID retrieves a project with its documents and memories. Returns
	// apperrors.ErrNotFound if it does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error)

	// UpdateMemories replaces the project's memory list.
	UpdateMemories(ctx context.Context, projectID uuid.UUID, memories []models.MemoryEntry) error
}

type projectRepository struct {
	db *database.DB
}

// NewProjectRepository creates a new project repository.
func NewProjectRepository(db *database.DB) ProjectRepository {
	return &projectRepository{db: db}
}

var _ ProjectRepository = (*projectRepository)(nil)

func (r *projectRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	query := `SELECT p.id, p.user_id, p.title, p.description, p.instructions,
	                 p.documents, p.memories, p.is_archived, p.created_at, p.updated_at,
	                 COALESCE(array_agg(c.id) FILTER (WHERE c.id IS NOT NULL), '{}')
	          FROM projects p
	          LEFT JOIN conversations c ON c.project_id = p.id
	          WHERE p.id = $1
	          GROUP BY p.id`

	var p models.Project
	var documents, memories []byte
	err := r.db.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.UserID, &p.Title, &p.Description, &p.Instructions,
		&documents, &memories, &p.IsArchived, &p.CreatedAt, &p.UpdatedAt,
		&p.ConversationIDs)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("query project: %w", err)
	}

	if err := json.Unmarshal(documents, &p.Documents); err != nil {
		return nil, fmt.Errorf("unmarshal documents: %w", err)
	}
	if err := json.Unmarshal(memories, &p.Memories); err != nil {
		return nil, fmt.Errorf("unmarshal memories: %w", err)
	}

	return &p, nil
}

func (r *projectRepository) UpdateMemories(ctx context.Context, projectID uuid.UUID, memories []models.MemoryEntry) error {
	if memories == nil {
		memories = []models.MemoryEntry{}
	}
	data, err := json.Marshal(memories)
	if err != nil {
		return fmt.Errorf("marshal memories: %w", err)
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE projects SET memories = $2, updated_at = now() WHERE id = $1`,
		projectID, data)
	if err != nil {
		return fmt.Errorf("update project memories: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
