package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/threadline-ai/threadline-engine/pkg/models"
	"github.com/threadline-ai/threadline-engine/pkg/repositories"
)

// mockConversationRepo is a function-field mock of the conversation
// repository. Unset fields return zero values.
type mockConversationRepo struct {
	GetByIDFunc       func(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	ListByProjectFunc func(ctx context.Context, projectID uuid.UUID) ([]*models.Conversation, error)
	GetMessagesFunc   func(ctx context.Context, conversationID uuid.UUID) ([]*models.Message, error)
	AppendMessageFunc func(ctx context.Context, conversationID uuid.UUID, msg *models.Message) error
	UpdateSummaryFunc func(ctx context.Context, conversationID uuid.UUID, summary string, updatedAt time.Time) error
}

func (m *mockConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return &models.Conversation{ID: id}, nil
}

func (m *mockConversationRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.Conversation, error) {
	if m.ListByProjectFunc != nil {
		return m.ListByProjectFunc(ctx, projectID)
	}
	return nil, nil
}

func (m *mockConversationRepo) GetMessages(ctx context.Context, conversationID uuid.UUID) ([]*models.Message, error) {
	if m.GetMessagesFunc != nil {
		return m.GetMessagesFunc(ctx, conversationID)
	}
	return nil, nil
}

func (m *mockConversationRepo) AppendMessage(ctx context.Context, conversationID uuid.UUID, msg *models.Message) error {
	if m.AppendMessageFunc != nil {
		return m.AppendMessageFunc(ctx, conversationID, msg)
	}
	return nil
}

func (m *mockConversationRepo) UpdateSummary(ctx context.Context, conversationID uuid.UUID, summary string, updatedAt time.Time) error {
	if m.UpdateSummaryFunc != nil {
		return m.UpdateSummaryFunc(ctx, conversationID, summary, updatedAt)
	}
	return nil
}

var _ repositories.ConversationRepository = (*mockConversationRepo)(nil)

type mockProjectRepo struct {
	GetByIDFunc        func(ctx context.Context, id uuid.UUID) (*models.Project, error)
	UpdateMemoriesFunc func(ctx context.Context, projectID uuid.UUID, memories []models.MemoryEntry) error
}

func (m *mockProjectRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return &models.Project{ID: id}, nil
}

func (m *mockProjectRepo) UpdateMemories(ctx context.Context, projectID uuid.UUID, memories []models.MemoryEntry) error {
	if m.UpdateMemoriesFunc != nil {
		return m.UpdateMemoriesFunc(ctx, projectID, memories)
	}
	return nil
}

var _ repositories.ProjectRepository = (*mockProjectRepo)(nil)

type mockProfileRepo struct {
	GetProfileFunc     func(ctx context.Context, userID uuid.UUID) (*repositories.UserProfile, error)
	UpdateMemoriesFunc func(ctx context.Context, userID uuid.UUID, memories []models.MemoryEntry) error
}

func (m *mockProfileRepo) GetProfile(ctx context.Context, userID uuid.UUID) (*repositories.UserProfile, error) {
	if m.GetProfileFunc != nil {
		return m.GetProfileFunc(ctx, userID)
	}
	return &repositories.UserProfile{UserID: userID}, nil
}

func (m *mockProfileRepo) UpdateMemories(ctx context.Context, userID uuid.UUID, memories []models.MemoryEntry) error {
	if m.UpdateMemoriesFunc != nil {
		return m.UpdateMemoriesFunc(ctx, userID, memories)
	}
	return nil
}

var _ repositories.ProfileRepository = (*mockProfileRepo)(nil)
