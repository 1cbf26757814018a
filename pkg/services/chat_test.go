package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/threadline-ai/threadline-engine/pkg/apperrors"
	"github.com/threadline-ai/threadline-engine/pkg/llm"
	"github.com/threadline-ai/threadline-engine/pkg/models"
	"github.com/threadline-ai/threadline-engine/pkg/repositories"
)

type chatFixture struct {
	conversationRepo *mockConversationRepo
	projectRepo      *mockProjectRepo
	profileRepo      *mockProfileRepo
	client           *llm.MockCompletionClient
	service          ChatService
}

func newChatFixture() *chatFixture {
	f := &chatFixture{
		conversationRepo: &mockConversationRepo{},
		projectRepo:      &mockProjectRepo{},
		profileRepo:      &mockProfileRepo{},
		client:           llm.NewMockCompletionClient(),
	}
	extractor := NewMemoryExtractor(f.client, "enrich-model", zap.NewNop())
	summarizer := NewSummarizer(f.client, f.conversationRepo, "enrich-model", 12000, zap.NewNop())
	f.service = NewChatService(
		f.conversationRepo, f.projectRepo, f.profileRepo,
		f.client, extractor, summarizer,
		ChatOptions{
			DefaultModel:       "gpt-4o-mini",
			MaxHistoryMessages: 30,
			MaxContextTokens:   8000,
			EnrichmentTimeout:  5 * time.Second,
		},
		zap.NewNop())
	return f
}

// drain consumes events until the channel closes, returning them all.
func drain(eventChan chan models.ChatEvent) []models.ChatEvent {
	var events []models.ChatEvent
	for ev := range eventChan {
		events = append(events, ev)
	}
	return events
}

func TestSendMessage_EmptyInput(t *testing.T) {
	f := newChatFixture()
	eventChan := make(chan models.ChatEvent, 16)

	err := f.service.SendMessage(context.Background(), uuid.New(), "   \n\t ", nil, eventChan)
	assert.ErrorIs(t, err, apperrors.ErrEmptyMessage)
}

func TestSendMessage_AttachmentOnlyAllowed(t *testing.T) {
	f := newChatFixture()
	f.client.CompleteFunc = func(ctx context.Context, messages []llm.ChatMessage, model string) (string, error) {
		return `{"action": "none"}`, nil
	}
	eventChan := make(chan models.ChatEvent, 16)

	attachments := []models.Attachment{
		{ID: uuid.New(), Type: models.AttachmentCode, Name: "main.go", Content: "package main"},
	}
	err := f.service.SendMessage(context.Background(), uuid.New(), "", attachments, eventChan)
	assert.NoError(t, err)
}

func TestSendMessage_UnknownConversation(t *testing.T) {
	f := newChatFixture()
	f.conversationRepo.GetByIDFunc = func(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
		return nil, apperrors.ErrNotFound
	}
	eventChan := make(chan models.ChatEvent, 16)

	err := f.service.SendMessage(context.Background(), uuid.New(), "hello", nil, eventChan)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSendMessage_HappyPath(t *testing.T) {
	f := newChatFixture()
	conversationID := uuid.New()

	var persistedMu sync.Mutex
	var persisted []*models.Message
	f.conversationRepo.AppendMessageFunc = func(ctx context.Context, id uuid.UUID, msg *models.Message) error {
		persistedMu.Lock()
		defer persistedMu.Unlock()
		persisted = append(persisted, msg)
		return nil
	}

	summaryDone := make(chan string, 1)
	f.conversationRepo.UpdateSummaryFunc = func(ctx context.Context, id uuid.UUID, summary string, updatedAt time.Time) error {
		summaryDone <- summary
		return nil
	}
	f.client.StreamFunc = func(ctx context.Context, messages []llm.ChatMessage, model string, onChunk llm.ChunkFunc) (string, error) {
		onChunk("Hello", "Hello")
		onChunk(" there", "Hello there")
		return "Hello there", nil
	}
	f.client.CompleteFunc = func(ctx context.Context, messages []llm.ChatMessage, model string) (string, error) {
		if strings.Contains(messages[0].Content, "durable facts") {
			return `{"action": "none"}`, nil
		}
		return "- greeted the assistant", nil
	}

	eventChan := make(chan models.ChatEvent, 16)
	go func() {
		defer close(eventChan)
		err := f.service.SendMessage(context.Background(), conversationID, "hi", nil, eventChan)
		assert.NoError(t, err)
	}()

	events := drain(eventChan)
	require.Len(t, events, 3)
	assert.Equal(t, models.ChatEventDelta, events[0].Type)
	assert.Equal(t, "Hello", events[0].Content)
	assert.Equal(t, " there", events[1].Content)
	assert.Equal(t, models.ChatEventDone, events[2].Type)

	done, ok := events[2].Data.(*models.Message)
	require.True(t, ok)
	assert.Equal(t, "Hello there", done.Content)
	assert.Equal(t, models.RoleAssistant, done.Role)

	persistedMu.Lock()
	require.Len(t, persisted, 2)
	assert.Equal(t, models.RoleUser, persisted[0].Role)
	assert.Equal(t, "hi", persisted[0].Content)
	assert.Equal(t, models.RoleAssistant, persisted[1].Role)
	persistedMu.Unlock()

	select {
	case summary := <-summaryDone:
		assert.Equal(t, "- greeted the assistant", summary)
	case <-time.After(2 * time.Second):
		t.Fatal("summarization job never ran")
	}
}

func TestSendMessage_ModelFallback(t *testing.T) {
	f := newChatFixture()
	f.conversationRepo.GetByIDFunc = func(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
		return &models.Conversation{ID: id}, nil // no model set
	}
	var gotModel string
	f.client.StreamFunc = func(ctx context.Context, messages []llm.ChatMessage, model string, onChunk llm.ChunkFunc) (string, error) {
		gotModel = model
		return "ok", nil
	}
	f.client.CompleteFunc = func(ctx context.Context, messages []llm.ChatMessage, model string) (string, error) {
		return `{"action": "none"}`, nil
	}

	eventChan := make(chan models.ChatEvent, 16)
	err := f.service.SendMessage(context.Background(), uuid.New(), "hi", nil, eventChan)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", gotModel)
}

func TestSendMessage_SystemPromptCarriesContext(t *testing.T) {
	f := newChatFixture()
	userID := uuid.New()
	projectID := uuid.New()
	conversationID := uuid.New()

	f.conversationRepo.GetByIDFunc = func(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
		return &models.Conversation{ID: id, UserID: userID, ProjectID: &projectID, Model: "claude-sonnet-4"}, nil
	}
	f.conversationRepo.ListByProjectFunc = func(ctx context.Context, pid uuid.UUID) ([]*models.Conversation, error) {
		return []*models.Conversation{
			{ID: conversationID, Summary: "- must never appear"},
			{ID: uuid.New(), Title: "Sibling", Summary: "- sibling decisions"},
			{ID: uuid.New(), Title: "Unsummarized"},
		}, nil
	}
	f.profileRepo.GetProfileFunc = func(ctx context.Context, uid uuid.UUID) (*repositories.UserProfile, error) {
		return &repositories.UserProfile{
			UserID:      uid,
			Preferences: "short answers",
			Memories:    []models.MemoryEntry{models.NewAutoMemory("ships Go services")},
		}, nil
	}
	f.projectRepo.GetByIDFunc = func(ctx context.Context, id uuid.UUID) (*models.Project, error) {
		return &models.Project{
			ID:           id,
			Instructions: "be precise",
			Documents:    []models.Document{{Title: "Readme", Content: "contents"}},
		}, nil
	}

	var gotWindow []llm.ChatMessage
	f.client.StreamFunc = func(ctx context.Context, messages []llm.ChatMessage, model string, onChunk llm.ChunkFunc) (string, error) {
		gotWindow = messages
		return "ok", nil
	}
	f.client.CompleteFunc = func(ctx context.Context, messages []llm.ChatMessage, model string) (string, error) {
		return `{"action": "none"}`, nil
	}

	eventChan := make(chan models.ChatEvent, 16)
	err := f.service.SendMessage(context.Background(), conversationID, "hi", nil, eventChan)
	require.NoError(t, err)

	require.NotEmpty(t, gotWindow)
	system := gotWindow[0].Content
	assert.Contains(t, system, "short answers")
	assert.Contains(t, system, "ships Go services")
	assert.Contains(t, system, "be precise")
	assert.Contains(t, system, "--- Readme ---")
	assert.Contains(t, system, "- sibling decisions")
	assert.NotContains(t, system, "must never appear", "own summary must not be fed back")
}

func TestSendMessage_DanglingProjectDegrades(t *testing.T) {
	f := newChatFixture()
	projectID := uuid.New()
	f.conversationRepo.GetByIDFunc = func(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
		return &models.Conversation{ID: id, ProjectID: &projectID}, nil
	}
	f.projectRepo.GetByIDFunc = func(ctx context.Context, id uuid.UUID) (*models.Project, error) {
		return nil, apperrors.ErrNotFound
	}
	f.client.CompleteFunc = func(ctx context.Context, messages []llm.ChatMessage, model string) (string, error) {
		return `{"action": "none"}`, nil
	}

	eventChan := make(chan models.ChatEvent, 16)
	err := f.service.SendMessage(context.Background(), uuid.New(), "hi", nil, eventChan)
	assert.NoError(t, err)
}

func TestSendMessage_StreamFailureDiscardsPartial(t *testing.T) {
	f := newChatFixture()

	var persisted []*models.Message
	f.conversationRepo.AppendMessageFunc = func(ctx context.Context, id uuid.UUID, msg *models.Message) error {
		persisted = append(persisted, msg)
		return nil
	}
	f.client.StreamFunc = func(ctx context.Context, messages []llm.ChatMessage, model string, onChunk llm.ChunkFunc) (string, error) {
		onChunk("partial", "partial")
		return "", llm.NewError(llm.ErrorTypeServer, "upstream died", false, nil)
	}

	eventChan := make(chan models.ChatEvent, 16)
	err := f.service.SendMessage(context.Background(), uuid.New(), "hi", nil, eventChan)
	require.Error(t, err)

	// The user message is persisted, the partial assistant reply is not.
	require.Len(t, persisted, 1)
	assert.Equal(t, models.RoleUser, persisted[0].Role)
}

func TestSendMessage_CancellationRecognizable(t *testing.T) {
	f := newChatFixture()
	f.client.StreamFunc = func(ctx context.Context, messages []llm.ChatMessage, model string, onChunk llm.ChunkFunc) (string, error) {
		return "", llm.NewError(llm.ErrorTypeCancelled, "stopped", false, context.Canceled)
	}

	eventChan := make(chan models.ChatEvent, 16)
	err := f.service.SendMessage(context.Background(), uuid.New(), "hi", nil, eventChan)
	require.Error(t, err)
	assert.True(t, llm.IsCancelled(err))
}

func TestSendMessage_InlinesCodeAttachments(t *testing.T) {
	f := newChatFixture()

	var persisted []*models.Message
	f.conversationRepo.AppendMessageFunc = func(ctx context.Context, id uuid.UUID, msg *models.Message) error {
		persisted = append(persisted, msg)
		return nil
	}
	f.client.CompleteFunc = func(ctx context.Context, messages []llm.ChatMessage, model string) (string, error) {
		return `{"action": "none"}`, nil
	}

	attachments := []models.Attachment{
		{ID: uuid.New(), Type: models.AttachmentCode, Name: "main.go", Content: "package main"},
		{ID: uuid.New(), Type: models.AttachmentImage, Name: "diagram.png", Content: "binary", Preview: "thumb"},
	}

	eventChan := make(chan models.ChatEvent, 16)
	err := f.service.SendMessage(context.Background(), uuid.New(), "review this", attachments, eventChan)
	require.NoError(t, err)

	require.NotEmpty(t, persisted)
	userMsg := persisted[0]
	assert.Contains(t, userMsg.Content, "--- main.go ---\npackage main")

	// The image survives as a display record with content stripped.
	require.Len(t, userMsg.Attachments, 1)
	assert.Equal(t, "diagram.png", userMsg.Attachments[0].Name)
	assert.Empty(t, userMsg.Attachments[0].Content)
	assert.Equal(t, "thumb", userMsg.Attachments[0].Preview)
}

func TestSendMessage_EnrichmentFailureSwallowed(t *testing.T) {
	f := newChatFixture()

	enrichmentRan := make(chan struct{}, 16)
	f.client.CompleteFunc = func(ctx context.Context, messages []llm.ChatMessage, model string) (string, error) {
		enrichmentRan <- struct{}{}
		return "", llm.NewError(llm.ErrorTypeAuth, "enrichment model down", false, nil)
	}

	eventChan := make(chan models.ChatEvent, 16)
	err := f.service.SendMessage(context.Background(), uuid.New(), "hi", nil, eventChan)
	require.NoError(t, err, "enrichment failures must not fail the turn")

	select {
	case <-enrichmentRan:
	case <-time.After(2 * time.Second):
		t.Fatal("enrichment never ran")
	}
}
