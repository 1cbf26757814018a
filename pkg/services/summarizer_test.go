package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/threadline-ai/threadline-engine/pkg/llm"
	"github.com/threadline-ai/threadline-engine/pkg/models"
)

func TestSummarizeConversation(t *testing.T) {
	client := llm.NewMockCompletionClient()
	var gotTranscript string
	client.CompleteFunc = func(ctx context.Context, messages []llm.ChatMessage, model string) (string, error) {
		gotTranscript = messages[len(messages)-1].Content
		return "- discussed testing", nil
	}

	var storedSummary string
	var storedAt time.Time
	conversationID := uuid.New()
	repo := &mockConversationRepo{
		UpdateSummaryFunc: func(ctx context.Context, id uuid.UUID, summary string, updatedAt time.Time) error {
			require.Equal(t, conversationID, id)
			storedSummary = summary
			storedAt = updatedAt
			return nil
		},
	}

	s := NewSummarizer(client, repo, "gpt-4o-mini", 12000, zap.NewNop())
	history := []*models.Message{
		{Role: models.RoleUser, Content: "how do I test this?"},
		{Role: models.RoleAssistant, Content: "with a mock"},
	}
	err := s.SummarizeConversation(context.Background(), conversationID, history, "thanks", "anytime")
	require.NoError(t, err)

	assert.Equal(t, "- discussed testing", storedSummary)
	assert.False(t, storedAt.IsZero())
	assert.Contains(t, gotTranscript, "user: how do I test this?")
	assert.Contains(t, gotTranscript, "assistant: anytime")
}

func TestSummarizeConversation_CapsTranscript(t *testing.T) {
	client := llm.NewMockCompletionClient()
	var gotTranscript string
	client.CompleteFunc = func(ctx context.Context, messages []llm.ChatMessage, model string) (string, error) {
		gotTranscript = messages[len(messages)-1].Content
		return "- summary", nil
	}

	s := NewSummarizer(client, &mockConversationRepo{}, "m", 100, zap.NewNop())
	history := []*models.Message{
		{Role: models.RoleUser, Content: strings.Repeat("x", 500)},
	}
	err := s.SummarizeConversation(context.Background(), uuid.New(), history, "latest", "reply")
	require.NoError(t, err)

	assert.Len(t, gotTranscript, 100)
	assert.True(t, strings.HasSuffix(gotTranscript, "assistant: reply\n"))
}

func TestSummarizeConversation_ModelFailure(t *testing.T) {
	client := llm.NewMockCompletionClient()
	client.CompleteFunc = func(ctx context.Context, messages []llm.ChatMessage, model string) (string, error) {
		return "", llm.NewError(llm.ErrorTypeServer, "overloaded", false, nil)
	}

	repo := &mockConversationRepo{
		UpdateSummaryFunc: func(ctx context.Context, id uuid.UUID, summary string, updatedAt time.Time) error {
			t.Fatal("summary must not be persisted when the model call fails")
			return nil
		},
	}

	s := NewSummarizer(client, repo, "m", 12000, zap.NewNop())
	err := s.SummarizeConversation(context.Background(), uuid.New(), nil, "u", "a")
	assert.Error(t, err)
}
