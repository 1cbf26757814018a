package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/threadline-ai/threadline-engine/pkg/llm"
	"github.com/threadline-ai/threadline-engine/pkg/models"
	"github.com/threadline-ai/threadline-engine/pkg/prompts"
	"github.com/threadline-ai/threadline-engine/pkg/repositories"
	"github.com/threadline-ai/threadline-engine/pkg/retry"
)

// Summarizer regenerates a conversation's summary after each completed
// turn. Summaries feed back into sibling conversations' system prompts, so
// staleness is tolerable but absence of a fresh attempt is not.
type Summarizer struct {
	client           llm.CompletionClient
	conversationRepo repositories.ConversationRepository
	model            string
	maxChars         int
	retryCfg         *retry.Config
	logger           *zap.Logger
}

// NewSummarizer creates a conversation summarizer.
func NewSummarizer(
	client llm.CompletionClient,
	conversationRepo repositories.ConversationRepository,
	model string,
	maxChars int,
	logger *zap.Logger,
) *Summarizer {
	return &Summarizer{
		client:           client,
		conversationRepo: conversationRepo,
		model:            model,
		maxChars:         maxChars,
		retryCfg:         retry.DefaultConfig(),
		logger:           logger.Named("summarizer"),
	}
}

// SummarizeConversation builds a capped transcript of the prior history
// plus the just-completed exchange, asks the model for a bullet-point
// summary, and persists it with a timestamp.
func (s *Summarizer) SummarizeConversation(ctx context.Context, conversationID uuid.UUID, history []*models.Message, userText, assistantText string) error {
	transcript := prompts.BuildTranscript(history, userText, assistantText, s.maxChars)

	messages := []llm.ChatMessage{
		{Role: string(models.RoleSystem), Content: prompts.SummarizationSystem},
		{Role: string(models.RoleUser), Content: transcript},
	}

	var summary string
	err := retry.Do(ctx, s.retryCfg, func() error {
		var callErr error
		summary, callErr = s.client.Complete(ctx, messages, s.model)
		return callErr
	})
	if err != nil {
		return fmt.Errorf("summarization call: %w", err)
	}

	if err := s.conversationRepo.UpdateSummary(ctx, conversationID, summary, time.Now().UTC()); err != nil {
		return fmt.Errorf("persist summary: %w", err)
	}

	s.logger.Debug("Conversation summary updated",
		zap.String("conversation_id", conversationID.String()),
		zap.Int("summary_length", len(summary)))
	return nil
}
