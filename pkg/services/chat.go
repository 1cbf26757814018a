package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/threadline-ai/threadline-engine/pkg/apperrors"
	"github.com/threadline-ai/threadline-engine/pkg/llm"
	"github.com/threadline-ai/threadline-engine/pkg/models"
	"github.com/threadline-ai/threadline-engine/pkg/prompts"
	"github.com/threadline-ai/threadline-engine/pkg/repositories"
)

// ChatService runs one turn: validate input, assemble the context window,
// stream the reply, persist it, then launch enrichment without awaiting it.
type ChatService interface {
	// SendMessage executes a turn and streams events to eventChan. The
	// caller owns the channel and is responsible for closing it; this
	// service writes events but never closes it. Cancelling ctx stops the
	// stream; the returned error then satisfies llm.IsCancelled so callers
	// can suppress user-facing error handling.
	SendMessage(ctx context.Context, conversationID uuid.UUID, text string, attachments []models.Attachment, eventChan chan<- models.ChatEvent) error
}

// ChatOptions bounds the turn pipeline.
type ChatOptions struct {
	DefaultModel       string
	MaxHistoryMessages int
	MaxContextTokens   int
	EnrichmentTimeout  time.Duration
}

type chatService struct {
	conversationRepo repositories.ConversationRepository
	projectRepo      repositories.ProjectRepository
	profileRepo      repositories.ProfileRepository
	client           llm.CompletionClient
	extractor        *MemoryExtractor
	summarizer       *Summarizer
	opts             ChatOptions
	logger           *zap.Logger
}

// NewChatService creates the turn pipeline service.
func NewChatService(
	conversationRepo repositories.ConversationRepository,
	projectRepo repositories.ProjectRepository,
	profileRepo repositories.ProfileRepository,
	client llm.CompletionClient,
	extractor *MemoryExtractor,
	summarizer *Summarizer,
	opts ChatOptions,
	logger *zap.Logger,
) ChatService {
	if opts.EnrichmentTimeout == 0 {
		opts.EnrichmentTimeout = time.Minute
	}
	return &chatService{
		conversationRepo: conversationRepo,
		projectRepo:      projectRepo,
		profileRepo:      profileRepo,
		client:           client,
		extractor:        extractor,
		summarizer:       summarizer,
		opts:             opts,
		logger:           logger.Named("chat"),
	}
}

var _ ChatService = (*chatService)(nil)

func (s *chatService) SendMessage(ctx context.Context, conversationID uuid.UUID, text string, attachments []models.Attachment, eventChan chan<- models.ChatEvent) error {
	text = strings.TrimSpace(text)
	if text == "" && len(attachments) == 0 {
		return apperrors.ErrEmptyMessage
	}

	conversation, err := s.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("load conversation: %w", err)
	}

	profile, err := s.loadProfile(ctx, conversation.UserID)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}

	project, projectCtx, err := s.loadProjectContext(ctx, conversation)
	if err != nil {
		return fmt.Errorf("load project context: %w", err)
	}

	history, err := s.conversationRepo.GetMessages(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	content, displayAttachments := inlineAttachments(text, attachments)

	systemPrompt := prompts.ComposeSystemPrompt(profile.Memories, profile.Preferences, projectCtx)
	window := llm.BuildWindow(history, content, s.opts.MaxHistoryMessages, systemPrompt)
	window = llm.TrimToBudget(window, s.opts.MaxContextTokens)

	model := conversation.Model
	if model == "" {
		model = s.opts.DefaultModel
	}

	userMsg := models.NewUserMessage(content)
	userMsg.Attachments = displayAttachments
	if err := s.conversationRepo.AppendMessage(ctx, conversationID, userMsg); err != nil {
		return fmt.Errorf("persist user message: %w", err)
	}

	final, err := s.client.Stream(ctx, window, model, func(delta, _ string) {
		eventChan <- models.NewDeltaEvent(delta)
	})
	if err != nil {
		// Anything buffered so far is discarded; a partial stream is not a
		// partial success. Cancellation is not a failure and is left for
		// the caller to recognize.
		return err
	}

	assistantMsg := models.NewAssistantMessage(final, model)
	if err := s.conversationRepo.AppendMessage(ctx, conversationID, assistantMsg); err != nil {
		return fmt.Errorf("persist assistant message: %w", err)
	}

	eventChan <- models.NewDoneEvent(assistantMsg)

	// Enrichment is fire-and-forget: detached from the request context,
	// never awaited, failures logged and swallowed.
	s.launchEnrichment(conversation, project, profile, history, content, final)

	return nil
}

// loadProfile tolerates a missing profile row; a user with no stored
// preferences or memories still gets a turn.
func (s *chatService) loadProfile(ctx context.Context, userID uuid.UUID) (*repositories.UserProfile, error) {
	profile, err := s.profileRepo.GetProfile(ctx, userID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return &repositories.UserProfile{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// loadProjectContext assembles the project block inputs: the project itself
// plus summaries of its other conversations.
func (s *chatService) loadProjectContext(ctx context.Context, conversation *models.Conversation) (*models.Project, *prompts.ProjectContext, error) {
	if conversation.ProjectID == nil {
		return nil, nil, nil
	}

	project, err := s.projectRepo.GetByID(ctx, *conversation.ProjectID)
	if errors.Is(err, apperrors.ErrNotFound) {
		// Dangling project reference; degrade to a plain conversation.
		s.logger.Warn("Conversation references missing project",
			zap.String("conversation_id", conversation.ID.String()),
			zap.String("project_id", conversation.ProjectID.String()))
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}

	siblings, err := s.conversationRepo.ListByProject(ctx, project.ID)
	if err != nil {
		return nil, nil, err
	}

	var summaries []prompts.SiblingSummary
	for _, sib := range siblings {
		if sib.ID == conversation.ID || sib.Summary == "" {
			continue
		}
		summaries = append(summaries, prompts.SiblingSummary{
			Title:   sib.Title,
			Summary: sib.Summary,
		})
	}

	return project, &prompts.ProjectContext{
		Instructions:     project.Instructions,
		Documents:        project.Documents,
		Memories:         project.Memories,
		SiblingSummaries: summaries,
	}, nil
}

// launchEnrichment starts the background jobs for a completed turn: user
// memory extraction, project memory extraction when a project is attached,
// and conversation summarization. Each runs in its own goroutine on a
// detached context so the next user turn is never blocked. Errors are
// swallowed by design; the log is their only trace.
func (s *chatService) launchEnrichment(
	conversation *models.Conversation,
	project *models.Project,
	profile *repositories.UserProfile,
	history []*models.Message,
	userText, assistantText string,
) {
	userID := profile.UserID
	userMemories := profile.Memories

	go s.runJob("user-memory", func(ctx context.Context) error {
		return s.extractor.ExtractAndStore(ctx, userMemories, userText, assistantText,
			func(ctx context.Context, memories []models.MemoryEntry) error {
				return s.profileRepo.UpdateMemories(ctx, userID, memories)
			})
	})

	if project != nil {
		projectID := project.ID
		projectMemories := project.Memories
		go s.runJob("project-memory", func(ctx context.Context) error {
			return s.extractor.ExtractAndStore(ctx, projectMemories, userText, assistantText,
				func(ctx context.Context, memories []models.MemoryEntry) error {
					return s.projectRepo.UpdateMemories(ctx, projectID, memories)
				})
		})
	}

	conversationID := conversation.ID
	go s.runJob("summarize", func(ctx context.Context) error {
		return s.summarizer.SummarizeConversation(ctx, conversationID, history, userText, assistantText)
	})
}

func (s *chatService) runJob(name string, job func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.EnrichmentTimeout)
	defer cancel()

	if err := job(ctx); err != nil {
		s.logger.Warn("Enrichment job failed",
			zap.String("job", name),
			zap.Error(err))
	}
}

// inlineAttachments folds code and text attachments into the message
// content and reduces the rest to display-only records with content
// stripped. Attachments never persist as first-class entities.
func inlineAttachments(text string, attachments []models.Attachment) (string, []models.Attachment) {
	if len(attachments) == 0 {
		return text, nil
	}

	var b strings.Builder
	b.WriteString(text)

	var display []models.Attachment
	for _, att := range attachments {
		if att.Inlinable() {
			fmt.Fprintf(&b, "\n\n--- %s ---\n%s", att.Name, att.Content)
			continue
		}
		display = append(display, models.Attachment{
			ID:      att.ID,
			Type:    att.Type,
			Name:    att.Name,
			Preview: att.Preview,
		})
	}

	return b.String(), display
}
