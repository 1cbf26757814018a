// Package services implements the turn pipeline and its enrichment jobs.
package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/threadline-ai/threadline-engine/pkg/llm"
	"github.com/threadline-ai/threadline-engine/pkg/models"
	"github.com/threadline-ai/threadline-engine/pkg/prompts"
	"github.com/threadline-ai/threadline-engine/pkg/retry"
)

// MemoryPersistFunc stores a revised memory list. The same extractor serves
// user-level and project-level memory; only the existing list and this
// setter differ per call.
type MemoryPersistFunc func(ctx context.Context, memories []models.MemoryEntry) error

// MemoryExtractor derives durable memories from completed exchanges via a
// non-streaming structured-output model call.
type MemoryExtractor struct {
	client   llm.CompletionClient
	model    string
	retryCfg *retry.Config
	logger   *zap.Logger
}

// NewMemoryExtractor creates a memory extractor using the given model.
func NewMemoryExtractor(client llm.CompletionClient, model string, logger *zap.Logger) *MemoryExtractor {
	return &MemoryExtractor{
		client:   client,
		model:    model,
		retryCfg: retry.DefaultConfig(),
		logger:   logger.Named("memory-extraction"),
	}
}

// Extract asks the model for one memory action against the existing list.
func (e *MemoryExtractor) Extract(ctx context.Context, existing []models.MemoryEntry, userText, assistantText string) (*models.MemoryAction, error) {
	messages := []llm.ChatMessage{
		{Role: string(models.RoleSystem), Content: prompts.MemoryExtractionSystem},
		{Role: string(models.RoleUser), Content: prompts.BuildMemoryExtractionPrompt(existing, userText, assistantText)},
	}

	var response string
	err := retry.Do(ctx, e.retryCfg, func() error {
		var callErr error
		response, callErr = e.client.Complete(ctx, messages, e.model)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("memory extraction call: %w", err)
	}

	action, err := llm.ParseStructured[models.MemoryAction](response)
	if err != nil {
		return nil, fmt.Errorf("parse memory action: %w", err)
	}

	switch action.Action {
	case models.MemoryActionNone, models.MemoryActionAdd, models.MemoryActionUpdate:
		return &action, nil
	default:
		return nil, fmt.Errorf("unknown memory action %q", action.Action)
	}
}

// ApplyMemoryAction applies an extraction decision to a memory list without
// mutating the input. Add appends a fresh auto-sourced entry; update
// rewrites exactly the entry matching the action id, stamping UpdatedAt. An
// update naming an unknown id changes nothing rather than adding a
// duplicate. The returned bool reports whether anything changed.
func ApplyMemoryAction(existing []models.MemoryEntry, action *models.MemoryAction) ([]models.MemoryEntry, bool) {
	switch action.Action {
	case models.MemoryActionAdd:
		if action.Memory == "" {
			return existing, false
		}
		return append(append([]models.MemoryEntry(nil), existing...), models.NewAutoMemory(action.Memory)), true

	case models.MemoryActionUpdate:
		if action.Memory == "" || action.ID == "" {
			return existing, false
		}
		for i, m := range existing {
			if m.ID.String() == action.ID {
				updated := append([]models.MemoryEntry(nil), existing...)
				ts := time.Now().UTC()
				updated[i].Text = action.Memory
				updated[i].UpdatedAt = &ts
				return updated, true
			}
		}
		return existing, false

	default:
		return existing, false
	}
}

// ExtractAndStore runs one extraction and persists the outcome through the
// supplied setter. On a "none" decision or any failure nothing is persisted.
func (e *MemoryExtractor) ExtractAndStore(ctx context.Context, existing []models.MemoryEntry, userText, assistantText string, persist MemoryPersistFunc) error {
	action, err := e.Extract(ctx, existing, userText, assistantText)
	if err != nil {
		return err
	}

	updated, changed := ApplyMemoryAction(existing, action)
	if !changed {
		if action.Action == models.MemoryActionUpdate {
			e.logger.Debug("Memory update targeted unknown id, skipping",
				zap.String("id", action.ID))
		}
		return nil
	}

	if err := persist(ctx, updated); err != nil {
		return fmt.Errorf("persist memories: %w", err)
	}

	e.logger.Info("Memory list updated",
		zap.String("action", string(action.Action)),
		zap.Int("count", len(updated)))
	return nil
}
