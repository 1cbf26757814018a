package relay

import (
	"context"
	"fmt"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"

	"github.com/threadline-ai/threadline-engine/pkg/llm"
)

// defaultMaxTokens caps responses when no limit is configured; the Anthropic
// API requires an explicit value.
const defaultMaxTokens = 4096

// anthropicProvider forwards requests to the Anthropic Messages API.
// Reasoning effort has no equivalent there and is ignored.
type anthropicProvider struct {
	client    *anthropic.Client
	maxTokens int
	logger    *zap.Logger
}

func newAnthropicProvider(cfg *Config, logger *zap.Logger) *anthropicProvider {
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &anthropicProvider{
		client:    anthropic.NewClient(cfg.APIKey),
		maxTokens: maxTokens,
		logger:    logger.Named("anthropic"),
	}
}

func (p *anthropicProvider) Name() string { return "anthropic" }

func (p *anthropicProvider) StreamCompletion(ctx context.Context, messages []llm.ChatMessage, model string, _ string, emit func(delta string) error) error {
	req := p.buildRequest(messages, model)

	var emitErr error
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	_, err := p.client.CreateMessagesStream(streamCtx, anthropic.MessagesStreamRequest{
		MessagesRequest: req,
		OnContentBlockDelta: func(data anthropic.MessagesEventContentBlockDeltaData) {
			if emitErr != nil || data.Delta.Text == nil || *data.Delta.Text == "" {
				return
			}
			if err := emit(*data.Delta.Text); err != nil {
				// Downstream is gone; stop reading from upstream.
				emitErr = err
				cancel()
			}
		},
	})

	if emitErr != nil {
		return emitErr
	}
	if err != nil {
		p.logger.Error("Upstream stream error", zap.Error(err))
		return err
	}
	return nil
}

func (p *anthropicProvider) Complete(ctx context.Context, messages []llm.ChatMessage, model string, _ string) (string, error) {
	resp, err := p.client.CreateMessages(ctx, p.buildRequest(messages, model))
	if err != nil {
		return "", err
	}

	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			return *block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in response")
}

// buildRequest converts the normalized message list. The Messages API takes
// the system prompt as a dedicated field rather than a message.
func (p *anthropicProvider) buildRequest(messages []llm.ChatMessage, model string) anthropic.MessagesRequest {
	req := anthropic.MessagesRequest{
		Model:     anthropic.Model(model),
		MaxTokens: p.maxTokens,
	}

	for _, m := range messages {
		if m.Role == "system" {
			req.System = m.Content
			continue
		}

		role := anthropic.RoleUser
		if m.Role == "assistant" {
			role = anthropic.RoleAssistant
		}
		content := m.Content
		req.Messages = append(req.Messages, anthropic.Message{
			Role:    role,
			Content: []anthropic.MessageContent{{Type: "text", Text: &content}},
		})
	}

	return req
}
