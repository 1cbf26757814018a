package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/threadline-ai/threadline-engine/pkg/llm"
)

// openAIProvider forwards requests to an OpenAI-compatible endpoint.
type openAIProvider struct {
	client *openai.Client
	logger *zap.Logger
}

func newOpenAIProvider(cfg *Config, logger *zap.Logger) *openAIProvider {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}

	return &openAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		logger: logger.Named("openai"),
	}
}

func (p *openAIProvider) Name() string { return "openai" }

func (p *openAIProvider) StreamCompletion(ctx context.Context, messages []llm.ChatMessage, model string, reasoningEffort string, emit func(delta string) error) error {
	stream, err := p.client.CreateChatCompletionStream(ctx, p.buildRequest(messages, model, reasoningEffort, true))
	if err != nil {
		p.logger.Error("Failed to create upstream stream", zap.Error(err))
		return err
	}
	defer stream.Close()

	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			// A cancelled downstream client surfaces here as context.Canceled;
			// that is propagation working, not a failure.
			if errors.Is(err, context.Canceled) {
				return err
			}
			p.logger.Error("Upstream stream receive error", zap.Error(err))
			return err
		}

		if len(response.Choices) == 0 {
			continue
		}
		if delta := response.Choices[0].Delta.Content; delta != "" {
			if err := emit(delta); err != nil {
				return err
			}
		}
	}
}

func (p *openAIProvider) Complete(ctx context.Context, messages []llm.ChatMessage, model string, reasoningEffort string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.buildRequest(messages, model, reasoningEffort, false))
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

func (p *openAIProvider) buildRequest(messages []llm.ChatMessage, model string, reasoningEffort string, stream bool) openai.ChatCompletionRequest {
	converted := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		converted[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}

	return openai.ChatCompletionRequest{
		Model:           model,
		Messages:        converted,
		Stream:          stream,
		ReasoningEffort: reasoningEffort,
	}
}
