// Package relay forwards chat completion requests to the upstream model
// provider and re-frames the provider's event stream into the normalized
// line-delimited format consumed by the client transport. It is stateless
// across requests: a framing translator and cancellation-propagation point,
// nothing more.
package relay

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/threadline-ai/threadline-engine/pkg/llm"
)

// Provider abstracts one upstream model vendor.
type Provider interface {
	// StreamCompletion streams a completion, invoking emit for each text
	// delta in arrival order. A non-nil error from emit aborts the upstream
	// read.
	StreamCompletion(ctx context.Context, messages []llm.ChatMessage, model string, reasoningEffort string, emit func(delta string) error) error

	// Complete performs a non-streaming completion.
	Complete(ctx context.Context, messages []llm.ChatMessage, model string, reasoningEffort string) (string, error)

	// Name identifies the provider in logs.
	Name() string
}

// Config holds upstream provider configuration.
type Config struct {
	Provider  string // "openai" or "anthropic"
	APIKey    string
	BaseURL   string // Optional override for OpenAI-compatible endpoints
	MaxTokens int    // Response cap forwarded to providers that require one
}

// NewProvider constructs the configured upstream provider. A missing API key
// is a fatal configuration error surfaced here rather than on first request.
func NewProvider(cfg *Config, logger *zap.Logger) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("upstream API key is not configured")
	}

	switch cfg.Provider {
	case "", "openai":
		return newOpenAIProvider(cfg, logger), nil
	case "anthropic":
		return newAnthropicProvider(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown upstream provider %q", cfg.Provider)
	}
}
