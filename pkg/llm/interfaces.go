package llm

import "context"

// CompletionClient defines the transport operations the turn pipeline and
// enrichment jobs depend on. Use this interface for dependency injection to
// enable mocking in tests.
type CompletionClient interface {
	// Stream sends messages and streams deltas to onChunk in receipt order,
	// returning the full accumulated text.
	Stream(ctx context.Context, messages []ChatMessage, model string, onChunk ChunkFunc) (string, error)

	// Complete sends a non-streaming completion request.
	Complete(ctx context.Context, messages []ChatMessage, model string) (string, error)
}

// Ensure StreamClient implements CompletionClient at compile time.
var _ CompletionClient = (*StreamClient)(nil)
