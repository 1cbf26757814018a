package llm

import (
	"context"
	"sync"
)

// MockCompletionClient is a configurable mock for testing transport
// consumers. Set the function fields to control behavior in tests. Call
// counters are safe to read concurrently; enrichment consumers invoke the
// client from multiple goroutines.
type MockCompletionClient struct {
	// StreamFunc is called when Stream is invoked. If nil, returns
	// "mock response" and nil error without emitting chunks.
	StreamFunc func(ctx context.Context, messages []ChatMessage, model string, onChunk ChunkFunc) (string, error)

	// CompleteFunc is called when Complete is invoked. If nil, returns
	// "mock response" and nil error.
	CompleteFunc func(ctx context.Context, messages []ChatMessage, model string) (string, error)

	mu            sync.Mutex
	streamCalls   int
	completeCalls int
}

// NewMockCompletionClient creates a new mock with sensible defaults.
func NewMockCompletionClient() *MockCompletionClient {
	return &MockCompletionClient{}
}

// Stream implements CompletionClient.
func (m *MockCompletionClient) Stream(ctx context.Context, messages []ChatMessage, model string, onChunk ChunkFunc) (string, error) {
	m.mu.Lock()
	m.streamCalls++
	m.mu.Unlock()
	if m.StreamFunc != nil {
		return m.StreamFunc(ctx, messages, model, onChunk)
	}
	return "mock response", nil
}

// Complete implements CompletionClient.
func (m *MockCompletionClient) Complete(ctx context.Context, messages []ChatMessage, model string) (string, error) {
	m.mu.Lock()
	m.completeCalls++
	m.mu.Unlock()
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, messages, model)
	}
	return "mock response", nil
}

// StreamCalls returns how many times Stream was invoked.
func (m *MockCompletionClient) StreamCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streamCalls
}

// CompleteCalls returns how many times Complete was invoked.
func (m *MockCompletionClient) CompleteCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.completeCalls
}

var _ CompletionClient = (*MockCompletionClient)(nil)
