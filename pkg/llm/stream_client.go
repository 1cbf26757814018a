package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// doneSentinel terminates a relay event stream.
const doneSentinel = "[DONE]"

// ChunkFunc is invoked for every delta in receipt order. delta is the new
// fragment, accumulated the full text so far including delta.
type ChunkFunc func(delta, accumulated string)

// StreamClient talks to the relay's line-delimited event format. It is safe
// for concurrent use; each call owns its own request and buffer.
type StreamClient struct {
	baseURL         string
	reasoningEffort string
	httpClient      *http.Client
	logger          *zap.Logger
}

// StreamClientConfig holds configuration for creating a stream client.
type StreamClientConfig struct {
	BaseURL         string        // Relay base URL, e.g. "http://localhost:3443"
	ReasoningEffort string        // Forwarded with every request when set
	Timeout         time.Duration // Per-request timeout for non-streaming calls (0 = none)
}

// NewStreamClient creates a client for the relay endpoints.
func NewStreamClient(cfg *StreamClientConfig, logger *zap.Logger) (*StreamClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	return &StreamClient{
		baseURL:         strings.TrimSuffix(cfg.BaseURL, "/"),
		reasoningEffort: cfg.ReasoningEffort,
		httpClient:      &http.Client{Timeout: cfg.Timeout},
		logger:          logger.Named("stream-client"),
	}, nil
}

// streamRequest is the relay request body.
type streamRequest struct {
	Messages        []ChatMessage `json:"messages"`
	Model           string        `json:"model"`
	ReasoningEffort string        `json:"reasoning_effort,omitempty"`
}

// streamFrame is one decoded relay event.
type streamFrame struct {
	Content string `json:"content"`
	Error   string `json:"error"`
}

// Stream sends the message list to the relay and returns the full
// accumulated text. onChunk (optional) is called synchronously for each
// delta, strictly in receipt order. Cancelling ctx tears down the network
// read, stops further onChunk calls and returns a cancellation-typed error
// distinct from transport failures. A clean stream that yields no text is an
// error, never an empty success.
func (c *StreamClient) Stream(ctx context.Context, messages []ChatMessage, model string, onChunk ChunkFunc) (string, error) {
	body, err := json.Marshal(streamRequest{Messages: messages, Model: model, ReasoningEffort: c.reasoningEffort})
	if err != nil {
		return "", NewError(ErrorTypeUnknown, "encode request", false, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat/stream", bytes.NewReader(body))
	if err != nil {
		return "", NewError(ErrorTypeUnknown, "build request", false, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return "", NewError(ErrorTypeCancelled, "stream cancelled before response", false, err)
		}
		return "", ClassifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", c.readErrorResponse(resp)
	}

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		// Read what came back so the failure is diagnosable.
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", NewError(ErrorTypeServer,
			fmt.Sprintf("expected event stream, got %s: %s", ct, strings.TrimSpace(string(raw))), false, nil)
	}

	var accumulated strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")

		if payload == doneSentinel {
			break
		}

		var frame streamFrame
		if err := json.Unmarshal([]byte(payload), &frame); err != nil {
			// One corrupt line must not abort an otherwise-healthy stream.
			c.logger.Warn("Skipping malformed stream frame", zap.String("payload", payload), zap.Error(err))
			continue
		}

		if frame.Error != "" {
			return "", NewError(ErrorTypeServer, frame.Error, false, nil)
		}

		if frame.Content != "" {
			accumulated.WriteString(frame.Content)
			if onChunk != nil {
				onChunk(frame.Content, accumulated.String())
			}
		}
	}

	if err := scanner.Err(); err != nil {
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return "", NewError(ErrorTypeCancelled, "stream cancelled mid-read", false, err)
		}
		return "", ClassifyError(err)
	}
	if ctx.Err() != nil {
		return "", NewError(ErrorTypeCancelled, "stream cancelled", false, ctx.Err())
	}

	result := accumulated.String()
	if result == "" {
		return "", NewError(ErrorTypeEmpty, "stream completed with no content", false, nil)
	}

	c.logger.Debug("Stream completed",
		zap.Int("content_length", len(result)),
		zap.Duration("elapsed", time.Since(start)))

	return result, nil
}

// Complete sends a non-streaming completion request through the relay.
// Used by enrichment jobs where incremental rendering is not needed.
func (c *StreamClient) Complete(ctx context.Context, messages []ChatMessage, model string) (string, error) {
	body, err := json.Marshal(streamRequest{Messages: messages, Model: model, ReasoningEffort: c.reasoningEffort})
	if err != nil {
		return "", NewError(ErrorTypeUnknown, "encode request", false, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat/complete", bytes.NewReader(body))
	if err != nil {
		return "", NewError(ErrorTypeUnknown, "build request", false, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", ClassifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", c.readErrorResponse(resp)
	}

	var frame streamFrame
	if err := json.NewDecoder(resp.Body).Decode(&frame); err != nil {
		return "", NewError(ErrorTypeServer, "decode completion response", false, err)
	}
	if frame.Error != "" {
		return "", NewError(ErrorTypeServer, frame.Error, false, nil)
	}
	if frame.Content == "" {
		return "", NewError(ErrorTypeEmpty, "completion returned no content", false, nil)
	}

	return frame.Content, nil
}

// readErrorResponse extracts the best available message from a non-2xx
// response: server-provided error field first, raw body next, status text
// last.
func (c *StreamClient) readErrorResponse(resp *http.Response) *Error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	message := ""
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	// Prefer the server-provided human message over the machine code.
	if err := json.Unmarshal(raw, &payload); err == nil && (payload.Error != "" || payload.Message != "") {
		message = payload.Message
		if message == "" {
			message = payload.Error
		}
	} else if trimmed := strings.TrimSpace(string(raw)); trimmed != "" {
		message = trimmed
	} else {
		message = resp.Status
	}

	errType := ErrorTypeServer
	retryable := resp.StatusCode >= 500
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		errType = ErrorTypeAuth
	case resp.StatusCode == http.StatusTooManyRequests:
		errType = ErrorTypeRateLimit
		retryable = true
	}

	llmErr := NewError(errType, message, retryable, nil)
	llmErr.StatusCode = resp.StatusCode
	return llmErr
}
