package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/liushuangls/go-anthropic/v2"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/threadline-ai/threadline-engine/pkg/llm"
	"github.com/threadline-ai/threadline-engine/pkg/logging"
	"github.com/threadline-ai/threadline-engine/pkg/relay"
)

// RelayRequest is the wire request for both relay endpoints. Either a bare
// message or a full message list may be supplied.
type RelayRequest struct {
	Message         string            `json:"message,omitempty"`
	Messages        []llm.ChatMessage `json:"messages,omitempty"`
	Model           string            `json:"model"`
	ReasoningEffort string            `json:"reasoning_effort,omitempty"`
}

// RelayHandler exposes the upstream provider over the normalized wire
// format: an SSE endpoint for interactive turns and a JSON endpoint for the
// enrichment jobs. It holds no per-request state.
type RelayHandler struct {
	provider relay.Provider
	logger   *zap.Logger
}

// NewRelayHandler creates a new relay handler.
func NewRelayHandler(provider relay.Provider, logger *zap.Logger) *RelayHandler {
	return &RelayHandler{
		provider: provider,
		logger:   logger.Named("relay"),
	}
}

// RegisterRoutes registers the relay routes on the given mux.
func (h *RelayHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat/stream", h.Stream)
	mux.HandleFunc("POST /api/chat/complete", h.Complete)
}

// Stream handles POST /api/chat/stream. Each upstream delta is re-emitted as
// a `data: {"content": ...}` frame, terminated by `data: [DONE]`.
func (h *RelayHandler) Stream(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("Response writer does not support streaming")
		if err := ErrorResponse(w, http.StatusInternalServerError, "sse_unsupported", "Streaming not supported"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	// Advertise no-transform/no-buffering so deltas reach the client with
	// minimal added latency.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	started := false
	emit := func(delta string) error {
		frame, err := json.Marshal(map[string]string{"content": delta})
		if err != nil {
			return err
		}
		started = true
		if _, err := fmt.Fprintf(w, "data: %s\n\n", frame); err != nil {
			// Client went away; stop the upstream read.
			return err
		}
		flusher.Flush()
		return nil
	}

	err := h.provider.StreamCompletion(r.Context(), req.Messages, req.Model, req.ReasoningEffort, emit)
	if err != nil {
		if r.Context().Err() != nil {
			// Downstream disconnect is expected, not an error. Nothing more
			// can be written to this connection.
			h.logger.Debug("Client disconnected mid-stream")
			return
		}

		h.logger.Error("Upstream request failed", zap.String("sanitized_error", logging.SanitizeError(err)))

		if !started {
			// Nothing streamed yet; surface the upstream failure as a plain
			// error response.
			status, message := upstreamErrorStatus(err)
			if werr := ErrorResponse(w, status, "upstream_error", message); werr != nil {
				h.logger.Debug("Failed to write error response", zap.Error(werr))
			}
			return
		}

		// Mid-stream failure: best effort error frame, then terminate.
		if frame, merr := json.Marshal(map[string]string{"error": err.Error()}); merr == nil {
			_, _ = fmt.Fprintf(w, "data: %s\n\n", frame)
			flusher.Flush()
		}
	}

	_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// Complete handles POST /api/chat/complete with a plain JSON response.
func (h *RelayHandler) Complete(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	content, err := h.provider.Complete(r.Context(), req.Messages, req.Model, req.ReasoningEffort)
	if err != nil {
		h.logger.Error("Upstream completion failed", zap.String("sanitized_error", logging.SanitizeError(err)))
		status, message := upstreamErrorStatus(err)
		if werr := ErrorResponse(w, status, "upstream_error", message); werr != nil {
			h.logger.Error("Failed to write error response", zap.Error(werr))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, map[string]string{"content": content}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// decodeRequest parses and validates the wire request, normalizing a bare
// message into a single-entry message list.
func (h *RelayHandler) decodeRequest(w http.ResponseWriter, r *http.Request) (*RelayRequest, bool) {
	var req RelayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return nil, false
	}

	if len(req.Messages) == 0 && req.Message != "" {
		req.Messages = []llm.ChatMessage{{Role: "user", Content: req.Message}}
	}
	if len(req.Messages) == 0 {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_message", "Message is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return nil, false
	}
	if req.Model == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_model", "Model is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return nil, false
	}

	return &req, true
}

// upstreamErrorStatus maps an upstream failure to the status and message
// surfaced downstream, preferring the provider's own status and message.
func upstreamErrorStatus(err error) (int, string) {
	var openaiErr *openai.APIError
	if errors.As(err, &openaiErr) && openaiErr.HTTPStatusCode > 0 {
		return openaiErr.HTTPStatusCode, openaiErr.Message
	}

	var anthropicErr *anthropic.RequestError
	if errors.As(err, &anthropicErr) && anthropicErr.StatusCode > 0 {
		return anthropicErr.StatusCode, anthropicErr.Error()
	}

	return http.StatusBadGateway, err.Error()
}
