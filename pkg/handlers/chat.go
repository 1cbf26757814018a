package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/threadline-ai/threadline-engine/pkg/apperrors"
	"github.com/threadline-ai/threadline-engine/pkg/llm"
	"github.com/threadline-ai/threadline-engine/pkg/models"
	"github.com/threadline-ai/threadline-engine/pkg/services"
)

// SendTurnRequest for POST /api/conversations/{cid}/messages.
type SendTurnRequest struct {
	Message     string              `json:"message"`
	Attachments []models.Attachment `json:"attachments,omitempty"`
}

// ChatHandler exposes the turn pipeline over SSE.
type ChatHandler struct {
	chatService services.ChatService
	logger      *zap.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(chatService services.ChatService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
		logger:      logger.Named("chat-handler"),
	}
}

// RegisterRoutes registers the chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/conversations/{cid}/messages", h.SendTurn)
}

// SendTurn handles POST /api/conversations/{cid}/messages. The response is
// an SSE stream of delta events followed by a done event carrying the
// persisted assistant message.
func (h *ChatHandler) SendTurn(w http.ResponseWriter, r *http.Request) {
	conversationID, err := uuid.Parse(r.PathValue("cid"))
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_conversation_id", "Invalid conversation id"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	var req SendTurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if req.Message == "" && len(req.Attachments) == 0 {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_message", "Message is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
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

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	eventChan := make(chan models.ChatEvent, 100)

	go func() {
		defer close(eventChan)
		err := h.chatService.SendMessage(r.Context(), conversationID, req.Message, req.Attachments, eventChan)
		if err == nil {
			return
		}

		switch {
		case llm.IsCancelled(err):
			// The user stopped the turn; nothing to report.
			h.logger.Debug("Turn cancelled",
				zap.String("conversation_id", conversationID.String()))
		case errors.Is(err, apperrors.ErrNotFound):
			eventChan <- models.NewErrorEvent("conversation not found")
		case errors.Is(err, apperrors.ErrEmptyMessage):
			eventChan <- models.NewErrorEvent("message is empty")
		default:
			h.logger.Error("Turn failed",
				zap.String("conversation_id", conversationID.String()),
				zap.Error(err))
			eventChan <- models.NewErrorEvent(err.Error())
		}
	}()

	for event := range eventChan {
		data, err := json.Marshal(event)
		if err != nil {
			h.logger.Error("Failed to marshal event", zap.Error(err))
			continue
		}

		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()

		if event.Type == models.ChatEventDone || event.Type == models.ChatEventError {
			break
		}
	}
}
