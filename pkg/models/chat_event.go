package models

// ChatEventType represents the type of a streaming chat event.
type ChatEventType string

const (
	ChatEventDelta ChatEventType = "delta"
	ChatEventDone  ChatEventType = "done"
	ChatEventError ChatEventType = "error"
)

// ChatEvent is one streaming event emitted by the turn pipeline while an
// assistant reply is in flight.
type ChatEvent struct {
	Type    ChatEventType `json:"type"`
	Content string        `json:"content,omitempty"`
	Data    any           `json:"data,omitempty"`
}

// NewDeltaEvent creates an incremental text event.
func NewDeltaEvent(content string) ChatEvent {
	return ChatEvent{Type: ChatEventDelta, Content: content}
}

// NewDoneEvent creates a completion event carrying the persisted assistant
// message.
func NewDoneEvent(msg *Message) ChatEvent {
	return ChatEvent{Type: ChatEventDone, Data: msg}
}

// NewErrorEvent creates an error event.
func NewErrorEvent(err string) ChatEvent {
	return ChatEvent{Type: ChatEventError, Content: err}
}
