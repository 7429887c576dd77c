package session

import (
	"time"

	"github.com/google/uuid"

	"controlroom/backend"
)

// Message is one turn in a conversation. Messages are append-only: created
// when a user message arrives or a backend reply is accepted, never mutated.
type Message struct {
	ID        string         `json:"id"`
	Role      string         `json:"role"` // "user", "assistant", "system", "tool"
	Content   string         `json:"content"`
	BackendID string         `json:"backend_id,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Tokens    int            `json:"tokens,omitempty"`
	Cost      float64        `json:"cost,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// History is the ordered, insertion-order message sequence owned exclusively
// by one Session. The owning session serializes all access; History itself
// carries no lock.
type History struct {
	messages []Message
}

// NewHistory constructs an empty history.
func NewHistory() *History {
	return &History{}
}

// AddUser appends a user message and returns it.
func (h *History) AddUser(content string) Message {
	msg := Message{
		ID:        uuid.NewString(),
		Role:      "user",
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
	h.messages = append(h.messages, msg)
	return msg
}

// AddReply appends an assistant message built from a backend reply,
// preserving the originating backend id and metadata.
func (h *History) AddReply(reply backend.Reply) Message {
	msg := Message{
		ID:        uuid.NewString(),
		Role:      "assistant",
		Content:   reply.Content,
		BackendID: reply.BackendID,
		Timestamp: reply.Timestamp,
		Tokens:    reply.Tokens,
		Cost:      reply.Cost,
		Metadata:  reply.Metadata,
	}
	h.messages = append(h.messages, msg)
	return msg
}

// Len returns the number of messages.
func (h *History) Len() int { return len(h.messages) }

// Messages returns a defensive copy of the full message sequence.
func (h *History) Messages() []Message {
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Context returns the message sequence formatted for a backend call,
// truncated to the last maxMessages entries when maxMessages > 0.
func (h *History) Context(maxMessages int) []backend.ChatMessage {
	msgs := h.messages
	if maxMessages > 0 && len(msgs) > maxMessages {
		msgs = msgs[len(msgs)-maxMessages:]
	}
	out := make([]backend.ChatMessage, len(msgs))
	for i, m := range msgs {
		out[i] = backend.ChatMessage{Role: m.Role, Content: m.Content}
	}
	return out
}
