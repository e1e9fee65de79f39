// Package models defines the wire types exchanged with the finchat API.
package models

import "time"

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single chat message. Records are immutable once stored,
// except for the content of a streaming placeholder.
type Message struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Role      Role      `json:"role"`
	Agent     string    `json:"agent,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SendRequest is the payload of the send endpoint.
type SendRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// Stream event types.
const (
	StreamToken = "token"
	StreamDone  = "done"
	StreamError = "error"
)

// StreamEvent is one frame of a streamed reply.
// Done events carry the authoritative message when the server has one.
type StreamEvent struct {
	Type      string   `json:"type"`
	MessageID string   `json:"message_id,omitempty"`
	Content   string   `json:"content,omitempty"`
	Message   *Message `json:"message,omitempty"`
	Error     *string  `json:"error,omitempty"`
}
