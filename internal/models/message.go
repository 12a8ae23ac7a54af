package models

import (
	"time"

	"github.com/google/uuid"
)

// Message represents an individual entry within a chat surface. It contains the participant's role,
// the raw markdown content and the time the message was appended.
type Message struct {
	ID        string
	Role      Role
	Content   string
	Timestamp time.Time
}

// Role represents the role of a message participant.
type Role string

const (
	// RoleUser represents a message typed by the person using the surface.
	RoleUser Role = "user"
	// RoleAssistant represents a message produced by the text-generation provider, or the fallback
	// reply appended when the provider failed.
	RoleAssistant Role = "assistant"
)

// Streaming states of a rendered message bubble.
const (
	StreamingStateLoading = "loading"
	StreamingStateEnded   = "ended"
)

// NewMessage creates a message with a fresh ID and the current time.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}
