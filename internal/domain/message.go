package domain

import (
	"time"

	"github.com/google/uuid"
)

// ChatRole identifies the author of an assistant conversation message.
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// AssistantMessage is one stored turn of the assistant conversation.
type AssistantMessage struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Role      ChatRole  `json:"role"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
