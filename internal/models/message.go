package models

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Message is a persisted message row. Replies produced by the pipeline use
// the AI bot sentinel id as sender.
type Message struct {
	ID             int64     `json:"id"`
	SenderID       int64     `json:"sender_id"`
	RecipientID    int64     `json:"recipient_id"`
	Content        string    `json:"content"`
	ConversationID string    `json:"conversation_id"`
	Channel        Channel   `json:"channel"`
	IsRead         bool      `json:"is_read"`
	CreatedAt      time.Time `json:"created_at"`
}

// Turn is one entry of a user's in-memory context window. Immutable once
// created; the window is not persisted and is lost on restart.
type Turn struct {
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	OccurredAt time.Time `json:"occurred_at"`
}

func NewTurn(role Role, content string) Turn {
	return Turn{Role: role, Content: content, OccurredAt: time.Now().UTC()}
}
