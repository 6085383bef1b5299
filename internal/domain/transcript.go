package domain

import (
	"context"
	"time"
)

// TranscriptStore persists user/assistant turns for audit. All writes are
// best-effort from the caller's point of view; a failing store must never
// block a conversation.
type TranscriptStore interface {
	AddTurn(ctx context.Context, turn Turn) error
	RecentTurns(ctx context.Context, conversationKey string, limit int) ([]Turn, error)
	Close() error
}

// Turn is one recorded conversation entry.
type Turn struct {
	ID              int64     `json:"id"`
	ConversationKey string    `json:"conversation_key"` // "<userID>:<chatID>"
	Role            string    `json:"role"`
	Content         string    `json:"content"`
	CreatedAt       time.Time `json:"created_at"`
}
