package domain

import "context"

// Messenger is the outbound messaging-platform client. Implementations own
// their token lifecycle; callers only see message operations.
type Messenger interface {
	// SendText sends a text message to a chat. replyTo optionally threads the
	// message under an existing one. Returns the new message id.
	SendText(ctx context.Context, chatID, text, replyTo string) (string, error)
	// SendReply replies to a specific message.
	SendReply(ctx context.Context, chatID, messageID, text string) (string, error)
	// UpdateMessage replaces the content of an already sent message.
	UpdateMessage(ctx context.Context, messageID, text string) error
	// SendCard sends an interactive card payload.
	SendCard(ctx context.Context, chatID string, card map[string]any) (string, error)
}
