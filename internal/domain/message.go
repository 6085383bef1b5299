package domain

// ChatKind distinguishes direct messages from group chats.
type ChatKind string

const (
	ChatDirect ChatKind = "p2p"
	ChatGroup  ChatKind = "group"
)

// Mention is a single "@" reference inside a group message.
type Mention struct {
	Key    string // placeholder token in the message text, e.g. "@_user_1"
	OpenID string // resolved platform identity, empty if unresolved
	Name   string
}

// InboundEvent is the normalized message event handed from the gateway to the
// agent. One is created per webhook delivery and discarded after dispatch.
type InboundEvent struct {
	EventID     string
	MessageID   string
	ChatID      string
	ChatKind    ChatKind
	SenderID    string // sender open_id
	MessageKind string // "text" | "post" | "image" | ...
	Text        string // extracted text content, empty for non-text messages
	Mentions    []Mention
}

// Roles used in LLM conversation messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry in an LLM conversation.
type Message struct {
	Role       string     `json:"role"` // system | user | assistant | tool
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolName   string     `json:"tool_name,omitempty"`
}

// ToolCall is a structured function-call request emitted by the LLM.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolDefinition describes a callable tool in the LLM-facing schema.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}
