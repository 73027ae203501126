package store

// MessageRole mirrors the roles of the text-generation wire format.
type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleSystem    MessageRole = "system"
)

// ChatMessage is one turn of a conversation. Rows are append-only: the
// orchestrator reads then appends, it never rewrites history.
type ChatMessage struct {
	ID             int64
	ConversationID int64
	Role           MessageRole
	Content        string
	Route          string
	CreatedTs      int64
}

type CreateChatMessage struct {
	ConversationID int64
	Role           MessageRole
	Content        string
	Route          string
}

type FindChatMessage struct {
	ConversationID *int64
	// Limit caps the number of most recent messages returned, oldest first.
	Limit *int
}
