package store

// ConversationSummary is the rolling summary of a conversation. Exactly one
// row exists per conversation; writes go through an upsert on the latest row.
type ConversationSummary struct {
	ID             int64
	ConversationID int64
	Summary        string
	UpdatedTs      int64
}

type UpsertConversationSummary struct {
	ConversationID int64
	Summary        string
}

type FindConversationSummary struct {
	ConversationID *int64
}
