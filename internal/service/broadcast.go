package service

// Events pushed to live connections after a successful write.
const (
	EventNewMessage          = "new_message"
	EventConversationUpdated = "conversation_updated"
	EventMessagesRead        = "messages_read"
)

// Broadcaster fans events out to live connections. Implementations must not
// block the caller and must never report delivery failure back: a committed
// write stays committed even if nobody is listening.
type Broadcaster interface {
	// PublishToConversation delivers to every connection joined to the
	// conversation's room.
	PublishToConversation(convID uint64, event string, payload any)
	// PublishToUser delivers to every live connection of one user,
	// regardless of room membership.
	PublishToUser(uid string, event string, payload any)
}

// ConversationRef is the payload for list-level refresh events.
type ConversationRef struct {
	ConversationID uint64 `json:"conversation_id"`
}
