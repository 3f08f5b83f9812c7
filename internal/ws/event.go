package ws

import (
	"encoding/json"

	"github.com/unimarket/backend/internal/model"
)

// Client→server events. The server replies on the same connection with an
// "ack" envelope when the client supplied an ack_id.
const (
	eventJoinConversation  = "join_conversation"
	eventLeaveConversation = "leave_conversation"
	eventSendMessage       = "send_message"
	eventMarkMessagesRead  = "mark_messages_read"
	eventTypingStart       = "typing_start"
	eventTypingStop        = "typing_stop"
)

// Server→client events. Persisted ones (new_message, conversation_updated,
// messages_read) originate in the service layer; typing indicators are
// relayed here without touching the store.
const (
	eventAck               = "ack"
	eventUserTyping        = "user_typing"
	eventUserStoppedTyping = "user_stopped_typing"
)

type envelope struct {
	Event string          `json:"event"`
	AckID *uint64         `json:"ack_id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outEnvelope struct {
	Event string  `json:"event"`
	AckID *uint64 `json:"ack_id,omitempty"`
	Data  any     `json:"data,omitempty"`
}

type conversationPayload struct {
	ConversationID uint64 `json:"conversation_id"`
}

type sendMessagePayload struct {
	ConversationID uint64 `json:"conversation_id"`
	Content        string `json:"content"`
}

type typingPayload struct {
	ConversationID uint64 `json:"conversation_id"`
	UserID         string `json:"user_id"`
}

type ackPayload struct {
	Success bool           `json:"success,omitempty"`
	Message *model.Message `json:"message,omitempty"`
	Error   string         `json:"error,omitempty"`
}
