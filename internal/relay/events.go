package relay

import "encoding/json"

// Inbound event names (client -> relay).
const (
	EventAuthenticate = "authenticate"
	EventSendMessage  = "send_message"
	EventMarkRead     = "mark_read"
	EventTypingStart  = "typing_start"
	EventTypingEnd    = "typing_end"
)

// Outbound event names (relay -> client).
const (
	EventAuthError       = "auth_error"
	EventInitialMessages = "initial_messages"
	EventUserOnline      = "user_online"
	EventUserOffline     = "user_offline"
	EventNewMessage      = "new_message"
	EventMessageSent     = "message_sent"
	EventMessageRead     = "message_read"
	EventError           = "error"
)

// Envelope frames every websocket message in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// SendMessagePayload is the data of a send_message event.
type SendMessagePayload struct {
	ReceiverID string `json:"receiverId" validate:"required"`
	Content    string `json:"content" validate:"required"`
}

// TypingPayload is the data of an inbound typing_start/typing_end event.
type TypingPayload struct {
	ConversationID string `json:"conversationId" validate:"required"`
}

// TypingEvent is the outbound typing payload, carrying the resolved sender.
type TypingEvent struct {
	UserID         string `json:"userId"`
	ConversationID string `json:"conversationId"`
}

// EncodeEvent marshals an outbound envelope. Payloads are plain strings,
// slices and structs, so marshalling cannot realistically fail.
func EncodeEvent(event string, data any) []byte {
	payload, _ := json.Marshal(data)
	b, _ := json.Marshal(Envelope{Event: event, Data: payload})
	return b
}
