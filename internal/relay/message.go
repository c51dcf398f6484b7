package relay

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Message is a chat message relayed between two users. The content is opaque
// to the relay and forwarded as-is. Wire keys match what the browser client
// sends and expects.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Content    string    `json:"content"`
	Timestamp  time.Time `json:"timestamp"`
	Read       bool      `json:"read"`
}

// Log is the process-lifetime, append-only message log. Messages are never
// removed or reordered; insertion order is send order. The log is owned by
// the hub's run loop and must not be touched from other goroutines.
type Log struct {
	messages []*Message
	byID     map[string]*Message
}

func NewLog() *Log {
	return &Log{byID: make(map[string]*Message)}
}

// Append builds a message with a fresh id and server-assigned timestamp and
// appends it to the log.
func (l *Log) Append(senderID, receiverID, content string) *Message {
	m := &Message{
		ID:         uuid.New().String(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		Timestamp:  time.Now().UTC(),
	}
	l.messages = append(l.messages, m)
	l.byID[m.ID] = m
	return m
}

// MarkRead flips the read flag. The returned bool reports whether this call
// performed the false-to-true transition; marking an already-read message is
// a no-op. An unknown id returns (nil, false).
func (l *Log) MarkRead(id string) (*Message, bool) {
	m, ok := l.byID[id]
	if !ok {
		return nil, false
	}
	if m.Read {
		return m, false
	}
	m.Read = true
	return m, true
}

// ForUser returns the messages where userID is sender or receiver, in log
// order. Never exposes another user's conversations.
func (l *Log) ForUser(userID string) []*Message {
	return lo.Filter(l.messages, func(m *Message, _ int) bool {
		return m.SenderID == userID || m.ReceiverID == userID
	})
}

func (l *Log) Len() int { return len(l.messages) }
