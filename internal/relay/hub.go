package relay

import (
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type frame struct {
	client *Client
	env    Envelope
}

// Hub is the presence and message relay. All state (connection registry,
// broadcast rooms, message log) is owned by the Run loop: every inbound
// event is handled to completion, broadcasts included, before the next one,
// so no locking is needed anywhere below.
type Hub struct {
	register   chan *Client
	unregister chan *Client
	frames     chan frame
	shutdown   chan struct{}

	clients map[*Client]struct{}            // every live connection
	users   map[*Client]string              // connection registry: authenticated only
	rooms   map[string]map[*Client]struct{} // broadcast group -> members

	log      *Log
	validate *validator.Validate
	logger   *zap.SugaredLogger
}

func NewHub(logger *zap.SugaredLogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		frames:     make(chan frame),
		shutdown:   make(chan struct{}),
		clients:    make(map[*Client]struct{}),
		users:      make(map[*Client]string),
		rooms:      make(map[string]map[*Client]struct{}),
		log:        NewLog(),
		validate:   validator.New(),
		logger:     logger,
	}
}

// Run processes events until Stop. It is the only goroutine allowed to touch
// hub state.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = struct{}{}
		case c := <-h.unregister:
			h.handleDisconnect(c)
		case f := <-h.frames:
			h.handleFrame(f.client, f.env)
		case <-h.shutdown:
			return
		}
	}
}

func (h *Hub) Register(c *Client)   { h.register <- c }
func (h *Hub) Unregister(c *Client) { h.unregister <- c }

// Dispatch hands a decoded inbound frame to the run loop.
func (h *Hub) Dispatch(c *Client, env Envelope) {
	h.frames <- frame{client: c, env: env}
}

func (h *Hub) Stop() { close(h.shutdown) }

// handleFrame routes one inbound event. A panic in a handler is terminal for
// that event only: it is logged and reported to the caller, never allowed to
// take the process down.
func (h *Hub) handleFrame(c *Client, env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Errorw("event handler panic", "event", env.Event, "panic", r)
			c.Enqueue(EncodeEvent(EventError, "internal error"))
		}
	}()

	switch env.Event {
	case EventAuthenticate:
		h.handleAuthenticate(c, env.Data)
	case EventSendMessage:
		h.handleSendMessage(c, env.Data)
	case EventMarkRead:
		h.handleMarkRead(c, env.Data)
	case EventTypingStart:
		h.handleTyping(c, env.Data, EventTypingStart)
	case EventTypingEnd:
		h.handleTyping(c, env.Data, EventTypingEnd)
	default:
		c.Enqueue(EncodeEvent(EventError, "unknown event"))
	}
}

// handleAuthenticate records the connection in the registry, joins the
// caller to its per-user room, announces presence to everyone else and
// replays the caller's conversation history.
func (h *Hub) handleAuthenticate(c *Client, data json.RawMessage) {
	var userID string
	if err := json.Unmarshal(data, &userID); err != nil || userID == "" {
		c.Enqueue(EncodeEvent(EventAuthError, "user id is required"))
		return
	}

	h.users[c] = userID
	h.joinRoom(userID, c)
	h.logger.Infow("user authenticated", "userId", userID, "connId", c.ID)

	h.broadcastOthers(c, EncodeEvent(EventUserOnline, userID))

	history := h.log.ForUser(userID)
	if history == nil {
		history = []*Message{}
	}
	c.Enqueue(EncodeEvent(EventInitialMessages, history))
}

func (h *Hub) handleSendMessage(c *Client, data json.RawMessage) {
	senderID, ok := h.users[c]
	if !ok {
		c.Enqueue(EncodeEvent(EventError, "not authenticated"))
		return
	}

	var p SendMessagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		c.Enqueue(EncodeEvent(EventError, "invalid message payload"))
		return
	}
	if err := h.validate.Struct(&p); err != nil {
		c.Enqueue(EncodeEvent(EventError, "invalid message payload"))
		return
	}

	m := h.log.Append(senderID, p.ReceiverID, p.Content)
	h.broadcastRoom(p.ReceiverID, EncodeEvent(EventNewMessage, m))
	c.Enqueue(EncodeEvent(EventMessageSent, m.ID))
}

// handleMarkRead is best-effort: an unknown message id is ignored without an
// error, and re-reading an already-read message broadcasts nothing.
func (h *Hub) handleMarkRead(c *Client, data json.RawMessage) {
	var messageID string
	if err := json.Unmarshal(data, &messageID); err != nil {
		c.Enqueue(EncodeEvent(EventError, "invalid message id"))
		return
	}

	m, changed := h.log.MarkRead(messageID)
	if m == nil || !changed {
		return
	}
	h.broadcastRoom(m.SenderID, EncodeEvent(EventMessageRead, m.ID))
}

// handleTyping relays a typing indicator to the conversation's room, minus
// the sender. Unauthenticated callers are ignored.
func (h *Hub) handleTyping(c *Client, data json.RawMessage, event string) {
	userID, ok := h.users[c]
	if !ok {
		return
	}

	var p TypingPayload
	if err := json.Unmarshal(data, &p); err != nil {
		c.Enqueue(EncodeEvent(EventError, "invalid typing payload"))
		return
	}
	if err := h.validate.Struct(&p); err != nil {
		c.Enqueue(EncodeEvent(EventError, "invalid typing payload"))
		return
	}

	h.broadcastRoomExcept(p.ConversationID, c, EncodeEvent(event, TypingEvent{
		UserID:         userID,
		ConversationID: p.ConversationID,
	}))
}

// handleDisconnect drops the connection from all state and, when it was
// authenticated, announces the user offline. Safe to call more than once.
func (h *Hub) handleDisconnect(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)

	userID, authed := h.users[c]
	delete(h.users, c)
	h.leaveAllRooms(c)
	c.Close()

	if authed {
		h.logger.Infow("user disconnected", "userId", userID, "connId", c.ID)
		h.broadcastOthers(c, EncodeEvent(EventUserOffline, userID))
	}
}

func (h *Hub) joinRoom(room string, c *Client) {
	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[*Client]struct{})
	}
	h.rooms[room][c] = struct{}{}
}

func (h *Hub) leaveAllRooms(c *Client) {
	for room, members := range h.rooms {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

func (h *Hub) broadcastOthers(origin *Client, b []byte) {
	for c := range h.clients {
		if c == origin {
			continue
		}
		if !c.Enqueue(b) {
			h.logger.Warnw("dropping frame for slow consumer", "connId", c.ID)
		}
	}
}

func (h *Hub) broadcastRoom(room string, b []byte) {
	for c := range h.rooms[room] {
		if !c.Enqueue(b) {
			h.logger.Warnw("dropping frame for slow consumer", "connId", c.ID)
		}
	}
}

func (h *Hub) broadcastRoomExcept(room string, origin *Client, b []byte) {
	for c := range h.rooms[room] {
		if c == origin {
			continue
		}
		if !c.Enqueue(b) {
			h.logger.Warnw("dropping frame for slow consumer", "connId", c.ID)
		}
	}
}
