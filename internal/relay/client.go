package relay

import (
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// Client is one live socket connection. The hub talks to it only through the
// buffered Send channel; the write pump is the sole writer on the socket.
type Client struct {
	ID        string
	Send      chan []byte
	Connected time.Time

	conn   *websocket.Conn
	mu     sync.Mutex
	closed bool
}

func NewClient(conn *websocket.Conn, sendBuffer int) *Client {
	return &Client{
		ID:        uuid.New().String(),
		Send:      make(chan []byte, sendBuffer),
		Connected: time.Now().UTC(),
		conn:      conn,
	}
}

// Enqueue hands a frame to the write pump. A full buffer drops the frame so
// a slow consumer can never stall the hub; delivery is best-effort while the
// connection is up.
func (c *Client) Enqueue(b []byte) bool {
	select {
	case c.Send <- b:
		return true
	default:
		return false
	}
}

// Close shuts the send channel and the socket exactly once.
func (c *Client) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.Send)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	}
	c.mu.Unlock()
}

// WritePump drains the send channel onto the socket and keeps the connection
// alive with periodic pings. Runs in its own goroutine per connection.
func (c *Client) WritePump(pingInterval, writeDeadline time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		if c.conn != nil {
			_ = c.conn.Close()
		}
	}()
	for {
		select {
		case b, ok := <-c.Send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
