package ws

import (
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// client adapts one websocket connection to the session.Sender
// contract: a buffered outbound channel drained by a single writer
// goroutine, so broadcasts never block the room actor on a slow peer.
type client struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool
}

func newClient(conn *websocket.Conn, buffer int) *client {
	if buffer <= 0 {
		buffer = 16
	}
	return &client{
		conn: conn,
		send: make(chan []byte, buffer),
	}
}

// Send enqueues data for delivery. A full buffer fails the send rather
// than blocking; the session manager prunes the session in response.
func (c *client) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("connection closed")
	}
	select {
	case c.send <- data:
		return nil
	default:
		return fmt.Errorf("send buffer full")
	}
}

// Close stops the writer goroutine. Safe to call more than once.
func (c *client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// writePump drains the send channel onto the wire. It owns all writes
// to the connection and closes it on exit.
func (c *client) writePump() {
	defer c.conn.Close()

	for data := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
