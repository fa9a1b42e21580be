package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	sendQueueDepth = 256
)

// client is one browser's duplex event channel. Grounded on the teacher's
// terminal WebSocket handler shape (one reader loop, one writer goroutine
// fed by a channel, a done channel closed exactly once).
type client struct {
	id   string
	conn *websocket.Conn

	send chan outbound

	limiters *limiterSet

	closeOnce sync.Once
	done      chan struct{}
}

func newClient(id string, conn *websocket.Conn) *client {
	return &client{
		id:       id,
		conn:     conn,
		send:     make(chan outbound, sendQueueDepth),
		limiters: newLimiterSet(),
		done:     make(chan struct{}),
	}
}

// enqueue queues msg for delivery on this client's writer goroutine. If the
// client's send queue is full (a stalled browser), the message is dropped
// rather than blocking the caller — per §5, output delivery must not stall
// other sessions or other clients.
func (c *client) enqueue(msg outbound) {
	select {
	case c.send <- msg:
	default:
	}
}

func (c *client) writeLoop() {
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				c.closeDone()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *client) closeDone() {
	c.closeOnce.Do(func() { close(c.done) })
}
