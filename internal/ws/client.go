package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8 * 1024
	sendBuffer     = 256
)

// Client is one live connection. The bound uid is set at handshake and never
// changes; room membership lives in the hub and is recorded here only so the
// hub can clean up on unregister.
type Client struct {
	id   string
	uid  string
	hub  *Hub
	conn *websocket.Conn

	send chan []byte
	done chan struct{}
	once sync.Once

	// guarded by hub.mu
	rooms map[uint64]struct{}
}

func newClient(hub *Hub, conn *websocket.Conn, uid string) *Client {
	return &Client{
		id:    uuid.NewString(),
		uid:   uid,
		hub:   hub,
		conn:  conn,
		send:  make(chan []byte, sendBuffer),
		done:  make(chan struct{}),
		rooms: make(map[uint64]struct{}),
	}
}

// Close is idempotent and safe from any goroutine. The send channel is never
// closed; once the client leaves the hub nothing enqueues to it again.
func (c *Client) Close() {
	c.once.Do(func() {
		c.hub.Unregister(c)
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *Client) readPump(g *Gateway) {
	defer c.Close()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		g.handle(c, raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
