package ws

import (
	"encoding/json"
	"log"
	"sync"
)

// Hub is the connection registry and broadcast router. It maps each user to
// the set of their live connections (the personal room) and each conversation
// to the set of connections that joined its room. A user with several open
// tabs has several entries; every one of them receives personal-room events.
//
// All map access goes through mu. Delivery enqueues to the client's buffered
// send channel and never blocks: a client that cannot keep up is dropped.
type Hub struct {
	mu    sync.RWMutex
	users map[string]map[*Client]struct{}
	rooms map[uint64]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		users: make(map[string]map[*Client]struct{}),
		rooms: make(map[uint64]map[*Client]struct{}),
	}
}

// Register adds the connection under its uid, implicitly joining the personal
// room. Called once per connection, after the handshake authenticates it.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.users[c.uid] == nil {
		h.users[c.uid] = make(map[*Client]struct{})
	}
	h.users[c.uid][c] = struct{}{}
}

// Unregister removes the connection from its personal room and every joined
// conversation room. Idempotent.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set := h.users[c.uid]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.users, c.uid)
		}
	}
	for convID := range c.rooms {
		h.leaveLocked(c, convID)
	}
}

// Join subscribes the connection to a conversation room. Joining twice is a
// no-op.
func (h *Hub) Join(c *Client, convID uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[convID] == nil {
		h.rooms[convID] = make(map[*Client]struct{})
	}
	h.rooms[convID][c] = struct{}{}
	c.rooms[convID] = struct{}{}
}

func (h *Hub) Leave(c *Client, convID uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, convID)
}

func (h *Hub) leaveLocked(c *Client, convID uint64) {
	if set := h.rooms[convID]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.rooms, convID)
		}
	}
	delete(c.rooms, convID)
}

// Online reports whether the user has at least one live connection.
func (h *Hub) Online(uid string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[uid]) > 0
}

// PublishToConversation implements service.Broadcaster. Only connections that
// joined the room receive the event; a participant without the chat screen
// open gets its list-level signal via PublishToUser instead.
func (h *Hub) PublishToConversation(convID uint64, event string, payload any) {
	data, err := marshal(event, payload)
	if err != nil {
		log.Printf("ws: marshal %s: %v", event, err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[convID] {
		h.deliver(c, data)
	}
}

// PublishToUser implements service.Broadcaster.
func (h *Hub) PublishToUser(uid string, event string, payload any) {
	data, err := marshal(event, payload)
	if err != nil {
		log.Printf("ws: marshal %s: %v", event, err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.users[uid] {
		h.deliver(c, data)
	}
}

// RelayToOthers sends an ephemeral event to the room, excluding the sender's
// own connection. No persistence, no delivery guarantee.
func (h *Hub) RelayToOthers(convID uint64, sender *Client, event string, payload any) {
	data, err := marshal(event, payload)
	if err != nil {
		log.Printf("ws: marshal %s: %v", event, err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[convID] {
		if c == sender {
			continue
		}
		h.deliver(c, data)
	}
}

func (h *Hub) deliver(c *Client, data []byte) {
	select {
	case c.send <- data:
	default:
		log.Printf("ws: send buffer full, dropping connection %s (user %s)", c.id, c.uid)
		go c.Close()
	}
}

func marshal(event string, payload any) ([]byte, error) {
	return json.Marshal(outEnvelope{Event: event, Data: payload})
}
