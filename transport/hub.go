package transport

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Hub tracks live connections per session and fans events out to all
// subscribers of a session. Writes are serialized under the hub lock because
// gorilla connections do not support concurrent writers; connections whose
// writes fail are pruned.
type Hub struct {
	mu    sync.Mutex
	conns map[string]map[*websocket.Conn]bool
}

// NewHub constructs an empty hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[string]map[*websocket.Conn]bool)}
}

func (h *Hub) add(sessionID string, c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[sessionID] == nil {
		h.conns[sessionID] = make(map[*websocket.Conn]bool)
	}
	h.conns[sessionID][c] = true
}

func (h *Hub) remove(sessionID string, c *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns[sessionID], c)
	if len(h.conns[sessionID]) == 0 {
		delete(h.conns, sessionID)
	}
}

// Broadcast sends v to every subscriber of the session.
func (h *Hub) Broadcast(sessionID string, v any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var dead []*websocket.Conn
	for c := range h.conns[sessionID] {
		if err := c.WriteJSON(v); err != nil {
			dead = append(dead, c)
		}
	}
	for _, c := range dead {
		_ = c.Close()
		delete(h.conns[sessionID], c)
	}
	if len(h.conns[sessionID]) == 0 {
		delete(h.conns, sessionID)
	}
}

// send writes v to a single connection under the hub lock.
func (h *Hub) send(c *websocket.Conn, v any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	_ = c.WriteJSON(v)
}

// Subscribers returns the live connection count for a session.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns[sessionID])
}
