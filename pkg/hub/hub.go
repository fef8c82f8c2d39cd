// Package hub provides a channel-based websocket fan-out for the dashboard
// streams: one hub per stream (state snapshots, transitions, log lines).
package hub

import (
	"context"
	"encoding/json"
	"sync"

	"gazemouse/internal/log"
)

// Hub maintains the set of subscribed clients for one stream and broadcasts
// JSON payloads to them.
type Hub struct {
	stream string

	clients map[*Client]bool

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	// mu guards clients for the count query; the Run loop owns all other
	// access.
	mu sync.RWMutex
}

// New creates a hub for the named stream.
func New(stream string) *Hub {
	return &Hub{
		stream:     stream,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run is the hub's main loop; call it in a goroutine. It exits when ctx is
// cancelled, closing every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			log.Debug("dashboard client connected", "stream", h.stream, "clients", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Debug("dashboard client disconnected", "stream", h.stream, "clients", count)

		case payload := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- payload:
				default:
					// Buffer full: the client is too slow for a
					// real-time stream, cut it loose.
					close(client.send)
					delete(h.clients, client)
					log.Warn("dropped slow dashboard client", "stream", h.stream)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast queues a payload for every client. It never blocks; when the
// queue is full the payload is dropped, because a newer one is coming at
// frame rate anyway.
func (h *Hub) Broadcast(payload []byte) {
	select {
	case h.broadcast <- payload:
	default:
	}
}

// BroadcastJSON encodes v and broadcasts it.
func (h *Hub) BroadcastJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(data)
	return nil
}

// ClientCount returns the number of subscribed clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
