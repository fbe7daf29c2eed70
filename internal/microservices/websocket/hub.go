package websocket

// Central hub tracking every UI client connected to this node.
// Status pushes fan out through each client's buffered send channel,
// so a slow browser never blocks the node.

import (
	"log/slog"
	"slices"
	"sync"
)

type Hub struct {
	clients map[string]*Client // map[clientID] -> *Client
	mu      sync.RWMutex
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

// Register adds a client to the hub
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.ID] != nil {
		h.logger.Warn("client_already_registered", "client_id", c.ID)
		return
	}
	h.clients[c.ID] = c
	h.logger.Info("client_registered", "client_id", c.ID, "total_clients", len(h.clients))
}

// Unregister removes a client; reports whether it was registered
func (h *Hub) Unregister(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.ID] == nil {
		return false
	}
	delete(h.clients, c.ID)
	h.logger.Info("client_unregistered", "client_id", c.ID, "total_clients", len(h.clients))
	return true
}

// Broadcast queues payload for every client not listed in except.
// Clients whose send buffer is full are dropped.
func (h *Hub) Broadcast(payload []byte, except ...string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, c := range h.clients {
		if slices.Contains(except, id) {
			continue
		}
		if err := c.SendMessage(payload); err != nil {
			h.logger.Warn("broadcast_dropped_client", "client_id", id, "error", err.Error())
			c.Close()
		}
	}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll closes every client connection. Their read pumps unregister them.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		c.Close()
	}
}
