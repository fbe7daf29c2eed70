package tcp

import (
	"log/slog"
	"sync"
)

type ConnectionManager struct {
	clients map[string]*ClientConnection
	// key: client ID
	mu     sync.RWMutex
	logger *slog.Logger
}

// constructor for ConnectionManager
func NewConnectionManager(logger *slog.Logger) *ConnectionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConnectionManager{
		clients: make(map[string]*ClientConnection),
		logger:  logger,
	}
}

// method to add a new connection
func (m *ConnectionManager) AddConnection(client *ClientConnection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[client.ID] = client
	m.logger.Debug("client_added",
		"client_id", client.ID,
	)
}

// method to remove a connection
func (m *ConnectionManager) RemoveConnection(client *ClientConnection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.clients, client.ID)
	m.logger.Debug("client_removed",
		"client_id", client.ID,
	)
}

// Count returns the number of connections accepted but not yet finished
func (m *ConnectionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// method to close all connections
func (m *ConnectionManager) CloseAllConnections() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, client := range m.clients {
		client.Close()
		m.logger.Info("client_connection_closed",
			"client_id", id,
		)
	}
	// reset the map, dropping all references
	m.clients = make(map[string]*ClientConnection)
}
