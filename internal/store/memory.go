package store

import (
	"context"
	"sync"
	"time"

	"raftlab/internal/rpc"
)

type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]State)}
}

func (m *MemoryStore) Load(ctx context.Context, clusterID string, nodeID rpc.NodeID) (*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.states[stateKey(clusterID, nodeID)]
	if !ok {
		return nil, ErrNotFound
	}
	return &state, nil
}

func (m *MemoryStore) Save(ctx context.Context, state *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	saved := *state
	saved.UpdatedAt = time.Now()
	m.states[stateKey(state.ClusterID, state.NodeID)] = saved
	return nil
}

func (m *MemoryStore) Close() error { return nil }

func stateKey(clusterID string, nodeID rpc.NodeID) string {
	return "node:" + clusterID + ":" + string(nodeID)
}
