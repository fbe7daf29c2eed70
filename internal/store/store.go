// Package store persists a node's election state (term, vote, status) so a
// restarted node does not vote twice in a term it already took part in.
package store

import (
	"context"
	"errors"
	"time"

	"raftlab/internal/rpc"
)

// ErrNotFound is returned by Load when nothing was saved yet
var ErrNotFound = errors.New("node state not found")

// State is the persisted slice of a node
type State struct {
	ClusterID string
	NodeID    rpc.NodeID
	Term      uint64
	VotedFor  rpc.NodeID
	Status    rpc.Status
	UpdatedAt time.Time
}

type StateStore interface {
	Load(ctx context.Context, clusterID string, nodeID rpc.NodeID) (*State, error)
	Save(ctx context.Context, state *State) error
	Close() error
}
