// Package node runs one member of the leader-election cluster, plus the
// placeholder process the cluster grew out of (RunStub).
//
// A Node is either follower, candidate, leader or offline. Followers that do
// not hear from a leader within a randomized election timeout start an
// election; a candidate that collects a majority of votes becomes leader and
// asserts itself with AppendEntries heartbeats. UI clients watch status
// changes and may take a node offline or bring it back.
package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"raftlab/internal/rpc"
	"raftlab/internal/store"
)

var (
	ErrOffline              = errors.New("node is offline")
	ErrStaleTerm            = errors.New("message from an old term")
	ErrInvalidAction        = errors.New("action is not valid here")
	ErrTransitionNotAllowed = errors.New("status transition not allowed")
)

// Transport delivers a message to a peer and returns its reply
type Transport interface {
	Send(ctx context.Context, to rpc.NodeID, msg rpc.NodeMessage) (rpc.NodeMessage, error)
}

// Notifier pushes encoded client messages to connected UI clients
type Notifier interface {
	Broadcast(payload []byte, except ...string)
}

// Timing holds the protocol constants.
// Heartbeat must stay well below the election timeout, which is derived from it.
type Timing struct {
	Heartbeat  time.Duration
	RPCTimeout time.Duration
}

var DefaultTiming = Timing{
	Heartbeat:  150 * time.Millisecond,
	RPCTimeout: 2 * time.Second,
}

// ElectionTimeout returns a random duration in [4*Heartbeat, 8*Heartbeat).
// The floor absorbs timer imprecision that would otherwise cause constant re-elections.
func (t Timing) ElectionTimeout() time.Duration {
	lower := 4 * t.Heartbeat
	return lower + rand.N(lower)
}

type Config struct {
	ID        rpc.NodeID
	ClusterID string
	Peers     []rpc.NodeID // defaults to every other member of rpc.NodeIDs
	Transport Transport
	Store     store.StateStore
	Notifier  Notifier
	Timing    Timing
	Logger    *slog.Logger
}

// Snapshot is a consistent view of a node for health checks
type Snapshot struct {
	NodeID    rpc.NodeID `json:"node_id"`
	ClusterID string     `json:"cluster_id"`
	Status    rpc.Status `json:"status"`
	Term      uint64     `json:"term"`
	VotedFor  rpc.NodeID `json:"voted_for,omitempty"`
	Clients   int        `json:"clients"`
}

type Node struct {
	id          rpc.NodeID
	clusterID   string
	peers       []rpc.NodeID
	clusterSize int
	transport   Transport
	store       store.StateStore
	notifier    Notifier
	timing      Timing
	logger      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	status        rpc.Status
	term          uint64
	votedFor      rpc.NodeID
	clients       int
	timerGen      uint64 // bumped whenever timers are cleared; stale callbacks compare against it
	electionTimer *time.Timer
	heartbeatStop chan struct{}
}

// New builds a node and restores its persisted term and vote.
// A restarted node comes back as follower unless it was taken offline.
func New(ctx context.Context, cfg Config) (*Node, error) {
	if cfg.Transport == nil {
		return nil, errors.New("node: transport is required")
	}
	if cfg.ClusterID == "" {
		return nil, errors.New("node: cluster id is required")
	}
	if _, err := rpc.ParseNodeID(string(cfg.ID)); err != nil {
		return nil, fmt.Errorf("node: %w", err)
	}
	if cfg.Peers == nil {
		for _, id := range rpc.NodeIDs {
			if id != cfg.ID {
				cfg.Peers = append(cfg.Peers, id)
			}
		}
	}
	if cfg.Store == nil {
		cfg.Store = store.NewMemoryStore()
	}
	if cfg.Notifier == nil {
		cfg.Notifier = noopNotifier{}
	}
	if cfg.Timing.Heartbeat <= 0 {
		cfg.Timing.Heartbeat = DefaultTiming.Heartbeat
	}
	if cfg.Timing.RPCTimeout <= 0 {
		cfg.Timing.RPCTimeout = DefaultTiming.RPCTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	n := &Node{
		id:          cfg.ID,
		clusterID:   cfg.ClusterID,
		peers:       cfg.Peers,
		clusterSize: len(cfg.Peers) + 1,
		transport:   cfg.Transport,
		store:       cfg.Store,
		notifier:    cfg.Notifier,
		timing:      cfg.Timing,
		logger:      cfg.Logger.With("node_id", string(cfg.ID), "cluster_id", cfg.ClusterID),
		status:      rpc.StatusFollower,
	}
	n.ctx, n.cancel = context.WithCancel(context.Background())

	saved, err := cfg.Store.Load(ctx, cfg.ClusterID, cfg.ID)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("node: restore state: %w", err)
	default:
		n.term = saved.Term
		n.votedFor = saved.VotedFor
		if saved.Status == rpc.StatusOffline {
			n.status = rpc.StatusOffline
		}
		n.logger.Info("node_state_restored", "term", n.term, "status", n.status)
	}

	return n, nil
}

func (n *Node) ID() rpc.NodeID { return n.id }

func (n *Node) ClusterID() string { return n.clusterID }

// Majority is the vote count needed to win an election
func (n *Node) Majority() int { return n.clusterSize/2 + 1 }

func (n *Node) Peers() []rpc.NodeID { return append([]rpc.NodeID(nil), n.peers...) }

func (n *Node) Snapshot() Snapshot {
	n.mu.Lock()
	defer n.mu.Unlock()
	return Snapshot{
		NodeID:    n.id,
		ClusterID: n.clusterID,
		Status:    n.status,
		Term:      n.term,
		VotedFor:  n.votedFor,
		Clients:   n.clients,
	}
}

// Close stops timers, heartbeats and running elections
func (n *Node) Close() error {
	n.cancel()
	n.mu.Lock()
	n.stopTimersLocked()
	n.mu.Unlock()
	return nil
}

// Gossip handles a message from another node and returns the reply to send back
func (n *Node) Gossip(ctx context.Context, msg rpc.NodeMessage) (rpc.NodeMessage, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.status == rpc.StatusOffline {
		return rpc.NodeMessage{}, ErrOffline
	}
	if msg.Term < n.term {
		return rpc.NodeMessage{}, fmt.Errorf("%w: got %d, current %d", ErrStaleTerm, msg.Term, n.term)
	}
	if msg.Term > n.term {
		n.adoptTermLocked(msg.Term)
		n.persistLocked()
	}

	switch msg.Action {
	case rpc.ActionAppendEntries:
		// the sender is a valid leader for this term
		n.setStatusLocked(rpc.StatusFollower)
		n.scheduleElectionLocked()
		n.persistLocked()
		return rpc.Appended(n.term), nil

	case rpc.ActionRequestVote:
		granted := n.votedFor == "" || n.votedFor == msg.CandidateID
		if granted {
			n.votedFor = msg.CandidateID
			if n.clients > 0 {
				n.scheduleElectionLocked()
			}
			n.persistLocked()
		}
		n.logger.Info("vote_requested",
			"candidate", string(msg.CandidateID),
			"term", n.term,
			"granted", granted,
		)
		return rpc.Vote(n.term, granted), nil

	default:
		return rpc.NodeMessage{}, fmt.Errorf("%w: %s", ErrInvalidAction, msg.Action)
	}
}

// Election campaigns for leadership until this node wins, sees a legitimate
// leader or newer term, loses a complete vote, or ctx ends. A vote that does
// not reach a majority before its randomized deadline is retried at once
// while clients are connected.
func (n *Node) Election(ctx context.Context) {
	n.mu.Lock()
	gen := n.timerGen
	n.mu.Unlock()
	n.campaign(ctx, gen)
}

// campaign runs election rounds as long as gen is the current timer
// generation; stopTimersLocked ends it.
func (n *Node) campaign(ctx context.Context, gen uint64) {
	for {
		n.mu.Lock()
		if n.timerGen != gen || n.status == rpc.StatusOffline || ctx.Err() != nil || n.ctx.Err() != nil {
			n.mu.Unlock()
			return
		}
		n.stopTimersLocked()
		gen = n.timerGen
		n.term++
		term := n.term
		n.votedFor = n.id
		n.setStatusLocked(rpc.StatusCandidate)
		n.persistLocked()
		n.mu.Unlock()

		deadline := n.timing.ElectionTimeout()
		n.logger.Info("election_started", "term", term, "deadline", deadline)

		won, complete := n.collectVotes(ctx, term, deadline)

		n.mu.Lock()
		if n.timerGen != gen || n.term != term || n.status != rpc.StatusCandidate {
			// timers were cleared, another leader reached us, or a newer term started
			n.mu.Unlock()
			return
		}
		switch {
		case won:
			n.logger.Info("election_won", "term", term)
			n.becomeLeaderLocked(term)
			n.mu.Unlock()
			return
		case complete:
			n.logger.Info("election_lost", "term", term)
			if n.clients > 0 {
				n.scheduleElectionLocked()
			}
			n.mu.Unlock()
			return
		case n.clients == 0:
			n.logger.Info("election_abandoned", "term", term)
			n.mu.Unlock()
			return
		default:
			n.logger.Info("election_timed_out", "term", term)
			n.mu.Unlock()
		}
	}
}

type sendResult struct {
	reply rpc.NodeMessage
	err   error
}

// collectVotes requests votes from every peer. won is set as soon as a
// majority is reached; complete reports that every peer answered in time.
func (n *Node) collectVotes(ctx context.Context, term uint64, deadline time.Duration) (won, complete bool) {
	votes := 1 // our own
	if votes >= n.Majority() {
		return true, true
	}

	voteCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	results := make(chan sendResult, len(n.peers))
	for _, peer := range n.peers {
		go func(peer rpc.NodeID) {
			reply, err := n.send(voteCtx, peer, rpc.RequestVote(term, n.id))
			results <- sendResult{reply: reply, err: err}
		}(peer)
	}

	for received := 0; received < len(n.peers); received++ {
		select {
		case r := <-results:
			if r.err != nil {
				continue
			}
			if n.observeTerm(r.reply.Term) {
				return false, true
			}
			if r.reply.Action == rpc.ActionVote && r.reply.Term == term && r.reply.Granted {
				votes++
				if votes >= n.Majority() {
					return true, true
				}
			}
		case <-voteCtx.Done():
			return false, false
		}
	}
	return false, true
}

// observeTerm steps down when a reply carries a newer term
func (n *Node) observeTerm(term uint64) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if term <= n.term {
		return false
	}
	n.adoptTermLocked(term)
	if n.clients > 0 {
		n.scheduleElectionLocked()
	}
	n.persistLocked()
	return true
}

func (n *Node) becomeLeaderLocked(term uint64) {
	n.setStatusLocked(rpc.StatusLeader)
	n.persistLocked()

	stop := make(chan struct{})
	n.heartbeatStop = stop
	go n.heartbeat(term, stop)
}

// heartbeat announces leadership immediately, then every Heartbeat interval
func (n *Node) heartbeat(term uint64, stop <-chan struct{}) {
	ticker := time.NewTicker(n.timing.Heartbeat)
	defer ticker.Stop()

	for {
		n.broadcastAppend(term)
		select {
		case <-ticker.C:
		case <-stop:
			return
		case <-n.ctx.Done():
			return
		}
	}
}

func (n *Node) broadcastAppend(term uint64) {
	for _, peer := range n.peers {
		go func(peer rpc.NodeID) {
			reply, err := n.send(n.ctx, peer, rpc.AppendEntries(term, n.id))
			if err == nil {
				n.observeTerm(reply.Term)
			}
		}(peer)
	}
}

// send bounds a single RPC by the RPC timeout
func (n *Node) send(ctx context.Context, to rpc.NodeID, msg rpc.NodeMessage) (rpc.NodeMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, n.timing.RPCTimeout)
	defer cancel()

	n.logger.Debug("gossip_sent", "to", string(to), "action", string(msg.Action), "term", msg.Term)
	reply, err := n.transport.Send(ctx, to, msg)
	if err != nil {
		n.logger.Debug("gossip_failed",
			"to", string(to),
			"action", string(msg.Action),
			"error", err.Error(),
		)
		return rpc.NodeMessage{}, err
	}
	return reply, nil
}

// ClientConnected registers a UI client and returns the Welcome message to send it.
// The first client wakes the cluster up by scheduling an election.
func (n *Node) ClientConnected(clientID string) ([]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.clients++
	if n.clients == 1 && n.status != rpc.StatusOffline {
		n.logger.Info("waking_up_cluster", "client_id", clientID)
		n.scheduleElectionLocked()
	}

	return rpc.Encode(rpc.ClientMessage{
		Action:    rpc.ActionWelcome,
		ClusterID: n.clusterID,
		NodeID:    n.id,
		Status:    n.status,
	})
}

// ClientDisconnected forgets a client. With nobody watching, timers stop so
// the node goes idle.
func (n *Node) ClientDisconnected(clientID string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.clients > 0 {
		n.clients--
	}
	if n.clients == 0 {
		n.logger.Info("last_client_left", "client_id", clientID)
		n.stopTimersLocked()
	}
}

// HandleClientMessage applies a message from UI client clientID.
// Messages addressed to another cluster or node are ignored.
func (n *Node) HandleClientMessage(clientID string, msg rpc.ClientMessage) error {
	if msg.ClusterID != n.clusterID || msg.NodeID != n.id {
		n.logger.Debug("client_message_misrouted", "client_id", clientID)
		return nil
	}

	switch msg.Action {
	case rpc.ActionSetStatus:
		n.mu.Lock()
		defer n.mu.Unlock()

		switch {
		case n.status == rpc.StatusOffline && msg.Status == rpc.StatusFollower:
			n.setStatusLocked(msg.Status, clientID)
			if n.clients > 0 {
				n.scheduleElectionLocked()
			}
		case msg.Status == rpc.StatusOffline:
			n.stopTimersLocked()
			n.setStatusLocked(msg.Status, clientID)
		default:
			return fmt.Errorf("%w: %s -> %s", ErrTransitionNotAllowed, n.status, msg.Status)
		}
		n.persistLocked()
		n.logger.Info("status_set_by_client", "client_id", clientID, "status", msg.Status)
		return nil

	default:
		return fmt.Errorf("%w: %s", ErrInvalidAction, msg.Action)
	}
}

func (n *Node) adoptTermLocked(term uint64) {
	n.term = term
	n.votedFor = ""
	if n.status == rpc.StatusLeader || n.status == rpc.StatusCandidate {
		n.stopTimersLocked()
		n.setStatusLocked(rpc.StatusFollower)
	}
}

// setStatusLocked announces a change to every client except the given ids
func (n *Node) setStatusLocked(status rpc.Status, except ...string) {
	if n.status == status {
		return
	}
	n.status = status

	payload, err := rpc.Encode(rpc.ClientMessage{
		Action:    rpc.ActionSetStatus,
		ClusterID: n.clusterID,
		NodeID:    n.id,
		Status:    status,
	})
	if err != nil {
		n.logger.Error("status_encode_failed", "error", err.Error())
		return
	}
	n.notifier.Broadcast(payload, except...)
}

func (n *Node) scheduleElectionLocked() {
	n.stopTimersLocked()
	if n.ctx.Err() != nil {
		return
	}
	gen := n.timerGen
	n.electionTimer = time.AfterFunc(n.timing.ElectionTimeout(), func() {
		n.campaign(n.ctx, gen)
	})
}

func (n *Node) stopTimersLocked() {
	n.timerGen++
	if n.electionTimer != nil {
		n.electionTimer.Stop()
		n.electionTimer = nil
	}
	if n.heartbeatStop != nil {
		close(n.heartbeatStop)
		n.heartbeatStop = nil
	}
}

// persistLocked saves state; failures are logged, the node keeps running
func (n *Node) persistLocked() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err := n.store.Save(ctx, &store.State{
		ClusterID: n.clusterID,
		NodeID:    n.id,
		Term:      n.term,
		VotedFor:  n.votedFor,
		Status:    n.status,
	})
	if err != nil {
		n.logger.Warn("state_persist_failed", "error", err.Error())
	}
}

type noopNotifier struct{}

func (noopNotifier) Broadcast([]byte, ...string) {}
