// Package rpc defines the messages exchanged between cluster nodes and
// between a node and its UI clients.
package rpc

import "fmt"

// NodeID names one member of the fixed cluster
type NodeID string

const (
	US1 NodeID = "us1" // San Jose
	EU1 NodeID = "eu1" // London
	AP1 NodeID = "ap1" // Singapore
)

// NodeIDs is the full cluster membership
var NodeIDs = []NodeID{US1, EU1, AP1}

// ParseNodeID validates s against NodeIDs
func ParseNodeID(s string) (NodeID, error) {
	for _, id := range NodeIDs {
		if string(id) == s {
			return id, nil
		}
	}
	return "", fmt.Errorf("unrecognized node id %q", s)
}

type Status string

const (
	StatusLeader    Status = "leader"
	StatusFollower  Status = "follower"
	StatusCandidate Status = "candidate"
	StatusOffline   Status = "offline"
)

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	switch s {
	case StatusLeader, StatusFollower, StatusCandidate, StatusOffline:
		return true
	}
	return false
}

type Action string

// node to node
const (
	ActionAppendEntries Action = "AppendEntries"
	ActionAppended      Action = "Appended"
	ActionRequestVote   Action = "RequestVote"
	ActionVote          Action = "Vote"
)

// node to client
const (
	ActionWelcome   Action = "Welcome"
	ActionSetStatus Action = "SetStatus"
)

// NodeMessage is gossiped between nodes. Fields unused by an action stay zero.
type NodeMessage struct {
	Action      Action `msgpack:"action" json:"action"`
	Term        uint64 `msgpack:"term" json:"term"`
	Leader      NodeID `msgpack:"leader,omitempty" json:"leader,omitempty"`
	CandidateID NodeID `msgpack:"candidateId,omitempty" json:"candidateId,omitempty"`
	Granted     bool   `msgpack:"granted,omitempty" json:"granted,omitempty"`
}

func AppendEntries(term uint64, leader NodeID) NodeMessage {
	return NodeMessage{Action: ActionAppendEntries, Term: term, Leader: leader}
}

func Appended(term uint64) NodeMessage {
	return NodeMessage{Action: ActionAppended, Term: term}
}

func RequestVote(term uint64, candidate NodeID) NodeMessage {
	return NodeMessage{Action: ActionRequestVote, Term: term, CandidateID: candidate}
}

func Vote(term uint64, granted bool) NodeMessage {
	return NodeMessage{Action: ActionVote, Term: term, Granted: granted}
}

// ClientMessage travels between a node and a UI client over WebSocket
type ClientMessage struct {
	Action    Action `msgpack:"action" json:"action"`
	ClusterID string `msgpack:"clusterId" json:"clusterId"`
	NodeID    NodeID `msgpack:"nodeId" json:"nodeId"`
	Status    Status `msgpack:"status" json:"status"`
}
