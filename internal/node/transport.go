package node

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"raftlab/internal/auth"
	"raftlab/internal/rpc"
)

// GossipPath is where every node accepts peer messages
const GossipPath = "/gossip"

var (
	ErrUnknownPeer = errors.New("no address for peer")
	ErrNon200      = errors.New("non-200 response")
)

// HTTPTransport PUTs msgpack-encoded messages to peers, authenticated with a node token
type HTTPTransport struct {
	self   rpc.NodeID
	peers  map[rpc.NodeID]string // base URL per peer
	tokens *auth.NodeTokens
	client *http.Client
}

func NewHTTPTransport(self rpc.NodeID, peers map[rpc.NodeID]string, tokens *auth.NodeTokens, client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{}
	}
	normalized := make(map[rpc.NodeID]string, len(peers))
	for id, base := range peers {
		normalized[id] = strings.TrimRight(base, "/")
	}
	return &HTTPTransport{
		self:   self,
		peers:  normalized,
		tokens: tokens,
		client: client,
	}
}

// ParsePeers turns configured "id -> base URL" pairs into a peer map
func ParsePeers(raw map[string]string) (map[rpc.NodeID]string, error) {
	peers := make(map[rpc.NodeID]string, len(raw))
	for k, v := range raw {
		id, err := rpc.ParseNodeID(k)
		if err != nil {
			return nil, fmt.Errorf("peer %q: %w", k, err)
		}
		peers[id] = v
	}
	return peers, nil
}

// PeerIDs lists the peers this transport can reach
func (t *HTTPTransport) PeerIDs() []rpc.NodeID {
	ids := make([]rpc.NodeID, 0, len(t.peers))
	for _, id := range rpc.NodeIDs {
		if _, ok := t.peers[id]; ok && id != t.self {
			ids = append(ids, id)
		}
	}
	return ids
}

func (t *HTTPTransport) Send(ctx context.Context, to rpc.NodeID, msg rpc.NodeMessage) (rpc.NodeMessage, error) {
	base, ok := t.peers[to]
	if !ok {
		return rpc.NodeMessage{}, fmt.Errorf("%w %s", ErrUnknownPeer, to)
	}

	body, err := rpc.Encode(msg)
	if err != nil {
		return rpc.NodeMessage{}, err
	}
	token, err := t.tokens.Issue(t.self)
	if err != nil {
		return rpc.NodeMessage{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, base+GossipPath, bytes.NewReader(body))
	if err != nil {
		return rpc.NodeMessage{}, fmt.Errorf("build request to %s: %w", to, err)
	}
	req.Header.Set("Content-Type", rpc.ContentType)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := t.client.Do(req)
	if err != nil {
		return rpc.NodeMessage{}, fmt.Errorf("send to %s: %w", to, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return rpc.NodeMessage{}, fmt.Errorf("read reply from %s: %w", to, err)
	}
	if resp.StatusCode != http.StatusOK {
		return rpc.NodeMessage{}, fmt.Errorf("%w from %s: %d %s", ErrNon200, to, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return rpc.DecodeNode(data)
}
