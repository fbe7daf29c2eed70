package node

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"raftlab/internal/auth"
	"raftlab/internal/rpc"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestHTTPTransport_Send(t *testing.T) {
	tokens := auth.NewNodeTokens(testSecret, 0)

	peer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, GossipPath, r.URL.Path)
		assert.Equal(t, rpc.ContentType, r.Header.Get("Content-Type"))

		from, err := tokens.Validate(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		require.NoError(t, err)
		assert.Equal(t, rpc.US1, from)

		body, _ := io.ReadAll(r.Body)
		msg, err := rpc.DecodeNode(body)
		require.NoError(t, err)

		reply, _ := rpc.Encode(rpc.Vote(msg.Term, true))
		w.Write(reply)
	}))
	defer peer.Close()

	transport := NewHTTPTransport(rpc.US1, map[rpc.NodeID]string{rpc.EU1: peer.URL + "/"}, tokens, peer.Client())

	reply, err := transport.Send(context.Background(), rpc.EU1, rpc.RequestVote(4, rpc.US1))
	require.NoError(t, err)
	assert.Equal(t, rpc.Vote(4, true), reply)
}

func TestHTTPTransport_Non200(t *testing.T) {
	peer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "node is offline", http.StatusServiceUnavailable)
	}))
	defer peer.Close()

	transport := NewHTTPTransport(rpc.US1, map[rpc.NodeID]string{rpc.AP1: peer.URL},
		auth.NewNodeTokens(testSecret, 0), nil)

	_, err := transport.Send(context.Background(), rpc.AP1, rpc.AppendEntries(1, rpc.US1))
	require.ErrorIs(t, err, ErrNon200)
	assert.Contains(t, err.Error(), "503")
}

func TestHTTPTransport_UnknownPeer(t *testing.T) {
	transport := NewHTTPTransport(rpc.US1, nil, auth.NewNodeTokens(testSecret, 0), nil)

	_, err := transport.Send(context.Background(), rpc.EU1, rpc.AppendEntries(1, rpc.US1))
	assert.ErrorIs(t, err, ErrUnknownPeer)
}

func TestParsePeers(t *testing.T) {
	peers, err := ParsePeers(map[string]string{"eu1": "http://eu:9002", "ap1": "http://ap:9003"})
	require.NoError(t, err)
	assert.Equal(t, "http://eu:9002", peers[rpc.EU1])

	transport := NewHTTPTransport(rpc.US1, peers, auth.NewNodeTokens(testSecret, 0), nil)
	assert.Equal(t, []rpc.NodeID{rpc.EU1, rpc.AP1}, transport.PeerIDs())

	_, err = ParsePeers(map[string]string{"xx9": "http://x"})
	assert.Error(t, err)
}
