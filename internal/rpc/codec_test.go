package rpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestEncode_NodeMessageWireKeys(t *testing.T) {
	data, err := Encode(RequestVote(7, EU1))
	require.NoError(t, err)

	// peers written in other languages read plain maps
	var raw map[string]any
	require.NoError(t, msgpack.Unmarshal(data, &raw))
	assert.Equal(t, "RequestVote", raw["action"])
	assert.Equal(t, "eu1", raw["candidateId"])
	assert.NotContains(t, raw, "granted")

	decoded, err := DecodeNode(data)
	require.NoError(t, err)
	assert.Equal(t, RequestVote(7, EU1), decoded)
}

func TestDecodeNode_Malformed(t *testing.T) {
	_, err := DecodeNode([]byte{0xc1}) // never-used msgpack byte
	assert.ErrorIs(t, err, ErrMalformed)

	empty, err := msgpack.Marshal(map[string]any{"term": 1})
	require.NoError(t, err)
	_, err = DecodeNode(empty)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeClient(t *testing.T) {
	msg := ClientMessage{Action: ActionSetStatus, ClusterID: "c1", NodeID: AP1, Status: StatusOffline}
	data, err := Encode(msg)
	require.NoError(t, err)

	decoded, err := DecodeClient(data)
	require.NoError(t, err)
	assert.Equal(t, msg, decoded)

	_, err = DecodeClient([]byte("not msgpack at all"))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestParseNodeID(t *testing.T) {
	id, err := ParseNodeID("ap1")
	require.NoError(t, err)
	assert.Equal(t, AP1, id)

	_, err = ParseNodeID("us2")
	assert.Error(t, err)
}

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusCandidate.Valid())
	assert.False(t, Status("sleeping").Valid())
}
