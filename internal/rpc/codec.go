package rpc

import (
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrMalformed wraps every decode failure
var ErrMalformed = errors.New("malformed message")

// ContentType is sent with msgpack request and response bodies
const ContentType = "application/msgpack"

// Encode serializes a node or client message with msgpack
func Encode[T NodeMessage | ClientMessage](msg T) ([]byte, error) {
	data, err := msgpack.Marshal(&msg)
	if err != nil {
		return nil, fmt.Errorf("encode %T: %w", msg, err)
	}
	return data, nil
}

// DecodeNode parses a NodeMessage; a missing action counts as malformed
func DecodeNode(data []byte) (NodeMessage, error) {
	var msg NodeMessage
	if err := msgpack.Unmarshal(data, &msg); err != nil {
		return NodeMessage{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if msg.Action == "" {
		return NodeMessage{}, fmt.Errorf("%w: missing action", ErrMalformed)
	}
	return msg, nil
}

// DecodeClient parses a ClientMessage; a missing action counts as malformed
func DecodeClient(data []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := msgpack.Unmarshal(data, &msg); err != nil {
		return ClientMessage{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if msg.Action == "" {
		return ClientMessage{}, fmt.Errorf("%w: missing action", ErrMalformed)
	}
	return msg, nil
}
