package node

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunStub_OrderAndDelay(t *testing.T) {
	var out bytes.Buffer
	lifetime := 150 * time.Millisecond

	start := time.Now()
	require.NoError(t, RunStub(context.Background(), &out, lifetime))
	elapsed := time.Since(start)

	assert.Equal(t, "Start Node\nShutdown Node\n", out.String())
	assert.GreaterOrEqual(t, elapsed, lifetime)
}

func TestRunStub_DefaultLifetime(t *testing.T) {
	assert.Equal(t, 10*time.Second, DefaultLifetime)
}

func TestRunStub_CancelStillShutsDown(t *testing.T) {
	var out bytes.Buffer
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, RunStub(ctx, &out, time.Hour))
	assert.Equal(t, "Start Node\nShutdown Node\n", out.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("closed pipe") }

func TestRunStub_WriteError(t *testing.T) {
	err := RunStub(context.Background(), failingWriter{}, 0)
	assert.ErrorContains(t, err, "start line")
}
