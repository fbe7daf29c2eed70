package command

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runNode(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRoot_RunsStub(t *testing.T) {
	start := time.Now()
	out, err := runNode(t, "--lifetime", "30ms")

	require.NoError(t, err)
	assert.Equal(t, "Start Node\nShutdown Node\n", out)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestRoot_LifetimeFromEnv(t *testing.T) {
	t.Setenv("NODE_LIFETIME", "10ms")

	out, err := runNode(t)

	require.NoError(t, err)
	assert.Equal(t, "Start Node\nShutdown Node\n", out)
}

func TestRoot_InvalidConfig(t *testing.T) {
	t.Setenv("LOG_FORMAT", "xml")

	out, err := runNode(t, "--lifetime", "1ms")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOG_FORMAT")
	assert.Empty(t, out)
}

func TestRoot_IgnoresListenerConfig(t *testing.T) {
	t.Setenv("API_MAX_WORKERS", "0")
	t.Setenv("API_WRITE_TIMEOUT", "0s")

	out, err := runNode(t, "--lifetime", "1ms")

	require.NoError(t, err)
	assert.Equal(t, "Start Node\nShutdown Node\n", out)
}

func TestServe_RequiresSecrets(t *testing.T) {
	t.Setenv("NODE_SECRET", "too-short")
	t.Setenv("COOKIE_SECRET", "")

	_, err := runNode(t, "serve")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "NODE_SECRET")
	assert.Contains(t, err.Error(), "COOKIE_SECRET")
}

func TestServe_RejectsUnknownNodeID(t *testing.T) {
	t.Setenv("NODE_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("COOKIE_SECRET", "cookie-secret")
	t.Setenv("NODE_ID", "mars1")

	_, err := runNode(t, "serve")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "NODE_ID")
}
