package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "json", "warn")

	logger.Info("ignored")
	logger.Warn("client_read_timeout", "client_id", "abc")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "client_read_timeout", entry["msg"])
	assert.Equal(t, "abc", entry["client_id"])
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "text", "debug").Debug("hello", "k", 1)
	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "k=1")
}
