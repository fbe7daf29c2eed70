package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.APIAddr)
	assert.Equal(t, 256, cfg.APIMaxWorkers)
	assert.Equal(t, 10*time.Second, cfg.NodeLifetime)
	assert.Equal(t, "us1", cfg.NodeID)
	assert.Equal(t, "memory", cfg.StateBackend)
	assert.Empty(t, cfg.NodePeers)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("API_ADDR", "127.0.0.1:9999")
	t.Setenv("API_MAX_WORKERS", "4")
	t.Setenv("API_ACCEPT_RATE", "12.5")
	t.Setenv("NODE_LIFETIME", "250ms")
	t.Setenv("NODE_PEERS", "eu1=http://eu:9002, ap1 = http://ap:9003")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9999", cfg.APIAddr)
	assert.Equal(t, 4, cfg.APIMaxWorkers)
	assert.Equal(t, 12.5, cfg.APIAcceptRate)
	assert.Equal(t, 250*time.Millisecond, cfg.NodeLifetime)
	assert.Equal(t, map[string]string{
		"eu1": "http://eu:9002",
		"ap1": "http://ap:9003",
	}, cfg.NodePeers)
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"integer", "API_MAX_WORKERS", "many"},
		{"duration", "API_LINGER", "soon"},
		{"float", "API_ACCEPT_RATE", "fast"},
		{"peer map", "NODE_PEERS", "eu1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := LoadConfig()
			assert.ErrorContains(t, err, tt.key)
		})
	}
}

func TestValidate(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	cfg.LogFormat = "xml"
	cfg.LogLevel = "trace"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOG_FORMAT")
	assert.Contains(t, err.Error(), "LOG_LEVEL")
}

func TestValidate_IgnoresListenerSettings(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	cfg.APIMaxWorkers = 0
	cfg.APIWriteTimeout = 0
	assert.NoError(t, cfg.Validate())
}

func TestValidateAPI(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.NoError(t, cfg.ValidateAPI())

	cfg.APIMaxWorkers = 0
	cfg.APIAcceptRate = -1
	cfg.APIWriteTimeout = 0
	cfg.APILinger = -time.Second
	cfg.APIShutdownTimeout = 0
	err = cfg.ValidateAPI()
	require.Error(t, err)
	for _, key := range []string{"API_MAX_WORKERS", "API_ACCEPT_RATE", "API_WRITE_TIMEOUT", "API_LINGER", "API_SHUTDOWN_TIMEOUT"} {
		assert.Contains(t, err.Error(), key)
	}
}

func TestValidateNode(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.ErrorContains(t, cfg.ValidateNode(), "NODE_SECRET")

	cfg.NodeSecret = "0123456789abcdef0123456789abcdef"
	cfg.CookieSecret = "cookie"
	assert.NoError(t, cfg.ValidateNode())

	cfg.StateBackend = "postgres"
	assert.ErrorContains(t, cfg.ValidateNode(), "DATABASE_URL")
}
