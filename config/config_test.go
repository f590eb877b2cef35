package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 30*time.Second, cfg.PingInterval)
	assert.Equal(t, "/api/ws", cfg.Path)
	assert.Equal(t, time.Second, cfg.Backoff.BaseInterval)
	assert.Equal(t, 2.0, cfg.Backoff.PenaltyFactor)
	assert.Equal(t, time.Hour, cfg.Backoff.DecayAfter)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "orchestra:realtime:", cfg.Redis.Prefix)
	assert.NoError(t, cfg.Validate())
}

func TestWebSocketURL(t *testing.T) {
	cases := []struct {
		server string
		path   string
		want   string
	}{
		{"http://example.com", "/api/ws", "ws://example.com/api/ws"},
		{"https://example.com", "/api/ws", "wss://example.com/api/ws"},
		{"https://example.com/base/", "api/ws", "wss://example.com/base/api/ws"},
		{"http://localhost:8080", "/socket", "ws://localhost:8080/socket"},
		{"wss://example.com", "/api/ws", "wss://example.com/api/ws"},
	}

	for _, tc := range cases {
		cfg := DefaultConfig()
		cfg.ServerURL = tc.server
		cfg.Path = tc.path

		got, err := cfg.WebSocketURL()
		require.NoError(t, err, tc.server)
		assert.Equal(t, tc.want, got)
	}
}

func TestWebSocketURLRejectsBadScheme(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ServerURL = "ftp://example.com"
	_, err := cfg.WebSocketURL()
	assert.Error(t, err)

	cfg.ServerURL = "http://"
	_, err = cfg.WebSocketURL()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*ClientConfig){
		"negative ping":      func(c *ClientConfig) { c.PingInterval = -time.Second },
		"zero base interval": func(c *ClientConfig) { c.Backoff.BaseInterval = 0 },
		"factor below one":   func(c *ClientConfig) { c.Backoff.PenaltyFactor = 0.5 },
		"zero decay":         func(c *ClientConfig) { c.Backoff.DecayAfter = 0 },
		"redis without addr": func(c *ClientConfig) { c.Redis.Enabled = true; c.Redis.Addr = "" },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateAllowsDisabledPing(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PingInterval = 0
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "realtime.toml")
	content := `
server_url = "https://research.example.org"
ping_interval = "15s"
log_level = "debug"

[backoff]
base_interval = "250ms"
penalty_factor = 1.5

[redis]
enabled = true
addr = "redis:6380"
db = 2
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://research.example.org", cfg.ServerURL)
	assert.Equal(t, 15*time.Second, cfg.PingInterval)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 250*time.Millisecond, cfg.Backoff.BaseInterval)
	assert.Equal(t, 1.5, cfg.Backoff.PenaltyFactor)
	assert.Equal(t, time.Hour, cfg.Backoff.DecayAfter, "unset keys keep defaults")
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "redis:6380", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, "orchestra:realtime:", cfg.Redis.Prefix)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("REALTIME_SERVER_URL", "http://override:9000")
	t.Setenv("REALTIME_PING_INTERVAL", "0s")
	t.Setenv("REALTIME_BACKOFF_BASE__INTERVAL", "2s")
	t.Setenv("REALTIME_REDIS_PASSWORD", "secret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://override:9000", cfg.ServerURL)
	assert.Equal(t, time.Duration(0), cfg.PingInterval)
	assert.Equal(t, 2*time.Second, cfg.Backoff.BaseInterval)
	assert.Equal(t, "secret", cfg.Redis.Password)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestLoadInvalidValues(t *testing.T) {
	t.Setenv("REALTIME_BACKOFF_PENALTY__FACTOR", "0.2")

	_, err := Load("")
	assert.ErrorContains(t, err, "penalty_factor")
}
