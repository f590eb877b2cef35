package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	toml "github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix for environment variables that override the config file.
const EnvPrefix = "REALTIME_"

// ClientConfig holds the realtime socket client configuration.
type ClientConfig struct {
	ServerURL        string        `koanf:"server_url"`
	Path             string        `koanf:"path"`
	PingInterval     time.Duration `koanf:"ping_interval"` // 0 disables keepalive pings
	HandshakeTimeout time.Duration `koanf:"handshake_timeout"`
	WriteTimeout     time.Duration `koanf:"write_timeout"`
	InsecureSkipTLS  bool          `koanf:"insecure_skip_verify"`
	StatusAddr       string        `koanf:"status_addr"`
	LogLevel         string        `koanf:"log_level"`
	Backoff          BackoffConfig `koanf:"backoff"`
	Redis            RedisConfig   `koanf:"redis"`
}

// BackoffConfig holds the reconnect backoff parameters.
type BackoffConfig struct {
	BaseInterval  time.Duration `koanf:"base_interval"`
	PenaltyFactor float64       `koanf:"penalty_factor"`
	DecayAfter    time.Duration `koanf:"decay_after"`
}

// RedisConfig holds connection settings for the Redis status mirror.
type RedisConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Addr     string `koanf:"addr"`     // Redis address, default "localhost:6379"
	Password string `koanf:"password"` // Redis password, default ""
	DB       int    `koanf:"db"`       // Redis database number, default 0
	Prefix   string `koanf:"prefix"`   // Key and channel prefix, default "orchestra:realtime:"
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		ServerURL:        "http://localhost:8080",
		Path:             "/api/ws",
		PingInterval:     30 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		StatusAddr:       ":9464",
		LogLevel:         "info",
		Backoff: BackoffConfig{
			BaseInterval:  time.Second,
			PenaltyFactor: 2,
			DecayAfter:    time.Hour,
		},
		Redis: DefaultRedisConfig(),
	}
}

// DefaultRedisConfig returns a RedisConfig with sensible defaults.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:   "localhost:6379",
		Prefix: "orchestra:realtime:",
	}
}

// Load reads configuration from an optional TOML file, then applies
// environment overrides, then validates the result.
func Load(configPath string) (*ClientConfig, error) {
	cfg := DefaultConfig()

	k := koanf.New(".")

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{
		DecoderConfig: &mapstructure.DecoderConfig{
			TagName:          "koanf",
			WeaklyTypedInput: true,
			Result:           cfg,
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// envKey maps REALTIME_* variables onto config keys.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))

	switch s {
	case "server_url", "ping_interval", "handshake_timeout", "write_timeout",
		"insecure_skip_verify", "status_addr", "log_level":
		return s
	default:
		// "__" is a literal underscore, "_" separates sections.
		s = strings.ReplaceAll(s, "__", "%UNDERSCORE%")
		s = strings.ReplaceAll(s, "_", ".")
		return strings.ReplaceAll(s, "%UNDERSCORE%", "_")
	}
}

// Validate checks the configuration for values the client cannot run with.
func (c *ClientConfig) Validate() error {
	if _, err := c.WebSocketURL(); err != nil {
		return err
	}
	if c.PingInterval < 0 {
		return fmt.Errorf("ping_interval must not be negative, got: %s", c.PingInterval)
	}
	if c.Backoff.BaseInterval <= 0 {
		return fmt.Errorf("backoff.base_interval must be positive, got: %s", c.Backoff.BaseInterval)
	}
	if c.Backoff.PenaltyFactor < 1 {
		return fmt.Errorf("backoff.penalty_factor must be at least 1, got: %g", c.Backoff.PenaltyFactor)
	}
	if c.Backoff.DecayAfter <= 0 {
		return fmt.Errorf("backoff.decay_after must be positive, got: %s", c.Backoff.DecayAfter)
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis.enabled is true")
	}
	return nil
}

// WebSocketURL derives the socket URL from the server URL: http becomes ws,
// https becomes wss and Path is appended.
func (c *ClientConfig) WebSocketURL() (string, error) {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return "", fmt.Errorf("server_url is invalid: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("server_url must use http, https, ws or wss, got: %q", c.ServerURL)
	}
	if u.Host == "" {
		return "", fmt.Errorf("server_url must include a host, got: %q", c.ServerURL)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(c.Path, "/")
	return u.String(), nil
}
