package providers

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/orchestra-mcp/realtime/config"
	"github.com/orchestra-mcp/realtime/src/backoff"
	"github.com/orchestra-mcp/realtime/src/dispatch"
	"github.com/orchestra-mcp/realtime/src/handlers"
	"github.com/orchestra-mcp/realtime/src/metrics"
	"github.com/orchestra-mcp/realtime/src/reconnect"
	"github.com/orchestra-mcp/realtime/src/service"
	"github.com/orchestra-mcp/realtime/src/status"
	"github.com/orchestra-mcp/realtime/src/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
)

// ClientPlugin wires the realtime client into a hosting application.
type ClientPlugin struct {
	active   bool
	cfg      *config.ClientConfig
	logger   zerolog.Logger
	dialer   reconnect.Dialer
	clock    clockwork.Clock
	registry *prometheus.Registry
	store    *status.MemoryStore
	redis    *status.RedisStore
	orch     *reconnect.Orchestrator
	service  *service.Service
}

// Option customizes a ClientPlugin.
type Option func(*ClientPlugin)

// WithDialer replaces the WebSocket dialer.
func WithDialer(d reconnect.Dialer) Option {
	return func(p *ClientPlugin) { p.dialer = d }
}

// WithClock replaces the clock driving keepalive and reconnect timers.
func WithClock(c clockwork.Clock) Option {
	return func(p *ClientPlugin) { p.clock = c }
}

// NewClientPlugin creates a new realtime client plugin instance.
func NewClientPlugin(cfg *config.ClientConfig, logger zerolog.Logger, opts ...Option) *ClientPlugin {
	p := &ClientPlugin{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *ClientPlugin) ID() string      { return "orchestra/realtime" }
func (p *ClientPlugin) Name() string    { return "Realtime Client" }
func (p *ClientPlugin) Version() string { return "0.1.0" }
func (p *ClientPlugin) IsActive() bool  { return p.active }

// Activate builds the connection core and opens the first generation.
// The session ends when ctx is done or Deactivate is called.
func (p *ClientPlugin) Activate(ctx context.Context) error {
	if p.active {
		return fmt.Errorf("plugin %s already active", p.ID())
	}
	url, err := p.cfg.WebSocketURL()
	if err != nil {
		return err
	}

	p.registry = prometheus.NewRegistry()
	p.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(p.registry)

	p.store = status.NewMemoryStore()
	var store status.Store = p.store
	// Redis mirror is optional; the client runs standalone without it.
	if p.cfg.Redis.Enabled {
		store = p.initRedis(store)
	}

	table := dispatch.NewTable()
	if err := handlers.Register(table, store, p.logger); err != nil {
		return err
	}

	if p.dialer == nil {
		p.dialer = transport.NewDialer(p.cfg, p.logger)
	}
	p.orch = reconnect.New(reconnect.Options{
		URL:    url,
		Dialer: p.dialer,
		Table:  table,
		Store:  store,
		Clock:  p.clock,
		Policy: backoff.Policy{
			BaseInterval:  p.cfg.Backoff.BaseInterval,
			PenaltyFactor: p.cfg.Backoff.PenaltyFactor,
			DecayAfter:    p.cfg.Backoff.DecayAfter,
		},
		PingInterval: p.cfg.PingInterval,
		Metrics:      m,
		Logger:       p.logger,
	})
	p.service = service.New(p.orch, table, p.store, p.logger)

	if err := p.orch.Start(ctx); err != nil {
		return err
	}

	p.active = true
	p.logger.Info().Str("plugin", p.ID()).Str("url", url).Msg("realtime client activated")
	return nil
}

func (p *ClientPlugin) initRedis(local status.Store) status.Store {
	rs := status.NewRedisStore(p.cfg.Redis, p.logger)
	if err := rs.Start(); err != nil {
		p.logger.Warn().Err(err).Msg("redis status mirror unavailable, running standalone")
		return local
	}
	p.redis = rs
	p.logger.Info().Str("redis_addr", p.cfg.Redis.Addr).Msg("redis status mirror connected")
	return status.Tee(local, rs)
}

// Deactivate ends the session and stops the Redis mirror.
func (p *ClientPlugin) Deactivate() error {
	if p.orch != nil {
		p.orch.Stop()
	}
	if p.redis != nil {
		if err := p.redis.Stop(); err != nil {
			p.logger.Error().Err(err).Msg("redis mirror stop error")
		}
		p.redis = nil
	}
	p.active = false
	return nil
}

// Service exposes the realtime service to the hosting application.
func (p *ClientPlugin) Service() *service.Service { return p.service }

// Registry returns the Prometheus registry holding the client collectors.
func (p *ClientPlugin) Registry() *prometheus.Registry { return p.registry }
