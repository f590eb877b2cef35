// Package reconnect keeps one live connection generation for the lifetime
// of a session and replaces it after abnormal closures.
package reconnect

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/orchestra-mcp/realtime/src/backoff"
	"github.com/orchestra-mcp/realtime/src/connection"
	"github.com/orchestra-mcp/realtime/src/dispatch"
	"github.com/orchestra-mcp/realtime/src/metrics"
	"github.com/orchestra-mcp/realtime/src/status"
	"github.com/orchestra-mcp/realtime/src/types"
	"github.com/rs/zerolog"
)

var (
	ErrAlreadyStarted = errors.New("orchestrator already started")
	ErrNotRunning     = errors.New("orchestrator is not running")
)

// Dialer opens a transport for one generation.
type Dialer interface {
	Dial(ctx context.Context, url string) (types.Conn, error)
}

// Options configures an Orchestrator.
type Options struct {
	URL          string
	Dialer       Dialer
	Table        *dispatch.Table
	Store        status.Store
	Clock        clockwork.Clock
	Policy       backoff.Policy
	PingInterval time.Duration
	Metrics      *metrics.Metrics
	Logger       zerolog.Logger
}

// Orchestrator owns the ReconnectState and the current connection manager.
type Orchestrator struct {
	opts   Options
	logger zerolog.Logger

	mu      sync.Mutex
	state   types.ReconnectState
	current *connection.Manager
	timer   clockwork.Timer
	// epoch identifies the connect attempt that may install the next
	// generation; superseded attempts and timers compare unequal.
	epoch   uint64
	started bool
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates an orchestrator. Nothing is dialed until Start.
func New(opts Options) *Orchestrator {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Store == nil {
		opts.Store = status.Discard
	}
	if opts.Table == nil {
		opts.Table = dispatch.NewTable()
	}
	if opts.Policy == (backoff.Policy{}) {
		opts.Policy = backoff.DefaultPolicy()
	}
	return &Orchestrator{
		opts:   opts,
		logger: opts.Logger.With().Str("component", "reconnect").Logger(),
	}
}

// Start dials the first generation. The session lives until ctx is done or
// Stop is called. A failed first dial is retried with backoff.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return ErrAlreadyStarted
	}
	if o.stopped {
		o.mu.Unlock()
		return ErrNotRunning
	}
	o.started = true
	o.ctx, o.cancel = context.WithCancel(ctx)
	o.epoch++
	ep := o.epoch
	o.mu.Unlock()

	go func() {
		<-o.ctx.Done()
		o.Stop()
	}()

	if err := o.connect(ep); err != nil {
		o.logger.Warn().Err(err).Msg("initial connect failed, retrying")
	}
	return nil
}

// Retry is the abnormal-closure trigger handed to every manager. Calls from
// a generation that is no longer current are ignored.
func (o *Orchestrator) Retry(generation string, code int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.stopped || o.current == nil || o.current.Generation() != generation {
		o.logger.Debug().Str("generation", generation).Msg("ignoring retry from stale generation")
		return
	}
	o.scheduleLocked(code)
}

// Reconnect replaces the current generation immediately without touching the
// backoff history.
func (o *Orchestrator) Reconnect() error {
	o.mu.Lock()
	if !o.started || o.stopped {
		o.mu.Unlock()
		return ErrNotRunning
	}
	o.epoch++
	ep := o.epoch
	o.stopTimerLocked()
	o.mu.Unlock()

	o.logger.Info().Msg("manual reconnect requested")
	return o.connect(ep)
}

// Stop ends the session: a pending reconnect is cancelled and the current
// generation is cleaned up. Safe to call more than once.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	o.stopTimerLocked()
	cur := o.current
	cancel := o.cancel
	o.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if cur != nil {
		cur.Cleanup()
	}
	o.logger.Info().Msg("session stopped")
}

// State returns a copy of the reconnect history.
func (o *Orchestrator) State() types.ReconnectState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Current returns the live manager, or nil between generations.
func (o *Orchestrator) Current() *connection.Manager {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

func (o *Orchestrator) scheduleLocked(code int) {
	o.state = backoff.Record(o.opts.Policy, o.state, o.opts.Clock.Now())
	delay := backoff.NextDelay(o.opts.Policy, o.state)
	o.state.Retrying = true
	o.opts.Store.SetReconnectState(o.state)
	o.opts.Metrics.ReconnectScheduled(delay)

	o.epoch++
	ep := o.epoch
	o.stopTimerLocked()
	o.timer = o.opts.Clock.AfterFunc(delay, func() {
		if err := o.connect(ep); err != nil {
			o.logger.Warn().Err(err).Msg("reconnect failed")
		}
	})

	o.logger.Info().
		Int("code", code).
		Int("attempts", o.state.Attempts).
		Dur("delay", delay).
		Msg("reconnect scheduled")
}

func (o *Orchestrator) stopTimerLocked() {
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
}

// connect retires the current generation and installs a new one, provided
// ep is still the latest attempt.
func (o *Orchestrator) connect(ep uint64) error {
	o.mu.Lock()
	if o.stopped || ep != o.epoch {
		o.mu.Unlock()
		return nil
	}
	o.timer = nil
	old := o.current
	o.current = nil
	ctx := o.ctx
	o.mu.Unlock()

	if old != nil {
		old.Cleanup()
	}

	conn, err := o.opts.Dialer.Dial(ctx, o.opts.URL)

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.stopped || ep != o.epoch {
		if conn != nil {
			_ = conn.CloseWithCode(types.CloseNormal, "superseded")
		}
		return nil
	}
	if err != nil {
		o.scheduleLocked(types.CloseAbnormal)
		return fmt.Errorf("dial %s: %w", o.opts.URL, err)
	}

	gen := uuid.NewString()
	mgr := connection.New(connection.Options{
		Generation:      gen,
		Conn:            conn,
		Table:           o.opts.Table,
		Store:           o.opts.Store,
		Clock:           o.opts.Clock,
		PingInterval:    o.opts.PingInterval,
		OnAbnormalClose: o.Retry,
		Metrics:         o.opts.Metrics,
		Logger:          o.opts.Logger,
	})
	o.current = mgr
	o.state.Retrying = false
	o.opts.Store.SetReconnectState(o.state)
	o.opts.Metrics.GenerationStarted()

	go mgr.Run(ctx)

	o.logger.Info().Str("generation", gen).Msg("generation started")
	return nil
}
