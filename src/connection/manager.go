// Package connection owns one socket generation: its state machine, its
// keepalive loop and the dispatch of inbound frames.
package connection

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/orchestra-mcp/realtime/src/codec"
	"github.com/orchestra-mcp/realtime/src/dispatch"
	"github.com/orchestra-mcp/realtime/src/metrics"
	"github.com/orchestra-mcp/realtime/src/status"
	"github.com/orchestra-mcp/realtime/src/types"
	"github.com/rs/zerolog"
)

// ErrInactive is returned by Send once the manager has been cleaned up.
var ErrInactive = errors.New("connection manager is no longer active")

// RetryFunc is the external retry trigger called on abnormal closure.
type RetryFunc func(generation string, code int)

// Options configures a Manager.
type Options struct {
	Generation      string
	Conn            types.Conn
	Table           *dispatch.Table
	Store           status.Store
	Clock           clockwork.Clock
	PingInterval    time.Duration // <= 0 disables keepalive pings
	OnAbnormalClose RetryFunc
	Metrics         *metrics.Metrics
	Logger          zerolog.Logger
}

// Manager drives one socket generation. All transport events and keepalive
// ticks are handled on the goroutine running Run.
type Manager struct {
	generation   string
	conn         types.Conn
	table        *dispatch.Table
	store        status.Store
	clock        clockwork.Clock
	pingInterval time.Duration
	retry        RetryFunc
	metrics      *metrics.Metrics
	logger       zerolog.Logger

	mu     sync.RWMutex
	state  types.ConnectionState
	active bool

	ctx         context.Context
	cancel      context.CancelFunc
	done        chan struct{}
	cleanupOnce sync.Once

	// owned by the event loop
	ticker clockwork.Ticker
	tick   <-chan time.Time
}

// New creates a manager in the Connecting phase.
func New(opts Options) *Manager {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Store == nil {
		opts.Store = status.Discard
	}
	if opts.Table == nil {
		opts.Table = dispatch.NewTable()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		generation:   opts.Generation,
		conn:         opts.Conn,
		table:        opts.Table,
		store:        opts.Store,
		clock:        opts.Clock,
		pingInterval: opts.PingInterval,
		retry:        opts.OnAbnormalClose,
		metrics:      opts.Metrics,
		logger: opts.Logger.With().
			Str("component", "connection").
			Str("generation", opts.Generation).
			Logger(),
		state:  types.ConnectionState{Phase: types.Connecting},
		active: true,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Generation returns the id of the socket generation this manager drives.
func (m *Manager) Generation() string { return m.generation }

// State returns a snapshot of the connection state.
func (m *Manager) State() types.ConnectionState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Done is closed when Run returns.
func (m *Manager) Done() <-chan struct{} { return m.done }

func (m *Manager) isActive() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

// Run is the event loop. It returns when ctx is cancelled, Cleanup is
// called or the transport stops delivering events.
func (m *Manager) Run(ctx context.Context) {
	defer close(m.done)
	defer m.stopKeepalive()

	m.mu.Lock()
	if m.active {
		m.store.SetConnectionState(m.generation, m.state)
	}
	m.mu.Unlock()
	events := m.conn.Events()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				m.logger.Debug().Msg("transport event stream ended")
				return
			}
			m.handleTransport(ev)
		case <-m.tick:
			m.ping()
		}
	}
}

// Send encodes env and writes it to the socket.
func (m *Manager) Send(env types.Envelope) error {
	if !m.isActive() {
		return ErrInactive
	}
	data, err := codec.Encode(env)
	if err != nil {
		return fmt.Errorf("encode %s: %w", env.Type, err)
	}
	if err := m.conn.WriteText(data); err != nil {
		return fmt.Errorf("send %s: %w", env.Type, err)
	}
	m.metrics.FrameSent(env.Type)
	return nil
}

// Cleanup retires the manager: later events are ignored, the loop stops and
// the socket is closed with the normal closure code. Safe to call repeatedly.
func (m *Manager) Cleanup() {
	m.cleanupOnce.Do(func() {
		m.mu.Lock()
		m.active = false
		m.state.Open = false
		m.state.Phase = types.Closing
		m.mu.Unlock()

		m.cancel()
		if err := m.conn.CloseWithCode(types.CloseNormal, "client closing connection"); err != nil {
			m.logger.Debug().Err(err).Msg("close on cleanup failed")
		}

		m.mu.Lock()
		m.state.Phase = types.Closed
		m.store.SetConnectionState(m.generation, m.state)
		m.mu.Unlock()

		m.metrics.SetOpen(false)
		m.logger.Info().Msg("connection cleaned up")
	})
}

func (m *Manager) handleTransport(ev types.TransportEvent) {
	now := m.clock.Now()

	switch ev.Kind {
	case types.TransportOpen:
		m.handle(Event{Kind: EventOpen, At: now, Ready: m.conn.Ready()})
	case types.TransportMessage:
		m.handle(Event{Kind: EventMessage, At: now, Data: ev.Data})
	case types.TransportError:
		m.handle(Event{Kind: EventTransportError, At: now, Err: ev.Err})
	case types.TransportClose:
		if m.isActive() {
			m.metrics.Closed(strconv.Itoa(ev.Code))
		}
		m.handle(Event{Kind: EventClose, At: now, Code: ev.Code, Reason: ev.Reason})
	}
}

// handle applies one event. Events reaching a retired manager are dropped.
func (m *Manager) handle(ev Event) {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		m.logger.Debug().Str("event", ev.Kind.String()).Msg("ignoring event from retired connection")
		return
	}
	prev := m.state
	next, effects := Transition(prev, ev)
	m.state = next
	// written under the lock so a concurrent Cleanup always lands last
	m.store.SetConnectionState(m.generation, next)
	m.mu.Unlock()

	if prev.Phase != next.Phase {
		m.logger.Info().
			Str("from", prev.Phase.String()).
			Str("to", next.Phase.String()).
			Msg("connection state changed")
	}
	m.metrics.SetOpen(next.Open)

	for _, eff := range effects {
		m.apply(eff)
	}
}

func (m *Manager) apply(eff Effect) {
	switch e := eff.(type) {
	case StartKeepalive:
		m.startKeepalive()
	case StopKeepalive:
		m.stopKeepalive()
	case SendKickoff:
		m.kickoff()
	case Dispatch:
		m.dispatch(e.Envelope)
	case ReportError:
		m.reportError(e.Err)
	case ClearError:
		m.store.ClearError(m.generation)
	case RequestRetry:
		if m.retry != nil && m.isActive() {
			m.retry(m.generation, e.Code)
		}
	}
}

func (m *Manager) kickoff() {
	if !m.conn.Ready() {
		return
	}
	if err := m.Send(codec.PullSessionStatus()); err != nil {
		m.handle(Event{Kind: EventTransportError, At: m.clock.Now(), Err: err})
		return
	}
	m.logger.Debug().Msg("requested session status updates")
}

func (m *Manager) dispatch(env types.Envelope) {
	m.metrics.FrameReceived(env.Type)

	h, err := m.table.Resolve(env)
	if err == nil {
		start := m.clock.Now()
		err = dispatch.Invoke(h, dispatch.Context{
			Message:    env,
			Connection: m.State(),
			Sender:     m,
		})
		m.metrics.ObserveHandler(env.Type, m.clock.Since(start))
	}
	m.handle(Event{Kind: EventDispatched, At: m.clock.Now(), Err: err})
}

func (m *Manager) reportError(e *types.Error) {
	m.store.SetError(m.generation, e)

	switch e.Kind {
	case types.KindMalformedMessage, types.KindUnknownMessageType, types.KindHandlerFailure:
		m.metrics.FrameRejected(e.Kind.String())
	}
	m.logger.Warn().Str("kind", e.Kind.String()).Err(e).Msg("connection error")
}

func (m *Manager) startKeepalive() {
	if m.pingInterval <= 0 || m.ticker != nil {
		return
	}
	m.ticker = m.clock.NewTicker(m.pingInterval)
	m.tick = m.ticker.Chan()
	m.logger.Debug().Dur("interval", m.pingInterval).Msg("keepalive started")
}

func (m *Manager) stopKeepalive() {
	if m.ticker == nil {
		return
	}
	m.ticker.Stop()
	m.ticker = nil
	m.tick = nil
	m.logger.Debug().Msg("keepalive stopped")
}

func (m *Manager) ping() {
	if !m.State().Open {
		return
	}
	if err := m.Send(codec.Ping()); err != nil {
		m.handle(Event{Kind: EventTransportError, At: m.clock.Now(), Err: err})
		return
	}
	m.handle(Event{Kind: EventPingSent, At: m.clock.Now()})
}
