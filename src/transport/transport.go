// Package transport adapts fasthttp/websocket client connections to types.Conn.
package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/orchestra-mcp/realtime/config"
	"github.com/orchestra-mcp/realtime/src/types"
	"github.com/rs/zerolog"
)

const eventBuffer = 64

// Dialer opens WebSocket connections to the server.
type Dialer struct {
	dialer       *websocket.Dialer
	header       http.Header
	writeTimeout time.Duration
	logger       zerolog.Logger
}

// Option configures a Dialer.
type Option func(*Dialer)

// WithNetDial replaces the network dial function, e.g. with an in-memory listener.
func WithNetDial(fn func(network, addr string) (net.Conn, error)) Option {
	return func(d *Dialer) {
		d.dialer.NetDial = fn
	}
}

// WithHeader adds request headers sent with the handshake.
func WithHeader(h http.Header) Option {
	return func(d *Dialer) {
		for k, vs := range h {
			for _, v := range vs {
				d.header.Add(k, v)
			}
		}
	}
}

// NewDialer creates a Dialer from the client configuration.
func NewDialer(cfg *config.ClientConfig, logger zerolog.Logger, opts ...Option) *Dialer {
	d := &Dialer{
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.InsecureSkipTLS,
			},
		},
		header:       http.Header{},
		writeTimeout: cfg.WriteTimeout,
		logger:       logger.With().Str("component", "transport").Logger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if cfg.InsecureSkipTLS {
		d.logger.Debug().Msg("TLS certificate verification disabled (insecure_skip_verify=true)")
	}
	return d
}

// Dial connects to url. The returned Conn has already queued its open event.
func (d *Dialer) Dial(ctx context.Context, url string) (types.Conn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, url, d.header)
	if err != nil {
		if resp != nil {
			d.logger.Error().Err(err).Int("status_code", resp.StatusCode).Str("url", url).Msg("websocket connection failed")
			return nil, fmt.Errorf("websocket dial %s: status %d: %w", url, resp.StatusCode, err)
		}
		d.logger.Error().Err(err).Str("url", url).Msg("websocket connection failed")
		return nil, fmt.Errorf("websocket dial %s: %w", url, err)
	}

	c := &wsConn{
		conn:         conn,
		events:       make(chan types.TransportEvent, eventBuffer),
		done:         make(chan struct{}),
		writeTimeout: d.writeTimeout,
		logger:       d.logger,
	}
	c.ready.Store(true)
	c.events <- types.TransportEvent{Kind: types.TransportOpen}

	go c.readPump()
	return c, nil
}

// wsConn wraps a fasthttp/websocket.Conn to satisfy types.Conn.
type wsConn struct {
	conn         *websocket.Conn
	events       chan types.TransportEvent
	done         chan struct{}
	closeOnce    sync.Once
	writeMu      sync.Mutex
	ready        atomic.Bool
	writeTimeout time.Duration
	logger       zerolog.Logger
}

func (c *wsConn) Events() <-chan types.TransportEvent { return c.events }

func (c *wsConn) Ready() bool { return c.ready.Load() }

func (c *wsConn) WriteText(data []byte) error {
	if !c.Ready() {
		return errors.New("websocket is not open")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) CloseWithCode(code int, reason string) error {
	var err error
	c.closeOnce.Do(func() {
		c.ready.Store(false)
		close(c.done)

		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, reason),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()

		err = c.conn.Close()
	})
	return err
}

// readPump turns socket reads into events until the socket fails or closes.
func (c *wsConn) readPump() {
	defer close(c.events)

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			c.ready.Store(false)
			c.emit(c.closeEvent(err))
			return
		}

		if messageType != websocket.TextMessage {
			c.logger.Debug().Int("message_type", messageType).Msg("ignoring non-text message")
			continue
		}
		c.emit(types.TransportEvent{Kind: types.TransportMessage, Data: message})
	}
}

// closeEvent classifies a read error. Anything but a close frame or a
// local close is reported as an error followed by an abnormal closure.
func (c *wsConn) closeEvent(err error) types.TransportEvent {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return types.TransportEvent{Kind: types.TransportClose, Code: ce.Code, Reason: ce.Text}
	}

	select {
	case <-c.done:
		return types.TransportEvent{Kind: types.TransportClose, Code: types.CloseNormal}
	default:
	}

	c.emit(types.TransportEvent{Kind: types.TransportError, Err: err})
	return types.TransportEvent{Kind: types.TransportClose, Code: types.CloseAbnormal, Reason: err.Error()}
}

func (c *wsConn) emit(ev types.TransportEvent) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}
