package transport

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/orchestra-mcp/realtime/config"
	"github.com/orchestra-mcp/realtime/src/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

const testURL = "ws://realtime.test/api/ws"

// newTestServer serves handler over an in-memory listener and returns a
// dialer wired to it.
func newTestServer(t *testing.T, handler func(conn *websocket.Conn)) *Dialer {
	t.Helper()

	ln := fasthttputil.NewInmemoryListener()
	upgrader := websocket.FastHTTPUpgrader{
		CheckOrigin: func(*fasthttp.RequestCtx) bool { return true },
	}
	srv := &fasthttp.Server{
		Handler: func(ctx *fasthttp.RequestCtx) {
			_ = upgrader.Upgrade(ctx, handler)
		},
	}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = ln.Close() })

	cfg := config.DefaultConfig()
	return NewDialer(cfg, zerolog.Nop(), WithNetDial(func(string, string) (net.Conn, error) {
		return ln.Dial()
	}))
}

func nextEvent(t *testing.T, c types.Conn) types.TransportEvent {
	t.Helper()
	select {
	case ev, ok := <-c.Events():
		require.True(t, ok, "event channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for transport event")
		return types.TransportEvent{}
	}
}

func TestDialDeliversMessagesAndCloseCode(t *testing.T) {
	d := newTestServer(t, func(conn *websocket.Conn) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"pong"}`))
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte{0x1})
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(types.CloseForcedRestart, "reset"))
		_, _, _ = conn.ReadMessage()
	})

	c, err := d.Dial(context.Background(), testURL)
	require.NoError(t, err)
	defer c.CloseWithCode(types.CloseNormal, "")

	assert.True(t, c.Ready())
	assert.Equal(t, types.TransportOpen, nextEvent(t, c).Kind)

	msg := nextEvent(t, c)
	assert.Equal(t, types.TransportMessage, msg.Kind)
	assert.JSONEq(t, `{"type":"pong"}`, string(msg.Data))

	closed := nextEvent(t, c)
	assert.Equal(t, types.TransportClose, closed.Kind)
	assert.Equal(t, types.CloseForcedRestart, closed.Code)
	assert.Equal(t, "reset", closed.Reason)
	assert.False(t, c.Ready())
}

func TestWriteTextAndNormalClose(t *testing.T) {
	received := make(chan string, 1)
	closeCode := make(chan int, 1)

	d := newTestServer(t, func(conn *websocket.Conn) {
		_, data, err := conn.ReadMessage()
		if err == nil {
			received <- string(data)
		}
		_, _, err = conn.ReadMessage()
		var ce *websocket.CloseError
		if errors.As(err, &ce) {
			closeCode <- ce.Code
		}
	})

	c, err := d.Dial(context.Background(), testURL)
	require.NoError(t, err)

	require.NoError(t, c.WriteText([]byte(`{"type":"ping","data":{}}`)))
	select {
	case got := <-received:
		assert.JSONEq(t, `{"type":"ping","data":{}}`, got)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not receive frame")
	}

	require.NoError(t, c.CloseWithCode(types.CloseNormal, "client shutdown"))
	assert.NoError(t, c.CloseWithCode(types.CloseNormal, "again"), "second close is a no-op")
	assert.Error(t, c.WriteText([]byte("late")))

	select {
	case code := <-closeCode:
		assert.Equal(t, types.CloseNormal, code)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not observe close frame")
	}
}

func TestDroppedConnectionIsAbnormal(t *testing.T) {
	d := newTestServer(t, func(conn *websocket.Conn) {
		_ = conn.UnderlyingConn().Close()
	})

	c, err := d.Dial(context.Background(), testURL)
	require.NoError(t, err)
	defer c.CloseWithCode(types.CloseNormal, "")

	assert.Equal(t, types.TransportOpen, nextEvent(t, c).Kind)

	var last types.TransportEvent
	for last.Kind != types.TransportClose {
		last = nextEvent(t, c)
	}
	assert.Equal(t, types.CloseAbnormal, last.Code)
	assert.True(t, types.IsAbnormalClose(last.Code))
}

func TestDialFailure(t *testing.T) {
	d := NewDialer(config.DefaultConfig(), zerolog.Nop(), WithNetDial(func(string, string) (net.Conn, error) {
		return nil, errors.New("connection refused")
	}))

	c, err := d.Dial(context.Background(), testURL)
	assert.Nil(t, c)
	assert.ErrorContains(t, err, "connection refused")
}
