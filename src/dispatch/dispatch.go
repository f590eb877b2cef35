// Package dispatch routes validated envelopes to the handler registered
// for their message type.
package dispatch

import (
	"fmt"
	"sync"

	"github.com/orchestra-mcp/realtime/src/types"
)

// Sender is the send primitive handlers may use to answer the server.
type Sender interface {
	Send(env types.Envelope) error
}

// Context is what a handler receives for one frame.
type Context struct {
	Message    types.Envelope
	Connection types.ConnectionState
	Sender     Sender
}

// Handler handles one inbound frame. A non-nil error is a handler failure.
type Handler func(hc Context) error

// Table holds one handler slot per inbound message type.
type Table struct {
	mu            sync.RWMutex
	pong          Handler
	sessionStatus Handler
	serverError   Handler
}

// NewTable creates an empty dispatch table.
func NewTable() *Table {
	return &Table{}
}

// Register installs h for mt, replacing any previous handler.
func (t *Table) Register(mt types.MessageType, h Handler) error {
	if h == nil {
		return fmt.Errorf("nil handler for message type %q", mt)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	switch mt {
	case types.TypePong:
		t.pong = h
	case types.TypeSessionStatusV2:
		t.sessionStatus = h
	case types.TypeError:
		t.serverError = h
	default:
		return fmt.Errorf("message type %q cannot be handled", mt)
	}
	return nil
}

// Resolve returns the handler for env or an unknown-message-type error.
func (t *Table) Resolve(env types.Envelope) (Handler, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var h Handler
	switch env.Kind() {
	case types.TypePong:
		h = t.pong
	case types.TypeSessionStatusV2:
		h = t.sessionStatus
	case types.TypeError:
		h = t.serverError
	case types.TypeUnknown, types.TypePing, types.TypePullSessionStatusV2:
	}

	if h == nil {
		return nil, types.NewError(types.KindUnknownMessageType, nil, "no handler for message type %q", env.Type)
	}
	return h, nil
}

// Invoke runs h and turns a returned error or a panic into a handler failure.
func Invoke(h Handler, hc Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = types.NewError(types.KindHandlerFailure, nil, "handler for %q panicked: %v", hc.Message.Type, r)
		}
	}()

	if herr := h(hc); herr != nil {
		return &types.Error{Kind: types.KindHandlerFailure, Message: herr.Error(), Cause: herr}
	}
	return nil
}
