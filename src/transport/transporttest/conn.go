// Package transporttest provides an in-memory types.Conn for tests.
package transporttest

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/orchestra-mcp/realtime/src/types"
)

// ErrClosed is returned by WriteText after the conn was closed.
var ErrClosed = errors.New("transporttest: conn closed")

// Conn records written frames and lets tests inject socket events.
type Conn struct {
	mu         sync.Mutex
	events     chan types.TransportEvent
	written    [][]byte
	ready      bool
	closed     bool
	closeCodes []int
	writeErr   error
}

// NewConn returns a ready conn with an empty event queue.
func NewConn() *Conn {
	return &Conn{
		events: make(chan types.TransportEvent, 64),
		ready:  true,
	}
}

func (c *Conn) Events() <-chan types.TransportEvent { return c.events }

func (c *Conn) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready && !c.closed
}

func (c *Conn) WriteText(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.writeErr != nil {
		return c.writeErr
	}
	c.written = append(c.written, append([]byte(nil), data...))
	return nil
}

func (c *Conn) CloseWithCode(code int, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.closeCodes = append(c.closeCodes, code)
	return nil
}

// SetReady controls what Ready reports.
func (c *Conn) SetReady(ready bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready = ready
}

// FailWrites makes every later WriteText return err.
func (c *Conn) FailWrites(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeErr = err
}

// Open queues an open event.
func (c *Conn) Open() { c.events <- types.TransportEvent{Kind: types.TransportOpen} }

// Receive queues an inbound text frame.
func (c *Conn) Receive(text string) {
	c.events <- types.TransportEvent{Kind: types.TransportMessage, Data: []byte(text)}
}

// Fail queues a transport error event.
func (c *Conn) Fail(err error) { c.events <- types.TransportEvent{Kind: types.TransportError, Err: err} }

// Drop queues a close event with code.
func (c *Conn) Drop(code int) { c.events <- types.TransportEvent{Kind: types.TransportClose, Code: code} }

// Written returns copies of all frames written so far.
func (c *Conn) Written() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.written))
	copy(out, c.written)
	return out
}

// WrittenTypes returns the "type" field of every written frame.
func (c *Conn) WrittenTypes() []string {
	var out []string
	for _, frame := range c.Written() {
		var head struct {
			Type string `json:"type"`
		}
		_ = json.Unmarshal(frame, &head)
		out = append(out, head.Type)
	}
	return out
}

// CountWritten returns how many written frames have the given type.
func (c *Conn) CountWritten(msgType string) int {
	n := 0
	for _, t := range c.WrittenTypes() {
		if t == msgType {
			n++
		}
	}
	return n
}

// CloseCodes returns the codes of every CloseWithCode call.
func (c *Conn) CloseCodes() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.closeCodes...)
}
