// Package status is the shared surface the realtime client writes its
// connection state, errors and session-status updates to. The client never
// reads it back for its own decisions.
package status

import (
	"time"

	"github.com/orchestra-mcp/realtime/src/types"
)

// Store receives state updates from the connection core.
type Store interface {
	SetConnectionState(generation string, s types.ConnectionState)
	SetError(generation string, err *types.Error)
	ClearError(generation string)
	SetReconnectState(s types.ReconnectState)
	SetSessionStatus(scope string, s SessionStatus)
}

// SessionStatus is the latest status the server pushed for one scope.
type SessionStatus struct {
	Status    string         `json:"status"`
	Data      map[string]any `json:"data,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Snapshot is a point-in-time copy of everything a MemoryStore holds.
type Snapshot struct {
	Generation string                   `json:"generation"`
	Connection types.ConnectionState    `json:"connection"`
	Error      *types.Error             `json:"error,omitempty"`
	Reconnect  types.ReconnectState     `json:"reconnect"`
	Sessions   map[string]SessionStatus `json:"sessions"`
}

// Tee fans every update out to all stores in order.
func Tee(stores ...Store) Store {
	return tee(stores)
}

type tee []Store

func (t tee) SetConnectionState(generation string, s types.ConnectionState) {
	for _, st := range t {
		st.SetConnectionState(generation, s)
	}
}

func (t tee) SetError(generation string, err *types.Error) {
	for _, st := range t {
		st.SetError(generation, err)
	}
}

func (t tee) ClearError(generation string) {
	for _, st := range t {
		st.ClearError(generation)
	}
}

func (t tee) SetReconnectState(s types.ReconnectState) {
	for _, st := range t {
		st.SetReconnectState(s)
	}
}

func (t tee) SetSessionStatus(scope string, s SessionStatus) {
	for _, st := range t {
		st.SetSessionStatus(scope, s)
	}
}

// Discard is a Store that drops every update.
var Discard Store = discard{}

type discard struct{}

func (discard) SetConnectionState(string, types.ConnectionState) {}
func (discard) SetError(string, *types.Error)                    {}
func (discard) ClearError(string)                                {}
func (discard) SetReconnectState(types.ReconnectState)           {}
func (discard) SetSessionStatus(string, SessionStatus)           {}
