package status

import (
	"maps"
	"sync"

	"github.com/orchestra-mcp/realtime/src/types"
)

// MemoryStore keeps the latest state in process for the HTTP status routes.
// Updates from a generation other than the most recent one are ignored.
type MemoryStore struct {
	mu         sync.RWMutex
	generation string
	connection types.ConnectionState
	err        *types.Error
	reconnect  types.ReconnectState
	sessions   map[string]SessionStatus
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]SessionStatus)}
}

func (m *MemoryStore) SetConnectionState(generation string, s types.ConnectionState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if generation != m.generation {
		m.generation = generation
		m.err = nil
	}
	m.connection = s
}

func (m *MemoryStore) SetError(generation string, err *types.Error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if generation != m.generation {
		return
	}
	m.err = err
}

func (m *MemoryStore) ClearError(generation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if generation != m.generation {
		return
	}
	m.err = nil
}

func (m *MemoryStore) SetReconnectState(s types.ReconnectState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconnect = s
}

func (m *MemoryStore) SetSessionStatus(scope string, s SessionStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[scope] = s
}

// Snapshot returns a copy of the stored state.
func (m *MemoryStore) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		Generation: m.generation,
		Connection: m.connection,
		Error:      m.err,
		Reconnect:  m.reconnect,
		Sessions:   maps.Clone(m.sessions),
	}
}
