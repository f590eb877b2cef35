package service

import (
	"errors"

	"github.com/orchestra-mcp/realtime/src/dispatch"
	"github.com/orchestra-mcp/realtime/src/reconnect"
	"github.com/orchestra-mcp/realtime/src/status"
	"github.com/orchestra-mcp/realtime/src/types"
	"github.com/rs/zerolog"
)

// ErrNotConnected is returned by Send between generations.
var ErrNotConnected = errors.New("realtime connection is not established")

// Service is the API the hosting application uses to talk to the realtime
// connection.
type Service struct {
	orch   *reconnect.Orchestrator
	table  *dispatch.Table
	store  *status.MemoryStore
	logger zerolog.Logger
}

// New creates a service over an orchestrator, the dispatch table its
// generations share and the store they report to.
func New(orch *reconnect.Orchestrator, table *dispatch.Table, store *status.MemoryStore, logger zerolog.Logger) *Service {
	return &Service{orch: orch, table: table, store: store, logger: logger}
}

// Orchestrator returns the underlying orchestrator.
func (s *Service) Orchestrator() *reconnect.Orchestrator { return s.orch }

// RegisterHandler registers a handler for an inbound message type.
func (s *Service) RegisterHandler(mt types.MessageType, h dispatch.Handler) error {
	if err := s.table.Register(mt, h); err != nil {
		return err
	}
	s.logger.Debug().Str("type", mt.String()).Msg("handler registered")
	return nil
}

// Send writes env on the current generation.
func (s *Service) Send(env types.Envelope) error {
	mgr := s.orch.Current()
	if mgr == nil {
		return ErrNotConnected
	}
	return mgr.Send(env)
}

// Status returns the latest state reported by the connection core.
func (s *Service) Status() status.Snapshot {
	return s.store.Snapshot()
}

// Reconnect replaces the current connection now.
func (s *Service) Reconnect() error {
	return s.orch.Reconnect()
}
