// Package handlers holds the built-in handlers for the inbound message
// types the server sends.
package handlers

import (
	"errors"
	"fmt"

	"github.com/orchestra-mcp/realtime/src/dispatch"
	"github.com/orchestra-mcp/realtime/src/status"
	"github.com/orchestra-mcp/realtime/src/types"
	"github.com/rs/zerolog"
)

// Register installs the built-in handlers on table.
func Register(table *dispatch.Table, store status.Store, logger zerolog.Logger) error {
	logger = logger.With().Str("component", "handlers").Logger()

	if err := table.Register(types.TypePong, Pong(logger)); err != nil {
		return err
	}
	if err := table.Register(types.TypeSessionStatusV2, SessionStatus(store, logger)); err != nil {
		return err
	}
	return table.Register(types.TypeError, ServerError(logger))
}

// Pong acknowledges a keepalive reply.
func Pong(logger zerolog.Logger) dispatch.Handler {
	return func(hc dispatch.Context) error {
		logger.Trace().Time("timestamp", hc.Message.Timestamp).Msg("pong")
		return nil
	}
}

// SessionStatus stores the pushed status for the message scope.
func SessionStatus(store status.Store, logger zerolog.Logger) dispatch.Handler {
	return func(hc dispatch.Context) error {
		msg := hc.Message
		if msg.Scope == "" {
			return errors.New("sessionStatusV2 without scope")
		}
		st, ok := msg.Data["status"].(string)
		if !ok || st == "" {
			return fmt.Errorf("sessionStatusV2 for %q has no status", msg.Scope)
		}

		store.SetSessionStatus(msg.Scope, status.SessionStatus{
			Status:    st,
			Data:      msg.Data,
			UpdatedAt: msg.Timestamp,
		})
		logger.Debug().Str("scope", msg.Scope).Str("status", st).Msg("session status updated")
		return nil
	}
}

// ServerError surfaces an error pushed by the server as a handler failure
// carrying the server's message.
func ServerError(logger zerolog.Logger) dispatch.Handler {
	return func(hc dispatch.Context) error {
		msg, _ := hc.Message.Data["message"].(string)
		if msg == "" {
			msg = "server reported an error"
		}
		logger.Warn().Str("scope", hc.Message.Scope).Str("message", msg).Msg("server error")
		return errors.New(msg)
	}
}
