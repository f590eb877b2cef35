package providers

import (
	"github.com/orchestra-mcp/realtime/src/connection"
	"github.com/orchestra-mcp/realtime/src/dispatch"
	"github.com/orchestra-mcp/realtime/src/reconnect"
	"github.com/orchestra-mcp/realtime/src/status"
	"github.com/orchestra-mcp/realtime/src/transport"
)

// Compile-time interface assertions.
var (
	_ reconnect.Dialer = (*transport.Dialer)(nil)
	_ status.Store     = (*status.MemoryStore)(nil)
	_ status.Store     = (*status.RedisStore)(nil)
	_ dispatch.Sender  = (*connection.Manager)(nil)
)
