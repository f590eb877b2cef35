package types

import "time"

// Envelope is one validated frame exchanged with the server.
type Envelope struct {
	Type      string         `json:"type"`
	Scope     string         `json:"scope,omitempty"`
	Data      map[string]any `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
}

// Kind returns the closed message type the envelope's discriminator maps to.
func (e Envelope) Kind() MessageType {
	return ParseMessageType(e.Type)
}

// TransportEventKind identifies what the underlying socket reported.
type TransportEventKind int

const (
	TransportOpen TransportEventKind = iota
	TransportMessage
	TransportError
	TransportClose
)

// String returns the string representation of the event kind.
func (k TransportEventKind) String() string {
	switch k {
	case TransportOpen:
		return "open"
	case TransportMessage:
		return "message"
	case TransportError:
		return "error"
	case TransportClose:
		return "close"
	default:
		return "unknown"
	}
}

// TransportEvent is delivered by a Conn for every socket callback.
type TransportEvent struct {
	Kind   TransportEventKind
	Data   []byte // text payload for TransportMessage
	Code   int    // close code for TransportClose
	Reason string // close reason for TransportClose
	Err    error  // cause for TransportError
}

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	// Events delivers open, message, error and close notifications in order.
	Events() <-chan TransportEvent
	// WriteText sends one text frame.
	WriteText(data []byte) error
	// Ready reports whether the socket can currently send.
	Ready() bool
	// CloseWithCode sends a close frame and releases the socket.
	CloseWithCode(code int, reason string) error
}

// Close codes consumed by the connection manager.
const (
	CloseNormal        = 1000
	CloseAbnormal      = 1006
	CloseForcedRestart = 4000
)

// IsAbnormalClose reports whether a close code must trigger a reconnect.
func IsAbnormalClose(code int) bool {
	return code == CloseAbnormal || code == CloseForcedRestart
}

// Phase is the coarse connection state of one generation.
type Phase int

const (
	Connecting Phase = iota
	Open
	Closing
	Closed
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	switch p {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closing:
		return "closing"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// ConnectionState is owned by a single connection manager.
// Zero times mean the event has not happened yet.
type ConnectionState struct {
	Phase        Phase     `json:"phase"`
	Open         bool      `json:"open"`
	LastPing     time.Time `json:"last_ping"`
	LastReceived time.Time `json:"last_received"`
	Error        *Error    `json:"error,omitempty"`
	KickoffSent  bool      `json:"kickoff_sent"`
}

// ReconnectState outlives individual connections and is owned by the orchestrator.
type ReconnectState struct {
	Attempts int       `json:"attempts"`
	Retrying bool      `json:"retrying"`
	LastTime time.Time `json:"last_time"`
}
