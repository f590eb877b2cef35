package connection

import (
	"errors"
	"time"

	"github.com/orchestra-mcp/realtime/src/codec"
	"github.com/orchestra-mcp/realtime/src/types"
)

// EventKind identifies an input to the connection state machine.
type EventKind int

const (
	EventOpen EventKind = iota
	EventMessage
	EventDispatched
	EventPingSent
	EventTransportError
	EventClose
)

// String returns the string representation of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventOpen:
		return "open"
	case EventMessage:
		return "message"
	case EventDispatched:
		return "dispatched"
	case EventPingSent:
		return "ping_sent"
	case EventTransportError:
		return "transport_error"
	case EventClose:
		return "close"
	default:
		return "unknown"
	}
}

// Event is one input to Transition.
type Event struct {
	Kind   EventKind
	At     time.Time
	Ready  bool   // EventOpen: the transport can send
	Data   []byte // EventMessage: raw frame
	Err    error  // EventDispatched: handler outcome, nil on success; EventTransportError: cause
	Code   int    // EventClose
	Reason string // EventClose
}

// Effect is a side effect the manager performs after a transition.
type Effect interface {
	effect()
}

type (
	StartKeepalive struct{}
	StopKeepalive  struct{}
	SendKickoff    struct{}
	Dispatch       struct{ Envelope types.Envelope }
	ReportError    struct{ Err *types.Error }
	ClearError     struct{}
	RequestRetry   struct{ Code int }
)

func (StartKeepalive) effect() {}
func (StopKeepalive) effect()  {}
func (SendKickoff) effect()    {}
func (Dispatch) effect()       {}
func (ReportError) effect()    {}
func (ClearError) effect()     {}
func (RequestRetry) effect()   {}

// Transition applies ev to s and returns the next state with the effects to run.
// It performs no I/O.
func Transition(s types.ConnectionState, ev Event) (types.ConnectionState, []Effect) {
	switch ev.Kind {
	case EventOpen:
		if !ev.Ready || s.Phase != types.Connecting {
			return s, nil
		}
		s.Phase = types.Open
		s.Open = true
		effects := []Effect{StartKeepalive{}}
		if !s.KickoffSent {
			s.KickoffSent = true
			effects = append(effects, SendKickoff{})
		}
		return s, effects

	case EventMessage:
		s.LastReceived = ev.At
		env, err := codec.Parse(ev.Data)
		if err != nil {
			return fail(s, asError(err, types.KindMalformedMessage))
		}
		return s, []Effect{Dispatch{Envelope: env}}

	case EventDispatched:
		if ev.Err != nil {
			return fail(s, asError(ev.Err, types.KindHandlerFailure))
		}
		s.Error = nil
		return s, []Effect{ClearError{}}

	case EventPingSent:
		s.LastPing = ev.At
		return s, nil

	case EventTransportError:
		return fail(s, types.NewError(types.KindTransportError, ev.Err, "websocket error"))

	case EventClose:
		if s.Phase == types.Closed {
			return s, nil
		}
		s.Open = false
		s.Phase = types.Closed
		effects := []Effect{StopKeepalive{}}
		if types.IsAbnormalClose(ev.Code) {
			e := types.NewError(types.KindAbnormalClosure, nil, "connection closed abnormally with code %d", ev.Code)
			s.Error = e
			effects = append(effects, ReportError{Err: e}, RequestRetry{Code: ev.Code})
		}
		return s, effects
	}
	return s, nil
}

func fail(s types.ConnectionState, e *types.Error) (types.ConnectionState, []Effect) {
	s.Error = e
	return s, []Effect{ReportError{Err: e}}
}

// asError keeps a classified error as is and classifies anything else as kind.
func asError(err error, kind types.ErrorKind) *types.Error {
	var e *types.Error
	if errors.As(err, &e) {
		return e
	}
	return &types.Error{Kind: kind, Message: err.Error(), Cause: err}
}
