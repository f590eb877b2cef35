package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures recovered by the connection manager.
type ErrorKind int

const (
	KindMalformedMessage ErrorKind = iota + 1
	KindUnknownMessageType
	KindHandlerFailure
	KindTransportError
	KindAbnormalClosure
)

// String returns the string representation of the kind.
func (k ErrorKind) String() string {
	switch k {
	case KindMalformedMessage:
		return "malformed_message"
	case KindUnknownMessageType:
		return "unknown_message_type"
	case KindHandlerFailure:
		return "handler_failure"
	case KindTransportError:
		return "transport_error"
	case KindAbnormalClosure:
		return "abnormal_closure"
	default:
		return "unknown"
	}
}

func (k ErrorKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Error is the value written to the shared error surface.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

// NewError builds an Error with a formatted message. The cause's text is
// appended to the message.
func NewError(kind ErrorKind, cause error, format string, args ...any) *Error {
	msg := fmt.Sprintf(format, args...)
	if cause != nil {
		msg += ": " + cause.Error()
	}
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Cause }

// IsKind reports whether err carries an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
