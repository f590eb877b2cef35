package types

// MessageType is the closed set of frame types this client understands.
type MessageType int

const (
	// TypeUnknown covers server types this client does not know yet.
	TypeUnknown MessageType = iota
	TypePing
	TypePullSessionStatusV2
	TypePong
	TypeSessionStatusV2
	TypeError
)

var messageTypeNames = map[MessageType]string{
	TypePing:                "ping",
	TypePullSessionStatusV2: "pullSessionStatusV2",
	TypePong:                "pong",
	TypeSessionStatusV2:     "sessionStatusV2",
	TypeError:               "error",
}

// String returns the wire name of the type.
func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// Inbound reports whether the server sends frames of this type.
func (t MessageType) Inbound() bool {
	switch t {
	case TypePong, TypeSessionStatusV2, TypeError:
		return true
	default:
		return false
	}
}

// ParseMessageType maps a wire discriminator onto the closed set.
func ParseMessageType(s string) MessageType {
	for t, name := range messageTypeNames {
		if name == s {
			return t
		}
	}
	return TypeUnknown
}
