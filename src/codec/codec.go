// Package codec parses inbound frames into validated envelopes and
// serializes outbound ones.
package codec

import (
	"encoding/json"
	"time"

	"github.com/orchestra-mcp/realtime/src/types"
)

// timestampLayouts are tried in order; the last one accepts ISO-8601
// instants without a zone offset and reads them as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

// wireEnvelope is the JSON shape on the socket.
type wireEnvelope struct {
	Type      string         `json:"type"`
	Scope     string         `json:"scope"`
	Data      map[string]any `json:"data"`
	Timestamp string         `json:"timestamp,omitempty"`
}

// Parse validates raw and returns the envelope it carries.
// No partial envelope is ever returned.
func Parse(raw []byte) (types.Envelope, error) {
	var top any
	if err := json.Unmarshal(raw, &top); err != nil {
		return types.Envelope{}, malformed(err, "payload is not valid JSON")
	}
	obj, ok := top.(map[string]any)
	if !ok {
		return types.Envelope{}, malformed(nil, "payload is not an object")
	}

	data, ok := obj["data"].(map[string]any)
	if !ok {
		return types.Envelope{}, malformed(nil, "data must be an object")
	}
	scope, ok := obj["scope"].(string)
	if !ok {
		return types.Envelope{}, malformed(nil, "scope must be a string")
	}
	rawTS, ok := obj["timestamp"].(string)
	if !ok {
		return types.Envelope{}, malformed(nil, "timestamp must be a string")
	}
	ts, err := parseTimestamp(rawTS)
	if err != nil {
		return types.Envelope{}, malformed(err, "timestamp %q is not a valid datetime", rawTS)
	}
	typ, ok := obj["type"].(string)
	if !ok {
		return types.Envelope{}, malformed(nil, "type must be a string")
	}

	return types.Envelope{
		Type:      typ,
		Scope:     scope,
		Data:      data,
		Timestamp: ts,
	}, nil
}

// Encode serializes env. Scope is always written, data is always an object
// and the timestamp is omitted when zero.
func Encode(env types.Envelope) ([]byte, error) {
	w := wireEnvelope{
		Type:  env.Type,
		Scope: env.Scope,
		Data:  env.Data,
	}
	if w.Data == nil {
		w.Data = map[string]any{}
	}
	if !env.Timestamp.IsZero() {
		w.Timestamp = env.Timestamp.UTC().Format(time.RFC3339Nano)
	}
	return json.Marshal(w)
}

// Ping is the keepalive control frame.
func Ping() types.Envelope {
	return control(types.TypePing)
}

// PullSessionStatus asks the server to start pushing session-status events.
func PullSessionStatus() types.Envelope {
	return control(types.TypePullSessionStatusV2)
}

func control(t types.MessageType) types.Envelope {
	return types.Envelope{Type: t.String(), Data: map[string]any{}}
}

func parseTimestamp(s string) (time.Time, error) {
	var err error
	for _, layout := range timestampLayouts {
		var ts time.Time
		if ts, err = time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, err
}

func malformed(cause error, format string, args ...any) error {
	return types.NewError(types.KindMalformedMessage, cause, "message is not correctly formed: "+format, args...)
}
