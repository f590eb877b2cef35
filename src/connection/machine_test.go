package connection

import (
	"errors"
	"testing"
	"time"

	"github.com/orchestra-mcp/realtime/src/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func connecting() types.ConnectionState {
	return types.ConnectionState{Phase: types.Connecting}
}

func TestOpenStartsKeepaliveAndKickoffOnce(t *testing.T) {
	s, effects := Transition(connecting(), Event{Kind: EventOpen, At: t0, Ready: true})

	assert.Equal(t, types.Open, s.Phase)
	assert.True(t, s.Open)
	assert.True(t, s.KickoffSent)
	assert.Equal(t, []Effect{StartKeepalive{}, SendKickoff{}}, effects)

	// a repeated open in the same generation is ignored
	s2, effects := Transition(s, Event{Kind: EventOpen, At: t0, Ready: true})
	assert.Equal(t, s, s2)
	assert.Empty(t, effects)
}

func TestOpenRequiresReadyTransport(t *testing.T) {
	s, effects := Transition(connecting(), Event{Kind: EventOpen, At: t0, Ready: false})
	assert.Equal(t, types.Connecting, s.Phase)
	assert.False(t, s.Open)
	assert.Empty(t, effects)
}

func TestMalformedMessageKeepsConnectionOpen(t *testing.T) {
	s, _ := Transition(connecting(), Event{Kind: EventOpen, At: t0, Ready: true})

	s, effects := Transition(s, Event{Kind: EventMessage, At: t0.Add(time.Second), Data: []byte("not-json")})

	assert.True(t, s.Open)
	assert.Equal(t, t0.Add(time.Second), s.LastReceived)
	require.NotNil(t, s.Error)
	assert.Equal(t, types.KindMalformedMessage, s.Error.Kind)
	assert.Contains(t, s.Error.Message, "not correctly formed")
	require.Len(t, effects, 1)
	assert.IsType(t, ReportError{}, effects[0])
}

func TestValidMessageDispatches(t *testing.T) {
	raw := `{"type":"pong","scope":"","data":{},"timestamp":"2024-03-01T09:00:01Z"}`
	s, effects := Transition(connecting(), Event{Kind: EventMessage, At: t0, Data: []byte(raw)})

	assert.Nil(t, s.Error)
	require.Len(t, effects, 1)
	d, ok := effects[0].(Dispatch)
	require.True(t, ok)
	assert.Equal(t, "pong", d.Envelope.Type)
}

func TestDispatchOutcome(t *testing.T) {
	failed, effects := Transition(connecting(), Event{Kind: EventDispatched, Err: errors.New("boom")})
	require.NotNil(t, failed.Error)
	assert.Equal(t, types.KindHandlerFailure, failed.Error.Kind)
	assert.Equal(t, "boom", failed.Error.Message)
	assert.IsType(t, ReportError{}, effects[0])

	unknown := types.NewError(types.KindUnknownMessageType, nil, "no handler")
	s, _ := Transition(connecting(), Event{Kind: EventDispatched, Err: unknown})
	assert.Equal(t, types.KindUnknownMessageType, s.Error.Kind)

	cleared, effects := Transition(failed, Event{Kind: EventDispatched})
	assert.Nil(t, cleared.Error)
	assert.Equal(t, []Effect{ClearError{}}, effects)
}

func TestPingSentRecordsTime(t *testing.T) {
	s, effects := Transition(connecting(), Event{Kind: EventPingSent, At: t0})
	assert.Equal(t, t0, s.LastPing)
	assert.Empty(t, effects)
}

func TestTransportErrorIsReported(t *testing.T) {
	s, effects := Transition(connecting(), Event{Kind: EventTransportError, Err: errors.New("reset by peer")})
	require.NotNil(t, s.Error)
	assert.Equal(t, types.KindTransportError, s.Error.Kind)
	assert.Contains(t, s.Error.Message, "reset by peer")
	assert.Len(t, effects, 1)
}

func TestCloseCodes(t *testing.T) {
	cases := []struct {
		code  int
		retry bool
	}{
		{types.CloseAbnormal, true},
		{types.CloseForcedRestart, true},
		{types.CloseNormal, false},
		{1001, false},
		{4001, false},
	}

	for _, tc := range cases {
		open, _ := Transition(connecting(), Event{Kind: EventOpen, Ready: true})
		s, effects := Transition(open, Event{Kind: EventClose, Code: tc.code})

		assert.False(t, s.Open, "code %d", tc.code)
		assert.Equal(t, types.Closed, s.Phase)
		assert.Contains(t, effects, Effect(StopKeepalive{}))
		assert.Equal(t, tc.retry, containsRetry(effects), "code %d", tc.code)
		if tc.retry {
			require.NotNil(t, s.Error)
			assert.Equal(t, types.KindAbnormalClosure, s.Error.Kind)
		} else {
			assert.Nil(t, s.Error)
		}
	}
}

func TestCloseAfterClosedIsIgnored(t *testing.T) {
	closed := types.ConnectionState{Phase: types.Closed}
	s, effects := Transition(closed, Event{Kind: EventClose, Code: types.CloseAbnormal})
	assert.Equal(t, closed, s)
	assert.Empty(t, effects)
}

func containsRetry(effects []Effect) bool {
	for _, e := range effects {
		if _, ok := e.(RequestRetry); ok {
			return true
		}
	}
	return false
}
