package dispatch

import (
	"errors"
	"testing"

	"github.com/orchestra-mcp/realtime/src/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envelope(typ string) types.Envelope {
	return types.Envelope{Type: typ, Data: map[string]any{}}
}

func TestResolveRegisteredHandler(t *testing.T) {
	table := NewTable()
	called := false
	require.NoError(t, table.Register(types.TypePong, func(Context) error {
		called = true
		return nil
	}))

	h, err := table.Resolve(envelope("pong"))
	require.NoError(t, err)
	require.NoError(t, Invoke(h, Context{Message: envelope("pong")}))
	assert.True(t, called)
}

func TestResolveUnknownType(t *testing.T) {
	table := NewTable()

	_, err := table.Resolve(envelope("somethingNew"))
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindUnknownMessageType))
	assert.Contains(t, err.Error(), "no handler for message type")
}

func TestResolveKnownTypeWithoutHandler(t *testing.T) {
	table := NewTable()

	_, err := table.Resolve(envelope("sessionStatusV2"))
	assert.True(t, types.IsKind(err, types.KindUnknownMessageType))
}

func TestRegisterRejectsOutboundTypes(t *testing.T) {
	table := NewTable()
	noop := func(Context) error { return nil }

	assert.Error(t, table.Register(types.TypePing, noop))
	assert.Error(t, table.Register(types.TypePullSessionStatusV2, noop))
	assert.Error(t, table.Register(types.TypeUnknown, noop))
	assert.Error(t, table.Register(types.TypePong, nil))
}

func TestInvokeReturnedFailureKeepsMessage(t *testing.T) {
	boom := errors.New("session 12 not found")
	err := Invoke(func(Context) error { return boom }, Context{Message: envelope("pong")})

	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindHandlerFailure))
	assert.Equal(t, "session 12 not found", err.Error())
	assert.ErrorIs(t, err, boom)
}

func TestInvokeRecoversPanic(t *testing.T) {
	err := Invoke(func(Context) error { panic("nil map") }, Context{Message: envelope("error")})

	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindHandlerFailure))
	assert.Contains(t, err.Error(), "nil map")
}

func TestPanickingHandlerDoesNotBlockOtherTypes(t *testing.T) {
	table := NewTable()
	require.NoError(t, table.Register(types.TypeError, func(Context) error { panic("bad payload") }))
	var handled int
	require.NoError(t, table.Register(types.TypeSessionStatusV2, func(Context) error {
		handled++
		return nil
	}))

	for i := 0; i < 3; i++ {
		h, err := table.Resolve(envelope("error"))
		require.NoError(t, err)
		assert.Error(t, Invoke(h, Context{Message: envelope("error")}))

		h, err = table.Resolve(envelope("sessionStatusV2"))
		require.NoError(t, err)
		assert.NoError(t, Invoke(h, Context{Message: envelope("sessionStatusV2")}))
	}
	assert.Equal(t, 3, handled)
}
