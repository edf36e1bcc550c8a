package session

import (
	"testing"
	"time"

	"http-session/transport"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateString(t *testing.T) {
	names := []string{"Idle", "Resolving", "Connecting", "Handshaking", "Writing", "Reading", "ShuttingDown", "Done"}
	for i, state := range States() {
		assert.Equal(t, names[i], state.String())
	}
	assert.Equal(t, "State(42)", State(42).String())
}

func TestKind(t *testing.T) {
	testcases := []struct {
		phase State
		kind  Kind
		name  string
	}{
		{phase: Resolving, kind: ResolveError, name: "ResolveError"},
		{phase: Connecting, kind: ConnectError, name: "ConnectError"},
		{phase: Handshaking, kind: HandshakeError, name: "HandshakeError"},
		{phase: Writing, kind: WriteError, name: "WriteError"},
		{phase: Reading, kind: ReadError, name: "ReadError"},
		{phase: ShuttingDown, kind: ShutdownError, name: "ShutdownError"},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.kind, kindOf(tc.phase))
			assert.Equal(t, tc.name, tc.kind.String())
		})
	}

	assert.Equal(t, "TimeoutError", TimeoutError.String())
	assert.Equal(t, "Kind(0)", Kind(0).String())
}

func TestError(t *testing.T) {
	err := error(&Error{Kind: WriteError, Phase: Writing, Err: transport.ErrConnClosed})
	assert.Equal(t, "WriteError in Writing: connection is closed", err.Error())
	assert.ErrorIs(t, err, transport.ErrConnClosed)
	assert.Equal(t, WriteError, KindOf(err))

	wrapped := errors.Wrap(err, "request failed")
	assert.Equal(t, WriteError, KindOf(wrapped))

	var serr *Error
	require.ErrorAs(t, wrapped, &serr)
	assert.False(t, serr.Timeout())

	timeout := &Error{Kind: TimeoutError, Phase: Reading}
	assert.True(t, timeout.Timeout())
	assert.Equal(t, "TimeoutError in Reading", timeout.Error())

	assert.Zero(t, KindOf(errors.New("plain")))
	assert.Zero(t, KindOf(nil))
}

func TestTimeoutPolicy(t *testing.T) {
	fixed := Fixed(time.Second)
	for _, state := range States() {
		assert.Equal(t, time.Second, fixed.Timeout(state))
	}

	overrides := map[State]time.Duration{Reading: time.Minute, Handshaking: 0}
	perPhase := PerPhase(5*time.Second, overrides)
	overrides[Reading] = time.Hour // Copied, not kept.

	assert.Equal(t, 5*time.Second, perPhase.Timeout(Resolving))
	assert.Equal(t, time.Minute, perPhase.Timeout(Reading))
	assert.Zero(t, perPhase.Timeout(Handshaking))

	assert.Zero(t, Infinite.Timeout(Reading))

	assert.Equal(t, DefaultTimeout, Options{}.timeout(Writing))
	assert.Equal(t, 30*time.Second, DefaultOptions.timeout(Writing))
}

func TestHandlerGroup(t *testing.T) {
	var calls []string

	var g HandlerGroup
	g.PushBack(PhaseStart, HandlerFunc(func(evt Event, info *Info) { calls = append(calls, "first "+info.Phase.String()) }))
	g.PushBack(PhaseStart, HandlerFunc(func(evt Event, info *Info) { calls = append(calls, "second "+info.Phase.String()) }))
	g.PushBack(Released, HandlerFunc(func(evt Event, info *Info) { calls = append(calls, evt.String()) }))

	g.run(PhaseStart, &Info{Phase: Reading})
	g.run(PhaseEnd, &Info{Phase: Reading})
	g.run(Released, &Info{Phase: Done})

	assert.Equal(t, []string{"first Reading", "second Reading", "Released"}, calls)

	assert.Panics(t, func() { g.PushBack(Delivered, nil) })

	var empty *HandlerGroup
	assert.NotPanics(t, func() { empty.run(PhaseStart, &Info{}) })
	assert.NotPanics(t, func() { new(HandlerGroup).run(Released, &Info{}) })
}

func TestEventString(t *testing.T) {
	names := []string{"PhaseStart", "PhaseEnd", "Delivered", "ShutdownFailed", "Released"}
	for i, evt := range Events() {
		assert.Equal(t, names[i], evt.String())
	}
	assert.Equal(t, "Event(9)", Event(9).String())
}
