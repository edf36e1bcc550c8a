package session

import (
	"io"
	"net"
	"testing"

	"http-session/transport"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestIsBenignShutdown(t *testing.T) {
	testcases := []struct {
		desc   string
		err    error
		benign bool
	}{
		{desc: "nil", err: nil, benign: true},
		{desc: "eof", err: io.EOF, benign: true},
		{desc: "unexpected eof", err: errors.Wrap(io.ErrUnexpectedEOF, "draining records"), benign: true},
		{desc: "truncated", err: errors.Wrap(transport.ErrStreamTruncated, "write failed"), benign: true},
		{desc: "closed", err: transport.ErrConnClosed, benign: false},
		{desc: "deadline", err: transport.ErrDeadLineExceeded, benign: false},
		{desc: "other", err: errors.New("bad record mac"), benign: false},
	}

	for _, tc := range testcases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.benign, isBenignShutdown(tc.err))
		})
	}
}

func TestIsClosedConn(t *testing.T) {
	assert.True(t, isClosedConn(nil))
	assert.True(t, isClosedConn(&net.OpError{Op: "close", Net: "tcp", Err: net.ErrClosed}))
	assert.True(t, isClosedConn(errors.Wrap(transport.ErrConnClosed, "closing")))
	assert.False(t, isClosedConn(io.EOF))
	assert.False(t, isClosedConn(errors.New("broken")))
}
