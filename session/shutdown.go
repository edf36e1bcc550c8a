package session

import (
	"io"
	"net"

	"http-session/transport"

	"github.com/pkg/errors"
)

// isBenignShutdown reports whether err of a close_notify exchange leaves
// the delivered response intact. Peers often close without close_notify.
func isBenignShutdown(err error) bool {
	return err == nil ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, transport.ErrStreamTruncated)
}

// isClosedConn reports whether err of closing a stream only says that the
// stream was closed already.
func isClosedConn(err error) bool {
	return err == nil ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, transport.ErrConnClosed) ||
		isNotConnected(err)
}
