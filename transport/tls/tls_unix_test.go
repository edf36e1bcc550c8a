//go:build unix

package tls

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"os"

	"http-session/transport"

	"golang.org/x/sys/unix"
)

// resetConn reports a connection reset where the peer closed.
type resetConn struct{ net.Conn }

func (c resetConn) Read(b []byte) (int, error) {
	n, err := c.Conn.Read(b)
	if err == io.EOF {
		err = &net.OpError{Op: "read", Net: "tcp", Err: os.NewSyscallError("read", unix.ECONNRESET)}
	}
	return n, err
}

func (s *SecurerTestSuite) TestResetAfterResponse() {
	done := s.serve(func(conn *tls.Conn) {
		_, err := conn.Write([]byte("bye"))
		s.NoError(err)
		s.server.Close()
	})

	stream, err := s.securer.Handshake(context.Background(), resetConn{s.client}, "example.com")
	s.Require().NoError(err)
	<-done

	b := make([]byte, 3)
	_, err = io.ReadFull(stream, b)
	s.Require().NoError(err)

	err = stream.(transport.GracefulCloser).Shutdown()
	s.ErrorIs(err, transport.ErrStreamTruncated)
}
