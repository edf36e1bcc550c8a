// Package tls secures streams with crypto/tls.
//
// Reference:
// - https://datatracker.ietf.org/doc/html/rfc8446
// - https://datatracker.ietf.org/doc/html/rfc6066
package tls

import (
	"context"
	"crypto/tls"
	"io"
	"net"

	"http-session/transport"

	"github.com/pkg/errors"
)

// New makes a secure transport out of a plain one.
func New(plain transport.Transport, config *tls.Config) transport.SecureStack {
	return transport.SecureStack{
		Stack:   transport.Stack{Resolver: plain, Connector: plain},
		Securer: &Securer{Config: config},
	}
}

type Securer struct {
	// Config is cloned for every handshake. ServerName is filled from the
	// handshake argument when empty.
	Config *tls.Config
}

var _ transport.Securer = (*Securer)(nil)

// Handshake runs a client handshake over s, which must be a [net.Conn].
// Cancelling ctx closes s.
func (sc *Securer) Handshake(ctx context.Context, s transport.Stream, serverName string) (transport.Stream, error) {
	conn, ok := s.(net.Conn)
	if !ok {
		return nil, errors.Wrapf(transport.ErrNotStreamConn, "%T", s)
	}

	config := sc.Config.Clone()
	if config == nil {
		config = &tls.Config{}
	}
	if config.ServerName == "" {
		config.ServerName = serverName
	}

	tc := tls.Client(conn, config)
	if err := tc.HandshakeContext(ctx); err != nil {
		return nil, errors.Wrap(err, "handshake failed")
	}

	return &Stream{Conn: tc}, nil
}

type Stream struct {
	*tls.Conn
}

var (
	_ transport.Stream         = (*Stream)(nil)
	_ transport.GracefulCloser = (*Stream)(nil)
)

// Shutdown sends close_notify and drains the stream until the peer closes
// its side. It doesn't close the underlying stream.
func (s *Stream) Shutdown() error {
	werr := s.Conn.CloseWrite()

	// Read until remote sends close notify.
	if _, err := io.Copy(io.Discard, s.Conn); err != nil {
		if err = transport.WrapErrno(err); errors.Is(err, transport.ErrConnReset) {
			// Remote reset the connection instead of closing it.
			return errors.Wrap(transport.ErrStreamTruncated, err.Error())
		}
		return errors.Wrap(err, "draining records")
	}

	if werr != nil {
		// Remote went away before our close_notify left.
		return errors.Wrap(transport.ErrStreamTruncated, werr.Error())
	}

	return nil
}
