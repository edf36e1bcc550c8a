// Package transport defines the capability a session drives: name
// resolution, connection establishment and an optional secure layer.
package transport

import (
	"context"
	"io"
	"net/netip"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrConnClosed        = errors.New("connection is closed")
	ErrConnRefused       = errors.New("connection refused")
	ErrConnReset         = errors.New("connection reset by peer")
	ErrConnListnerClosed = errors.New("conn listener is closed")
	ErrAddrAlreadyInUse  = errors.New("address already in use")
	ErrNetUnreachable    = errors.New("network is unreachable")
	ErrDeadLineExceeded  = errors.New("deadline exceeded")
	ErrNoEndpoints       = errors.New("no endpoints resolved")
	ErrNotStreamConn     = errors.New("stream is not a net.Conn")

	// ErrStreamTruncated is returned when the peer closed a secure stream
	// without sending close_notify.
	ErrStreamTruncated = errors.New("stream truncated")
)

type Endpoint = netip.AddrPort

// Stream is a connected byte stream.
// A deadline in the past unblocks pending reads and writes with an error.
type Stream interface {
	io.ReadWriteCloser
	SetDeadline(t time.Time) error
}

type Resolver interface {
	Resolve(ctx context.Context, host, service string) ([]Endpoint, error)
}

type Connector interface {
	Connect(ctx context.Context, endpoint Endpoint) (Stream, error)
}

// Transport is what a plain session needs.
type Transport interface {
	Resolver
	Connector
}

// Securer wraps an established stream into a secure one.
// A transport that also implements Securer makes sessions secure.
type Securer interface {
	Handshake(ctx context.Context, s Stream, serverName string) (Stream, error)
}

// GracefulCloser is implemented by streams that exchange a closing
// handshake with the peer, such as close_notify.
type GracefulCloser interface {
	Shutdown() error
}

// HalfCloser is implemented by streams that can shut down the sending side.
type HalfCloser interface {
	CloseWrite() error
}

type Stack struct {
	Resolver
	Connector
}

var _ Transport = Stack{}

type SecureStack struct {
	Stack
	Securer
}

var (
	_ Transport = SecureStack{}
	_ Securer   = SecureStack{}
)

// IsSecure reports whether t can secure its streams.
func IsSecure(t Transport) bool {
	_, ok := t.(Securer)
	return ok
}
