// Package tcp provides the OS socket transport.
package tcp

import (
	"context"
	"net"
	"net/netip"
	"strings"
	"time"

	"http-session/application/util/domain"
	"http-session/transport"

	"github.com/pkg/errors"
)

// New creates a plain transport resolving names with lookuper.
func New(lookuper domain.Lookuper) transport.Stack {
	return transport.Stack{
		Resolver:  NewResolver(lookuper),
		Connector: &Dialer{},
	}
}

type Resolver struct {
	Lookuper domain.Lookuper
}

var _ transport.Resolver = (*Resolver)(nil)

func NewResolver(lookuper domain.Lookuper) *Resolver {
	return &Resolver{Lookuper: lookuper}
}

// Resolve turns host and service into endpoints. IP literals are never
// looked up, other hosts are converted to ASCII first.
func (r *Resolver) Resolve(ctx context.Context, host, service string) ([]transport.Endpoint, error) {
	port, err := domain.LookupPort(ctx, service)
	if err != nil {
		return nil, errors.Wrap(err, "looking up port")
	}

	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	if addr, err := netip.ParseAddr(host); err == nil {
		return []transport.Endpoint{netip.AddrPortFrom(addr.Unmap(), port)}, nil
	}

	ascii, err := domain.ToASCII(host)
	if err != nil {
		return nil, err
	}

	addrs, err := r.Lookuper.LookupIP(ctx, ascii)
	if err != nil {
		return nil, errors.Wrap(err, "looking up ip")
	}
	if len(addrs) == 0 {
		return nil, errors.Wrapf(transport.ErrNoEndpoints, "%q", host)
	}

	endpoints := make([]transport.Endpoint, 0, len(addrs))
	for _, addr := range addrs {
		endpoints = append(endpoints, netip.AddrPortFrom(addr, port))
	}

	return endpoints, nil
}

type Dialer struct {
	Network   string // One of "tcp", "tcp4", "tcp6". Default is "tcp".
	LocalAddr net.Addr
	KeepAlive time.Duration
}

var _ transport.Connector = (*Dialer)(nil)

// Connect dials endpoint. The returned stream supports
// [transport.HalfCloser]. Refused and unreachable endpoints fail with
// [transport.ErrConnRefused] and [transport.ErrNetUnreachable].
func (d *Dialer) Connect(ctx context.Context, endpoint transport.Endpoint) (transport.Stream, error) {
	network := d.Network
	if network == "" {
		network = "tcp"
	}

	nd := net.Dialer{
		LocalAddr: d.LocalAddr,
		KeepAlive: d.KeepAlive,
	}

	conn, err := nd.DialContext(ctx, network, endpoint.String())
	if err != nil {
		return nil, errors.Wrapf(transport.WrapErrno(err), "dialing %s", endpoint)
	}

	return conn.(*net.TCPConn), nil
}
