package tcp

import (
	"context"
	"io"
	"net"
	"net/netip"
	"testing"

	"http-session/application/util/domain"
	"http-session/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type ResolverTestSuite struct {
	suite.Suite

	resolver *Resolver
}

func TestResolverTestSuite(t *testing.T) {
	suite.Run(t, new(ResolverTestSuite))
}

func (s *ResolverTestSuite) SetupTest() {
	s.resolver = NewResolver(domain.NewMapLookuper(map[string][]netip.Addr{
		"example.com": {
			netip.MustParseAddr("10.0.0.1"),
			netip.MustParseAddr("10.0.0.2"),
		},
		"xn--bcher-kva.example": {netip.MustParseAddr("10.0.0.3")},
		"empty.example":         {},
	}))
}

func (s *ResolverTestSuite) TestResolve() {
	testcases := []struct {
		desc     string
		host     string
		service  string
		expected []transport.Endpoint
		wantErr  error
	}{
		{
			desc:    "name with service name",
			host:    "example.com",
			service: "http",
			expected: []transport.Endpoint{
				netip.MustParseAddrPort("10.0.0.1:80"),
				netip.MustParseAddrPort("10.0.0.2:80"),
			},
		},
		{
			desc:     "internationalized name",
			host:     "bücher.example",
			service:  "https",
			expected: []transport.Endpoint{netip.MustParseAddrPort("10.0.0.3:443")},
		},
		{
			desc:     "ipv4 literal is not looked up",
			host:     "192.0.2.1",
			service:  "8080",
			expected: []transport.Endpoint{netip.MustParseAddrPort("192.0.2.1:8080")},
		},
		{
			desc:     "bracketed ipv6 literal",
			host:     "[::1]",
			service:  "443",
			expected: []transport.Endpoint{netip.MustParseAddrPort("[::1]:443")},
		},
		{
			desc:    "unknown name",
			host:    "unknown.example",
			service: "http",
			wantErr: domain.ErrDomainNotFound,
		},
		{
			desc:    "no address",
			host:    "empty.example",
			service: "http",
			wantErr: transport.ErrNoEndpoints,
		},
		{
			desc:    "port out of range",
			host:    "example.com",
			service: "65536",
			wantErr: domain.ErrUnknownService,
		},
	}

	for _, tc := range testcases {
		s.Run(tc.desc, func() {
			endpoints, err := s.resolver.Resolve(context.Background(), tc.host, tc.service)
			if tc.wantErr != nil {
				s.ErrorIs(err, tc.wantErr)
				return
			}

			s.NoError(err)
			s.Equal(tc.expected, endpoints)
		})
	}
}

func TestDialer(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skip("loopback unavailable:", err)
	}
	defer ln.Close()

	done := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			done <- nil
			return
		}
		defer conn.Close()
		b, _ := io.ReadAll(conn)
		done <- b
	}()

	endpoint := netip.MustParseAddrPort(ln.Addr().String())

	stream, err := (&Dialer{}).Connect(context.Background(), endpoint)
	require.NoError(t, err)
	defer stream.Close()

	_, err = stream.Write([]byte("hello"))
	require.NoError(t, err)

	hc, ok := stream.(transport.HalfCloser)
	require.True(t, ok, "tcp stream must be half closable")
	require.NoError(t, hc.CloseWrite())

	assert.Equal(t, "hello", string(<-done))
}

func TestDialerRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skip("loopback unavailable:", err)
	}
	endpoint := netip.MustParseAddrPort(ln.Addr().String())
	require.NoError(t, ln.Close())

	stream, err := (&Dialer{}).Connect(context.Background(), endpoint)
	assert.ErrorIs(t, err, transport.ErrConnRefused)
	assert.Nil(t, stream)
}
