package domain

import (
	"context"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type LookuperTestSuite struct {
	suite.Suite

	initial  map[string]string
	lookuper Lookuper
}

func (s *LookuperTestSuite) SetupTest() {
	s.initial = map[string]string{
		"localhost":   "127.0.0.1",
		"example.com": "1.1.1.1", // It's actually cloudflare. But who cares?
	}
}

func (s *LookuperTestSuite) TestLookup() {
	addrs, err := s.lookuper.LookupIP(context.Background(), "localhost")
	s.NoError(err)
	s.Equal([]netip.Addr{netip.MustParseAddr("127.0.0.1")}, addrs)

	addrs, err = s.lookuper.LookupIP(context.Background(), "example.com")
	s.NoError(err)
	s.Equal([]netip.Addr{netip.MustParseAddr("1.1.1.1")}, addrs)
}

func (s *LookuperTestSuite) TestLookupInitCopied() {
	s.initial["localhost"] = "10.0.0.1"

	addrs, err := s.lookuper.LookupIP(context.Background(), "localhost")
	s.NoError(err)
	s.Equal([]netip.Addr{netip.MustParseAddr("127.0.0.1")}, addrs)
}

type mapLookuperTestSuite struct{ LookuperTestSuite }

func TestMapLookuperTestSuite(t *testing.T) {
	suite.Run(t, new(mapLookuperTestSuite))
}

func (s *mapLookuperTestSuite) SetupTest() {
	s.LookuperTestSuite.SetupTest()

	set := make(map[string][]netip.Addr, len(s.initial))
	for k, v := range s.initial {
		set[k] = []netip.Addr{netip.MustParseAddr(v)}
	}
	s.lookuper = NewMapLookuper(set)
}

func (s *mapLookuperTestSuite) TestNotFound() {
	addrs, err := s.lookuper.LookupIP(context.Background(), "non-existent.com")
	s.ErrorIs(err, ErrDomainNotFound)
	s.Empty(addrs)
}

func (s *mapLookuperTestSuite) TestSetDel() {
	m := s.lookuper.(*mapLookuper)

	m.Set("new.example", []netip.Addr{netip.MustParseAddr("::1")})
	addrs, err := m.LookupIP(context.Background(), "new.example")
	s.NoError(err)
	s.Len(addrs, 1)

	m.Set("ignored.example", nil)
	_, err = m.LookupIP(context.Background(), "ignored.example")
	s.ErrorIs(err, ErrDomainNotFound)

	m.Del("new.example")
	_, err = m.LookupIP(context.Background(), "new.example")
	s.ErrorIs(err, ErrDomainNotFound)
}

// Only static hosts are exercised so the suite never touches the network.
type staticResolverLookuperTestSuite struct{ LookuperTestSuite }

func TestStaticResolverLookuperTestSuite(t *testing.T) {
	suite.Run(t, new(staticResolverLookuperTestSuite))
}

func (s *staticResolverLookuperTestSuite) SetupTest() {
	s.LookuperTestSuite.SetupTest()
	s.lookuper = NewResolverLookuper(ResolveConfig{StaticHosts: s.initial})
}

func (s *staticResolverLookuperTestSuite) TestInvalidStaticHost() {
	l := NewResolverLookuper(ResolveConfig{StaticHosts: map[string]string{"bad": "not-an-ip"}})

	_, err := l.LookupIP(context.Background(), "bad")
	s.Error(err)
}

func (s *staticResolverLookuperTestSuite) TestStaticHostNamesNormalized() {
	l := NewResolverLookuper(ResolveConfig{StaticHosts: map[string]string{
		"MyHost":         "10.0.0.1",
		"Bücher.example": "10.0.0.2",
	}})

	for _, name := range []string{"myhost", "MYHOST", "MyHost"} {
		addrs, err := l.LookupIP(context.Background(), name)
		s.Require().NoError(err, name)
		s.Equal([]netip.Addr{netip.MustParseAddr("10.0.0.1")}, addrs)
	}

	for _, name := range []string{"xn--bcher-kva.example", "bücher.example"} {
		addrs, err := l.LookupIP(context.Background(), name)
		s.Require().NoError(err, name)
		s.Equal([]netip.Addr{netip.MustParseAddr("10.0.0.2")}, addrs)
	}
}

func TestToASCII(t *testing.T) {
	testcases := []struct {
		input    string
		expected string
		wantErr  bool
	}{
		{input: "Example.COM", expected: "example.com"},
		{input: "bücher.example", expected: "xn--bcher-kva.example"},
		{input: "日本語.jp", expected: "xn--wgv71a119e.jp"},
	}
	for _, tc := range testcases {
		t.Run(tc.input, func(t *testing.T) {
			ascii, err := ToASCII(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, tc.expected, ascii)
		})
	}
}

func TestLookupPort(t *testing.T) {
	testcases := []struct {
		service  string
		expected uint16
	}{
		{service: "8080", expected: 8080},
		{service: "http", expected: 80},
		{service: "HTTPS", expected: 443},
		{service: "0", expected: 0},
	}
	for _, tc := range testcases {
		t.Run(tc.service, func(t *testing.T) {
			port, err := LookupPort(context.Background(), tc.service)
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, port)
		})
	}

	_, err := LookupPort(context.Background(), "70000")
	assert.Error(t, err)
}
