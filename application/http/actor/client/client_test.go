package client

import (
	"context"
	"log/slog"
	"net"
	"net/netip"
	"testing"
	"time"

	"http-session/application/http"
	"http-session/application/http/actor/server"
	"http-session/application/util/domain"
	"http-session/application/util/uri"
	"http-session/reactor"
	"http-session/session"
	"http-session/transport"
	"http-session/transport/pipe"
	"http-session/transport/tcp"
	"http-session/transport/test"
	tlstransport "http-session/transport/tls"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"
)

var localhost = netip.MustParseAddr("127.0.0.1")

type ClientTestSuite struct {
	suite.Suite

	clock   *clock.Mock
	logger  *slog.Logger
	reactor *reactor.Reactor

	plain  transport.Stack
	secure transport.SecureStack

	listeners []*pipe.Listener
	servers   []*server.Server

	client *Client
}

func TestClientTestSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}

func (s *ClientTestSuite) SetupTest() {
	s.clock = clock.NewMock()
	s.logger = slog.New(slog.DiscardHandler)
	s.reactor = reactor.New(reactor.Options{Lanes: 2}, s.logger)

	serverConfig, clientConfig, err := test.TLSConfigs("example.com")
	s.Require().NoError(err)

	lookuper := domain.NewMapLookuper(map[string][]netip.Addr{"example.com": {localhost}})
	pipes := pipe.NewTransport(s.clock, pipe.Options{BufferSize: 1 << 16})

	s.plain = transport.Stack{Resolver: tcp.NewResolver(lookuper), Connector: pipes}
	s.secure = tlstransport.New(s.plain, clientConfig)

	s.listeners, s.servers = nil, nil
	s.serve(pipes, 80, echo, server.Options{})
	s.serve(pipes, 443, echo, server.Options{TLS: serverConfig})

	s.client = New(s.reactor, s.plain, s.secure, s.logger, s.clock, DefaultOptions)
}

func (s *ClientTestSuite) TearDownTest() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Require().NoError(s.reactor.Shutdown(ctx))

	for _, srv := range s.servers {
		srv.Close()
	}
	for _, lis := range s.listeners {
		lis.Close()
	}

	goleak.VerifyNone(s.T())
}

func (s *ClientTestSuite) serve(pipes *pipe.Transport, port uint16, handle server.HandleFunc, opts server.Options) {
	lis, err := pipes.Listen(netip.AddrPortFrom(localhost, port))
	s.Require().NoError(err)

	accept := func(ctx context.Context) (net.Conn, error) { return lis.Accept(ctx) }
	srv := server.New(accept, s.logger, s.clock, handle, opts)
	srv.Start()

	s.listeners = append(s.listeners, lis)
	s.servers = append(s.servers, srv)
}

// echo answers with the request line, the Host and User-Agent headers
// and the request body.
func echo(_ *server.HandleContext, request *http.Request) *http.Response {
	host, _ := request.Headers.Get("Host")
	agent, _ := request.Headers.Get("User-Agent")

	res := &http.Response{StatusCode: 200, Headers: http.NewHeaders(nil)}
	res.Headers.Set("X-Request", request.Method+" "+request.Target)
	res.Headers.Set("X-Host", host)
	res.Headers.Set("X-User-Agent", agent)
	res.Body = append([]byte{}, request.Body...)
	return res
}

func header(res *http.Response, key string) string {
	v, _ := res.Headers.Get(key)
	return v
}

func (s *ClientTestSuite) TestGet() {
	res, err := s.client.Get(context.Background(), "http://example.com/items?id=1", map[string]string{"Accept": "*/*"})
	s.Require().NoError(err)

	s.Equal(200, res.StatusCode)
	s.Equal("GET /items?id=1", header(res, "X-Request"))
	s.Equal("example.com", header(res, "X-Host"))
	s.Equal(DefaultOptions.UserAgent, header(res, "X-User-Agent"))
	s.Empty(res.Body)
}

func (s *ClientTestSuite) TestSecureGet() {
	res, err := s.client.Get(context.Background(), "https://example.com/", nil)
	s.Require().NoError(err)

	s.Equal(200, res.StatusCode)
	s.Equal("GET /", header(res, "X-Request"))
	s.Equal("example.com", header(res, "X-Host"))
}

func (s *ClientTestSuite) TestExplicitPort() {
	res, err := s.client.Get(context.Background(), "https://example.com:443/a", nil)
	s.Require().NoError(err)
	s.Equal("example.com", header(res, "X-Host"))
}

func (s *ClientTestSuite) TestPostAndPut() {
	res, err := s.client.Post(context.Background(), "http://example.com/items", []byte("payload"), nil)
	s.Require().NoError(err)
	s.Equal("POST /items", header(res, "X-Request"))
	s.Equal([]byte("payload"), res.Body)

	res, err = s.client.Put(context.Background(), "https://example.com/items/1", nil, nil)
	s.Require().NoError(err)
	s.Equal("PUT /items/1", header(res, "X-Request"))
	s.Empty(res.Body)
}

func (s *ClientTestSuite) TestDelete() {
	res, err := s.client.Delete(context.Background(), "http://example.com/items/1", map[string]string{"User-Agent": "custom"})
	s.Require().NoError(err)
	s.Equal("DELETE /items/1", header(res, "X-Request"))
	s.Equal("custom", header(res, "X-User-Agent"))
}

func (s *ClientTestSuite) TestGoThen() {
	target, err := uri.Parse("http://example.com/async")
	s.Require().NoError(err)

	req := http.NewRequest(http.MethodGet, target.Path, nil)
	call, err := s.client.Go(target, req)
	s.Require().NoError(err)

	results := make(chan session.Result, 2)
	call.Then(func(r session.Result) { results <- r })

	var first session.Result
	s.Require().Eventually(func() bool {
		select {
		case first = <-results:
			return true
		default:
			return false
		}
	}, 5*time.Second, time.Millisecond)

	s.True(first.OK())
	s.Equal("GET /async", header(first.Response, "X-Request"))

	// Registered after completion, so it runs right away.
	call.Then(func(r session.Result) { results <- r })
	s.Len(results, 1)

	result, done := call.Result()
	s.True(done)
	s.Equal(first, result)
	s.NotSame(req, call.Request)
}

func (s *ClientTestSuite) TestWaitContextDone() {
	release := make(chan struct{})
	lis := s.listeners[0]
	s.servers[0].Close()
	s.servers = s.servers[1:]
	s.listeners = s.listeners[1:]

	accept := func(ctx context.Context) (net.Conn, error) { return lis.Accept(ctx) }
	srv := server.New(accept, s.logger, s.clock, func(c *server.HandleContext, request *http.Request) *http.Response {
		<-release
		return echo(c, request)
	}, server.Options{})
	srv.Start()
	s.listeners = append(s.listeners, lis)
	s.servers = append(s.servers, srv)

	target, err := uri.Parse("http://example.com/slow")
	s.Require().NoError(err)

	call, err := s.client.Go(target, http.NewRequest(http.MethodGet, target.Path, nil))
	s.Require().NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = call.Wait(ctx)
	s.ErrorIs(err, context.Canceled)

	_, done := call.Result()
	s.False(done)

	close(release)

	result, err := call.Wait(context.Background())
	s.Require().NoError(err)
	s.True(result.OK())
}

func (s *ClientTestSuite) TestSessionError() {
	_, err := s.client.Get(context.Background(), "http://unknown.example/", nil)
	s.Require().Error(err)
	s.Equal(session.ResolveError, session.KindOf(err))
}

func (s *ClientTestSuite) TestInvalidURL() {
	_, err := s.client.Get(context.Background(), "ftp://example.com/", nil)
	s.ErrorIs(err, uri.ErrUnsupportedScheme)

	_, err = s.client.Get(context.Background(), "http:///nohost", nil)
	s.ErrorIs(err, uri.ErrMissingHost)
}

func (s *ClientTestSuite) TestInvalidRequest() {
	_, err := s.client.Get(context.Background(), "http://example.com/", map[string]string{"Bad Name": "v"})
	s.ErrorIs(err, http.ErrInvalidHeader)
	s.Zero(s.reactor.InFlight())
}

func (s *ClientTestSuite) TestNoSecureTransport() {
	c := New(s.reactor, s.plain, nil, s.logger, s.clock, DefaultOptions)
	_, err := c.Get(context.Background(), "https://example.com/", nil)
	s.ErrorIs(err, ErrNoSecureTransport)

	// A transport that cannot secure streams is refused as well.
	c = New(s.reactor, s.plain, s.plain, s.logger, s.clock, DefaultOptions)
	_, err = c.Get(context.Background(), "https://example.com/", nil)
	s.ErrorIs(err, ErrNoSecureTransport)
}

func (s *ClientTestSuite) TestPlainNeverSecured() {
	// Passing a secure transport as the plain one still sends in the clear.
	c := New(s.reactor, s.secure, nil, s.logger, s.clock, DefaultOptions)
	res, err := c.Get(context.Background(), "http://example.com/", nil)
	s.Require().NoError(err)
	s.Equal(200, res.StatusCode)
}

func (s *ClientTestSuite) TestHandlers() {
	var handlers session.HandlerGroup
	phases := make(chan session.State, 16)
	handlers.PushBack(session.PhaseStart, session.HandlerFunc(func(_ session.Event, info *session.Info) {
		phases <- info.Phase
	}))

	opts := DefaultOptions
	opts.Handlers = &handlers
	c := New(s.reactor, s.plain, s.secure, s.logger, s.clock, opts)

	_, err := c.Get(context.Background(), "https://example.com/", nil)
	s.Require().NoError(err)

	s.Require().NoError(s.reactor.Shutdown(context.Background()))
	close(phases)

	var got []session.State
	for p := range phases {
		got = append(got, p)
	}
	s.Equal([]session.State{
		session.Resolving,
		session.Connecting,
		session.Handshaking,
		session.Writing,
		session.Reading,
		session.ShuttingDown,
	}, got)
}
