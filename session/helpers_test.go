package session

import (
	"context"
	"io"
	"sync"
	"time"

	"http-session/application/http"
	"http-session/transport"
	"http-session/transport/pipe"

	"github.com/stretchr/testify/suite"
)

// probe records what a session reports through its sink and handlers.
// Its fields must only be read after released is closed.
type probe struct {
	results  chan Result
	released chan struct{}
	entered  chan State

	phases   []State
	events   []Event
	ended    []error
	shutdown []error
}

func newProbe() *probe {
	return &probe{
		results:  make(chan Result, 2),
		released: make(chan struct{}),
		entered:  make(chan State, 8),
	}
}

func (p *probe) sink(r Result) { p.results <- r }

func (p *probe) handlers() *HandlerGroup {
	var g HandlerGroup
	for _, evt := range Events() {
		g.PushBack(evt, HandlerFunc(func(evt Event, _ *Info) { p.events = append(p.events, evt) }))
	}

	g.PushBack(PhaseStart, HandlerFunc(func(_ Event, info *Info) {
		p.phases = append(p.phases, info.Phase)
		p.entered <- info.Phase
	}))
	g.PushBack(PhaseEnd, HandlerFunc(func(_ Event, info *Info) { p.ended = append(p.ended, info.Err) }))
	g.PushBack(ShutdownFailed, HandlerFunc(func(_ Event, info *Info) { p.shutdown = append(p.shutdown, info.Err) }))
	g.PushBack(Released, HandlerFunc(func(Event, *Info) { close(p.released) }))

	return &g
}

// await waits until the session entered phase.
func (p *probe) await(s *suite.Suite, phase State) {
	timeout := time.After(5 * time.Second)
	for {
		select {
		case got := <-p.entered:
			if got == phase {
				return
			}
		case <-timeout:
			s.FailNow("phase not entered", phase.String())
		}
	}
}

// wait waits for the session to be released and returns its only result.
func (p *probe) wait(s *suite.Suite) Result {
	select {
	case <-p.released:
	case <-time.After(5 * time.Second):
		s.FailNow("session was not released")
	}

	s.Require().Len(p.results, 1, "sink must be called exactly once")
	return <-p.results
}

// peer accepts connections of a pipe listener and serves each with handle.
type peer struct {
	listener *pipe.Listener
	wg       sync.WaitGroup
}

func (p *peer) serve(n int, handle func(conn pipe.Conn)) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		for range n {
			conn, err := p.listener.Accept(context.Background())
			if err != nil {
				return
			}

			p.wg.Add(1)
			go func() {
				defer p.wg.Done()
				defer conn.Close()
				handle(conn)
			}()
		}
	}()
}

func (p *peer) close() {
	p.listener.Close()
	p.wg.Wait()
}

// respond reads one request and answers it with response.
func respond(response *http.Response) func(conn io.ReadWriter) error {
	return func(conn io.ReadWriter) error {
		var request http.Request
		if err := http.NewRequestDecoder(conn, http.DefaultDecodeOptions).Decode(&request); err != nil {
			return err
		}
		return http.NewResponseEncoder(conn, http.DefaultEncodeOptions).Encode(response)
	}
}

func textResponse(code int, contentType, body string) *http.Response {
	return &http.Response{
		Version:    http.Version11,
		StatusCode: code,
		Reason:     http.StatusText(code),
		Headers:    http.NewHeaders(map[string]string{"Content-Type": contentType}),
		Body:       []byte(body),
	}
}

// drain reads conn until the session closes it.
func drain(conn io.Reader) { _, _ = io.Copy(io.Discard, conn) }

// closeWriteErrConn makes teardown errors observable.
type closeWriteErrConn struct {
	pipe.Conn
	closeWriteErr error
	closeErr      error
}

func (c *closeWriteErrConn) CloseWrite() error {
	_ = c.Conn.CloseWrite()
	return c.closeWriteErr
}

func (c *closeWriteErrConn) Close() error {
	_ = c.Conn.Close()
	return c.closeErr
}

// closeErrConnector wraps every connected stream into a closeWriteErrConn.
type closeErrConnector struct {
	*pipe.Transport
	closeWriteErr error
	closeErr      error
}

func (c *closeErrConnector) Connect(ctx context.Context, endpoint transport.Endpoint) (transport.Stream, error) {
	conn, err := c.Transport.Dial(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return &closeWriteErrConn{Conn: conn, closeWriteErr: c.closeWriteErr, closeErr: c.closeErr}, nil
}
