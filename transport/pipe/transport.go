package pipe

import (
	"context"
	"net"
	"sync"

	"http-session/transport"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

type Options struct {
	// BufferSize makes connections buffered when greater than 0.
	// Writes on an unbuffered connection complete only when the peer reads.
	BufferSize uint
}

type pipeRequest struct {
	conn     Conn
	accepted chan struct{}
}

// Transport connects to in-memory listeners keyed by endpoint.
// It is a [transport.Connector]; pair it with a resolver in a
// [transport.Stack].
type Transport struct {
	listeners map[transport.Endpoint]*Listener
	clock     clock.Clock
	opts      Options

	mu sync.Mutex
}

func NewTransport(clock clock.Clock, opts Options) *Transport {
	return &Transport{
		listeners: make(map[transport.Endpoint]*Listener),
		clock:     clock,
		opts:      opts,
	}
}

var _ transport.Connector = (*Transport)(nil)

func (pt *Transport) Connect(ctx context.Context, endpoint transport.Endpoint) (transport.Stream, error) {
	return pt.Dial(ctx, endpoint)
}

func (pt *Transport) Dial(ctx context.Context, endpoint transport.Endpoint) (Conn, error) {
	pt.mu.Lock()
	listener, ok := pt.listeners[endpoint]
	pt.mu.Unlock()

	if !ok {
		return nil, errors.Wrapf(transport.ErrConnRefused, "%s", endpoint)
	}

	p1, p2 := pt.pair("dialer", endpoint.String())

	req := pipeRequest{
		conn:     p2,
		accepted: make(chan struct{}, 1),
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-listener.closed:
		return nil, errors.Wrapf(transport.ErrConnRefused, "%s", endpoint)
	case listener.requests <- req:
	}

	select {
	case <-ctx.Done():
		p1.Close()
		return nil, ctx.Err()
	case <-req.accepted:
	}

	return p1, nil
}

func (pt *Transport) pair(name1, name2 string) (Conn, Conn) {
	if pt.opts.BufferSize > 0 {
		return BufferedPipe(name1, name2, pt.clock, pt.opts.BufferSize)
	}
	return Pipe(name1, name2, pt.clock)
}

func (pt *Transport) Listen(endpoint transport.Endpoint) (*Listener, error) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	if _, ok := pt.listeners[endpoint]; ok {
		return nil, errors.Wrapf(transport.ErrAddrAlreadyInUse, "%s", endpoint)
	}

	pl := &Listener{
		addr:      Addr{Name: endpoint.String()},
		endpoint:  endpoint,
		transport: pt,
		requests:  make(chan pipeRequest),
		closed:    make(chan struct{}),
	}
	pt.listeners[endpoint] = pl

	return pl, nil
}

type Listener struct {
	addr     Addr
	endpoint transport.Endpoint

	transport *Transport

	requests chan pipeRequest
	closed   chan struct{}
	once     sync.Once
}

func (pl *Listener) Addr() net.Addr { return pl.addr }

func (pl *Listener) Accept(ctx context.Context) (Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-pl.closed:
		return nil, transport.ErrConnListnerClosed
	case request := <-pl.requests:
		request.accepted <- struct{}{}
		return request.conn, nil
	}
}

// Close stops accepting. Connections already accepted are not affected.
func (pl *Listener) Close() error {
	err := transport.ErrConnListnerClosed
	pl.once.Do(func() {
		close(pl.closed)

		pl.transport.mu.Lock()
		delete(pl.transport.listeners, pl.endpoint)
		pl.transport.mu.Unlock()

		err = nil
	})
	return err
}
