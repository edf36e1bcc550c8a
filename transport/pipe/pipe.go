// Wow this so much looks like the one in stdlib!
// Because I borrowed the idea from there..
package pipe

import (
	"io"
	"net"
	"sync"
	"time"

	"http-session/transport"

	"github.com/benbjohnson/clock"
)

// Conn is one end of a pipe.
type Conn interface {
	net.Conn
	transport.HalfCloser
}

type pipe struct {
	stream chan []byte // stream that this pipe reads from.
	nc     chan int    // counterpart's respond will be sent here.

	writeMu sync.Mutex

	closed chan struct{}
	once   sync.Once // making sure not to close closed channel.

	wclosed chan struct{} // closed by CloseWrite.
	wonce   sync.Once

	rdeadLine *chanDeadLine
	wdeadLine *chanDeadLine

	// the opposite pipe.
	counterpart *pipe

	addr Addr
}

type Addr struct {
	Name string
}

func (p Addr) Network() string { return "pipe" }
func (p Addr) String() string  { return p.Name }

var _ net.Addr = Addr{}
var _ Conn = (*pipe)(nil)
var _ transport.Stream = (*pipe)(nil)

// Pipe creates a pair of pipes. each of pipes will be synchronouse, unbuffered.
func Pipe(name1, name2 string, clock clock.Clock) (c1, c2 *pipe) {
	c1, c2 = newPipe(name1, clock), newPipe(name2, clock)
	c1.counterpart, c2.counterpart = c2, c1
	return
}

func newPipe(name string, clock clock.Clock) *pipe {
	return &pipe{
		stream:    make(chan []byte),
		nc:        make(chan int),
		closed:    make(chan struct{}),
		wclosed:   make(chan struct{}),
		rdeadLine: newChanDeadLine(clock),
		wdeadLine: newChanDeadLine(clock),
		addr:      Addr{Name: name},
	}
}

func (p *pipe) LocalAddr() net.Addr  { return p.addr }
func (p *pipe) RemoteAddr() net.Addr { return p.counterpart.addr }

func (p *pipe) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

// CloseWrite makes the counterpart read io.EOF. Reading is still allowed.
func (p *pipe) CloseWrite() error {
	if isClosed(p.closed) {
		return transport.ErrConnClosed
	}
	p.wonce.Do(func() { close(p.wclosed) })
	return nil
}

// Read returns io.EOF once the counterpart is closed or has closed its
// writing side.
func (p *pipe) Read(b []byte) (n int, err error) {
	if err := p.checkReadOK(); err != nil {
		return 0, err
	}

	if len(b) == 0 {
		return 0, nil
	}

	select {
	case received := <-p.stream:
		n := copy(b, received)
		p.counterpart.nc <- n
		return n, nil
	case <-p.closed:
		return 0, transport.ErrConnClosed
	case <-p.counterpart.closed:
		return 0, io.EOF
	case <-p.counterpart.wclosed:
		return 0, io.EOF
	case <-p.rdeadLine.wait():
		return 0, transport.ErrDeadLineExceeded
	}
}

// Write blocks until the counterpart reads all of b.
func (p *pipe) Write(b []byte) (n int, err error) {
	if err := p.checkWriteOK(); err != nil {
		return 0, err
	}

	if len(b) == 0 {
		return 0, nil
	}

	// Serialize write operations to prevent interleaving write.
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	nn := 0
	for len(b) > 0 {
		select {
		case p.counterpart.stream <- b:
			n := <-p.nc
			b = b[n:]
			nn += n
		case <-p.closed:
			return nn, transport.ErrConnClosed
		case <-p.wclosed:
			return nn, transport.ErrConnClosed
		case <-p.counterpart.closed:
			// Works like a connection reset by peer.
			return nn, transport.ErrConnClosed
		case <-p.wdeadLine.wait():
			return nn, transport.ErrDeadLineExceeded
		}
	}

	return nn, nil
}

func (p *pipe) checkReadOK() error {
	switch {
	case isClosed(p.closed):
		return transport.ErrConnClosed
	case isClosed(p.rdeadLine.wait()):
		return transport.ErrDeadLineExceeded
	}
	return nil
}

func (p *pipe) checkWriteOK() error {
	switch {
	case isClosed(p.closed), isClosed(p.wclosed):
		return transport.ErrConnClosed
	case isClosed(p.counterpart.closed):
		return transport.ErrConnClosed
	case isClosed(p.wdeadLine.wait()):
		return transport.ErrDeadLineExceeded
	}
	return nil
}

func (p *pipe) SetDeadline(t time.Time) error {
	p.rdeadLine.set(t)
	p.wdeadLine.set(t)
	return nil
}

func (p *pipe) SetReadDeadline(t time.Time) error  { p.rdeadLine.set(t); return nil }
func (p *pipe) SetWriteDeadline(t time.Time) error { p.wdeadLine.set(t); return nil }

type chanDeadLine struct {
	clock clock.Clock

	t   *clock.Timer
	gen uint64 // invalidates a timer that fired while being replaced.
	m   sync.Mutex

	closed chan struct{}
}

func newChanDeadLine(clock clock.Clock) *chanDeadLine {
	return &chanDeadLine{
		clock:  clock,
		closed: make(chan struct{}),
	}
}

// set arms the deadline. A zero t means no limit, a t not after now
// expires immediately.
func (d *chanDeadLine) set(t time.Time) {
	d.m.Lock()
	defer d.m.Unlock()

	if d.t != nil {
		// Stop existing timer.
		d.t.Stop()
	}
	d.t = nil
	d.gen++

	if isClosed(d.closed) {
		d.closed = make(chan struct{})
	}

	if t.IsZero() {
		// zero value means no limit.
		return
	}

	dur := d.clock.Until(t)
	if dur <= 0 {
		close(d.closed)
		return
	}

	gen, closed := d.gen, d.closed
	d.t = d.clock.AfterFunc(dur, func() {
		d.m.Lock()
		defer d.m.Unlock()
		if d.gen == gen && !isClosed(closed) {
			close(closed)
		}
	})
}

func (d *chanDeadLine) wait() <-chan struct{} {
	d.m.Lock()
	defer d.m.Unlock()
	return d.closed
}

func isClosed(c <-chan struct{}) bool {
	select {
	case <-c: // c will only fire at closed state.
		return true
	default:
		return false
	}
}
