package pipe

import (
	"bytes"
	"io"
	"net"
	"sync"
	"time"

	"http-session/transport"

	"github.com/benbjohnson/clock"
)

// See:
// - https://github.com/golang/go/issues/24205
// - https://github.com/golang/go/issues/34502
type bufferedPipe struct {
	addr Addr

	buf *bytes.Buffer // protected by in.

	in, out  sync.Cond
	serialMu sync.Mutex // For serialized write operations.

	_closed, _wclosed bool
	closedMu          sync.Mutex

	rdeadLine, wdeadLine *deadline

	// the opposite pipe.
	counterpart *bufferedPipe
}

var _ Conn = (*bufferedPipe)(nil)
var _ transport.Stream = (*bufferedPipe)(nil)

// BufferedPipe creates a pair of pipes. each of pipes will be asynchronouse, buffered.
// Because BufferedPipe only writes/reads data through the buffer, bufSize MUST be more than 0.
func BufferedPipe(name1, name2 string, clock clock.Clock, bufSize uint) (c1, c2 *bufferedPipe) {
	if bufSize == 0 {
		panic("buffer size cannot be 0")
	}

	c1, c2 = newBufferedPipe(name1, clock, bufSize), newBufferedPipe(name2, clock, bufSize)
	c1.counterpart, c2.counterpart = c2, c1
	return
}

func newBufferedPipe(name string, clock clock.Clock, bufSize uint) *bufferedPipe {
	p := &bufferedPipe{
		buf:       bytes.NewBuffer(make([]byte, 0, bufSize)),
		rdeadLine: newDeadLine(clock),
		wdeadLine: newDeadLine(clock),
		addr:      Addr{Name: name},
	}
	p.in.L, p.out.L = &sync.Mutex{}, &sync.Mutex{}
	return p
}

func (p *bufferedPipe) ReadBufSize() uint    { return uint(p.buf.Cap()) }
func (p *bufferedPipe) WriteBufSize() uint   { return uint(p.counterpart.buf.Cap()) }
func (p *bufferedPipe) LocalAddr() net.Addr  { return p.addr }
func (p *bufferedPipe) RemoteAddr() net.Addr { return p.counterpart.addr }

func (p *bufferedPipe) Close() error {
	p.closedMu.Lock()
	p._closed = true
	p.closedMu.Unlock()

	p.wakeAll()
	return nil
}

func (p *bufferedPipe) CloseWrite() error {
	p.closedMu.Lock()
	if p._closed {
		p.closedMu.Unlock()
		return transport.ErrConnClosed
	}
	p._wclosed = true
	p.closedMu.Unlock()

	p.wakeAll()
	return nil
}

func (p *bufferedPipe) Read(b []byte) (n int, err error) {
	defer func() {
		if err != nil {
			return
		}
		// If buffer was full and counterpart was waiting,
		// we must notify them that it is now available to write.
		p.counterpart.out.L.Lock()
		p.counterpart.notifyWrite()
		p.counterpart.out.L.Unlock()
	}()

	p.in.L.Lock()
	defer p.in.L.Unlock()

	for {
		// We must check for deadline first.
		if p.rdeadLine.exceeded() {
			return 0, transport.ErrDeadLineExceeded
		}

		if p.closed() {
			return 0, transport.ErrConnClosed
		}

		// Even if counterpart is closed, we must be able to read from buffer.
		if p.buf.Len() > 0 {
			return p.buf.Read(b)
		}

		if p.counterpart.closed() || p.counterpart.writeClosed() {
			return 0, io.EOF
		}

		// Wait until one of conditions is satisfied.
		p.in.Wait()
	}
}

// Write returns as soon as b fits in the counterpart's buffer.
func (p *bufferedPipe) Write(b []byte) (n int, err error) {
	// Serialize write operations to prevent interleaving write.
	p.serialMu.Lock()
	defer p.serialMu.Unlock()

	p.out.L.Lock()
	defer p.out.L.Unlock()

	// Ensure all the bytes are sent.
	nn := 0
	for once := true; once || len(b) > 0; once = false {
		if p.wdeadLine.exceeded() {
			return nn, transport.ErrDeadLineExceeded
		}

		if p.closed() || p.writeClosed() || p.counterpart.closed() {
			return nn, transport.ErrConnClosed
		}

		// It might race with counterpart's read. So acquire lock.
		p.counterpart.in.L.Lock()

		// We don't want counterpart's buffer to grow.
		remain := p.counterpart.buf.Cap() - p.counterpart.buf.Len()

		if canWrite := min(len(b), remain); canWrite > 0 {
			// If counterpart's buffer was empty, and its read was waiting,
			// We signal them to start reading. Since we hold its read lock, read will start after write.
			p.counterpart.notifyRead()

			p.counterpart.buf.Write(b[:canWrite])
			b = b[canWrite:]
			nn += canWrite

			p.counterpart.in.L.Unlock()
			continue
		}

		p.counterpart.in.L.Unlock()
		p.out.Wait()
	}

	return nn, nil
}

func (p *bufferedPipe) closed() bool {
	p.closedMu.Lock()
	defer p.closedMu.Unlock()

	return p._closed
}

func (p *bufferedPipe) writeClosed() bool {
	p.closedMu.Lock()
	defer p.closedMu.Unlock()

	return p._wclosed
}

// notifyRead's caller already holds lock. So no need to hold it in here.
func (p *bufferedPipe) notifyRead()  { p.in.Signal() }
func (p *bufferedPipe) notifyWrite() { p.out.Signal() }

// wakeAll wakes every waiter on both ends so they can observe closing.
func (p *bufferedPipe) wakeAll() {
	for _, c := range []*bufferedPipe{p, p.counterpart} {
		c.wakeReaders()
		c.wakeWriters()
	}
}

func (p *bufferedPipe) wakeReaders() {
	p.in.L.Lock()
	p.in.Broadcast()
	p.in.L.Unlock()
}

func (p *bufferedPipe) wakeWriters() {
	p.out.L.Lock()
	p.out.Broadcast()
	p.out.L.Unlock()
}

func (p *bufferedPipe) SetDeadline(t time.Time) error {
	p.SetReadDeadline(t)
	p.SetWriteDeadline(t)
	return nil
}

func (p *bufferedPipe) SetReadDeadline(t time.Time) error {
	p.rdeadLine.set(t, p.wakeReaders)
	return nil
}

func (p *bufferedPipe) SetWriteDeadline(t time.Time) error {
	p.wdeadLine.set(t, p.wakeWriters)
	return nil
}

func newDeadLine(clock clock.Clock) *deadline { return &deadline{clock: clock} }

type deadline struct {
	clock clock.Clock
	m     sync.Mutex

	timer *clock.Timer
	t     time.Time
}

// set arms the deadline. onExceed is called without holding the deadline
// lock, since waiters check the deadline while holding their own lock.
func (d *deadline) set(t time.Time, onExceed func()) {
	d.m.Lock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}

	d.t = t

	if t.IsZero() {
		d.m.Unlock()
		return
	}

	dur := d.clock.Until(t)
	if dur > 0 {
		d.timer = d.clock.AfterFunc(dur, onExceed)
	}
	d.m.Unlock()

	if dur <= 0 {
		onExceed()
	}
}

func (d *deadline) exceeded() bool {
	d.m.Lock()
	defer d.m.Unlock()

	if d.t.IsZero() {
		return false
	}

	return d.clock.Until(d.t) <= 0
}
