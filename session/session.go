// Package session drives one HTTP/1.1 exchange over a fresh connection.
//
// A session walks Resolving, Connecting, Handshaking (secure only),
// Writing, Reading and ShuttingDown (secure only) before it is Done. Every
// phase has its own clock; a phase that outlives it fails with a
// TimeoutError. The sink given to Run is called exactly once, on success
// before the connection is torn down.
package session

import (
	"cmp"
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"http-session/application/http"
	"http-session/reactor"
	"http-session/transport"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

// ErrPhaseTimeout is wrapped by every TimeoutError.
var ErrPhaseTimeout = errors.New("phase clock expired")

type Session struct {
	id uint32

	transport transport.Transport
	securer   transport.Securer // nil for plain sessions.

	reactor *reactor.Reactor
	lane    *reactor.Lane

	opts     Options
	handlers *HandlerGroup

	state atomic.Uint32
	used  atomic.Bool

	// Everything below is owned by the lane once Run returns.
	// A phase operation may read it, since at most one runs at a time.

	host    string
	service string
	request *http.Request
	sink    Sink
	release func()

	raw    transport.Stream // as connected.
	stream transport.Stream // raw, or the secure stream on top of it.

	start     time.Time // of the current phase.
	delivered bool

	logger *slog.Logger
	clock  clock.Clock
}

var _ reactor.Task = (*Session)(nil)

// New creates a session driving t. The session is secure when t is a
// [transport.Securer]. handlers may be nil.
func New(
	r *reactor.Reactor,
	t transport.Transport,
	logger *slog.Logger,
	clock clock.Clock,
	opts Options,
	handlers *HandlerGroup,
) *Session {
	s := &Session{
		id:        r.NextID(),
		transport: t,
		reactor:   r,
		lane:      r.Lane(),
		opts:      opts,
		handlers:  handlers,
		clock:     clock,
	}
	s.securer, _ = t.(transport.Securer)
	s.logger = logger.With("session", s.id)

	return s
}

// NewPlain creates a plain session even if t could secure its streams.
func NewPlain(r *reactor.Reactor, t transport.Transport, logger *slog.Logger, clock clock.Clock, opts Options) *Session {
	return New(r, transport.Stack{Resolver: t, Connector: t}, logger, clock, opts, nil)
}

// NewSecure creates a session securing the streams of t with securer.
func NewSecure(
	r *reactor.Reactor,
	t transport.Transport,
	securer transport.Securer,
	logger *slog.Logger,
	clock clock.Clock,
	opts Options,
) *Session {
	stack := transport.SecureStack{
		Stack:   transport.Stack{Resolver: t, Connector: t},
		Securer: securer,
	}
	return New(r, stack, logger, clock, opts, nil)
}

func (s *Session) ID() uint32 { return s.id }

// State is safe to call from any goroutine.
func (s *Session) State() State { return State(s.state.Load()) }

func (s *Session) Secure() bool { return s.securer != nil }

// Run starts the exchange of request with host. service is a port number
// or a service name such as "https". The request is copied, so the caller
// may reuse it right away.
//
// Run returns an error without calling sink when its arguments are
// invalid, when the session was run before or when the reactor is closed.
// Otherwise sink is called exactly once, on the session's lane.
func (s *Session) Run(host, service string, request *http.Request, sink Sink) error {
	switch {
	case host == "":
		return ErrEmptyHost
	case service == "":
		return ErrEmptyService
	case request == nil:
		return ErrNilRequest
	case sink == nil:
		return ErrNilSink
	}

	if err := request.Validate(); err != nil {
		return errors.Wrap(err, "validating request")
	}

	if !s.used.CompareAndSwap(false, true) {
		return ErrSessionUsed
	}

	release, err := s.reactor.Acquire(s)
	if err != nil {
		return errors.Wrap(err, "registering session")
	}

	s.host = host
	s.service = service
	s.request = request.Clone()
	s.sink = sink
	s.release = release

	if err := s.lane.Post(s.resolve); err != nil {
		release()
		return errors.Wrap(err, "starting session")
	}

	return nil
}

func (s *Session) resolve() {
	var endpoints []transport.Endpoint

	s.step(Resolving, func(ctx context.Context) (err error) {
		endpoints, err = s.transport.Resolve(ctx, s.host, s.service)
		if err == nil && len(endpoints) == 0 {
			err = errors.Wrapf(transport.ErrNoEndpoints, "%q", s.host)
		}
		return err
	}, func(err error) {
		if err != nil {
			s.fail(err)
			return
		}

		s.logger.Debug("resolved", "host", s.host, "endpoints", len(endpoints))
		s.connect(endpoints)
	})
}

// connect tries endpoints in order under a single phase clock.
func (s *Session) connect(endpoints []transport.Endpoint) {
	var stream transport.Stream

	s.step(Connecting, func(ctx context.Context) (err error) {
		for i, endpoint := range endpoints {
			if stream, err = s.transport.Connect(ctx, endpoint); err == nil {
				return nil
			}

			s.logger.Debug("connect failed", "endpoint", endpoint, "error", err)
			if ctx.Err() != nil {
				return errors.Wrapf(err, "%d of %d endpoints tried", i+1, len(endpoints))
			}
		}
		return errors.Wrapf(err, "%d of %d endpoints tried", len(endpoints), len(endpoints))
	}, func(err error) {
		if err != nil {
			s.fail(err)
			return
		}

		s.raw, s.stream = stream, stream
		if s.Secure() {
			s.handshake()
		} else {
			s.write()
		}
	})
}

func (s *Session) handshake() {
	serverName := cmp.Or(s.opts.ServerName, strings.Trim(s.host, "[]"))
	var secured transport.Stream

	s.step(Handshaking, func(ctx context.Context) (err error) {
		defer s.bind(ctx, s.expire)()

		secured, err = s.securer.Handshake(ctx, s.raw, serverName)
		return err
	}, func(err error) {
		if err != nil {
			s.fail(err)
			return
		}

		s.stream = secured
		s.write()
	})
}

func (s *Session) write() {
	s.step(Writing, func(ctx context.Context) error {
		defer s.bind(ctx, s.expire)()

		enc := http.NewRequestEncoder(s.stream, s.opts.Send.Encode)
		return enc.Encode(s.authority(), s.request)
	}, func(err error) {
		if err != nil {
			s.fail(err)
			return
		}

		s.read()
	})
}

func (s *Session) read() {
	response := &http.Response{}

	s.step(Reading, func(ctx context.Context) error {
		defer s.bind(ctx, s.expire)()

		dec := http.NewResponseDecoder(s.stream, s.request.Method, s.opts.Receive.Decode)
		return dec.Decode(response)
	}, func(err error) {
		if err != nil {
			s.fail(err)
			return
		}

		s.deliver(Result{Response: response})
		s.teardown()
	})
}

// teardown runs after a response was delivered. Nothing it meets can
// change the result anymore.
func (s *Session) teardown() {
	closer, ok := s.stream.(transport.GracefulCloser)
	if !s.Secure() || !ok {
		s.closePlain()
		s.finish()
		return
	}

	s.step(ShuttingDown, func(ctx context.Context) error {
		defer s.bind(ctx, s.abort)()

		if err := closer.Shutdown(); !isBenignShutdown(err) {
			return err
		}
		return nil
	}, func(err error) {
		if err != nil {
			s.shutdownFailed(err)
		}

		s.closeRaw()
		s.finish()
	})
}

// closePlain half-closes the stream, then closes it.
func (s *Session) closePlain() {
	if hc, ok := s.stream.(transport.HalfCloser); ok {
		if err := hc.CloseWrite(); !isClosedConn(err) {
			s.shutdownFailed(&Error{Kind: ShutdownError, Phase: s.State(), Err: errors.Wrap(err, "closing write")})
		}
	}

	if err := s.raw.Close(); !isClosedConn(err) {
		s.shutdownFailed(&Error{Kind: ShutdownError, Phase: s.State(), Err: errors.Wrap(err, "closing")})
	}
}

func (s *Session) closeRaw() {
	if err := s.raw.Close(); !isClosedConn(err) {
		s.logger.Debug("closing stream", "error", err)
	}
}

func (s *Session) shutdownFailed(err error) {
	s.logger.Warn("shutdown failed", "error", err)
	s.handlers.run(ShutdownFailed, s.info(err, nil))
}

// fail ends the session before a response was obtained.
func (s *Session) fail(err error) {
	if s.raw != nil {
		// Aborting, there is nothing left to flush.
		s.closeRaw()
	}

	s.logger.Info("session failed", "error", err)
	s.deliver(Result{Err: err})
	s.finish()
}

func (s *Session) deliver(result Result) {
	if s.delivered {
		s.logger.Error("result already delivered", "error", result.Err)
		return
	}
	s.delivered = true

	if result.OK() && !result.Response.Success() {
		s.logger.Warn("non-success status", "status", result.Response.StatusLine())
	}

	s.sink(result)
	s.handlers.run(Delivered, s.info(result.Err, result.Response))
}

func (s *Session) finish() {
	s.state.Store(uint32(Done))
	s.logger.Debug("session done")

	s.handlers.run(Released, s.info(nil, nil))
	s.release()
}

// step enters phase, runs op off the lane with the phase clock armed and
// calls done on the lane. The error given to done is nil or an *Error.
func (s *Session) step(phase State, op func(ctx context.Context) error, done func(err error)) {
	s.state.Store(uint32(phase))
	s.start = s.clock.Now()

	d := s.opts.timeout(phase)
	ctx, cancel := context.WithCancelCause(context.Background())

	var timer *clock.Timer
	if d > 0 {
		timer = s.clock.AfterFunc(d, func() { cancel(ErrPhaseTimeout) })
	}

	s.logger.Debug("phase started", "phase", phase, "timeout", d)
	s.handlers.run(PhaseStart, s.info(nil, nil))

	var err error
	s.lane.Go(func() { err = op(ctx) }, func() {
		if timer != nil {
			timer.Stop()
		}
		expired := errors.Is(context.Cause(ctx), ErrPhaseTimeout)
		cancel(context.Canceled)

		if err != nil {
			err = s.phaseError(phase, err, expired, d)
		}

		info := s.info(err, nil)
		info.End = s.clock.Now()
		s.handlers.run(PhaseEnd, info)

		done(err)
	})
}

func (s *Session) phaseError(phase State, err error, expired bool, d time.Duration) error {
	if expired {
		s.logger.Debug("phase clock expired", "phase", phase, "error", err)
		return &Error{Kind: TimeoutError, Phase: phase, Err: errors.Wrapf(ErrPhaseTimeout, "after %s", d)}
	}
	return &Error{Kind: kindOf(phase), Phase: phase, Err: err}
}

// bind calls abort once ctx is done, which must unblock pending I/O on
// the raw stream. The returned func stops that and waits for a running
// abort to return.
func (s *Session) bind(ctx context.Context, abort func()) (unbind func()) {
	// A previous phase may have left an expired deadline.
	if err := s.raw.SetDeadline(time.Time{}); err != nil {
		s.logger.Debug("clearing deadline", "error", err)
	}

	aborted := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(aborted)
		abort()
	})

	return func() {
		if !stop() {
			<-aborted
		}
	}
}

// expire fails pending reads and writes on the raw stream.
func (s *Session) expire() {
	if err := s.raw.SetDeadline(s.clock.Now()); err != nil {
		s.logger.Debug("setting deadline", "error", err)
	}
}

// abort closes the raw stream. A secure stream overrides write deadlines
// while sending close_notify, so only closing unblocks it.
func (s *Session) abort() {
	if err := s.raw.Close(); err != nil {
		s.logger.Debug("closing stream", "error", err)
	}
}

// authority is the Host of the request. The port is left out when it is
// the default of the scheme or a service name.
func (s *Session) authority() string {
	host := s.host
	if strings.Contains(host, ":") && !strings.HasPrefix(host, "[") {
		host = "[" + host + "]"
	}

	port, err := strconv.ParseUint(s.service, 10, 16)
	if err != nil {
		return host
	}
	if (s.Secure() && port == 443) || (!s.Secure() && port == 80) {
		return host
	}

	return host + ":" + s.service
}

func (s *Session) info(err error, response *http.Response) *Info {
	return &Info{
		Session:  s.id,
		Phase:    s.State(),
		Secure:   s.Secure(),
		Start:    s.start,
		Err:      err,
		Response: response,
	}
}
