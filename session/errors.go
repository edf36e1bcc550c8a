package session

import (
	"strconv"

	"http-session/application/http"

	"github.com/pkg/errors"
)

var (
	ErrSessionUsed  = errors.New("session has already run")
	ErrEmptyHost    = errors.New("host is empty")
	ErrEmptyService = errors.New("service is empty")
	ErrNilRequest   = errors.New("request is nil")
	ErrNilSink      = errors.New("sink is nil")
)

// Kind classifies why a session failed.
type Kind int

const (
	ResolveError Kind = iota + 1
	ConnectError
	HandshakeError
	TimeoutError
	WriteError
	ReadError
	ShutdownError
)

var kindNames = []string{
	ResolveError:   "ResolveError",
	ConnectError:   "ConnectError",
	HandshakeError: "HandshakeError",
	TimeoutError:   "TimeoutError",
	WriteError:     "WriteError",
	ReadError:      "ReadError",
	ShutdownError:  "ShutdownError",
}

func (k Kind) String() string {
	if 0 < k && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Error is a failure of a phase. Phase is where it happened and only
// serves diagnostics.
type Error struct {
	Kind  Kind
	Phase State
	Err   error
}

func (e *Error) Error() string {
	msg := e.Kind.String() + " in " + e.Phase.String()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Timeout() bool { return e.Kind == TimeoutError }

// KindOf returns the kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}

// kindOf maps a phase to the kind its failures have.
func kindOf(phase State) Kind {
	switch phase {
	case Resolving:
		return ResolveError
	case Connecting:
		return ConnectError
	case Handshaking:
		return HandshakeError
	case Writing:
		return WriteError
	case Reading:
		return ReadError
	default:
		return ShutdownError
	}
}

// Result is what a sink receives. Response is only meaningful when Err is
// nil; a failed session never obtained a response.
type Result struct {
	Response *http.Response
	Err      error
}

func (r Result) OK() bool { return r.Err == nil }

// Sink receives the result of a session exactly once, on the session's lane.
type Sink func(Result)
