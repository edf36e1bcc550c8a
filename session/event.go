package session

import (
	"strconv"
	"time"

	"http-session/application/http"
)

// An Event identifies when a Handler runs. Handlers run on the session's
// lane, so they must not block.
type Event int

const (
	// PhaseStart occurs once the phase clock of a phase is armed and
	// before its operation starts.
	PhaseStart Event = iota
	// PhaseEnd occurs after the operation of a phase returned, whether it
	// succeeded or not. Info.Err is set on failure.
	PhaseEnd
	// Delivered occurs right after the sink returned.
	Delivered
	// ShutdownFailed occurs when tearing down the connection failed after
	// a response was delivered. It is the only place such an error goes
	// besides the log.
	ShutdownFailed
	// Released occurs last, once the session is Done.
	Released

	eventSentinel

	numEvents = int(eventSentinel)
)

var eventNames = []string{
	"PhaseStart",
	"PhaseEnd",
	"Delivered",
	"ShutdownFailed",
	"Released",
}

func (evt Event) String() string {
	if 0 <= evt && evt < eventSentinel {
		return eventNames[evt]
	}
	return "Event(" + strconv.Itoa(int(evt)) + ")"
}

// Events returns every event in the order they may occur.
func Events() []Event {
	return []Event{PhaseStart, PhaseEnd, Delivered, ShutdownFailed, Released}
}

// Info describes the session at the time of an event.
type Info struct {
	Session uint32
	Phase   State
	Secure  bool

	// Start and End bound the current phase. End is zero on PhaseStart.
	Start time.Time
	End   time.Time

	Err      error
	Response *http.Response
}
