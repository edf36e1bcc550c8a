package session

import "strconv"

// State is a phase of a session. States only move forward.
type State uint32

const (
	Idle State = iota
	Resolving
	Connecting
	Handshaking // secure sessions only.
	Writing
	Reading
	ShuttingDown // secure sessions only.
	Done
)

var stateNames = []string{
	"Idle",
	"Resolving",
	"Connecting",
	"Handshaking",
	"Writing",
	"Reading",
	"ShuttingDown",
	"Done",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "State(" + strconv.Itoa(int(s)) + ")"
}

// States returns every state in the order a secure session walks them.
func States() []State {
	return []State{Idle, Resolving, Connecting, Handshaking, Writing, Reading, ShuttingDown, Done}
}
