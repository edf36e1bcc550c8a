package session

import (
	"maps"
	"time"
)

// DefaultTimeout is the phase clock used when nothing else is set.
const DefaultTimeout = 30 * time.Second

// TimeoutPolicy tells how long a phase may take. A duration that is not
// positive leaves the phase without a clock.
//
// Implementations must be safe for concurrent use.
type TimeoutPolicy interface {
	Timeout(phase State) time.Duration
}

// Infinite never times out.
var Infinite TimeoutPolicy = Fixed(0)

// Fixed gives every phase the same clock.
func Fixed(d time.Duration) TimeoutPolicy {
	return policy{fallback: d}
}

// PerPhase gives the phases in overrides their own clock and d to the rest.
//
//	p := PerPhase(10*time.Second, map[State]time.Duration{Reading: time.Minute})
func PerPhase(d time.Duration, overrides map[State]time.Duration) TimeoutPolicy {
	return policy{fallback: d, phases: maps.Clone(overrides)}
}

type policy struct {
	fallback time.Duration
	phases   map[State]time.Duration
}

func (p policy) Timeout(phase State) time.Duration {
	if d, ok := p.phases[phase]; ok {
		return d
	}
	return p.fallback
}
