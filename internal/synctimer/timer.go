// Package synctimer paces periodic mirror refreshes from the frame loop.
package synctimer

import "time"

type State int

const (
	Waiting State = iota
	Fire
)

func (s State) String() string {
	if s == Fire {
		return "FIRE"
	}
	return "WAITING"
}

const DefaultPeriod = 5 * time.Second

// Timer is level-triggered: it fires on the first Tick at or past the period
// and restarts from zero, so a long stall yields one fire, not a burst.
type Timer struct {
	period  time.Duration
	elapsed time.Duration
	state   State
}

func New(period time.Duration) *Timer {
	if period <= 0 {
		period = DefaultPeriod
	}
	return &Timer{period: period}
}

func (t *Timer) Period() time.Duration  { return t.period }
func (t *Timer) Elapsed() time.Duration { return t.elapsed }
func (t *Timer) State() State           { return t.state }

// Tick advances by dt and reports whether the timer fired on this call.
// Negative deltas are ignored.
func (t *Timer) Tick(dt time.Duration) bool {
	if dt > 0 {
		t.elapsed += dt
	}
	if t.elapsed >= t.period {
		t.elapsed = 0
		t.state = Fire
		return true
	}
	t.state = Waiting
	return false
}

func (t *Timer) Reset() {
	t.elapsed = 0
	t.state = Waiting
}
