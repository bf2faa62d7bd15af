package session

import "time"

// State is the scheduler state.
type State int

const (
	// Idle means nothing to advance: empty set or a non-positive interval.
	Idle State = iota
	// Armed means a timer is pending.
	Armed
	// Paused means advancement is suspended while the pause signal is held.
	Paused
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Paused:
		return "paused"
	default:
		return "unknown"
	}
}

// Transition computes the scheduler state for the given inputs.
func Transition(size int, interval time.Duration, paused bool) State {
	if size == 0 || interval <= 0 {
		return Idle
	}
	if paused {
		return Paused
	}
	return Armed
}

// Timer describes the single pending tick. Gen identifies it: a tick is live
// only while Gen matches the scheduler's current generation.
type Timer struct {
	Gen      uint64
	Deadline time.Time
	Delay    time.Duration
}

// Scheduler decides when the cursor advances. It never owns a real timer; the
// caller schedules Timer.Delay and reports back through Fire. Cancellation is
// a generation bump, so a stale tick can never be honoured.
type Scheduler struct {
	state    State
	gen      uint64
	deadline time.Time
	interval time.Duration
	size     int
	paused   bool
}

// State returns the current state.
func (s *Scheduler) State() State {
	return s.state
}

// Paused reports whether the pause signal is held.
func (s *Scheduler) Paused() bool {
	return s.paused
}

// Rearm cancels any pending timer and recomputes the state. When Armed it
// starts a fresh window from now.
func (s *Scheduler) Rearm(now time.Time, size int, interval time.Duration) (Timer, bool) {
	s.size = size
	s.interval = interval
	return s.recompute(now)
}

// SetPaused asserts or clears the pause signal. Resuming starts a full window
// from now; the remainder of the interrupted window is not kept.
func (s *Scheduler) SetPaused(now time.Time, paused bool) (Timer, bool) {
	if s.paused == paused {
		return s.Pending()
	}
	s.paused = paused
	return s.recompute(now)
}

// Fire reports whether the tick with generation gen is the live one.
func (s *Scheduler) Fire(gen uint64) bool {
	return s.state == Armed && gen == s.gen
}

// Pending returns the live timer, if any.
func (s *Scheduler) Pending() (Timer, bool) {
	if s.state != Armed {
		return Timer{}, false
	}
	return Timer{Gen: s.gen, Deadline: s.deadline, Delay: s.interval}, true
}

func (s *Scheduler) recompute(now time.Time) (Timer, bool) {
	s.gen++
	s.deadline = time.Time{}
	s.state = Transition(s.size, s.interval, s.paused)
	if s.state != Armed {
		return Timer{}, false
	}
	s.deadline = now.Add(s.interval)
	return s.Pending()
}
