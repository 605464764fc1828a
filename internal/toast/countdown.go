// Package toast shows transient notification popups with a pausable
// auto-dismiss countdown.
package toast

import "time"

// DefaultDuration is how long a toast stays up without interaction
const DefaultDuration = 4000 * time.Millisecond

// Phase is the countdown state
type Phase int

const (
	Running Phase = iota
	Paused
	Expired
	Dismissed
)

func (p Phase) String() string {
	switch p {
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Expired:
		return "expired"
	case Dismissed:
		return "dismissed"
	default:
		return "unknown"
	}
}

// Countdown is a value-typed timer state. Running carries a deadline,
// Paused carries the remaining duration. Transitions return a new value and
// never read the wall clock.
type Countdown struct {
	Phase     Phase
	Deadline  time.Time
	Remaining time.Duration
}

// StartCountdown begins running at now for d
func StartCountdown(now time.Time, d time.Duration) Countdown {
	return Countdown{Phase: Running, Deadline: now.Add(d), Remaining: d}
}

// Pause freezes the remaining time. Pausing past the deadline expires.
func (c Countdown) Pause(now time.Time) Countdown {
	if c.Phase != Running {
		return c
	}
	left := c.Deadline.Sub(now)
	if left <= 0 {
		return Countdown{Phase: Expired}
	}
	return Countdown{Phase: Paused, Remaining: left}
}

// Resume restarts a paused countdown with what was left
func (c Countdown) Resume(now time.Time) Countdown {
	if c.Phase != Paused {
		return c
	}
	return Countdown{Phase: Running, Deadline: now.Add(c.Remaining), Remaining: c.Remaining}
}

// Tick expires a running countdown whose deadline has passed
func (c Countdown) Tick(now time.Time) Countdown {
	if c.Phase == Running && !now.Before(c.Deadline) {
		return Countdown{Phase: Expired}
	}
	return c
}

// Dismiss ends the countdown immediately
func (c Countdown) Dismiss() Countdown {
	if c.Done() {
		return c
	}
	return Countdown{Phase: Dismissed}
}

// RemainingAt returns the time left at now
func (c Countdown) RemainingAt(now time.Time) time.Duration {
	switch c.Phase {
	case Running:
		if left := c.Deadline.Sub(now); left > 0 {
			return left
		}
		return 0
	case Paused:
		return c.Remaining
	default:
		return 0
	}
}

// Done reports whether the toast is gone
func (c Countdown) Done() bool {
	return c.Phase == Expired || c.Phase == Dismissed
}
