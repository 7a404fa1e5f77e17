package timeutils

import (
	"sync/atomic"
	"time"
)

// Now returns the current UTC time
func Now() time.Time {
	return time.Now().UTC()
}

// Clock is the time source read by the cooperative time budget
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return Now()
}

// StepClock is a deterministic clock that advances by Step on every read
type StepClock struct {
	start time.Time
	step  time.Duration
	reads int64
}

func NewStepClock(start time.Time, step time.Duration) *StepClock {
	return &StepClock{start: start, step: step}
}

func (c *StepClock) Now() time.Time {
	n := atomic.AddInt64(&c.reads, 1) - 1

	return c.start.Add(time.Duration(n) * c.step)
}

// Reads returns how many times the clock was read
func (c *StepClock) Reads() int64 {
	return atomic.LoadInt64(&c.reads)
}

// Deadline is a point in time checked cooperatively by long computations
type Deadline struct {
	clock Clock
	at    time.Time
	off   bool
}

// NoDeadline never expires
var NoDeadline = Deadline{off: true}

// NewDeadline returns a deadline budget from now according to the clock
func NewDeadline(clock Clock, budget time.Duration) Deadline {
	return Deadline{clock: clock, at: clock.Now().Add(budget)}
}

// Expired reports whether the deadline has passed. The zero Deadline never expires.
func (d Deadline) Expired() bool {
	if d.off || d.clock == nil {
		return false
	}

	return d.clock.Now().After(d.at)
}
