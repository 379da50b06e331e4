package audio

import "time"

// Clock is the playback timebase: a monotonic seconds counter plus timer
// scheduling. The scheduler takes a Clock so tests can drive time by hand;
// production code uses [NewSystemClock].
type Clock interface {
	// Now returns the current time in seconds. The origin is arbitrary but
	// fixed for the lifetime of the clock; only differences matter.
	Now() float64

	// AfterFunc arranges for fn to be invoked on its own goroutine once d
	// seconds have elapsed. A non-positive d fires as soon as possible.
	AfterFunc(d float64, fn func()) Timer
}

// Timer is a pending [Clock.AfterFunc] invocation.
type Timer interface {
	// Stop cancels the pending invocation. It reports whether the timer was
	// stopped before firing.
	Stop() bool
}

// NewSystemClock returns a Clock backed by the runtime's monotonic clock,
// with its origin at the moment of the call.
func NewSystemClock() Clock {
	return &systemClock{start: time.Now()}
}

type systemClock struct {
	start time.Time
}

func (c *systemClock) Now() float64 {
	return time.Since(c.start).Seconds()
}

func (c *systemClock) AfterFunc(d float64, fn func()) Timer {
	if d < 0 {
		d = 0
	}
	return time.AfterFunc(time.Duration(d*float64(time.Second)), fn)
}
