// Package mock provides in-memory mock implementations of the
// [audio.Device], [audio.Conn], and [audio.Sink] interfaces plus a manual
// [audio.Clock] for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so
// that tests can assert on call counts and arguments, and they expose
// exported fields that the test can set to control return values.
//
// Typical usage:
//
//	frames := make(chan audio.Frame, 4)
//	conn := &mock.Conn{
//	    FramesResult: frames,
//	    OutputResult: &mock.Sink{},
//	}
//	device := &mock.Device{OpenResult: conn}
//	got, err := device.Open(ctx)
package mock

import (
	"context"
	"sync"

	"github.com/rahulhooda929/Simple-FAQ-SDR/pkg/audio"
)

// ─── Device ───────────────────────────────────────────────────────────────────

// Device is a mock implementation of [audio.Device].
// Set the exported Result fields before use; inspect the Call* fields after.
type Device struct {
	mu sync.Mutex

	// OpenResult is the [audio.Conn] returned by Open.
	OpenResult audio.Conn

	// OpenError is the error returned by Open.
	OpenError error

	// CallCountOpen records how many times Open was called.
	CallCountOpen int
}

// Open implements [audio.Device]. Records the call and returns
// OpenResult / OpenError.
func (d *Device) Open(_ context.Context) (audio.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.CallCountOpen++
	return d.OpenResult, d.OpenError
}

// ─── Conn ─────────────────────────────────────────────────────────────────────

// Conn is a mock implementation of [audio.Conn].
type Conn struct {
	mu sync.Mutex

	// FramesResult is returned by [Conn.Frames].
	FramesResult <-chan audio.Frame

	// OutputResult is returned by [Conn.Output].
	OutputResult audio.Sink

	// CloseError is returned by [Conn.Close].
	CloseError error

	// CallCountFrames records how many times Frames was called.
	CallCountFrames int

	// CallCountOutput records how many times Output was called.
	CallCountOutput int

	// CallCountClose records how many times Close was called.
	CallCountClose int
}

// Frames implements [audio.Conn]. Returns FramesResult.
func (c *Conn) Frames() <-chan audio.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCountFrames++
	return c.FramesResult
}

// Output implements [audio.Conn]. Returns OutputResult.
func (c *Conn) Output() audio.Sink {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCountOutput++
	return c.OutputResult
}

// Close implements [audio.Conn]. Returns CloseError.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCountClose++
	return c.CloseError
}

// CloseCount returns the number of recorded Close calls. Thread-safe, for
// polling from tests while the session tears down on its own goroutines.
func (c *Conn) CloseCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.CallCountClose
}

// ─── Sink ─────────────────────────────────────────────────────────────────────

// Sink is a mock implementation of [audio.Sink]. It records every written
// buffer and every flush.
type Sink struct {
	mu sync.Mutex

	// WriteError is returned by [Sink.Write].
	WriteError error

	// FlushError is returned by [Sink.Flush].
	FlushError error

	// Writes records all buffers passed to Write, in order.
	Writes []audio.DecodedBuffer

	// CallCountFlush records how many times Flush was called.
	CallCountFlush int
}

// Write implements [audio.Sink]. Records buf and returns WriteError.
func (s *Sink) Write(buf audio.DecodedBuffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Writes = append(s.Writes, buf)
	return s.WriteError
}

// Flush implements [audio.Sink]. Records the call and returns FlushError.
func (s *Sink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountFlush++
	return s.FlushError
}

// WriteCount returns the number of recorded writes.
func (s *Sink) WriteCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Writes)
}

// FlushCount returns the number of recorded flushes. Thread-safe.
func (s *Sink) FlushCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CallCountFlush
}

// ─── Clock ────────────────────────────────────────────────────────────────────

// Clock is a manual [audio.Clock] for tests. Time stands still until the
// test calls [Clock.Advance] or [Clock.Set]; due timers fire in
// chronological order on the calling goroutine, which makes scheduler
// behaviour fully deterministic.
//
// The zero value is ready to use and starts at time 0.
type Clock struct {
	mu     sync.Mutex
	now    float64
	timers []*clockTimer
}

type clockTimer struct {
	clock   *Clock
	at      float64
	fn      func()
	stopped bool
	fired   bool
}

// Stop implements [audio.Timer].
func (t *clockTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// Now implements [audio.Clock].
func (c *Clock) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc implements [audio.Clock]. The timer fires only once the clock
// is advanced past its deadline.
func (c *Clock) AfterFunc(d float64, fn func()) audio.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &clockTimer{clock: c, at: c.now + d, fn: fn}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward by d seconds, firing every due timer in
// chronological order. Callbacks run on the calling goroutine without the
// clock lock held, so they may schedule further timers.
func (c *Clock) Advance(d float64) {
	c.mu.Lock()
	c.advanceLocked(c.now + d)
	c.mu.Unlock()
}

// Set moves the clock to the absolute time t (which must not be in the
// past), firing due timers like [Clock.Advance].
func (c *Clock) Set(t float64) {
	c.mu.Lock()
	if t < c.now {
		t = c.now
	}
	c.advanceLocked(t)
	c.mu.Unlock()
}

// advanceLocked walks the clock to target, firing due timers one at a time.
// Must be called with c.mu held; the lock is released around each callback.
func (c *Clock) advanceLocked(target float64) {
	for {
		var next *clockTimer
		for _, t := range c.timers {
			if t.stopped || t.fired || t.at > target {
				continue
			}
			if next == nil || t.at < next.at {
				next = t
			}
		}
		if next == nil {
			break
		}
		if next.at > c.now {
			c.now = next.at
		}
		next.fired = true
		fn := next.fn
		c.mu.Unlock()
		fn()
		c.mu.Lock()
	}
	if target > c.now {
		c.now = target
	}
}
