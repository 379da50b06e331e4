package audio

import (
	"log/slog"
	"sync"
)

// ScheduleLead is the grace offset, in seconds, applied when the playback
// cursor has fallen behind the clock: the next buffer starts this far in
// the future rather than at a timestamp already in the past.
const ScheduleLead = 0.05

// SchedulerOption configures a [Scheduler] during construction.
type SchedulerOption func(*Scheduler)

// WithClock replaces the scheduler's timebase. Tests pass a manual clock;
// the default is [NewSystemClock].
func WithClock(c Clock) SchedulerOption {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithSpeakingFunc registers fn to be invoked whenever the speaking
// indicator flips. The indicator is true exactly while at least one buffer
// is scheduled or playing. fn is called outside the scheduler lock and must
// not block.
func WithSpeakingFunc(fn func(speaking bool)) SchedulerOption {
	return func(s *Scheduler) {
		s.onSpeaking = fn
	}
}

// WithSchedulerLogger sets the logger for playback diagnostics.
// Defaults to slog.Default().
func WithSchedulerLogger(l *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// Scheduler plays decoded buffers back to back. It owns the playback
// cursor, the time at which the next buffer will start, and the set of
// in-flight sources. Buffers are emitted to the sink at their scheduled
// start time, so consecutive buffers are audibly contiguous as long as the
// remote stays ahead of real time.
//
// The cursor only ever moves forward, with one exception: [Scheduler.Interrupt]
// resets it to the current clock reading after cutting all playback.
//
// All exported methods are safe for concurrent use; new-buffer, start,
// completion, and interruption events are serialized by a single mutex.
type Scheduler struct {
	sink       Sink
	clock      Clock
	logger     *slog.Logger
	onSpeaking func(bool)

	mu      sync.Mutex
	cursor  float64
	sources map[*source]struct{}
	closed  bool
}

// source is one scheduled buffer. Its timer is the pending start until the
// buffer begins, then the pending completion until it ends. A source leaves
// the set exactly once: on natural completion or when force-stopped.
type source struct {
	buf     DecodedBuffer
	startAt float64
	timer   Timer
}

// NewScheduler creates a Scheduler emitting to sink. The cursor starts at
// zero on the scheduler's clock.
func NewScheduler(sink Sink, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		sink:    sink,
		sources: make(map[*source]struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	if s.clock == nil {
		s.clock = NewSystemClock()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Schedule queues buf to start when the previous buffer ends. If the cursor
// has fallen behind the clock it is first clamped forward to now plus
// [ScheduleLead]; it is never clamped backward here. The cursor then
// advances by the buffer's duration regardless, so buffers queue
// back-to-back once caught up.
//
// Returns the scheduled start time on the scheduler's clock. Buffers
// arriving after Close are discarded.
func (s *Scheduler) Schedule(buf DecodedBuffer) float64 {
	s.mu.Lock()
	if s.closed {
		cur := s.cursor
		s.mu.Unlock()
		return cur
	}

	now := s.clock.Now()
	if s.cursor < now {
		s.cursor = now + ScheduleLead
	}

	src := &source{buf: buf, startAt: s.cursor}
	s.sources[src] = struct{}{}
	wasIdle := len(s.sources) == 1
	s.cursor += buf.Duration()
	src.timer = s.clock.AfterFunc(src.startAt-now, func() { s.begin(src) })
	s.mu.Unlock()

	if wasIdle {
		s.notifySpeaking(true)
	}
	return src.startAt
}

// Interrupt force-stops every scheduled and playing source, clears the
// in-flight set, signals not-speaking, and resets the cursor to the current
// clock reading. All queued future playback is discarded: this is a
// deliberate cut, not a pause. The reset is the only backward movement the
// cursor ever makes.
func (s *Scheduler) Interrupt() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	hadSources := len(s.sources) > 0
	for src := range s.sources {
		if src.timer != nil {
			src.timer.Stop()
		}
		delete(s.sources, src)
	}
	s.cursor = s.clock.Now()
	sink := s.sink
	s.mu.Unlock()

	if err := sink.Flush(); err != nil {
		s.logger.Debug("playback: sink flush failed", "error", err)
	}
	if hadSources {
		s.notifySpeaking(false)
	}
}

// Speaking reports whether any buffer is currently scheduled or playing.
func (s *Scheduler) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sources) > 0
}

// Pending returns the number of in-flight sources.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sources)
}

// Cursor returns the current cursor value on the scheduler's clock.
func (s *Scheduler) Cursor() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Close cancels all timers and discards in-flight sources. Close is
// idempotent; subsequent calls are no-ops and return nil.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for src := range s.sources {
		if src.timer != nil {
			src.timer.Stop()
		}
		delete(s.sources, src)
	}
	return nil
}

// begin fires at a source's scheduled start: emit the buffer downstream and
// arm the completion timer. A source that was force-stopped or closed away
// in the meantime is ignored.
func (s *Scheduler) begin(src *source) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if _, ok := s.sources[src]; !ok {
		s.mu.Unlock()
		return
	}
	src.timer = s.clock.AfterFunc(src.buf.Duration(), func() { s.finish(src) })
	sink := s.sink
	s.mu.Unlock()

	if err := sink.Write(src.buf); err != nil {
		s.logger.Debug("playback: sink write failed",
			"error", err,
			"duration", src.buf.Duration(),
		)
	}
}

// finish removes a naturally completed source from the set and signals
// not-speaking when the set empties.
func (s *Scheduler) finish(src *source) {
	s.mu.Lock()
	if _, ok := s.sources[src]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.sources, src)
	idle := len(s.sources) == 0 && !s.closed
	s.mu.Unlock()

	if idle {
		s.notifySpeaking(false)
	}
}

func (s *Scheduler) notifySpeaking(speaking bool) {
	if s.onSpeaking != nil {
		s.onSpeaking(speaking)
	}
}
