// Package audio implements the realtime voice pipeline: PCM encode/decode
// for the remote wire format, the microphone capture loop, and the gapless
// playback scheduler.
//
// The two device-facing abstractions are:
//
//   - [Device] — acquires the audio endpoints and returns a [Conn].
//   - [Conn] — an active device session: a fixed-size microphone frame
//     stream plus a playback [Sink].
//
// Device implementations live in adapter subpackages (audio/wsbridge for the
// browser bridge, audio/mock for tests). The interfaces are intentionally
// narrow to keep the session orchestrator decoupled from transport details.
package audio

import "context"

// Sink receives scheduled playback audio.
//
// Write delivers one decoded buffer at its scheduled start time. Flush
// discards anything the device has buffered but not yet played; the
// scheduler calls it on interruption. Writes after the device is gone are
// dropped, not a panic.
//
// Implementations must be safe for concurrent use.
type Sink interface {
	Write(buf DecodedBuffer) error
	Flush() error
}

// Conn is an active device session obtained from [Device.Open].
//
// The frame channel is closed automatically when the device detaches.
// Implementations must be safe for concurrent use.
type Conn interface {
	// Frames returns the microphone stream: [FrameSamples]-sized frames at
	// [CaptureRate], in capture order. The channel closes when the device
	// detaches or the session is closed.
	Frames() <-chan Frame

	// Output returns the playback sink for scheduled model audio.
	Output() Sink

	// Close tears the session down. Safe to call more than once; subsequent
	// calls are no-ops and return nil.
	Close() error
}

// Device is the entry point for an audio transport.
// Implementations must be safe for concurrent use.
type Device interface {
	// Open acquires the audio endpoints for one voice session. It blocks
	// until the device is available (for the browser bridge: until a client
	// attaches) or ctx is done. Acquisition failure is fatal to the connect
	// attempt; the caller surfaces it and does not retry on its own.
	Open(ctx context.Context) (Conn, error)
}
