package audio

import (
	"context"
	"errors"
	"log/slog"
)

// SendFunc delivers one encoded frame to the network session. A send that
// fails because the session is not ready is tolerated: the frame is simply
// dropped (see [Capture.Run]).
type SendFunc func(Blob) error

// CaptureConfig configures a [Capture].
type CaptureConfig struct {
	// Send receives every encoded frame. Required.
	Send SendFunc

	// OnLevel, if set, receives the display volume of every frame (see
	// [Level]). Invoked inline from the capture goroutine; must not block.
	OnLevel func(float64)

	// Logger receives drop diagnostics at debug level.
	// Defaults to slog.Default().
	Logger *slog.Logger
}

// Capture is the microphone half of the pipeline. It pulls fixed-size
// frames from a device stream, measures each frame's volume for UI
// feedback, encodes it, and hands the blob to the send function.
//
// There is no backpressure queue in either direction: a frame whose send
// fails is dropped, never buffered or retried. Occasional frame loss is
// acceptable for a live stream; a growing queue is not.
type Capture struct {
	send    SendFunc
	onLevel func(float64)
	logger  *slog.Logger
}

// NewCapture validates cfg and returns a Capture ready to run.
func NewCapture(cfg CaptureConfig) (*Capture, error) {
	if cfg.Send == nil {
		return nil, errors.New("audio: capture requires a send function")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Capture{
		send:    cfg.Send,
		onLevel: cfg.OnLevel,
		logger:  logger,
	}, nil
}

// Run processes frames until the channel closes or ctx is done. Each frame
// is measured, encoded via [EncodeFrame], and passed to the send function.
// Send failures drop the frame silently apart from a debug log line.
//
// Returns nil when frames closes (normal device detach) and ctx.Err() on
// cancellation.
func (c *Capture) Run(ctx context.Context, frames <-chan Frame) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			if c.onLevel != nil {
				c.onLevel(Level(frame.Samples))
			}
			if err := c.send(EncodeFrame(frame)); err != nil {
				c.logger.Debug("capture: frame dropped",
					"error", err,
					"samples", len(frame.Samples),
				)
			}
		}
	}
}
