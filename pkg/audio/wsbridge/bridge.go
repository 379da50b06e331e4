// Package wsbridge exposes the audio pipeline to a browser page over a
// single WebSocket connection.
//
// Wire protocol:
//
//   - binary client → server: little-endian float32 mono samples at 16 kHz,
//     in blocks of any size; the bridge re-chunks them into fixed capture
//     frames.
//   - binary server → client: little-endian int16 PCM at 24 kHz, one message
//     per scheduled playback buffer.
//   - text server → client: JSON session events pushed via
//     [Bridge.PushEvent], plus {"type":"flush"} when an interruption
//     discards buffered playback.
//
// The bridge is the process's audio device, so it serves one client at a
// time; a second concurrent client is rejected at accept time. A client
// disconnect closes the frame stream, which winds the session down the same
// way an unplugged microphone would.
package wsbridge

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/rahulhooda929/Simple-FAQ-SDR/pkg/audio"
)

// ErrClosed is returned by [Bridge.Open] and [Bridge.WaitAttached] after
// [Bridge.Close].
var ErrClosed = errors.New("wsbridge: bridge closed")

const (
	// writeTimeout bounds a single WebSocket write. A client that cannot
	// drain playback audio within it is treated as gone.
	writeTimeout = 5 * time.Second

	// keepaliveInterval is how often the bridge pings an attached client so
	// half-dead connections are detected even while no audio is flowing.
	keepaliveInterval = 20 * time.Second

	// frameBuffer is the microphone frame channel depth. Frames beyond it
	// are dropped; a waiting socket must never stall on a slow consumer.
	frameBuffer = 8

	// maxCloseReason is the longest close-frame reason the protocol allows:
	// a 125-byte control payload minus the 2-byte status code.
	maxCloseReason = 123
)

// Bridge accepts browser WebSocket clients and presents the attached client
// to the session as an [audio.Device]. The zero client state is valid: event
// pushes are silently discarded and Open blocks until a client attaches.
type Bridge struct {
	logger   *slog.Logger
	onClient func(connected bool)

	mu       sync.Mutex
	current  *client
	attached chan struct{} // closed and replaced on every attach
	closed   bool
}

var (
	_ http.Handler = (*Bridge)(nil)
	_ audio.Device = (*Bridge)(nil)
)

// Option configures a [Bridge].
type Option func(*Bridge)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithClientFunc registers a callback invoked with true when a client
// attaches and false when it detaches. Used for connection gauges. Invoked
// from the connection goroutine; must not block.
func WithClientFunc(fn func(connected bool)) Option {
	return func(b *Bridge) {
		b.onClient = fn
	}
}

// New creates a bridge with no attached client.
func New(opts ...Option) *Bridge {
	b := &Bridge{
		attached: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b
}

// ServeHTTP upgrades the request to a WebSocket and runs the client until it
// disconnects. It implements the /ws endpoint.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The page may be served from a different origin during development.
		InsecureSkipVerify: true,
	})
	if err != nil {
		b.logger.Debug("bridge: websocket accept failed", "error", err)
		return
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	if b.current != nil {
		b.mu.Unlock()
		b.logger.Warn("bridge: rejecting second client", "remote", r.RemoteAddr)
		conn.Close(websocket.StatusPolicyViolation, "another client is already connected")
		return
	}
	c := newClient(b, conn)
	b.current = c
	// Wake anything waiting for a device.
	close(b.attached)
	b.attached = make(chan struct{})
	b.mu.Unlock()

	b.logger.Info("bridge: client attached", "remote", r.RemoteAddr)
	if b.onClient != nil {
		b.onClient(true)
	}

	go c.keepalive()
	c.readLoop()

	b.detach(c)
	c.shutdown()

	b.logger.Info("bridge: client detached", "remote", r.RemoteAddr)
	if b.onClient != nil {
		b.onClient(false)
	}
}

// Open implements [audio.Device]. It blocks until a browser client is
// attached and unclaimed, then hands that client to the caller as the audio
// connection for one session.
func (b *Bridge) Open(ctx context.Context) (audio.Conn, error) {
	for {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return nil, ErrClosed
		}
		if c := b.current; c != nil && !c.claimed {
			c.claimed = true
			b.mu.Unlock()
			return c, nil
		}
		wait := b.attached
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-wait:
		}
	}
}

// WaitAttached blocks until a client is attached or ctx is done. The server
// uses it to defer session establishment until a caller is actually present.
func (b *Bridge) WaitAttached(ctx context.Context) error {
	for {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return ErrClosed
		}
		if b.current != nil {
			b.mu.Unlock()
			return nil
		}
		wait := b.attached
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wait:
		}
	}
}

// PushEvent sends one JSON text message to the attached client. Without a
// client it is a no-op; UI mirroring is best-effort by design.
func (b *Bridge) PushEvent(v any) {
	b.mu.Lock()
	c := b.current
	b.mu.Unlock()
	if c == nil {
		return
	}
	if err := c.writeJSON(v); err != nil {
		b.logger.Debug("bridge: event push failed", "error", err)
	}
}

// Hangup disconnects the current client, if any, carrying reason in the
// close frame so the page can surface it. The error status tells the page
// this was not a normal session end. Hangup blocks until the client has
// fully detached, so a caller can immediately wait for the next one; the
// bridge itself stays open.
func (b *Bridge) Hangup(reason string) {
	b.mu.Lock()
	c := b.current
	b.mu.Unlock()
	if c == nil {
		return
	}
	if len(reason) > maxCloseReason {
		reason = reason[:maxCloseReason]
	}
	c.closeStatus(websocket.StatusInternalError, reason)
	<-c.detached
}

// Serving reports whether the bridge is accepting clients. False after
// [Bridge.Close].
func (b *Bridge) Serving() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.closed
}

// Close rejects future clients and disconnects the current one. Safe to call
// more than once.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	c := b.current
	close(b.attached)
	b.mu.Unlock()

	if c != nil {
		c.Close()
	}
	return nil
}

func (b *Bridge) detach(c *client) {
	b.mu.Lock()
	if b.current == c {
		b.current = nil
	}
	b.mu.Unlock()
	close(c.detached)
}

// ── client ────────────────────────────────────────────────────────────────────

// client is one attached browser connection. It is simultaneously the
// [audio.Conn] handed to the session (microphone in, playback out) and the
// sink for UI event messages.
type client struct {
	bridge *Bridge
	conn   *websocket.Conn
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	frames   chan audio.Frame
	detached chan struct{} // closed once the bridge has let go of the client
	acc      []float32     // partial-frame accumulator, read loop only

	writeMu   sync.Mutex
	closeOnce sync.Once

	claimed bool // guarded by bridge.mu
}

var (
	_ audio.Conn = (*client)(nil)
	_ audio.Sink = (*client)(nil)
)

func newClient(b *Bridge, conn *websocket.Conn) *client {
	// Pages may batch multiple capture blocks into one message.
	conn.SetReadLimit(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())
	return &client{
		bridge:   b,
		conn:     conn,
		logger:   b.logger,
		ctx:      ctx,
		cancel:   cancel,
		frames:   make(chan audio.Frame, frameBuffer),
		detached: make(chan struct{}),
	}
}

// Frames implements [audio.Conn].
func (c *client) Frames() <-chan audio.Frame { return c.frames }

// Output implements [audio.Conn].
func (c *client) Output() audio.Sink { return c }

// Close implements [audio.Conn]. The session calls it during teardown; the
// browser sees a normal closure and may re-attach for a new call.
func (c *client) Close() error {
	c.closeStatus(websocket.StatusNormalClosure, "session closed")
	return nil
}

// closeStatus closes the WebSocket once; whichever status arrives first
// wins.
func (c *client) closeStatus(code websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		c.cancel()
		c.conn.Close(code, reason)
	})
}

// Write implements [audio.Sink]: one playback buffer becomes one binary
// message of little-endian int16 PCM. Writes after the client is gone are
// dropped.
func (c *client) Write(buf audio.DecodedBuffer) error {
	select {
	case <-c.ctx.Done():
		return nil
	default:
	}
	return c.write(websocket.MessageBinary, audio.EncodePCM16(buf.Samples))
}

// Flush implements [audio.Sink]: tells the page to silence anything it has
// buffered locally. An interruption must reach the speaker, not just the
// server-side queue.
func (c *client) Flush() error {
	select {
	case <-c.ctx.Done():
		return nil
	default:
	}
	return c.writeJSON(map[string]string{"type": "flush"})
}

// readLoop ingests microphone audio until the client disconnects or the
// connection is closed locally.
func (c *client) readLoop() {
	for {
		typ, data, err := c.conn.Read(c.ctx)
		if err != nil {
			return
		}
		if typ != websocket.MessageBinary {
			// The page only sends audio; anything else is ignored.
			continue
		}
		c.ingest(data)
	}
}

// ingest converts one binary message of little-endian float32 samples into
// fixed-size capture frames. A trailing fragment that does not complete a
// sample is truncated; whole leftover samples wait for the next message.
func (c *client) ingest(data []byte) {
	for i := 0; i+4 <= len(data); i += 4 {
		bits := binary.LittleEndian.Uint32(data[i:])
		c.acc = append(c.acc, math.Float32frombits(bits))
	}

	for len(c.acc) >= audio.FrameSamples {
		samples := make([]float32, audio.FrameSamples)
		copy(samples, c.acc[:audio.FrameSamples])
		n := copy(c.acc, c.acc[audio.FrameSamples:])
		c.acc = c.acc[:n]

		select {
		case c.frames <- audio.Frame{Samples: samples, SampleRate: audio.CaptureRate}:
		default:
			// No session is draining the microphone; drop rather than
			// stall the socket.
			c.logger.Debug("bridge: dropping frame, no consumer")
		}
	}
}

// keepalive pings the client on an interval and closes the connection when a
// ping fails.
func (c *client) keepalive() {
	ticker := time.NewTicker(keepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(c.ctx, writeTimeout)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				c.logger.Debug("bridge: keepalive failed, closing client", "error", err)
				c.Close()
				return
			}
		}
	}
}

// shutdown runs after the read loop exits. The frame channel closes here, on
// the reader's goroutine, so the capture pipeline sees a clean device detach.
func (c *client) shutdown() {
	c.Close()
	close(c.frames)
}

func (c *client) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.write(websocket.MessageText, data)
}

func (c *client) write(typ websocket.MessageType, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	ctx, cancel := context.WithTimeout(c.ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, typ, data)
}
