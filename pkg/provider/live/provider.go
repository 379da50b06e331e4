// Package live defines the Provider interface for realtime voice
// conversation backends.
//
// A live provider wraps a hosted realtime speech API that accepts streamed
// microphone audio and returns synthesised speech in a single, stateful
// session. Speech recognition, language understanding, turn-taking, and
// barge-in detection all happen inside the remote model; the client's job
// is to keep audio flowing in both directions and to react to the session's
// lifecycle signals.
//
// The central abstraction is SessionHandle: a bidirectional, multiplexed
// connection that carries audio, transcripts, interruption signals, and
// tool calls concurrently. Sessions are long-lived (seconds to minutes) and
// end either cleanly or with a transport error, observable via Err after
// the audio channel closes.
//
// All implementations must be safe for concurrent use.
package live

import (
	"context"
	"errors"
	"time"

	"github.com/rahulhooda929/Simple-FAQ-SDR/pkg/audio"
)

// ErrSessionClosed is returned by session methods once the session has been
// closed. Senders treat it as a signal to drop the outbound frame, not as a
// failure to surface.
var ErrSessionClosed = errors.New("live: session closed")

// Transcript speaker roles.
const (
	RoleUser  = "user"
	RoleAgent = "agent"
)

// Transcript is one piece of recognised or generated speech text, used for
// conversation logs and UI mirroring only; it never feeds back into the
// audio path.
type Transcript struct {
	// Role identifies the speaker: [RoleUser] for recognised caller speech,
	// [RoleAgent] for the model's own output.
	Role string

	// Text is the transcribed or generated text.
	Text string

	// Timestamp marks when the entry was received.
	Timestamp time.Time
}

// ToolCallHandler is a callback invoked by the session whenever the remote
// model requests a tool call. The handler receives the tool name and a
// JSON-encoded arguments string and returns a JSON result string or an
// error. Either way the session acknowledges the invocation back to the
// service, quoting the same call identifier, before further model turns
// proceed reliably.
//
// The handler is called from the session's internal receive goroutine and
// must not call blocking session methods, or it will deadlock the stream.
type ToolCallHandler func(name string, args string) (string, error)

// ToolDefinition describes one function the remote model may invoke.
type ToolDefinition struct {
	// Name is the function name the model uses to invoke the tool.
	Name string

	// Description tells the model what the tool does and when to call it.
	Description string

	// Parameters is a JSON-schema object describing the arguments.
	Parameters map[string]any
}

// ContextItem is a text message injected into the session's rolling context
// mid-conversation, for example an opening line at connect time or a piece
// of reference knowledge the model should have available.
type ContextItem struct {
	// Role is the speaker role: "user", "assistant", or "system".
	Role string

	// Content is the text content.
	Content string
}

// SessionConfig is the initial configuration for a new live session.
type SessionConfig struct {
	// Voice names the provider voice used for synthesised speech.
	Voice string

	// Instructions is the system prompt that defines the agent's persona
	// and conversation goals.
	Instructions string

	// Tools is the set of tool definitions offered to the model for the
	// whole session. Tool calls are surfaced via OnToolCall.
	Tools []ToolDefinition
}

// Capabilities describes static properties of a live provider. The values
// are assumed constant for the lifetime of the Provider instance.
type Capabilities struct {
	// MaxSessionDuration is the hard upper bound on session lifetime
	// imposed by the provider. Zero means no documented limit.
	MaxSessionDuration time.Duration

	// Voices lists the voice names available for this provider.
	Voices []string
}

// SessionHandle represents an open live session. It is an interface so that
// test code can supply mock implementations without a network connection.
//
// The session is the hot path of the voice pipeline; every method must
// return quickly. Audio I/O is channel-based so neither direction blocks
// the other. Callers must call Close when the session is no longer needed.
type SessionHandle interface {
	// SendAudio delivers one encoded microphone frame to the model.
	// Returns [ErrSessionClosed] (wrapped) once the session is closed;
	// callers drop the frame in that case rather than queueing it.
	SendAudio(blob audio.Blob) error

	// Audio returns a read-only channel that emits raw PCM byte chunks
	// (little-endian int16 at 24 kHz) as the model speaks. The channel is
	// closed when the session ends; call [SessionHandle.Err] afterwards to
	// learn whether it ended cleanly. Consumers must drain promptly, the
	// receive loop stalls otherwise.
	Audio() <-chan []byte

	// Interrupts returns a read-only channel that fires when the remote
	// session signals the caller has started speaking over the agent.
	// Signals are coalesced; the channel closes when the session ends.
	Interrupts() <-chan struct{}

	// Transcripts returns a read-only channel of [Transcript] entries for
	// both recognised caller speech and the agent's generated speech.
	// The channel is closed when the session ends.
	Transcripts() <-chan Transcript

	// OnToolCall registers the handler invoked for model tool calls. Only
	// one handler can be active; calling OnToolCall again replaces it, and
	// nil clears it. See [ToolCallHandler] for concurrency constraints.
	OnToolCall(handler ToolCallHandler)

	// OnError registers a callback for error events the remote session
	// reports in-band. The callback may fire from the receive goroutine
	// and must not block.
	OnError(handler func(error))

	// InjectContext inserts text items into the session's rolling context
	// without sending audio. Items are appended in order.
	InjectContext(items []ContextItem) error

	// Err returns the error that caused the session to terminate, or nil
	// if it ended cleanly. Valid once the Audio channel has closed.
	Err() error

	// Close terminates the session, releases resources, and closes the
	// Audio, Interrupts, and Transcripts channels. Close does not wait for
	// any remote acknowledgment; teardown is local and best-effort on the
	// wire. Calling Close more than once is safe and returns nil.
	Close() error
}

// Provider is the abstraction over any realtime voice backend.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Connect establishes a new live session. It returns once the remote
	// session has acknowledged setup and is ready to accept audio; the
	// supplied ctx governs the connection attempt only.
	//
	// The caller owns the returned SessionHandle and must call Close.
	Connect(ctx context.Context, cfg SessionConfig) (SessionHandle, error)

	// Capabilities returns static metadata about the provider's model.
	Capabilities() Capabilities
}
