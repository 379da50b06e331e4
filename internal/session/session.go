// Package session implements the voice session orchestrator: the connection
// state machine that ties an audio device, a realtime voice provider, the
// playback scheduler, and the lead record together into one conversation.
//
// A [Session] is long-lived and reusable: Connect moves it from
// [StateDisconnected] (or [StateError]) through [StateConnecting] to
// [StateConnected], Disconnect or a remote close returns it to
// [StateDisconnected], and any fault lands it in [StateError] from which
// Connect may be retried. Observers follow the conversation through the
// lossy event stream returned by [Session.Events].
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"github.com/rahulhooda929/Simple-FAQ-SDR/internal/lead"
	"github.com/rahulhooda929/Simple-FAQ-SDR/internal/observe"
	"github.com/rahulhooda929/Simple-FAQ-SDR/pkg/audio"
	"github.com/rahulhooda929/Simple-FAQ-SDR/pkg/provider/live"
)

// ErrNoCredential is returned by [Session.Connect] when no API credential is
// configured. The session moves straight to [StateError] without touching
// the audio device or the network.
var ErrNoCredential = errors.New("session: missing API credential")

// ErrActive is returned by [Session.Connect] while a connect attempt or a
// live session is already in progress.
var ErrActive = errors.New("session: already active")

// eventBuffer is the capacity of the event stream. Consumers slower than
// this lose events rather than stalling the audio pipelines.
const eventBuffer = 32

// Config configures a [Session]. Provider and Device are required; every
// other field has a usable zero value.
type Config struct {
	// Provider opens remote voice sessions. Required.
	Provider live.Provider

	// Device supplies microphone frames and the playback sink. Required.
	Device audio.Device

	// Credential is the API credential the remote session depends on.
	// Connect fails fast with [ErrNoCredential] when it is empty.
	Credential string

	// ProviderName labels the provider in logs and metrics.
	// Defaults to "live".
	ProviderName string

	// Voice selects the agent voice. Empty means the provider default.
	Voice string

	// Instructions is the system prompt.
	// Defaults to [DefaultInstructions].
	Instructions string

	// Greeting, when set, is injected as an opening user turn right after
	// connect so the agent speaks first.
	Greeting string

	// ExtraTools are tool declarations forwarded to the model alongside the
	// built-in lead capture tool. Declarations are deduplicated by name and
	// the first one wins; only the lead capture tool has a local executor.
	ExtraTools []live.ToolDefinition

	// Clock is the timebase for playback scheduling. Tests pass a manual
	// clock; the default is the system clock.
	Clock audio.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// Session drives one voice conversation at a time. All exported methods are
// safe for concurrent use.
type Session struct {
	provider     live.Provider
	device       audio.Device
	credential   string
	providerName string
	voice        string
	instructions string
	greeting     string
	extraTools   []live.ToolDefinition
	clock        audio.Clock
	logger       *slog.Logger
	metrics      *observe.Metrics

	leads  *lead.Store
	events chan Event

	mu      sync.Mutex
	gen     uint64
	id      string
	state   State
	lastErr error
	closers []func() error
	done    chan struct{} // replaced per connect, closed when the call ends
}

// New validates cfg and returns an idle Session in [StateDisconnected].
func New(cfg Config) (*Session, error) {
	if cfg.Provider == nil {
		return nil, errors.New("session: provider must not be nil")
	}
	if cfg.Device == nil {
		return nil, errors.New("session: device must not be nil")
	}
	if cfg.ProviderName == "" {
		cfg.ProviderName = "live"
	}
	if cfg.Instructions == "" {
		cfg.Instructions = DefaultInstructions
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	// An idle session reads as done.
	done := make(chan struct{})
	close(done)
	return &Session{
		provider:     cfg.Provider,
		device:       cfg.Device,
		credential:   cfg.Credential,
		providerName: cfg.ProviderName,
		voice:        cfg.Voice,
		instructions: cfg.Instructions,
		greeting:     cfg.Greeting,
		extraTools:   cfg.ExtraTools,
		clock:        cfg.Clock,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		leads:        lead.NewStore(),
		events:       make(chan Event, eventBuffer),
		done:         done,
	}, nil
}

// Settings are the conversation options a Session applies when Connect is
// called. They mirror the corresponding [Config] fields.
type Settings struct {
	Credential   string
	Voice        string
	Instructions string
	Greeting     string
	ExtraTools   []live.ToolDefinition
}

// Reconfigure replaces the settings used by subsequent Connect calls,
// typically after a configuration reload. A call already in flight keeps
// the settings it started with. An empty Instructions falls back to
// [DefaultInstructions].
func (s *Session) Reconfigure(st Settings) {
	if st.Instructions == "" {
		st.Instructions = DefaultInstructions
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credential = st.Credential
	s.voice = st.Voice
	s.instructions = st.Instructions
	s.greeting = st.Greeting
	s.extraTools = st.ExtraTools
}

// SetProvider replaces the realtime provider used by subsequent Connect
// calls. name relabels the provider in logs and metrics; empty keeps the
// current label. A nil provider is ignored.
func (s *Session) SetProvider(p live.Provider, name string) {
	if p == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.provider = p
	if name != "" {
		s.providerName = name
	}
}

// Connect establishes a live session: it acquires the audio device, opens
// the provider session, and starts the capture and receive pumps. It blocks
// until the remote session has acknowledged setup or ctx is done.
//
// Connect is legal from [StateDisconnected] and [StateError]; any other
// state returns [ErrActive]. A missing credential fails the attempt before
// any device or network activity.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateConnecting || s.state == StateConnected {
		s.mu.Unlock()
		return ErrActive
	}
	if s.credential == "" {
		s.state = StateError
		s.lastErr = ErrNoCredential
		s.mu.Unlock()
		s.logger.Error("session connect refused: no API credential configured")
		s.emit(Event{Kind: EventState, State: StateError, Err: ErrNoCredential})
		return ErrNoCredential
	}
	s.state = StateConnecting
	s.lastErr = nil
	s.gen++
	gen := s.gen
	s.id = uuid.NewString()
	id := s.id
	s.done = make(chan struct{})
	// Snapshot the settings so a concurrent Reconfigure cannot change this
	// call halfway through.
	provider := s.provider
	providerName := s.providerName
	voice := s.voice
	instructions := s.instructions
	greeting := s.greeting
	tools := mergeTools(s.extraTools)
	s.mu.Unlock()

	s.emit(Event{Kind: EventState, State: StateConnecting})
	log := s.logger.With("session_id", id)
	log.Info("session connecting", "provider", providerName)
	start := time.Now()

	conn, err := s.device.Open(ctx)
	if err != nil {
		return s.failConnect(gen, log, fmt.Errorf("session: acquire audio device: %w", err))
	}

	handle, err := provider.Connect(ctx, live.SessionConfig{
		Voice:        voice,
		Instructions: instructions,
		Tools:        tools,
	})
	if err != nil {
		_ = conn.Close()
		s.metrics.RecordProviderError(context.Background(), providerName, "connect")
		return s.failConnect(gen, log, fmt.Errorf("session: provider connect: %w", err))
	}

	handle.OnToolCall(s.handleToolCall)
	handle.OnError(func(err error) {
		log.Error("session transport failure", "error", err)
		s.endSession(gen, fmt.Errorf("session: transport: %w", err))
	})

	if greeting != "" {
		if err := handle.InjectContext([]live.ContextItem{{Role: live.RoleUser, Content: greeting}}); err != nil {
			log.Warn("greeting injection failed", "error", err)
		}
	}

	sched := audio.NewScheduler(conn.Output(),
		audio.WithClock(s.clock),
		audio.WithSchedulerLogger(log),
		audio.WithSpeakingFunc(func(speaking bool) {
			s.emit(Event{Kind: EventSpeaking, Speaking: speaking})
		}),
	)

	capture, err := audio.NewCapture(audio.CaptureConfig{
		Send:    s.sendFrame(handle),
		OnLevel: func(level float64) { s.emit(Event{Kind: EventLevel, Level: level}) },
		Logger:  log,
	})
	if err != nil {
		_ = sched.Close()
		_ = handle.Close()
		_ = conn.Close()
		return s.failConnect(gen, log, fmt.Errorf("session: capture setup: %w", err))
	}

	pumpCtx, cancel := context.WithCancel(context.Background())

	s.mu.Lock()
	if s.state != StateConnecting || s.gen != gen {
		// Disconnect raced the tail of the connect sequence.
		s.mu.Unlock()
		cancel()
		_ = sched.Close()
		_ = handle.Close()
		_ = conn.Close()
		return errors.New("session: connect aborted")
	}
	s.state = StateConnected
	s.closers = []func() error{
		conn.Close,
		handle.Close,
		sched.Close,
		func() error { cancel(); return nil },
	}
	s.mu.Unlock()

	go s.capturePump(pumpCtx, gen, capture, conn.Frames(), log)
	go s.receivePump(pumpCtx, gen, handle, sched, log)

	s.metrics.ConnectDuration.Record(ctx, time.Since(start).Seconds())
	s.metrics.ActiveSessions.Add(ctx, 1)
	log.Info("session connected", "provider", providerName, "voice", voice)
	s.emit(Event{Kind: EventState, State: StateConnected})
	return nil
}

// Disconnect hangs up: it cancels the pumps, cuts playback, and closes the
// provider session and the audio device. Fire-and-forget; teardown is local
// and does not wait for any remote acknowledgment. Calling Disconnect on an
// idle session is a no-op.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	if s.state != StateConnected && s.state != StateConnecting {
		s.mu.Unlock()
		return nil
	}
	prev := s.state
	closers := s.closers
	s.closers = nil
	s.state = StateDisconnected
	s.lastErr = nil
	id := s.id
	s.closeDoneLocked()
	s.mu.Unlock()

	s.teardown(closers)
	if prev == StateConnected {
		s.metrics.ActiveSessions.Add(context.Background(), -1)
	}
	s.logger.Info("session disconnected", "session_id", id)
	s.emit(Event{Kind: EventState, State: StateDisconnected})
	return nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the fault that moved the session to [StateError], or nil.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// ID returns the identifier assigned to the current (or most recent)
// connect attempt, or the empty string before the first Connect.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Lead returns a snapshot of the lead record captured so far. The record
// accumulates across reconnects for the lifetime of the Session.
func (s *Session) Lead() lead.Record {
	return s.leads.Snapshot()
}

// Events returns the observable event stream. The channel is shared by all
// connects over the Session's lifetime and is never closed. Delivery is
// lossy: when the buffer is full new events are dropped, never blocking the
// audio pipelines.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Done returns a channel closed when the current call ends, however it
// ends. While the session is idle the channel is already closed. Each
// Connect installs a fresh channel, so callers must re-fetch it per call.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// closeDoneLocked closes the done channel if this call's channel is still
// open. Caller holds s.mu.
func (s *Session) closeDoneLocked() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

// failConnect records a failed connect attempt and moves the session to
// [StateError]. When a Disconnect already settled the state the attempt's
// outcome is discarded.
func (s *Session) failConnect(gen uint64, log *slog.Logger, err error) error {
	log.Error("session connect failed", "error", err)
	s.mu.Lock()
	if s.gen != gen || s.state != StateConnecting {
		s.mu.Unlock()
		return err
	}
	s.state = StateError
	s.lastErr = err
	s.closeDoneLocked()
	s.mu.Unlock()
	s.emit(Event{Kind: EventState, State: StateError, Err: err})
	return err
}

// endSession handles an active session ending from the remote side: a
// transport fault when err is non-nil, a clean close otherwise. Calls from
// pumps of a previous connect generation are ignored.
func (s *Session) endSession(gen uint64, err error) {
	s.mu.Lock()
	if s.gen != gen || (s.state != StateConnected && s.state != StateConnecting) {
		s.mu.Unlock()
		return
	}
	prev := s.state
	closers := s.closers
	s.closers = nil
	if err != nil {
		s.state = StateError
		s.lastErr = err
	} else {
		s.state = StateDisconnected
		s.lastErr = nil
	}
	state := s.state
	providerName := s.providerName
	s.closeDoneLocked()
	s.mu.Unlock()

	s.teardown(closers)
	if prev == StateConnected {
		s.metrics.ActiveSessions.Add(context.Background(), -1)
	}
	if err != nil {
		s.metrics.RecordProviderError(context.Background(), providerName, "transport")
	}
	s.emit(Event{Kind: EventState, State: state, Err: err})
}

// teardown runs closers in reverse acquisition order: pump cancellation
// first, then the scheduler, the provider session, and finally the device.
func (s *Session) teardown(closers []func() error) {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			s.logger.Debug("session teardown step failed", "error", err)
		}
	}
}

// sendFrame adapts the capture pipeline's send hook to the provider session
// and keeps the frame counters. Send failures are recoverable: the frame is
// dropped and capture continues.
func (s *Session) sendFrame(handle live.SessionHandle) audio.SendFunc {
	return func(blob audio.Blob) error {
		if err := handle.SendAudio(blob); err != nil {
			s.metrics.RecordFrameDropped(context.Background(), "send_failed")
			return err
		}
		s.metrics.FramesCaptured.Add(context.Background(), 1)
		return nil
	}
}

// capturePump feeds microphone frames into the capture pipeline until the
// device detaches or the session is torn down. A spontaneous detach ends
// the session cleanly.
func (s *Session) capturePump(ctx context.Context, gen uint64, capture *audio.Capture, frames <-chan audio.Frame, log *slog.Logger) {
	if err := capture.Run(ctx, frames); err != nil {
		return
	}
	if ctx.Err() != nil {
		// Teardown closed the device; the frame stream ending is expected.
		return
	}
	log.Info("audio device detached; ending session")
	s.endSession(gen, nil)
}

// receivePump is the single consumer of the provider session's streams. It
// decodes inbound audio into the scheduler, applies barge-in interrupts,
// and republishes transcripts as events. Running interrupts and audio
// through one goroutine keeps their relative order exactly as the provider
// produced it.
func (s *Session) receivePump(ctx context.Context, gen uint64, handle live.SessionHandle, sched *audio.Scheduler, log *slog.Logger) {
	audioCh := handle.Audio()
	interrupts := handle.Interrupts()
	transcripts := handle.Transcripts()

	for {
		select {
		case <-ctx.Done():
			return

		case data, ok := <-audioCh:
			if !ok {
				if ctx.Err() != nil {
					return
				}
				if err := handle.Err(); err != nil {
					log.Error("session ended by transport failure", "error", err)
					s.endSession(gen, fmt.Errorf("session: transport: %w", err))
				} else {
					log.Info("session closed by remote")
					s.endSession(gen, nil)
				}
				return
			}
			buf, err := audio.DecodeBuffer(data)
			if err != nil {
				s.metrics.DecodeErrors.Add(ctx, 1)
				log.Debug("dropped malformed audio payload", "error", err, "bytes", len(data))
				continue
			}
			sched.Schedule(buf)
			s.metrics.ChunksScheduled.Add(ctx, 1)

		case _, ok := <-interrupts:
			if !ok {
				interrupts = nil
				continue
			}
			// Anything still buffered on the audio channel belongs to the
			// turn the model just abandoned; discard it before cutting
			// playback so it cannot be scheduled afterwards.
			if n := discardPending(audioCh); n > 0 {
				log.Debug("discarded stale audio on barge-in", "chunks", n)
			}
			sched.Interrupt()
			s.metrics.Interruptions.Add(ctx, 1)

		case tr, ok := <-transcripts:
			if !ok {
				transcripts = nil
				continue
			}
			s.metrics.RecordTranscript(ctx, tr.Role)
			s.emit(Event{Kind: EventTranscript, Transcript: tr})
		}
	}
}

// handleToolCall executes the lead capture tool. Malformed arguments and
// unknown tool names return an error, which the provider layer reports back
// to the model as the call's response; the conversation continues either
// way.
func (s *Session) handleToolCall(name, args string) (string, error) {
	if name != lead.ToolName {
		s.metrics.RecordToolCall(context.Background(), name, "unhandled")
		return "", fmt.Errorf("session: no local handler for tool %q", name)
	}

	start := time.Now()
	upd, err := lead.ParseUpdate(args)
	if err != nil {
		s.metrics.RecordToolCall(context.Background(), name, "error")
		return "", err
	}
	changed := s.leads.Apply(upd)
	s.metrics.RecordToolCall(context.Background(), name, "ok")
	s.metrics.ToolExecutionDuration.Record(context.Background(),
		time.Since(start).Seconds(),
		metric.WithAttributes(observe.Attr("tool", name)))

	if len(changed) > 0 {
		s.metrics.LeadUpdates.Add(context.Background(), int64(len(changed)))
		s.logger.Info("lead record updated", "fields", changed)
		s.emit(Event{Kind: EventLead, Lead: s.leads.Snapshot(), LeadChanged: changed})
	}
	return `{"ok": true}`, nil
}

// emit delivers ev to the event stream, dropping it when the buffer is
// full.
func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		s.metrics.EventsDropped.Add(context.Background(), 1)
	}
}

// discardPending drains every chunk buffered on audioCh without blocking
// and reports how many were dropped.
func discardPending(audioCh <-chan []byte) int {
	n := 0
	for {
		select {
		case _, ok := <-audioCh:
			if !ok {
				return n
			}
			n++
		default:
			return n
		}
	}
}

// mergeTools combines the configured tool declarations with the built-in
// lead capture tool. Duplicates are dropped by name, first declaration
// wins, so a configured declaration may override the built-in one.
func mergeTools(extra []live.ToolDefinition) []live.ToolDefinition {
	tools := make([]live.ToolDefinition, 0, len(extra)+1)
	seen := make(map[string]struct{}, len(extra)+1)
	for _, t := range extra {
		if _, dup := seen[t.Name]; dup {
			continue
		}
		seen[t.Name] = struct{}{}
		tools = append(tools, t)
	}
	if _, ok := seen[lead.ToolName]; !ok {
		tools = append(tools, lead.Tool())
	}
	return tools
}
