// Package mock provides test doubles for the live package interfaces.
//
// Use Provider to verify Connect calls and feed controlled live sessions.
// Use Session to drive the audio, interrupt, and transcript streams and
// inspect which methods were invoked by the orchestrator.
//
// Example:
//
//	sess := &mock.Session{
//	    AudioCh:       make(chan []byte, 8),
//	    InterruptsCh:  make(chan struct{}, 1),
//	    TranscriptsCh: make(chan live.Transcript, 4),
//	}
//	p := &mock.Provider{Session: sess}
//	handle, _ := p.Connect(ctx, cfg)
package mock

import (
	"context"
	"sync"

	"github.com/rahulhooda929/Simple-FAQ-SDR/pkg/audio"
	"github.com/rahulhooda929/Simple-FAQ-SDR/pkg/provider/live"
)

// ConnectCall records a single invocation of Provider.Connect.
type ConnectCall struct {
	// Ctx is the context passed to Connect.
	Ctx context.Context
	// Cfg is the SessionConfig passed to Connect.
	Cfg live.SessionConfig
}

// Provider is a mock implementation of live.Provider.
type Provider struct {
	mu sync.Mutex

	// Session is the SessionHandle returned by Connect. If nil, Connect returns
	// a new default Session with buffered channels.
	Session live.SessionHandle

	// ConnectErr, if non-nil, is returned as the error from Connect.
	ConnectErr error

	// ProviderCapabilities is returned by Capabilities.
	ProviderCapabilities live.Capabilities

	// ConnectCalls records every call to Connect in order.
	ConnectCalls []ConnectCall

	// CapabilitiesCallCount is the number of times Capabilities was called.
	CapabilitiesCallCount int
}

// Connect records the call and returns Session, ConnectErr.
func (p *Provider) Connect(ctx context.Context, cfg live.SessionConfig) (live.SessionHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ConnectCalls = append(p.ConnectCalls, ConnectCall{Ctx: ctx, Cfg: cfg})
	if p.ConnectErr != nil {
		return nil, p.ConnectErr
	}
	if p.Session != nil {
		return p.Session, nil
	}
	return NewSession(), nil
}

// Capabilities records the call and returns ProviderCapabilities.
func (p *Provider) Capabilities() live.Capabilities {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CapabilitiesCallCount++
	return p.ProviderCapabilities
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ConnectCalls = nil
	p.CapabilitiesCallCount = 0
}

// Ensure Provider implements live.Provider at compile time.
var _ live.Provider = (*Provider)(nil)

// SendAudioCall records a single invocation of Session.SendAudio.
type SendAudioCall struct {
	// Blob is the encoded audio frame that was passed to SendAudio.
	Blob audio.Blob
}

// InjectContextCall records a single invocation of Session.InjectContext.
type InjectContextCall struct {
	// Items is a copy of the context items passed to InjectContext.
	Items []live.ContextItem
}

// Session is a mock implementation of live.SessionHandle.
// Callers should pre-populate the stream channels, then call Finish (or close
// the channels themselves) to signal end-of-session.
type Session struct {
	mu         sync.Mutex
	finishOnce sync.Once

	// AudioCh is the channel returned by Audio(). Callers own this channel.
	AudioCh chan []byte

	// InterruptsCh is the channel returned by Interrupts(). Callers own this
	// channel.
	InterruptsCh chan struct{}

	// TranscriptsCh is the channel returned by Transcripts(). Callers own this
	// channel.
	TranscriptsCh chan live.Transcript

	// toolCallHandler is the currently registered ToolCallHandler.
	toolCallHandler live.ToolCallHandler

	// errorHandler is the currently registered error callback.
	errorHandler func(error)

	// --- Configurable errors ---

	// SendAudioErr, if non-nil, is returned by every SendAudio call.
	SendAudioErr error

	// InjectContextErr, if non-nil, is returned by every InjectContext call.
	InjectContextErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// ErrVal is returned by Err. Finish overwrites it with its argument.
	ErrVal error

	// --- Call records ---

	// SendAudioCalls records every call to SendAudio in order.
	SendAudioCalls []SendAudioCall

	// InjectContextCalls records every call to InjectContext in order.
	InjectContextCalls []InjectContextCall

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int

	// OnToolCallSetCount is the number of times OnToolCall was called.
	OnToolCallSetCount int

	// OnErrorSetCount is the number of times OnError was called.
	OnErrorSetCount int
}

// NewSession returns a Session with freshly allocated buffered channels.
func NewSession() *Session {
	return &Session{
		AudioCh:       make(chan []byte, 64),
		InterruptsCh:  make(chan struct{}, 1),
		TranscriptsCh: make(chan live.Transcript, 16),
	}
}

// SendAudio records the call and returns SendAudioErr.
func (s *Session) SendAudio(blob audio.Blob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SendAudioCalls = append(s.SendAudioCalls, SendAudioCall{Blob: blob})
	return s.SendAudioErr
}

// Audio returns AudioCh.
func (s *Session) Audio() <-chan []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.AudioCh
}

// Interrupts returns InterruptsCh.
func (s *Session) Interrupts() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.InterruptsCh
}

// Transcripts returns TranscriptsCh.
func (s *Session) Transcripts() <-chan live.Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.TranscriptsCh
}

// OnToolCall stores the handler and increments OnToolCallSetCount.
func (s *Session) OnToolCall(handler live.ToolCallHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toolCallHandler = handler
	s.OnToolCallSetCount++
}

// Handler returns the currently registered ToolCallHandler. Thread-safe.
// Useful in tests to invoke the handler as the model would.
func (s *Session) Handler() live.ToolCallHandler {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.toolCallHandler
}

// OnError stores the handler and increments OnErrorSetCount.
func (s *Session) OnError(handler func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorHandler = handler
	s.OnErrorSetCount++
}

// ErrorHandler returns the currently registered error callback. Thread-safe.
func (s *Session) ErrorHandler() func(error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errorHandler
}

// InjectContext records the call and returns InjectContextErr.
func (s *Session) InjectContext(items []live.ContextItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]live.ContextItem, len(items))
	copy(cp, items)
	s.InjectContextCalls = append(s.InjectContextCalls, InjectContextCall{Items: cp})
	return s.InjectContextErr
}

// Err returns ErrVal.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ErrVal
}

// SendCount returns the number of recorded SendAudio calls. Thread-safe,
// for polling from tests while the capture pipeline runs.
func (s *Session) SendCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.SendAudioCalls)
}

// CloseCount returns the number of recorded Close calls. Thread-safe.
func (s *Session) CloseCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CloseCallCount
}

// Close records the call and returns CloseErr.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	return s.CloseErr
}

// Finish simulates the session terminating with err (nil for a clean end):
// it stores err for Err and closes all three stream channels. Safe to call
// at most once per channel set; repeated calls are no-ops.
func (s *Session) Finish(err error) {
	s.finishOnce.Do(func() {
		s.mu.Lock()
		s.ErrVal = err
		s.mu.Unlock()
		close(s.AudioCh)
		close(s.InterruptsCh)
		close(s.TranscriptsCh)
	})
}

// ResetCalls clears all recorded calls. Thread-safe.
func (s *Session) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SendAudioCalls = nil
	s.InjectContextCalls = nil
	s.CloseCallCount = 0
	s.OnToolCallSetCount = 0
	s.OnErrorSetCount = 0
}

// Ensure Session implements live.SessionHandle at compile time.
var _ live.SessionHandle = (*Session)(nil)
