package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rahulhooda929/Simple-FAQ-SDR/internal/app"
	"github.com/rahulhooda929/Simple-FAQ-SDR/internal/config"
	"github.com/rahulhooda929/Simple-FAQ-SDR/internal/lead"
	"github.com/rahulhooda929/Simple-FAQ-SDR/internal/session"
	"github.com/rahulhooda929/Simple-FAQ-SDR/pkg/audio"
	audiomock "github.com/rahulhooda929/Simple-FAQ-SDR/pkg/audio/mock"
	"github.com/rahulhooda929/Simple-FAQ-SDR/pkg/audio/wsbridge"
	"github.com/rahulhooda929/Simple-FAQ-SDR/pkg/provider/live"
	livemock "github.com/rahulhooda929/Simple-FAQ-SDR/pkg/provider/live/mock"
)

// ── Test doubles ──────────────────────────────────────────────────────────────

// fakeBridge is a controllable app.Bridge: tests attach fake clients and
// observe pushed events and hangups without a WebSocket in the way.
type fakeBridge struct {
	mu       sync.Mutex
	attached bool
	claimed  bool
	conn     audio.Conn
	events   []any
	hangups  []string
	closed   bool
}

var _ app.Bridge = (*fakeBridge)(nil)

// attach simulates a browser client connecting with the given audio conn.
func (b *fakeBridge) attach(conn audio.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attached = true
	b.claimed = false
	b.conn = conn
}

func (b *fakeBridge) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (b *fakeBridge) Open(ctx context.Context) (audio.Conn, error) {
	for {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return nil, wsbridge.ErrClosed
		}
		if b.attached && !b.claimed {
			b.claimed = true
			conn := b.conn
			b.mu.Unlock()
			return conn, nil
		}
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

func (b *fakeBridge) WaitAttached(ctx context.Context) error {
	for {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return wsbridge.ErrClosed
		}
		if b.attached {
			b.mu.Unlock()
			return nil
		}
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}
}

func (b *fakeBridge) PushEvent(v any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, v)
}

func (b *fakeBridge) Hangup(reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hangups = append(b.hangups, reason)
	b.attached = false
	b.conn = nil
}

func (b *fakeBridge) Serving() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.closed
}

func (b *fakeBridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// hasEvent reports whether any pushed event marshals to JSON containing
// substr.
func (b *fakeBridge) hasEvent(substr string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ev := range b.events {
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		if strings.Contains(string(data), substr) {
			return true
		}
	}
	return false
}

func (b *fakeBridge) hangupCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.hangups)
}

func (b *fakeBridge) lastHangup() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.hangups) == 0 {
		return ""
	}
	return b.hangups[len(b.hangups)-1]
}

// stubFactory is a recording app.ProviderFactory.
type stubFactory struct {
	mu    sync.Mutex
	calls []config.LiveConfig
	prov  live.Provider
	err   error
}

func (f *stubFactory) create(cfg config.LiveConfig) (live.Provider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, cfg)
	if f.err != nil {
		return nil, f.err
	}
	return f.prov, nil
}

func (f *stubFactory) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// ── Fixture ───────────────────────────────────────────────────────────────────

// testConfig returns a minimal working config. The listen address picks a
// free port so parallel tests do not collide.
func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			ListenAddr: "127.0.0.1:0",
			LogLevel:   config.LogInfo,
		},
		Live: config.LiveConfig{
			Provider: "gemini-live",
			APIKey:   "test-key",
			Voice:    "Aoede",
		},
		Agent: config.AgentConfig{
			Name: "Sam",
		},
	}
}

// fixture wires an App to a fake bridge and a mock provider.
type fixture struct {
	app    *app.App
	bridge *fakeBridge
	prov   *livemock.Provider
	handle *livemock.Session
	fac    *stubFactory

	runErr chan error
	once   sync.Once
	result error
}

func newFixture(t *testing.T, mutate func(*config.Config)) *fixture {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}

	handle := livemock.NewSession()
	prov := &livemock.Provider{Session: handle}
	fac := &stubFactory{prov: prov}
	bridge := &fakeBridge{}

	application, err := app.New(cfg, fac.create, app.WithBridge(bridge))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	return &fixture{
		app:    application,
		bridge: bridge,
		prov:   prov,
		handle: handle,
		fac:    fac,
	}
}

// start runs the app in the background and registers a teardown that waits
// for Run to return.
func (f *fixture) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	f.runErr = make(chan error, 1)
	go func() { f.runErr <- f.app.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		f.waitRun(t)
	})
}

// waitRun blocks until Run has returned and reports its error.
func (f *fixture) waitRun(t *testing.T) error {
	t.Helper()
	f.once.Do(func() {
		select {
		case f.result = <-f.runErr:
		case <-time.After(3 * time.Second):
			t.Error("Run did not return")
		}
	})
	return f.result
}

// handleFinish ends the current provider session from the remote side.
func (f *fixture) handleFinish(err error) {
	f.handle.Finish(err)
}

// newClientConn builds the audio side of a fake browser client.
func newClientConn() *audiomock.Conn {
	return &audiomock.Conn{
		FramesResult: make(chan audio.Frame, 8),
		OutputResult: &audiomock.Sink{},
	}
}

// waitState polls until the app's session reaches want.
func waitState(t *testing.T, f *fixture, want session.State) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if f.app.Session().State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state = %v, want %v", f.app.Session().State(), want)
}

// waitCond polls until cond returns true.
func waitCond(t *testing.T, desc string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for %s", desc)
}

// ── Construction ──────────────────────────────────────────────────────────────

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	fac := &stubFactory{prov: &livemock.Provider{}}
	if _, err := app.New(nil, fac.create); err == nil {
		t.Error("New without a config should fail")
	}
	if _, err := app.New(testConfig(), nil); err == nil {
		t.Error("New without a factory should fail")
	}
}

func TestNew_BuildsProviderFromConfig(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)

	if got := f.fac.callCount(); got != 1 {
		t.Fatalf("factory calls = %d, want 1", got)
	}
	if got := f.fac.calls[0].Provider; got != "gemini-live" {
		t.Errorf("factory got provider %q, want gemini-live", got)
	}
	if got := f.app.Session().State(); got != session.StateDisconnected {
		t.Errorf("initial session state = %v, want %v", got, session.StateDisconnected)
	}
}

func TestNew_ProviderFactoryError(t *testing.T) {
	t.Parallel()

	fac := &stubFactory{err: errors.New("unknown provider")}
	if _, err := app.New(testConfig(), fac.create); err == nil {
		t.Error("New should surface a provider factory error")
	}
}

// ── Call loop ─────────────────────────────────────────────────────────────────

func TestRun_ConnectsWhenClientAttaches(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.start(t)

	// No client yet: the session must stay idle.
	time.Sleep(50 * time.Millisecond)
	if got := f.app.Session().State(); got != session.StateDisconnected {
		t.Fatalf("state before attach = %v, want %v", got, session.StateDisconnected)
	}

	f.bridge.attach(newClientConn())
	waitState(t, f, session.StateConnected)

	if got := len(f.prov.ConnectCalls); got != 1 {
		t.Errorf("provider connects = %d, want 1", got)
	}
	waitCond(t, "connected state event", func() bool {
		return f.bridge.hasEvent(`"state":"connected"`)
	})
}

func TestRun_FailedConnect_HangsUpOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(cfg *config.Config) { cfg.Live.APIKey = "" })
	f.start(t)

	f.bridge.attach(newClientConn())

	waitCond(t, "hangup", func() bool { return f.bridge.hangupCount() == 1 })
	if got := f.bridge.lastHangup(); !strings.Contains(got, "credential") {
		t.Errorf("hangup reason = %q, want it to name the missing credential", got)
	}
	if got := len(f.prov.ConnectCalls); got != 0 {
		t.Errorf("provider connects = %d, want 0", got)
	}

	// No server-side retry: one failed attach produces exactly one hangup,
	// then the loop waits for the next client.
	time.Sleep(100 * time.Millisecond)
	if got := f.bridge.hangupCount(); got != 1 {
		t.Errorf("hangups = %d, want 1", got)
	}
}

func TestRun_NextClientStartsNextCall(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.start(t)

	f.bridge.attach(newClientConn())
	waitState(t, f, session.StateConnected)

	f.handleFinish(nil)
	waitCond(t, "first call to end", func() bool {
		return f.app.Session().State() != session.StateConnected
	})

	// A fresh handle for the second call; the first one's channels are spent.
	f.prov.Session = nil
	f.bridge.attach(newClientConn())
	waitState(t, f, session.StateConnected)

	if got := len(f.prov.ConnectCalls); got != 2 {
		t.Errorf("provider connects = %d, want 2", got)
	}
}

func TestRun_ForwardsConversationEventsToPage(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.start(t)

	f.bridge.attach(newClientConn())
	waitState(t, f, session.StateConnected)

	f.handle.TranscriptsCh <- live.Transcript{Role: live.RoleAgent, Text: "How can I help?"}
	waitCond(t, "transcript event", func() bool {
		return f.bridge.hasEvent(`"text":"How can I help?"`)
	})

	handler := f.handle.Handler()
	if _, err := handler(lead.ToolName, `{"name": "Ada", "company": "Nyx Labs"}`); err != nil {
		t.Fatalf("tool handler: %v", err)
	}
	waitCond(t, "lead event", func() bool {
		return f.bridge.hasEvent(`"company":"Nyx Labs"`)
	})
}

// ── Configuration reload ──────────────────────────────────────────────────────

func TestUpdateConfig_AppliedBetweenCalls(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.start(t)

	f.bridge.attach(newClientConn())
	waitState(t, f, session.StateConnected)

	next := testConfig()
	next.Live.Voice = "Puck"
	f.app.UpdateConfig(next)

	// The call in flight keeps its settings.
	if got := f.app.Session().State(); got != session.StateConnected {
		t.Fatalf("state after UpdateConfig = %v, want %v", got, session.StateConnected)
	}

	f.handleFinish(nil)
	waitCond(t, "first call to end", func() bool {
		return f.app.Session().State() != session.StateConnected
	})

	f.prov.Session = nil
	f.bridge.attach(newClientConn())
	waitState(t, f, session.StateConnected)

	if got := f.fac.callCount(); got != 2 {
		t.Errorf("factory calls = %d, want 2 after a live-block change", got)
	}
	if got := len(f.prov.ConnectCalls); got != 2 {
		t.Fatalf("provider connects = %d, want 2", got)
	}
	if got := f.prov.ConnectCalls[1].Cfg.Voice; got != "Puck" {
		t.Errorf("second call voice = %q, want Puck", got)
	}
}

func TestUpdateConfig_FactoryFailureKeepsProvider(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.start(t)

	f.bridge.attach(newClientConn())
	waitState(t, f, session.StateConnected)

	next := testConfig()
	next.Live.Model = "experimental-model"
	f.app.UpdateConfig(next)
	f.fac.mu.Lock()
	f.fac.err = errors.New("no such model")
	f.fac.mu.Unlock()

	f.handleFinish(nil)
	waitCond(t, "first call to end", func() bool {
		return f.app.Session().State() != session.StateConnected
	})

	f.prov.Session = nil
	f.bridge.attach(newClientConn())
	waitState(t, f, session.StateConnected)

	// The rebuild failed, but the old provider still carries the call.
	if got := len(f.prov.ConnectCalls); got != 2 {
		t.Errorf("provider connects = %d, want 2", got)
	}
}

// ── Shutdown ──────────────────────────────────────────────────────────────────

func TestShutdown_UnwindsRun(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.start(t)

	f.bridge.attach(newClientConn())
	waitState(t, f, session.StateConnected)

	if err := f.app.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	if err := f.waitRun(t); err != nil && !errors.Is(err, context.Canceled) {
		t.Errorf("Run returned %v, want nil or context.Canceled", err)
	}
	if got := f.app.Session().State(); got != session.StateDisconnected {
		t.Errorf("state after shutdown = %v, want %v", got, session.StateDisconnected)
	}
	if f.bridge.Serving() {
		t.Error("bridge still serving after shutdown")
	}
}

func TestShutdown_Idempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	if err := f.app.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := f.app.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown: %v", err)
	}
}

// ── HTTP surface ──────────────────────────────────────────────────────────────

func TestHandler_ServesOpsEndpoints(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	srv := httptest.NewServer(f.app.Handler())
	t.Cleanup(srv.Close)

	get := func(path string) (int, string) {
		t.Helper()
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		return resp.StatusCode, string(body)
	}

	if code, _ := get("/healthz"); code != http.StatusOK {
		t.Errorf("/healthz status = %d, want %d", code, http.StatusOK)
	}
	if code, body := get("/readyz"); code != http.StatusOK {
		t.Errorf("/readyz status = %d, want %d (body %s)", code, http.StatusOK, body)
	}
	if code, body := get("/"); code != http.StatusOK || !strings.Contains(body, "endpoints") {
		t.Errorf("/ status = %d body = %q, want an endpoint index", code, body)
	}
	if code, _ := get("/metrics"); code != http.StatusOK {
		t.Errorf("/metrics status = %d, want %d", code, http.StatusOK)
	}
}

func TestHandler_ReadyzFailsWithoutCredential(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(cfg *config.Config) { cfg.Live.APIKey = "" })
	srv := httptest.NewServer(f.app.Handler())
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatalf("GET /readyz: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("/readyz status = %d, want %d", resp.StatusCode, http.StatusServiceUnavailable)
	}
	if !strings.Contains(string(body), "credential") {
		t.Errorf("/readyz body = %q, want it to name the credential check", body)
	}
}
