// Package app wires all SDR subsystems into a running voice agent server.
//
// The App struct owns the full lifecycle: New builds the browser audio
// bridge, the session orchestrator, and the HTTP surface; Run serves HTTP
// and drives one call per attached browser client; Shutdown tears
// everything down in order.
//
// For testing, inject doubles via functional options (WithBridge,
// WithLogger, etc.). When an option is not provided, New creates the real
// implementation from the config.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/rahulhooda929/Simple-FAQ-SDR/internal/config"
	"github.com/rahulhooda929/Simple-FAQ-SDR/internal/health"
	"github.com/rahulhooda929/Simple-FAQ-SDR/internal/observe"
	"github.com/rahulhooda929/Simple-FAQ-SDR/internal/session"
	"github.com/rahulhooda929/Simple-FAQ-SDR/pkg/audio"
	"github.com/rahulhooda929/Simple-FAQ-SDR/pkg/audio/wsbridge"
	"github.com/rahulhooda929/Simple-FAQ-SDR/pkg/provider/live"
)

// httpShutdownTimeout bounds the graceful HTTP drain when Run exits on its
// own context; Shutdown uses the caller's deadline instead.
const httpShutdownTimeout = 5 * time.Second

// ProviderFactory builds a live voice provider from its configuration.
// main.go passes the config registry's CreateLive; tests pass a closure
// returning a mock. The app calls it again when a configuration reload
// changes the live block.
type ProviderFactory func(config.LiveConfig) (live.Provider, error)

// Bridge is the surface the app needs from the browser audio bridge: the
// /ws endpoint, the audio device handed to the session, and best-effort UI
// event pushes. *wsbridge.Bridge is the production implementation;
// WaitAttached and Close follow its contract, including
// [wsbridge.ErrClosed].
type Bridge interface {
	http.Handler
	audio.Device
	WaitAttached(ctx context.Context) error
	PushEvent(v any)
	Hangup(reason string)
	Serving() bool
	Close() error
}

var _ Bridge = (*wsbridge.Bridge)(nil)

// App owns all subsystem lifetimes and orchestrates calls end to end: one
// attached browser client drives one connect → conversation → teardown
// cycle.
type App struct {
	factory ProviderFactory
	logger  *slog.Logger
	metrics *observe.Metrics

	// Subsystems — initialised in New, torn down in Shutdown.
	bridge Bridge
	sess   *session.Session
	server *http.Server
	tls    *config.TLSConfig

	// mu guards the config pair; everything else is fixed after New.
	mu      sync.Mutex
	cfg     *config.Config
	pending *config.Config // queued by UpdateConfig, applied between calls

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithMetrics injects a metrics set instead of the process-wide default.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithBridge injects an audio bridge instead of creating a wsbridge.Bridge.
func WithBridge(b Bridge) Option {
	return func(a *App) { a.bridge = b }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring the bridge, the session orchestrator, and
// the HTTP server together. factory builds the live provider the config
// names; main.go populates it from the config registry. Use Option
// functions to inject test doubles.
func New(cfg *config.Config, factory ProviderFactory, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config must not be nil")
	}
	if factory == nil {
		return nil, errors.New("app: provider factory must not be nil")
	}

	a := &App{
		factory: factory,
		cfg:     cfg,
		tls:     cfg.Server.TLS,
	}
	for _, o := range opts {
		o(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Audio bridge ──────────────────────────────────────────────────
	if a.bridge == nil {
		a.bridge = wsbridge.New(
			wsbridge.WithLogger(a.logger),
			wsbridge.WithClientFunc(a.onBridgeClient),
		)
	}

	// ── 2. Live provider + session ───────────────────────────────────────
	provider, err := factory(cfg.Live)
	if err != nil {
		return nil, fmt.Errorf("app: create live provider %q: %w", cfg.Live.Provider, err)
	}
	sess, err := session.New(session.Config{
		Provider:     provider,
		Device:       a.bridge,
		Credential:   cfg.Live.APIKey,
		ProviderName: cfg.Live.Provider,
		Voice:        cfg.Live.Voice,
		Instructions: agentInstructions(cfg.Agent),
		Greeting:     cfg.Agent.Greeting,
		ExtraTools:   toolDefinitions(cfg.Agent.Tools),
		Logger:       a.logger,
		Metrics:      a.metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("app: create session: %w", err)
	}
	a.sess = sess

	// ── 3. HTTP server ───────────────────────────────────────────────────
	a.server = &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           a.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return a, nil
}

// routes assembles the HTTP surface: the WebSocket bridge, health probes,
// Prometheus metrics, and an index document describing the wire protocol.
func (a *App) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/ws", a.bridge)
	health.New(
		health.Checker{Name: "credential", Check: a.checkCredential},
		health.Checker{Name: "bridge", Check: a.checkBridge},
	).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /{$}", a.handleIndex)
	return observe.Middleware(a.metrics)(mux)
}

// checkCredential fails readiness while no API credential is configured:
// every connect would be refused anyway.
func (a *App) checkCredential(context.Context) error {
	if a.currentConfig().Live.APIKey == "" {
		return errors.New("no API credential configured")
	}
	return nil
}

// checkBridge fails readiness once the bridge stops accepting clients.
func (a *App) checkBridge(context.Context) error {
	if !a.bridge.Serving() {
		return errors.New("audio bridge is not serving")
	}
	return nil
}

// onBridgeClient keeps the connected-clients gauge.
func (a *App) onBridgeClient(connected bool) {
	delta := int64(1)
	if !connected {
		delta = -1
	}
	a.metrics.BridgeClients.Add(context.Background(), delta)
}

// handleIndex serves a small JSON document describing the endpoints and the
// bridge wire protocol, so a page author does not need the source to
// integrate.
func (a *App) handleIndex(w http.ResponseWriter, _ *http.Request) {
	doc := map[string]any{
		"service": "sdr-voice-agent",
		"endpoints": map[string]string{
			"GET /":        "this document",
			"GET /ws":      "WebSocket audio bridge",
			"GET /healthz": "liveness probe",
			"GET /readyz":  "readiness probe",
			"GET /metrics": "Prometheus metrics",
		},
		"bridge": map[string]string{
			"microphone": fmt.Sprintf("binary client to server: little-endian float32 mono PCM at %d Hz", audio.CaptureRate),
			"playback":   fmt.Sprintf("binary server to client: little-endian int16 mono PCM at %d Hz", audio.PlaybackRate),
			"events":     `text server to client: JSON messages typed "state", "level", "speaking", "transcript", "lead" and "flush"`,
		},
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		a.logger.Debug("index write failed", "error", err)
	}
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP and drives the call loop until ctx is cancelled. It
// returns ctx.Err() after a clean shutdown, or the first subsystem error.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.serve(ctx) })
	g.Go(func() error { return a.eventLoop(ctx) })
	g.Go(func() error { return a.callLoop(ctx) })

	err := g.Wait()
	if errors.Is(err, wsbridge.ErrClosed) {
		// Shutdown closed the bridge while Run was still active.
		return ctx.Err()
	}
	return err
}

// serve runs the HTTP server until ctx is done, then drains it gracefully.
func (a *App) serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if a.tls != nil {
			errCh <- a.server.ListenAndServeTLS(a.tls.CertFile, a.tls.KeyFile)
			return
		}
		errCh <- a.server.ListenAndServe()
	}()

	a.logger.Info("http server listening", "addr", a.server.Addr, "tls", a.tls != nil)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("http shutdown incomplete", "error", err)
	}
	return ctx.Err()
}

// callLoop drives one call per attached browser client: wait for a client,
// connect the session, wait for the call to end, repeat. Nothing is
// retried on its own; a failed connect hangs up on the client with the
// reason, and the next attach starts the next attempt.
func (a *App) callLoop(ctx context.Context) error {
	for {
		if err := a.bridge.WaitAttached(ctx); err != nil {
			return err
		}

		a.applyPending()

		if err := a.sess.Connect(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			a.logger.Warn("call setup failed, hanging up", "error", err)
			a.bridge.Hangup(err.Error())
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-a.sess.Done():
		}
	}
}

// eventLoop is the sole consumer of the session's event stream. Every
// event is mirrored to the attached browser page as a JSON text message;
// with no client attached the push is dropped.
func (a *App) eventLoop(ctx context.Context) error {
	events := a.sess.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-events:
			if msg := wireMessage(ev); msg != nil {
				a.bridge.PushEvent(msg)
			}
		}
	}
}

// ─── Configuration reload ────────────────────────────────────────────────────

// UpdateConfig queues cfg to take effect before the next call. The call in
// flight, if any, keeps the settings it started with. Server-level changes
// (listen address, TLS) require a restart and are ignored here.
func (a *App) UpdateConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}
	a.mu.Lock()
	a.pending = cfg
	a.mu.Unlock()
	a.logger.Info("configuration update queued for the next call")
}

// applyPending applies a queued config between calls: it rebuilds the
// provider when the live block changed and pushes the new conversation
// settings into the session. Runs on the call loop, while no call is
// active.
func (a *App) applyPending() {
	a.mu.Lock()
	next := a.pending
	a.pending = nil
	prev := a.cfg
	a.mu.Unlock()
	if next == nil {
		return
	}

	d := config.Diff(prev, next)
	if d.LiveChanged {
		p, err := a.factory(next.Live)
		if err != nil {
			a.logger.Error("provider rebuild failed, keeping the previous one",
				"provider", next.Live.Provider, "error", err)
		} else {
			a.sess.SetProvider(p, next.Live.Provider)
		}
	}
	if d.LiveChanged || d.AgentChanged {
		a.sess.Reconfigure(session.Settings{
			Credential:   next.Live.APIKey,
			Voice:        next.Live.Voice,
			Instructions: agentInstructions(next.Agent),
			Greeting:     next.Agent.Greeting,
			ExtraTools:   toolDefinitions(next.Agent.Tools),
		})
		a.logger.Info("conversation settings updated",
			"live_changed", d.LiveChanged, "agent_changed", d.AgentChanged)
	}

	a.mu.Lock()
	a.cfg = next
	a.mu.Unlock()
}

// currentConfig returns the newest known config: the queued one when a
// reload is pending, the applied one otherwise.
func (a *App) currentConfig() *config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pending != nil {
		return a.pending
	}
	return a.cfg
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown ends the active call and stops serving: the session first so
// its teardown reaches the page, then the bridge, then the HTTP listener.
// Honors the ctx deadline for the HTTP drain. Safe to call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.logger.Info("shutting down")

		if err := a.sess.Disconnect(); err != nil {
			a.logger.Warn("session disconnect error", "error", err)
		}
		if err := a.bridge.Close(); err != nil {
			a.logger.Warn("bridge close error", "error", err)
		}
		if err := a.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("app: http shutdown: %w", err)
		}

		a.logger.Info("shutdown complete")
	})
	return shutdownErr
}

// Session exposes the orchestrator, for observers outside the app and for
// tests.
func (a *App) Session() *session.Session { return a.sess }

// Handler returns the app's full HTTP surface, for embedding in another
// server and for tests.
func (a *App) Handler() http.Handler { return a.server.Handler }

// ─── Helpers ─────────────────────────────────────────────────────────────────

// agentInstructions composes the system prompt from the agent config.
// Explicit instructions win unchanged; otherwise the built-in persona is
// used, introduced by name when one is configured.
func agentInstructions(agent config.AgentConfig) string {
	if agent.Instructions != "" {
		return agent.Instructions
	}
	if agent.Name == "" {
		return "" // the session falls back to its default prompt
	}
	return "Your name is " + agent.Name + ". " + session.DefaultInstructions
}

// toolDefinitions converts configured tool declarations to the provider
// form.
func toolDefinitions(tools []config.ToolConfig) []live.ToolDefinition {
	if len(tools) == 0 {
		return nil
	}
	out := make([]live.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		out = append(out, live.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		})
	}
	return out
}
