// Command sdr runs the SDR voice agent server: a WebSocket audio bridge for
// the browser on one side, a realtime speech provider on the other.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/rahulhooda929/Simple-FAQ-SDR/internal/app"
	"github.com/rahulhooda929/Simple-FAQ-SDR/internal/config"
	"github.com/rahulhooda929/Simple-FAQ-SDR/internal/observe"
	"github.com/rahulhooda929/Simple-FAQ-SDR/pkg/provider/live"
	"github.com/rahulhooda929/Simple-FAQ-SDR/pkg/provider/live/gemini"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	watch := flag.Bool("watch-config", false, "reload the configuration file when it changes")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("sdr", version)
		return 0
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "sdr: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "sdr: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// The level lives in a LevelVar so a config reload can adjust it without
	// rebuilding the handler.
	level := new(slog.LevelVar)
	level.Set(cfg.Server.LogLevel.Level())
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("sdr starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "sdr",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		slog.Error("failed to create metrics", "err", err)
		return 1
	}

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	// ── Application ───────────────────────────────────────────────────────────
	application, err := app.New(cfg, reg.CreateLive,
		app.WithLogger(logger),
		app.WithMetrics(metrics),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Config watcher (optional) ─────────────────────────────────────────────
	if *watch {
		watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
			applyConfigChange(application, level, old, new)
		})
		if err != nil {
			slog.Error("failed to start config watcher", "err", err)
			return 1
		}
		defer watcher.Stop()
		slog.Info("watching config file for changes", "path", *configPath)
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg, *watch)

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires the live provider factories that ship with
// the server into reg.
func registerBuiltinProviders(reg *config.Registry) {
	reg.RegisterLive("gemini-live", func(lc config.LiveConfig) (live.Provider, error) {
		var opts []gemini.Option
		if lc.Model != "" {
			opts = append(opts, gemini.WithModel(lc.Model))
		}
		if lc.Voice != "" {
			opts = append(opts, gemini.WithVoice(lc.Voice))
		}
		if lc.BaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(lc.BaseURL))
		}
		return gemini.New(lc.APIKey, opts...), nil
	})
	slog.Debug("registered provider", "kind", "live", "name", "gemini-live")
}

// ── Config reload ─────────────────────────────────────────────────────────────

// applyConfigChange routes a config file change to the running process:
// log level changes take effect immediately, live/agent changes are queued
// for the next call, and everything else needs a restart.
func applyConfigChange(application *app.App, level *slog.LevelVar, old, new *config.Config) {
	d := config.Diff(old, new)
	if !d.HasChanges() {
		return
	}

	if d.LogLevelChanged {
		level.Set(d.NewLogLevel.Level())
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	for _, field := range d.RestartRequired {
		slog.Warn("config change requires a restart to take effect", "field", field)
	}
	if d.LiveChanged || d.AgentChanged {
		application.UpdateConfig(new)
		slog.Info("configuration change queued for the next call",
			"live_changed", d.LiveChanged,
			"agent_changed", d.AgentChanged,
		)
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, watching bool) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║          SDR — startup summary        ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Provider", cfg.Live.Provider)
	model := cfg.Live.Model
	if model == "" {
		model = "(provider default)"
	}
	printRow("Model", model)
	printRow("Voice", cfg.Live.Voice)
	name := cfg.Agent.Name
	if name == "" {
		name = "(unnamed)"
	}
	printRow("Agent name", name)
	printRow("Extra tools", fmt.Sprintf("%d", len(cfg.Agent.Tools)))
	if cfg.Live.APIKey != "" {
		printRow("API credential", "configured")
	} else {
		printRow("API credential", "MISSING")
	}
	if watching {
		printRow("Config watch", "on")
	} else {
		printRow("Config watch", "off")
	}
	printRow("Listen addr", cfg.Server.ListenAddr)
	if cfg.Server.TLS != nil {
		printRow("TLS", "enabled")
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(label, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-14s  : %-19s ║\n", label, value)
}
