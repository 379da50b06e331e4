// Package observe provides application-wide observability primitives for the
// SDR agent: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all SDR metrics.
const meterName = "github.com/rahulhooda929/Simple-FAQ-SDR"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// ConnectDuration tracks session establishment latency: audio device
	// acquisition plus the provider handshake.
	ConnectDuration metric.Float64Histogram

	// ToolExecutionDuration tracks tool handler execution latency.
	ToolExecutionDuration metric.Float64Histogram

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram

	// --- Counters ---

	// FramesCaptured counts microphone frames encoded and sent upstream.
	FramesCaptured metric.Int64Counter

	// FramesDropped counts microphone frames dropped instead of sent. Use with
	// attribute: attribute.String("reason", ...)
	FramesDropped metric.Int64Counter

	// ChunksScheduled counts model audio chunks accepted for playback.
	ChunksScheduled metric.Int64Counter

	// DecodeErrors counts malformed model audio payloads that were discarded.
	DecodeErrors metric.Int64Counter

	// Interruptions counts caller barge-ins that flushed scheduled playback.
	Interruptions metric.Int64Counter

	// ToolCalls counts tool invocations. Use with attributes:
	//   attribute.String("tool", ...), attribute.String("status", ...)
	ToolCalls metric.Int64Counter

	// LeadUpdates counts update_lead_info applications that changed at least
	// one field.
	LeadUpdates metric.Int64Counter

	// Transcripts counts transcript entries by speaker. Use with attribute:
	//   attribute.String("role", ...)
	Transcripts metric.Int64Counter

	// EventsDropped counts UI events discarded because the event channel was
	// full.
	EventsDropped metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live voice sessions.
	ActiveSessions metric.Int64UpDownCounter

	// BridgeClients tracks the number of connected browser audio clients.
	BridgeClients metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for voice-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.ConnectDuration, err = m.Float64Histogram("sdr.session.connect.duration",
		metric.WithDescription("Latency of session establishment (device plus provider handshake)."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ToolExecutionDuration, err = m.Float64Histogram("sdr.tool_execution.duration",
		metric.WithDescription("Latency of tool handler execution."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("sdr.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.FramesCaptured, err = m.Int64Counter("sdr.audio.frames_captured",
		metric.WithDescription("Total microphone frames encoded and sent upstream."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("sdr.audio.frames_dropped",
		metric.WithDescription("Total microphone frames dropped instead of sent, by reason."),
	); err != nil {
		return nil, err
	}
	if met.ChunksScheduled, err = m.Int64Counter("sdr.audio.chunks_scheduled",
		metric.WithDescription("Total model audio chunks accepted for playback."),
	); err != nil {
		return nil, err
	}
	if met.DecodeErrors, err = m.Int64Counter("sdr.audio.decode_errors",
		metric.WithDescription("Total malformed model audio payloads discarded."),
	); err != nil {
		return nil, err
	}
	if met.Interruptions, err = m.Int64Counter("sdr.session.interruptions",
		metric.WithDescription("Total caller barge-ins that flushed scheduled playback."),
	); err != nil {
		return nil, err
	}
	if met.ToolCalls, err = m.Int64Counter("sdr.tool.calls",
		metric.WithDescription("Total tool invocations by tool name and status."),
	); err != nil {
		return nil, err
	}
	if met.LeadUpdates, err = m.Int64Counter("sdr.lead.updates",
		metric.WithDescription("Total lead record updates that changed at least one field."),
	); err != nil {
		return nil, err
	}
	if met.Transcripts, err = m.Int64Counter("sdr.session.transcripts",
		metric.WithDescription("Total transcript entries by speaker role."),
	); err != nil {
		return nil, err
	}
	if met.EventsDropped, err = m.Int64Counter("sdr.events.dropped",
		metric.WithDescription("Total UI events discarded because the event channel was full."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("sdr.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("sdr.active_sessions",
		metric.WithDescription("Number of live voice sessions."),
	); err != nil {
		return nil, err
	}
	if met.BridgeClients, err = m.Int64UpDownCounter("sdr.bridge.clients",
		metric.WithDescription("Number of connected browser audio clients."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordFrameDropped is a convenience method that records a dropped microphone
// frame with its drop reason.
func (m *Metrics) RecordFrameDropped(ctx context.Context, reason string) {
	m.FramesDropped.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)),
	)
}

// RecordToolCall is a convenience method that records a tool call counter
// increment with the standard attribute set.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string) {
	m.ToolCalls.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("status", status),
		),
	)
}

// RecordTranscript is a convenience method that records a transcript entry
// counter increment by speaker role.
func (m *Metrics) RecordTranscript(ctx context.Context, role string) {
	m.Transcripts.Add(ctx, 1,
		metric.WithAttributes(attribute.String("role", role)),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}
