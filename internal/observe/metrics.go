// Package observe provides application-wide observability primitives for
// ttsrelay: OpenTelemetry metrics, distributed tracing, structured logging,
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

// meterName is the instrumentation scope name used for all ttsrelay metrics.
const meterName = "github.com/Rokurolize/ttsrelay"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// AdmissionDuration tracks how long C4 spends filtering, sanitizing,
	// chunking and deduplicating one inbound text event.
	AdmissionDuration metric.Float64Histogram

	// SynthesisDuration tracks TTS engine round-trip latency for one chunk.
	SynthesisDuration metric.Float64Histogram

	// PlaybackDuration tracks how long one audio artifact spent playing
	// through the voice transport.
	PlaybackDuration metric.Float64Histogram

	// --- Counters ---

	// MessagesAdmitted counts inbound text events by admission result.
	// Use with attribute: attribute.String("result", "admitted"|"rejected")
	MessagesAdmitted metric.Int64Counter

	// ChunksSynthesized counts synthesis attempts. Use with attributes:
	//   attribute.String("engine", ...), attribute.String("status", "ok"|"error")
	ChunksSynthesized metric.Int64Counter

	// ChunksPlayed counts playback attempts. Use with attribute:
	//   attribute.String("status", "ok"|"error"|"skipped"|"halted"), where
	//   "halted" marks the playback worker stopping after repeated errors.
	ChunksPlayed metric.Int64Counter

	// GovernorRequests counts outbound calls through the rate governor.
	// Use with attributes: attribute.String("endpoint", ...), attribute.String("status", ...)
	GovernorRequests metric.Int64Counter

	// --- Error counters ---

	// TTSErrors counts TTS engine failures by engine tag and failure kind.
	TTSErrors metric.Int64Counter

	// VoiceDisconnects counts external voice-session disconnections.
	VoiceDisconnects metric.Int64Counter

	// --- Gauges ---

	// VoiceSessionConnected reports 1 when the voice session is CONNECTED,
	// 0 otherwise.
	VoiceSessionConnected metric.Int64UpDownCounter

	// SynthesisQueueDepth tracks the current SynthesisQueue length.
	SynthesisQueueDepth metric.Int64UpDownCounter

	// AudioBufferedBytes tracks the current AudioQueue buffered byte total.
	AudioBufferedBytes metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for the admission/synthesis/playback latencies this relay cares about.
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
	if met.AdmissionDuration, err = m.Float64Histogram("ttsrelay.admission.duration",
		metric.WithDescription("Latency of the admission filter/sanitize/chunk/dedup chain."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SynthesisDuration, err = m.Float64Histogram("ttsrelay.synthesis.duration",
		metric.WithDescription("TTS engine round-trip latency for one chunk."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PlaybackDuration, err = m.Float64Histogram("ttsrelay.playback.duration",
		metric.WithDescription("Duration one audio artifact spent playing."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.MessagesAdmitted, err = m.Int64Counter("ttsrelay.messages.admitted",
		metric.WithDescription("Total inbound text events by admission result."),
	); err != nil {
		return nil, err
	}
	if met.ChunksSynthesized, err = m.Int64Counter("ttsrelay.chunks.synthesized",
		metric.WithDescription("Total synthesis attempts by engine and status."),
	); err != nil {
		return nil, err
	}
	if met.ChunksPlayed, err = m.Int64Counter("ttsrelay.chunks.played",
		metric.WithDescription("Total playback attempts by status."),
	); err != nil {
		return nil, err
	}
	if met.GovernorRequests, err = m.Int64Counter("ttsrelay.governor.requests",
		metric.WithDescription("Total outbound calls through the rate governor by endpoint and status."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.TTSErrors, err = m.Int64Counter("ttsrelay.tts.errors",
		metric.WithDescription("Total TTS engine failures by engine and kind."),
	); err != nil {
		return nil, err
	}
	if met.VoiceDisconnects, err = m.Int64Counter("ttsrelay.voice.disconnects",
		metric.WithDescription("Total external voice-session disconnections."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.VoiceSessionConnected, err = m.Int64UpDownCounter("ttsrelay.voice.connected",
		metric.WithDescription("1 when the voice session is CONNECTED, 0 otherwise."),
	); err != nil {
		return nil, err
	}
	if met.SynthesisQueueDepth, err = m.Int64UpDownCounter("ttsrelay.queue.synthesis_depth",
		metric.WithDescription("Current SynthesisQueue length."),
	); err != nil {
		return nil, err
	}
	if met.AudioBufferedBytes, err = m.Int64UpDownCounter("ttsrelay.queue.audio_buffered_bytes",
		metric.WithDescription("Current AudioQueue buffered byte total."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("ttsrelay.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
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

// RecordGovernorRequest is a convenience method that records a governor
// request counter increment with the standard attribute set.
func (m *Metrics) RecordGovernorRequest(ctx context.Context, endpoint, status string) {
	m.GovernorRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("endpoint", endpoint),
			attribute.String("status", status),
		),
	)
}

// RecordMessageAdmitted is a convenience method that records an admission
// outcome counter increment.
func (m *Metrics) RecordMessageAdmitted(ctx context.Context, result string) {
	m.MessagesAdmitted.Add(ctx, 1,
		metric.WithAttributes(attribute.String("result", result)),
	)
}

// RecordChunkSynthesized is a convenience method that records a synthesis
// attempt counter increment.
func (m *Metrics) RecordChunkSynthesized(ctx context.Context, engine, status string) {
	m.ChunksSynthesized.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("engine", engine),
			attribute.String("status", status),
		),
	)
}

// RecordChunkPlayed is a convenience method that records a playback attempt
// counter increment.
func (m *Metrics) RecordChunkPlayed(ctx context.Context, status string) {
	m.ChunksPlayed.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordTTSError is a convenience method that records a TTS engine error
// counter increment.
func (m *Metrics) RecordTTSError(ctx context.Context, engine, kind string) {
	m.TTSErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("engine", engine),
			attribute.String("kind", kind),
		),
	)
}
