// Package observe provides application-wide observability primitives for
// Tasmi: OpenTelemetry metrics, distributed tracing, and trace-aware
// structured logging.
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

// meterName is the instrumentation scope name used for all Tasmi metrics.
const meterName = "github.com/hifdhlab/tasmi"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// TranscriptionDuration tracks ASR transcription latency.
	TranscriptionDuration metric.Float64Histogram

	// ChunkDuration tracks end-to-end chunk processing latency: decode,
	// transcription, matching, alignment, and persistence combined.
	ChunkDuration metric.Float64Histogram

	// --- Score distributions ---

	// MatchConfidence tracks the combined similarity score produced by verse
	// matching, accepted and rejected alike.
	MatchConfidence metric.Float64Histogram

	// --- Counters ---

	// ChunksProcessed counts audio chunks by outcome. Use with attribute:
	//   attribute.String("result", ...) — "matched", "unmatched", "silent", "failed"
	ChunksProcessed metric.Int64Counter

	// RecitationErrors counts detected recitation errors. Use with attribute:
	//   attribute.String("type", ...)
	RecitationErrors metric.Int64Counter

	// VersesCompleted counts fully recited verses.
	VersesCompleted metric.Int64Counter

	// --- Error counters ---

	// TranscriberErrors counts ASR backend failures. Use with attribute:
	//   attribute.String("provider", ...)
	TranscriberErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveSessions tracks the number of live recitation sessions.
	ActiveSessions metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for chunk-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// confidenceBuckets defines bucket boundaries for similarity scores in [0,1].
var confidenceBuckets = []float64{
	0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.TranscriptionDuration, err = m.Float64Histogram("tasmi.transcription.duration",
		metric.WithDescription("Latency of ASR transcription per chunk."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ChunkDuration, err = m.Float64Histogram("tasmi.chunk.duration",
		metric.WithDescription("End-to-end chunk processing latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.MatchConfidence, err = m.Float64Histogram("tasmi.match.confidence",
		metric.WithDescription("Combined similarity score of verse matches."),
		metric.WithUnit("1"),
		metric.WithExplicitBucketBoundaries(confidenceBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ChunksProcessed, err = m.Int64Counter("tasmi.chunks.processed",
		metric.WithDescription("Total audio chunks processed by outcome."),
	); err != nil {
		return nil, err
	}
	if met.RecitationErrors, err = m.Int64Counter("tasmi.recitation.errors",
		metric.WithDescription("Total detected recitation errors by type."),
	); err != nil {
		return nil, err
	}
	if met.VersesCompleted, err = m.Int64Counter("tasmi.verses.completed",
		metric.WithDescription("Total fully recited verses."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.TranscriberErrors, err = m.Int64Counter("tasmi.transcriber.errors",
		metric.WithDescription("Total ASR backend failures by provider."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveSessions, err = m.Int64UpDownCounter("tasmi.active_sessions",
		metric.WithDescription("Number of live recitation sessions."),
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

// RecordChunk is a convenience method that records one processed chunk with
// its outcome.
func (m *Metrics) RecordChunk(ctx context.Context, result string) {
	m.ChunksProcessed.Add(ctx, 1,
		metric.WithAttributes(attribute.String("result", result)),
	)
}

// RecordRecitationError is a convenience method that records one detected
// recitation error by type.
func (m *Metrics) RecordRecitationError(ctx context.Context, errType string) {
	m.RecitationErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("type", errType)),
	)
}

// RecordTranscriberError is a convenience method that records one ASR
// backend failure.
func (m *Metrics) RecordTranscriberError(ctx context.Context, provider string) {
	m.TranscriberErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("provider", provider)),
	)
}
