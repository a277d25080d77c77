// Package observe provides application-wide observability primitives for
// MetaVoices: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exposed in
// Prometheus format by the handler returned from [Init]. [DefaultMetrics]
// binds the instruments to the global meter provider; tests build their own
// with [NewMetrics] over a manual reader.
package observe

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all MetaVoices metrics.
const meterName = "github.com/MrWong99/metavoices"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// AnalysisDuration tracks the time spent scanning a text for ambiguous
	// words.
	AnalysisDuration metric.Float64Histogram

	// DictionaryLoadDuration tracks how long a dictionary source takes to
	// load. Use with attribute:
	//   attribute.String("source", ...)
	DictionaryLoadDuration metric.Float64Histogram

	// TTSDuration tracks text-to-speech synthesis latency.
	TTSDuration metric.Float64Histogram

	// ToolExecutionDuration tracks MCP tool execution latency.
	ToolExecutionDuration metric.Float64Histogram

	// --- Counters ---

	// Findings counts ambiguous words reported by analysis. Use with attribute:
	//   attribute.String("kind", ...)
	Findings metric.Int64Counter

	// Corrections counts applied corrections. Use with attribute:
	//   attribute.String("mode", ...) // direct, manual, all, auto
	Corrections metric.Int64Counter

	// DictionaryLoads counts dictionary load attempts. Use with attributes:
	//   attribute.String("source", ...), attribute.String("status", ...)
	DictionaryLoads metric.Int64Counter

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// ToolCalls counts tool invocations. Use with attributes:
	//   attribute.String("tool", ...), attribute.String("status", ...)
	ToolCalls metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// DictionaryWords reports the number of entries in the active dictionary.
	DictionaryWords metric.Int64Gauge

	// ActiveSessions tracks the number of open correction sessions.
	ActiveSessions metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds). Analysis
// of a typical paragraph lands in the sub-millisecond buckets; synthesis and
// remote loads in the upper ones.
var latencyBuckets = []float64{
	0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates every MetaVoices instrument on mp. All creation errors
// are reported together.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	met := &Metrics{}
	var errs []error

	latency := func(name, desc string, buckets ...float64) metric.Float64Histogram {
		opts := []metric.Float64HistogramOption{metric.WithDescription(desc), metric.WithUnit("s")}
		if len(buckets) > 0 {
			opts = append(opts, metric.WithExplicitBucketBoundaries(buckets...))
		}
		h, err := m.Float64Histogram(name, opts...)
		errs = append(errs, err)
		return h
	}
	counter := func(name, desc string) metric.Int64Counter {
		c, err := m.Int64Counter(name, metric.WithDescription(desc))
		errs = append(errs, err)
		return c
	}

	met.AnalysisDuration = latency("metavoices.analysis.duration",
		"Latency of ambiguity analysis over a text.", latencyBuckets...)
	met.DictionaryLoadDuration = latency("metavoices.dictionary.load.duration",
		"Latency of loading the ambiguous-word dictionary by source.", latencyBuckets...)
	met.TTSDuration = latency("metavoices.tts.duration",
		"Latency of text-to-speech synthesis.", latencyBuckets...)
	met.ToolExecutionDuration = latency("metavoices.tool_execution.duration",
		"Latency of MCP tool execution.", latencyBuckets...)
	met.HTTPRequestDuration = latency("metavoices.http.request.duration",
		"HTTP request latency by method and route.")

	met.Findings = counter("metavoices.analysis.findings", "Ambiguous words reported, by kind.")
	met.Corrections = counter("metavoices.corrections", "Corrections applied, by mode.")
	met.DictionaryLoads = counter("metavoices.dictionary.loads", "Dictionary load attempts, by source and status.")
	met.ProviderRequests = counter("metavoices.provider.requests", "Provider requests, by provider, kind and status.")
	met.ToolCalls = counter("metavoices.tool.calls", "MCP tool invocations, by tool and status.")
	met.ProviderErrors = counter("metavoices.provider.errors", "Provider failures, by provider and kind.")

	var err error
	met.DictionaryWords, err = m.Int64Gauge("metavoices.dictionary.words",
		metric.WithDescription("Entries in the active dictionary."))
	errs = append(errs, err)
	met.ActiveSessions, err = m.Int64UpDownCounter("metavoices.active_sessions",
		metric.WithDescription("Open correction sessions."))
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("observe: create instruments: %w", err)
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

// RecordFinding records one reported ambiguous word of the given kind.
func (m *Metrics) RecordFinding(ctx context.Context, kind string) {
	m.Findings.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

// RecordCorrection records n applied corrections for the given mode.
func (m *Metrics) RecordCorrection(ctx context.Context, mode string, n int) {
	if n <= 0 {
		return
	}
	m.Corrections.Add(ctx, int64(n), metric.WithAttributes(attribute.String("mode", mode)))
}

// RecordDictionaryLoad records a dictionary load attempt, its latency and,
// on success, the resulting dictionary size.
func (m *Metrics) RecordDictionaryLoad(ctx context.Context, source, status string, seconds float64, words int) {
	m.DictionaryLoads.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("source", source),
			attribute.String("status", status),
		),
	)
	m.DictionaryLoadDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("source", source)),
	)
	if status == "ok" {
		m.DictionaryWords.Record(ctx, int64(words))
	}
}

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
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
