package observability

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records the domain events worth charting. Implementations
// must be safe for concurrent use.
type Metrics interface {
	RecordSearch(ctx context.Context, searchType string, duration time.Duration, resultCount int, ranSemantic bool)
	RecordLLMCall(ctx context.Context, provider, model string, duration time.Duration, inputTokens, outputTokens int, err error)
	RecordEmbedding(ctx context.Context, texts int, err error)
	RecordIndexBatch(ctx context.Context, indexed, failed int)
	RecordHTTPRequest(ctx context.Context, method, route string, duration time.Duration)
}

var (
	// The zero PrometheusMetrics is inert, so callers never nil-check.
	globalMetrics Metrics = &PrometheusMetrics{}
	metricsMu     sync.RWMutex
)

// SetGlobalMetrics installs the process-wide recorder.
func SetGlobalMetrics(m Metrics) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	globalMetrics = m
}

// GetGlobalMetrics returns the process-wide recorder, never nil.
func GetGlobalMetrics() Metrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return globalMetrics
}

// PrometheusMetrics implements Metrics over OpenTelemetry instruments
// exported through the Prometheus registry. A zero value records
// nothing.
type PrometheusMetrics struct {
	searchDuration metric.Float64Histogram
	searchTotal    metric.Int64Counter
	semanticRuns   metric.Int64Counter

	llmDuration     metric.Float64Histogram
	llmInputTokens  metric.Int64Counter
	llmOutputTokens metric.Int64Counter
	llmErrors       metric.Int64Counter

	embeddingRequests metric.Int64Counter
	indexedNotes      metric.Int64Counter

	httpDuration metric.Float64Histogram
	httpRequests metric.Int64Counter
}

func (m *PrometheusMetrics) RecordSearch(ctx context.Context, searchType string, duration time.Duration, resultCount int, ranSemantic bool) {
	if m == nil || m.searchDuration == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String(AttrSearchType, searchType))
	m.searchDuration.Record(ctx, duration.Seconds(), attrs)
	m.searchTotal.Add(ctx, 1, attrs)
	if ranSemantic {
		m.semanticRuns.Add(ctx, 1)
	}
}

func (m *PrometheusMetrics) RecordLLMCall(ctx context.Context, provider, model string, duration time.Duration, inputTokens, outputTokens int, err error) {
	if m == nil || m.llmDuration == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(AttrLLMProvider, provider),
		attribute.String(AttrLLMModel, model),
	)
	m.llmDuration.Record(ctx, duration.Seconds(), attrs)
	if inputTokens > 0 {
		m.llmInputTokens.Add(ctx, int64(inputTokens), attrs)
	}
	if outputTokens > 0 {
		m.llmOutputTokens.Add(ctx, int64(outputTokens), attrs)
	}
	if err != nil {
		m.llmErrors.Add(ctx, 1, attrs)
	}
}

func (m *PrometheusMetrics) RecordEmbedding(ctx context.Context, texts int, err error) {
	if m == nil || m.embeddingRequests == nil {
		return
	}

	result := "ok"
	if err != nil {
		result = "error"
	}
	m.embeddingRequests.Add(ctx, int64(texts),
		metric.WithAttributes(attribute.String(AttrResult, result)))
}

func (m *PrometheusMetrics) RecordIndexBatch(ctx context.Context, indexed, failed int) {
	if m == nil || m.indexedNotes == nil {
		return
	}

	if indexed > 0 {
		m.indexedNotes.Add(ctx, int64(indexed),
			metric.WithAttributes(attribute.String(AttrResult, "indexed")))
	}
	if failed > 0 {
		m.indexedNotes.Add(ctx, int64(failed),
			metric.WithAttributes(attribute.String(AttrResult, "failed")))
	}
}

func (m *PrometheusMetrics) RecordHTTPRequest(ctx context.Context, method, route string, duration time.Duration) {
	if m == nil || m.httpDuration == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String(AttrHTTPMethod, method),
		attribute.String(AttrHTTPRoute, route),
	)
	m.httpDuration.Record(ctx, duration.Seconds(), attrs)
	m.httpRequests.Add(ctx, 1, attrs)
}
