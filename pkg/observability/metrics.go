package observability

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/noteum-io/noteum/pkg/config"
)

// InitMetrics builds the Prometheus-backed meter provider and the
// noteum instruments. Disabled metrics return an inert recorder whose
// methods do nothing.
func InitMetrics(cfg config.MetricsConfig) (*PrometheusMetrics, error) {
	if !cfg.Enabled {
		return &PrometheusMetrics{}, nil
	}

	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)
	meter := provider.Meter(cfg.Namespace)

	name := func(suffix string) string { return cfg.Namespace + "_" + suffix }

	m := &PrometheusMetrics{}

	m.searchDuration, err = meter.Float64Histogram(
		name("search_duration_seconds"),
		metric.WithDescription("Search request duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("create search duration histogram: %w", err)
	}

	m.searchTotal, err = meter.Int64Counter(
		name("searches_total"),
		metric.WithDescription("Total search requests by type"),
	)
	if err != nil {
		return nil, fmt.Errorf("create searches counter: %w", err)
	}

	m.semanticRuns, err = meter.Int64Counter(
		name("search_semantic_runs_total"),
		metric.WithDescription("Searches where the judge ran the semantic engine"),
	)
	if err != nil {
		return nil, fmt.Errorf("create semantic runs counter: %w", err)
	}

	m.llmDuration, err = meter.Float64Histogram(
		name("llm_request_duration_seconds"),
		metric.WithDescription("AI provider request duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("create llm duration histogram: %w", err)
	}

	m.llmInputTokens, err = meter.Int64Counter(
		name("llm_tokens_input_total"),
		metric.WithDescription("Total prompt tokens sent to providers"),
	)
	if err != nil {
		return nil, fmt.Errorf("create llm input tokens counter: %w", err)
	}

	m.llmOutputTokens, err = meter.Int64Counter(
		name("llm_tokens_output_total"),
		metric.WithDescription("Total completion tokens from providers"),
	)
	if err != nil {
		return nil, fmt.Errorf("create llm output tokens counter: %w", err)
	}

	m.llmErrors, err = meter.Int64Counter(
		name("llm_errors_total"),
		metric.WithDescription("Total failed provider requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("create llm errors counter: %w", err)
	}

	m.embeddingRequests, err = meter.Int64Counter(
		name("embedding_requests_total"),
		metric.WithDescription("Total embedding backend calls"),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedding requests counter: %w", err)
	}

	m.indexedNotes, err = meter.Int64Counter(
		name("index_notes_total"),
		metric.WithDescription("Notes processed by the index driver, by result"),
	)
	if err != nil {
		return nil, fmt.Errorf("create indexed notes counter: %w", err)
	}

	m.httpDuration, err = meter.Float64Histogram(
		name("http_request_duration_seconds"),
		metric.WithDescription("HTTP request duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http duration histogram: %w", err)
	}

	m.httpRequests, err = meter.Int64Counter(
		name("http_requests_total"),
		metric.WithDescription("Total HTTP requests by method and route"),
	)
	if err != nil {
		return nil, fmt.Errorf("create http requests counter: %w", err)
	}

	return m, nil
}
