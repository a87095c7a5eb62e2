package observability

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"github.com/noteum-io/noteum/pkg/config"
)

// Manager owns the tracing and metrics lifecycles.
type Manager struct {
	cfg config.ObservabilityConfig

	mu             sync.RWMutex
	tracerProvider trace.TracerProvider
	metrics        Metrics
}

// NewManager creates an uninitialized manager.
func NewManager(cfg config.ObservabilityConfig) *Manager {
	return &Manager{cfg: cfg}
}

// Initialize sets up the global tracer provider and metrics recorder.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tp, err := InitTracing(ctx, m.cfg.Tracing)
	if err != nil {
		return err
	}
	m.tracerProvider = tp

	metrics, err := InitMetrics(m.cfg.Metrics)
	if err != nil {
		return err
	}
	m.metrics = metrics
	SetGlobalMetrics(metrics)

	return nil
}

// GetTracer returns a named tracer from the managed provider.
func (m *Manager) GetTracer(name string) trace.Tracer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tracerProvider.Tracer(name)
}

// GetMetrics returns the managed recorder.
func (m *Manager) GetMetrics() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metrics
}

// Shutdown flushes pending spans.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sd, ok := m.tracerProvider.(interface{ Shutdown(context.Context) error }); ok {
		return sd.Shutdown(ctx)
	}
	return nil
}
