package config

import (
	"fmt"
	"time"
)

// ObservabilityConfig configures tracing and metrics.
type ObservabilityConfig struct {
	// Tracing configures OpenTelemetry distributed tracing.
	Tracing TracingConfig `yaml:"tracing,omitempty" json:"tracing,omitempty" jsonschema:"title=Tracing"`

	// Metrics configures Prometheus metrics collection.
	Metrics MetricsConfig `yaml:"metrics,omitempty" json:"metrics,omitempty" jsonschema:"title=Metrics"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	// Enabled turns on distributed tracing.
	// Default: false
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty" jsonschema:"title=Enabled,default=false"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty" jsonschema:"title=Endpoint,default=localhost:4317"`

	// SamplingRate controls what fraction of traces are sampled.
	// Range: 0.0 (none) to 1.0 (all). Default: 1.0
	SamplingRate float64 `yaml:"sampling_rate,omitempty" json:"sampling_rate,omitempty" jsonschema:"title=Sampling Rate,minimum=0,maximum=1,default=1"`

	// ServiceName identifies this service in traces.
	// Default: "noteum"
	ServiceName string `yaml:"service_name,omitempty" json:"service_name,omitempty" jsonschema:"title=Service Name,default=noteum"`

	// ServiceVersion is the version of this service.
	ServiceVersion string `yaml:"service_version,omitempty" json:"service_version,omitempty" jsonschema:"title=Service Version"`

	// Insecure disables TLS for the exporter connection.
	// Default: true (local development)
	Insecure *bool `yaml:"insecure,omitempty" json:"insecure,omitempty" jsonschema:"title=Insecure,default=true"`

	// Timeout for exporter operations.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"title=Timeout,default=10s"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	// Enabled turns on metrics collection.
	// Default: false
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty" jsonschema:"title=Enabled,default=false"`

	// Endpoint is the path to expose metrics on.
	// Default: "/metrics"
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty" jsonschema:"title=Endpoint,default=/metrics"`

	// Namespace prefixes all metric names.
	// Default: "noteum"
	Namespace string `yaml:"namespace,omitempty" json:"namespace,omitempty" jsonschema:"title=Namespace,default=noteum"`
}

// SetDefaults applies default values.
func (c *ObservabilityConfig) SetDefaults() {
	c.Tracing.SetDefaults()
	c.Metrics.SetDefaults()
}

// Validate checks the observability configuration.
func (c *ObservabilityConfig) Validate() error {
	if err := c.Tracing.Validate(); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	return nil
}

// SetDefaults applies default values.
func (c *TracingConfig) SetDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "noteum"
	}
	if c.SamplingRate == 0 {
		c.SamplingRate = 1.0
	}
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4317"
	}
	if c.Insecure == nil {
		c.Insecure = BoolPtr(true)
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
}

// Validate checks the tracing configuration.
func (c *TracingConfig) Validate() error {
	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		return fmt.Errorf("sampling_rate must be in [0,1], got %v", c.SamplingRate)
	}
	if c.Enabled && c.Endpoint == "" {
		return fmt.Errorf("endpoint is required when tracing is enabled")
	}
	return nil
}

// SetDefaults applies default values.
func (c *MetricsConfig) SetDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "/metrics"
	}
	if c.Namespace == "" {
		c.Namespace = "noteum"
	}
}

// Validate checks the metrics configuration.
func (c *MetricsConfig) Validate() error {
	return nil
}
