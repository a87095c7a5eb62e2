package config

import (
	"fmt"
	"time"
)

// DatabaseConfig configures the primary note store (Postgres with the
// pgvector extension).
type DatabaseConfig struct {
	// URL is the Postgres connection string.
	URL string `yaml:"url,omitempty" json:"url,omitempty" jsonschema:"title=Database URL,description=Postgres connection string (use ${DATABASE_URL})"`

	// MaxOpenConns bounds the pool size.
	MaxOpenConns int `yaml:"max_open_conns,omitempty" json:"max_open_conns,omitempty" jsonschema:"title=Max Open Connections,minimum=1,default=20"`

	// MaxIdleConns bounds idle connections.
	MaxIdleConns int `yaml:"max_idle_conns,omitempty" json:"max_idle_conns,omitempty" jsonschema:"title=Max Idle Connections,minimum=0,default=5"`

	// ConnMaxLifetime recycles connections after this duration.
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime,omitempty" json:"conn_max_lifetime,omitempty" jsonschema:"title=Connection Max Lifetime,default=30m"`
}

// SetDefaults applies default values.
func (c *DatabaseConfig) SetDefaults() {
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 20
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 5
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = 30 * time.Minute
	}
}

// Validate checks the database configuration.
func (c *DatabaseConfig) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("database url is required")
	}
	return nil
}

// MetricsDBDriver selects the search-event store backend.
type MetricsDBDriver string

const (
	MetricsDBSQLite   MetricsDBDriver = "sqlite"
	MetricsDBPostgres MetricsDBDriver = "postgres"
)

// MetricsDBConfig configures the search-event and feedback store. It can
// live in a lightweight local SQLite file or share the main Postgres.
type MetricsDBConfig struct {
	// Driver: sqlite or postgres.
	Driver MetricsDBDriver `yaml:"driver,omitempty" json:"driver,omitempty" jsonschema:"title=Driver,enum=sqlite,enum=postgres,default=sqlite"`

	// Path is the SQLite file path (sqlite driver only).
	Path string `yaml:"path,omitempty" json:"path,omitempty" jsonschema:"title=Path,description=SQLite file path,default=noteum-metrics.db"`

	// URL is the Postgres connection string (postgres driver only).
	// Empty reuses the primary database URL.
	URL string `yaml:"url,omitempty" json:"url,omitempty" jsonschema:"title=URL,description=Postgres connection string"`
}

// SetDefaults applies default values.
func (c *MetricsDBConfig) SetDefaults() {
	if c.Driver == "" {
		c.Driver = MetricsDBSQLite
	}
	if c.Driver == MetricsDBSQLite && c.Path == "" {
		c.Path = "noteum-metrics.db"
	}
}

// Validate checks the metrics store configuration.
func (c *MetricsDBConfig) Validate() error {
	switch c.Driver {
	case MetricsDBSQLite, MetricsDBPostgres:
		return nil
	default:
		return fmt.Errorf("invalid metrics driver: %s (valid: sqlite, postgres)", c.Driver)
	}
}

// VectorConfig configures an optional external vector index (Qdrant).
// When disabled, semantic search runs against pgvector in the primary
// database.
type VectorConfig struct {
	// Enabled switches semantic search to Qdrant.
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty" jsonschema:"title=Enabled,default=false"`

	// Host of the Qdrant gRPC endpoint.
	Host string `yaml:"host,omitempty" json:"host,omitempty" jsonschema:"title=Host,default=localhost"`

	// Port of the Qdrant gRPC endpoint.
	Port int `yaml:"port,omitempty" json:"port,omitempty" jsonschema:"title=Port,default=6334"`

	// APIKey for Qdrant Cloud.
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty" jsonschema:"title=API Key"`

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool `yaml:"use_tls,omitempty" json:"use_tls,omitempty" jsonschema:"title=Use TLS,default=false"`

	// Collection name for note chunks.
	Collection string `yaml:"collection,omitempty" json:"collection,omitempty" jsonschema:"title=Collection,default=noteum_chunks"`
}

// SetDefaults applies default values.
func (c *VectorConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.Collection == "" {
		c.Collection = "noteum_chunks"
	}
}

// Validate checks the vector index configuration.
func (c *VectorConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Host == "" {
		return fmt.Errorf("vector host is required when enabled")
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid vector port: %d", c.Port)
	}
	return nil
}
