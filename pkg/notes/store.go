// Package notes is the Postgres persistence layer for notes, their
// embeddings, extracted attachment texts, and stored OAuth tokens.
package notes

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq" // Postgres driver

	"github.com/noteum-io/noteum/pkg/config"
)

// Store wraps the relational database. All search SQL lives here;
// engines in pkg/search call these methods.
type Store struct {
	db        *sql.DB
	dimension int
}

// Open connects to Postgres and configures the pool. The vector
// dimension fixes the embeddings column width for EnsureSchema.
func Open(cfg *config.DatabaseConfig, dimension int) (*Store, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return &Store{db: db, dimension: dimension}, nil
}

// NewWithDB wraps an existing connection, mainly for tests.
func NewWithDB(db *sql.DB, dimension int) *Store {
	return &Store{db: db, dimension: dimension}
}

// Ping verifies the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// EnsureSchema creates extensions, tables, and indexes if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements(s.dimension) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	slog.Debug("Database schema ensured", "dimension", s.dimension)
	return nil
}

// DB exposes the underlying handle for stores that share the
// connection, such as the metrics store in Postgres mode.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the pool.
func (s *Store) Close() error {
	return s.db.Close()
}
