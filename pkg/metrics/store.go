// Package metrics persists search events, relevance feedback, and AI
// answer ratings. SQLite and Postgres backends share one schema; the
// store rewrites placeholders per dialect.
package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"           // Postgres driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/noteum-io/noteum/pkg/config"
)

// Store records retrieval and feedback observations. Writes are cheap
// and callers fire them from goroutines off the request path.
type Store struct {
	db      *sql.DB
	dialect config.MetricsDBDriver
}

// Open connects per the configured driver.
func Open(cfg *config.MetricsDBConfig) (*Store, error) {
	switch cfg.Driver {
	case config.MetricsDBSQLite:
		db, err := sql.Open("sqlite3", cfg.Path+"?_busy_timeout=5000")
		if err != nil {
			return nil, fmt.Errorf("failed to open metrics database: %w", err)
		}
		// Single writer avoids SQLite lock contention.
		db.SetMaxOpenConns(1)
		return &Store{db: db, dialect: config.MetricsDBSQLite}, nil

	case config.MetricsDBPostgres:
		db, err := sql.Open("postgres", cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to open metrics database: %w", err)
		}
		return &Store{db: db, dialect: config.MetricsDBPostgres}, nil

	default:
		return nil, fmt.Errorf("unsupported metrics driver: %s", cfg.Driver)
	}
}

// NewWithDB wraps an existing connection, for tests and for sharing
// the relational pool in Postgres mode.
func NewWithDB(db *sql.DB, dialect config.MetricsDBDriver) *Store {
	return &Store{db: db, dialect: dialect}
}

// Close closes the pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// bind rewrites ? placeholders to $N for Postgres.
func (s *Store) bind(query string) string {
	if s.dialect != config.MetricsDBPostgres {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// idColumn is the only dialect-specific DDL fragment.
func (s *Store) idColumn() string {
	if s.dialect == config.MetricsDBPostgres {
		return "id BIGSERIAL PRIMARY KEY"
	}
	return "id INTEGER PRIMARY KEY AUTOINCREMENT"
}

// EnsureSchema creates the tables if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS search_events (
			%s,
			event_id VARCHAR(64) NOT NULL UNIQUE,
			user_id VARCHAR(255),
			query TEXT NOT NULL,
			search_type VARCHAR(32) NOT NULL,
			result_count INTEGER NOT NULL,
			latency_ms INTEGER NOT NULL,
			ran_semantic BOOLEAN,
			judge_reason TEXT,
			judge_confidence REAL,
			clicked_note_id BIGINT,
			created_at TIMESTAMP NOT NULL
		)`, s.idColumn()),

		`CREATE INDEX IF NOT EXISTS search_events_created_at_idx
			ON search_events (created_at)`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS search_feedback (
			%s,
			event_id VARCHAR(64) NOT NULL,
			note_id BIGINT NOT NULL,
			user_id VARCHAR(255) NOT NULL DEFAULT '',
			relevant BOOLEAN NOT NULL,
			created_at TIMESTAMP NOT NULL,
			UNIQUE (event_id, note_id, user_id)
		)`, s.idColumn()),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS ai_feedback (
			%s,
			feature VARCHAR(64) NOT NULL,
			rating INTEGER NOT NULL,
			comment TEXT,
			model VARCHAR(128),
			request_summary TEXT,
			user_id VARCHAR(255),
			created_at TIMESTAMP NOT NULL
		)`, s.idColumn()),
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("metrics schema statement failed: %w", err)
		}
	}
	return nil
}

func now() time.Time {
	return time.Now().UTC()
}
