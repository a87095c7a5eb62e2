package notes

import "fmt"

// schemaStatements returns the DDL in execution order. The vector
// column width is fixed at schema creation; changing the embedding
// dimension requires a re-index into a fresh table.
func schemaStatements(dimension int) []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE EXTENSION IF NOT EXISTS pg_trgm`,

		`CREATE TABLE IF NOT EXISTS notes (
			id BIGSERIAL PRIMARY KEY,
			external_id TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL DEFAULT '',
			html_body TEXT NOT NULL DEFAULT '',
			plain_body TEXT NOT NULL DEFAULT '',
			notebook TEXT,
			tags TEXT[] NOT NULL DEFAULT '{}',
			source_created_at TIMESTAMPTZ,
			source_updated_at TIMESTAMPTZ,
			synced_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			search_vector tsvector GENERATED ALWAYS AS (
				to_tsvector('simple', coalesce(title, '') || ' ' || coalesce(plain_body, ''))
			) STORED
		)`,

		`CREATE INDEX IF NOT EXISTS notes_search_vector_idx
			ON notes USING GIN (search_vector)`,

		`CREATE INDEX IF NOT EXISTS notes_trgm_idx
			ON notes USING GIN ((coalesce(title, '') || ' ' || coalesce(plain_body, '')) gin_trgm_ops)`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS embeddings (
			id BIGSERIAL PRIMARY KEY,
			note_id BIGINT NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
			chunk_index INT NOT NULL,
			chunk_text TEXT NOT NULL,
			vector vector(%d) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (note_id, chunk_index)
		)`, dimension),

		`CREATE INDEX IF NOT EXISTS embeddings_note_id_idx
			ON embeddings (note_id)`,

		`CREATE INDEX IF NOT EXISTS embeddings_vector_idx
			ON embeddings USING hnsw (vector vector_cosine_ops)`,

		`CREATE TABLE IF NOT EXISTS attachment_texts (
			id BIGSERIAL PRIMARY KEY,
			note_id BIGINT NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
			filename TEXT NOT NULL,
			mime_type TEXT NOT NULL DEFAULT '',
			extracted_text TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			vision_description TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,

		`CREATE INDEX IF NOT EXISTS attachment_texts_note_id_idx
			ON attachment_texts (note_id)`,

		`CREATE TABLE IF NOT EXISTS oauth_tokens (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			provider TEXT NOT NULL,
			access_token TEXT,
			refresh_token TEXT,
			expires_at TIMESTAMPTZ,
			pkce_verifier TEXT,
			state TEXT,
			scope TEXT,
			email TEXT,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (user_id, provider)
		)`,
	}
}
