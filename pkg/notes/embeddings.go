package notes

import (
	"context"
	"fmt"

	"github.com/noteum-io/noteum/pkg/noteerr"
)

// Chunk is one persisted embedding row.
type Chunk struct {
	NoteID     int64
	ChunkIndex int
	ChunkText  string
	Vector     []float32
}

// ReplaceEmbeddings deletes a note's embeddings and inserts the new
// chunks in one transaction, keeping ordinals contiguous from zero.
func (s *Store) ReplaceEmbeddings(ctx context.Context, noteID int64, chunks []Chunk) (int, error) {
	for _, c := range chunks {
		if s.dimension > 0 && len(c.Vector) != s.dimension {
			return 0, noteerr.Newf(noteerr.KindEmbeddingFailure,
				"embedding dimension mismatch: got %d, want %d", len(c.Vector), s.dimension)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM embeddings WHERE note_id = $1`, noteID); err != nil {
		return 0, fmt.Errorf("failed to clear embeddings: %w", err)
	}

	for i, c := range chunks {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO embeddings (note_id, chunk_index, chunk_text, vector)
			VALUES ($1, $2, $3, $4::vector)`,
			noteID, i, c.ChunkText, formatVector(c.Vector)); err != nil {
			return 0, fmt.Errorf("failed to insert embedding %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit embeddings: %w", err)
	}
	return len(chunks), nil
}

// DeleteEmbeddings removes all embeddings of a note and reports how
// many rows went away.
func (s *Store) DeleteEmbeddings(ctx context.Context, noteID int64) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM embeddings WHERE note_id = $1`, noteID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// CountEmbeddings reports the number of persisted chunks for a note.
func (s *Store) CountEmbeddings(ctx context.Context, noteID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM embeddings WHERE note_id = $1`, noteID).Scan(&count)
	return count, err
}

// CountIndexedNotes reports how many notes have at least one embedding.
func (s *Store) CountIndexedNotes(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT note_id) FROM embeddings`).Scan(&count)
	return count, err
}

// ListUnindexedNoteIDs returns handles of notes with zero embeddings,
// oldest first.
func (s *Store) ListUnindexedNoteIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT n.id FROM notes n
		WHERE NOT EXISTS (SELECT 1 FROM embeddings e WHERE e.note_id = n.id)
		ORDER BY n.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
