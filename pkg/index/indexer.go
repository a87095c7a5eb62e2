package index

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/sourcegraph/conc/pool"

	"github.com/noteum-io/noteum/pkg/embedding"
	"github.com/noteum-io/noteum/pkg/notes"
	"github.com/noteum-io/noteum/pkg/vector"
)

// Store is the persistence surface the indexer needs.
type Store interface {
	GetNote(ctx context.Context, id int64) (*notes.Note, error)
	AttachmentTexts(ctx context.Context, noteID int64) ([]notes.AttachmentText, error)
	ReplaceEmbeddings(ctx context.Context, noteID int64, chunks []notes.Chunk) (int, error)
	DeleteEmbeddings(ctx context.Context, noteID int64) (int64, error)
	CountEmbeddings(ctx context.Context, noteID int64) (int, error)
	CountNotes(ctx context.Context) (int, error)
	CountIndexedNotes(ctx context.Context) (int, error)
	ListUnindexedNoteIDs(ctx context.Context) ([]int64, error)
}

// VectorIndex mirrors chunk vectors into the external index.
type VectorIndex interface {
	UpsertChunks(ctx context.Context, noteID int64, chunks []vector.Chunk) error
	DeleteNote(ctx context.Context, noteID int64) error
}

// BatchResult summarizes one IndexBatch call.
type BatchResult struct {
	Indexed         int `json:"indexed"`
	Skipped         int `json:"skipped"`
	Failed          int `json:"failed"`
	TotalEmbeddings int `json:"total_embeddings"`
}

// Indexer computes indexable text, chunks, embeds, and persists. With
// an external vector index configured, chunks are mirrored there after
// the relational write.
type Indexer struct {
	store    Store
	embedder embedding.Service
	vectors  VectorIndex // nil when disabled
	workers  int
}

// NewIndexer wires the indexer. vectors may be nil; workers bounds the
// embedding fan-out inside IndexBatch.
func NewIndexer(store Store, embedder embedding.Service, vectors VectorIndex, workers int) *Indexer {
	if workers < 1 {
		workers = 1
	}
	return &Indexer{
		store:    store,
		embedder: embedder,
		vectors:  vectors,
		workers:  workers,
	}
}

// Index embeds one note and replaces its persisted chunks. Returns the
// number of chunks written, 0 when the note has no indexable text.
func (ix *Indexer) Index(ctx context.Context, noteID int64) (int, error) {
	note, err := ix.store.GetNote(ctx, noteID)
	if err != nil {
		return 0, err
	}

	attachments, err := ix.store.AttachmentTexts(ctx, noteID)
	if err != nil {
		return 0, err
	}

	text := BuildIndexableText(note, attachments)
	if strings.TrimSpace(text) == "" {
		return 0, nil
	}

	chunks, err := ix.embedder.EmbedChunks(ctx, text)
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	rows := make([]notes.Chunk, len(chunks))
	for i, c := range chunks {
		rows[i] = notes.Chunk{
			NoteID:     noteID,
			ChunkIndex: i,
			ChunkText:  c.Text,
			Vector:     c.Vector,
		}
	}

	n, err := ix.store.ReplaceEmbeddings(ctx, noteID, rows)
	if err != nil {
		return 0, err
	}

	if ix.vectors != nil {
		if err := ix.mirrorChunks(ctx, noteID, chunks); err != nil {
			return 0, err
		}
	}
	return n, nil
}

// mirrorChunks rewrites a note's points in the external index. The
// delete clears stale chunks when the note shrank.
func (ix *Indexer) mirrorChunks(ctx context.Context, noteID int64, chunks []embedding.ChunkEmbedding) error {
	if err := ix.vectors.DeleteNote(ctx, noteID); err != nil {
		return err
	}

	points := make([]vector.Chunk, len(chunks))
	for i, c := range chunks {
		points[i] = vector.Chunk{
			ChunkIndex: i,
			ChunkText:  c.Text,
			Vector:     c.Vector,
		}
	}
	return ix.vectors.UpsertChunks(ctx, noteID, points)
}

// IndexBatch indexes many notes with a bounded worker pool. Notes that
// already have embeddings are skipped; per-note failures are counted
// and logged but never abort the batch.
func (ix *Indexer) IndexBatch(ctx context.Context, ids []int64) *BatchResult {
	var indexed, skipped, failed, embeddings atomic.Int64

	p := pool.New().WithMaxGoroutines(ix.workers)
	for _, id := range ids {
		noteID := id
		p.Go(func() {
			needs, err := ix.NeedsIndexing(ctx, noteID)
			if err != nil {
				slog.Warn("failed to check index state", "note_id", noteID, "error", err)
				failed.Add(1)
				return
			}
			if !needs {
				skipped.Add(1)
				return
			}

			n, err := ix.Index(ctx, noteID)
			if err != nil {
				slog.Warn("failed to index note", "note_id", noteID, "error", err)
				failed.Add(1)
				return
			}
			indexed.Add(1)
			embeddings.Add(int64(n))
		})
	}
	p.Wait()

	return &BatchResult{
		Indexed:         int(indexed.Load()),
		Skipped:         int(skipped.Load()),
		Failed:          int(failed.Load()),
		TotalEmbeddings: int(embeddings.Load()),
	}
}

// Reindex deletes then indexes, so edits always land in the index.
func (ix *Indexer) Reindex(ctx context.Context, noteID int64) (int, error) {
	if _, err := ix.Delete(ctx, noteID); err != nil {
		return 0, err
	}
	return ix.Index(ctx, noteID)
}

// Delete removes a note's embeddings and reports how many went away.
func (ix *Indexer) Delete(ctx context.Context, noteID int64) (int64, error) {
	n, err := ix.store.DeleteEmbeddings(ctx, noteID)
	if err != nil {
		return 0, err
	}
	if ix.vectors != nil {
		if err := ix.vectors.DeleteNote(ctx, noteID); err != nil {
			return n, err
		}
	}
	return n, nil
}

// NeedsIndexing is true iff the note has zero persisted embeddings.
func (ix *Indexer) NeedsIndexing(ctx context.Context, noteID int64) (bool, error) {
	count, err := ix.store.CountEmbeddings(ctx, noteID)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}
