// Package vector is the optional Qdrant-backed chunk index. When
// enabled it replaces pgvector as the semantic search backend; titles
// are not stored here, callers hydrate them from the relational store.
package vector

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/noteum-io/noteum/pkg/config"
)

// Match is one note-level semantic hit.
type Match struct {
	NoteID     int64
	ChunkIndex int
	ChunkText  string
	Score      float64
}

// Chunk is one chunk vector to upsert.
type Chunk struct {
	ChunkIndex int
	ChunkText  string
	Vector     []float32
}

// Index stores chunk vectors in a single Qdrant collection. Point IDs
// are derived from (note, chunk) so re-indexing overwrites in place.
type Index struct {
	client     *qdrant.Client
	collection string
	dimension  uint64
}

// NewIndex connects to the Qdrant gRPC endpoint.
func NewIndex(cfg *config.VectorConfig, dimension int) (*Index, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client for %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	return &Index{
		client:     client,
		collection: cfg.Collection,
		dimension:  uint64(dimension),
	}, nil
}

// EnsureCollection creates the collection if it does not exist yet.
func (ix *Index) EnsureCollection(ctx context.Context) error {
	exists, err := ix.client.CollectionExists(ctx, ix.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = ix.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: ix.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     ix.dimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", ix.collection, err)
	}
	return nil
}

// pointID derives a stable UUID for a (note, chunk) pair.
func pointID(noteID int64, chunkIndex int) string {
	name := fmt.Sprintf("note:%d:chunk:%d", noteID, chunkIndex)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

// UpsertChunks writes a note's chunk vectors. Stale chunks beyond the
// new chunk count are not removed here; callers delete first when a
// note shrinks.
func (ix *Index) UpsertChunks(ctx context.Context, noteID int64, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for _, c := range chunks {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(pointID(noteID, c.ChunkIndex)),
			Vectors: qdrant.NewVectors(c.Vector...),
			Payload: map[string]*qdrant.Value{
				"note_id":     {Kind: &qdrant.Value_IntegerValue{IntegerValue: noteID}},
				"chunk_index": {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(c.ChunkIndex)}},
				"chunk_text":  {Kind: &qdrant.Value_StringValue{StringValue: c.ChunkText}},
			},
		})
	}

	_, err := ix.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: ix.collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert chunks for note %d: %w", noteID, err)
	}
	return nil
}

// DeleteNote removes every point belonging to a note.
func (ix *Index) DeleteNote(ctx context.Context, noteID int64) error {
	_, err := ix.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: ix.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: noteFilter(noteID),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete chunks for note %d: %w", noteID, err)
	}
	return nil
}

func noteFilter(noteID int64) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key: "note_id",
					Match: &qdrant.Match{
						MatchValue: &qdrant.Match_Integer{Integer: noteID},
					},
				},
			},
		}},
	}
}

// Search returns the best chunk per note ordered by cosine similarity.
// Chunks are over-fetched because several top chunks can share a note.
func (ix *Index) Search(ctx context.Context, vector []float32, limit int) ([]Match, error) {
	searchResult, err := ix.client.GetPointsClient().Search(ctx, &qdrant.SearchPoints{
		CollectionName: ix.collection,
		Vector:         vector,
		Limit:          uint64(limit * 4),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search failed: %w", err)
	}

	matches := make([]Match, 0, len(searchResult.Result))
	for _, point := range searchResult.Result {
		m := Match{Score: float64(point.Score)}
		if v, ok := point.Payload["note_id"]; ok {
			m.NoteID = v.GetIntegerValue()
		}
		if v, ok := point.Payload["chunk_index"]; ok {
			m.ChunkIndex = int(v.GetIntegerValue())
		}
		if v, ok := point.Payload["chunk_text"]; ok {
			m.ChunkText = v.GetStringValue()
		}
		matches = append(matches, m)
	}

	return bestPerNote(matches, limit), nil
}

// bestPerNote keeps each note's highest-scoring chunk and trims the
// list to limit. Ties order by note ID for stable output.
func bestPerNote(matches []Match, limit int) []Match {
	best := make(map[int64]Match, len(matches))
	for _, m := range matches {
		if cur, ok := best[m.NoteID]; !ok || m.Score > cur.Score {
			best[m.NoteID] = m
		}
	}

	out := make([]Match, 0, len(best))
	for _, m := range best {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].NoteID < out[j].NoteID
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Close shuts down the gRPC connection.
func (ix *Index) Close() error {
	return ix.client.Close()
}
