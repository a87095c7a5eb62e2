package notes

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/noteum-io/noteum/pkg/noteerr"
)

// Note is the canonical text record. ExternalID is immutable and
// unique; ID is the internal handle everything else references.
type Note struct {
	ID              int64
	ExternalID      string
	Title           string
	HTMLBody        string
	PlainBody       string
	Notebook        *string
	Tags            []string
	SourceCreatedAt *time.Time
	SourceUpdatedAt *time.Time
	SyncedAt        time.Time
}

// ExtractionStatus marks how far an attachment's text extraction got.
type ExtractionStatus string

const (
	ExtractionPending   ExtractionStatus = "pending"
	ExtractionCompleted ExtractionStatus = "completed"
	ExtractionEmpty     ExtractionStatus = "empty"
	ExtractionFailed    ExtractionStatus = "failed"
)

// AttachmentText is extracted text from a non-note artifact.
type AttachmentText struct {
	ID                int64
	NoteID            int64
	Filename          string
	MIMEType          string
	ExtractedText     string
	Status            ExtractionStatus
	VisionDescription *string
}

const noteColumns = `id, external_id, title, html_body, plain_body, notebook,
	tags, source_created_at, source_updated_at, synced_at`

func scanNote(row *sql.Row) (*Note, error) {
	var n Note
	err := row.Scan(&n.ID, &n.ExternalID, &n.Title, &n.HTMLBody, &n.PlainBody,
		&n.Notebook, pq.Array(&n.Tags), &n.SourceCreatedAt, &n.SourceUpdatedAt, &n.SyncedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, noteerr.New(noteerr.KindNotFound, "note not found")
		}
		return nil, err
	}
	return &n, nil
}

// GetNote fetches a note by internal handle.
func (s *Store) GetNote(ctx context.Context, id int64) (*Note, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE id = $1`, id)
	return scanNote(row)
}

// GetNoteByExternalID fetches a note by its immutable external ID.
func (s *Store) GetNoteByExternalID(ctx context.Context, externalID string) (*Note, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE external_id = $1`, externalID)
	return scanNote(row)
}

// UpsertNote inserts or updates by external ID and returns the internal
// handle. The external ID never changes once assigned.
func (s *Store) UpsertNote(ctx context.Context, n *Note) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO notes (external_id, title, html_body, plain_body, notebook,
			tags, source_created_at, source_updated_at, synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (external_id) DO UPDATE SET
			title = EXCLUDED.title,
			html_body = EXCLUDED.html_body,
			plain_body = EXCLUDED.plain_body,
			notebook = EXCLUDED.notebook,
			tags = EXCLUDED.tags,
			source_created_at = EXCLUDED.source_created_at,
			source_updated_at = EXCLUDED.source_updated_at,
			synced_at = now()
		RETURNING id`,
		n.ExternalID, n.Title, n.HTMLBody, n.PlainBody, n.Notebook,
		pq.Array(n.Tags), n.SourceCreatedAt, n.SourceUpdatedAt,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	n.ID = id
	return id, nil
}

// DeleteNote removes a note; embeddings and attachment texts cascade.
func (s *Store) DeleteNote(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return noteerr.New(noteerr.KindNotFound, "note not found")
	}
	return nil
}

// CountNotes reports the total number of notes.
func (s *Store) CountNotes(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notes`).Scan(&count)
	return count, err
}

// TitlesByID fetches titles for a set of notes. Missing IDs are simply
// absent from the result.
func (s *Store) TitlesByID(ctx context.Context, ids []int64) (map[int64]string, error) {
	if len(ids) == 0 {
		return map[int64]string{}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title FROM notes WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	titles := make(map[int64]string, len(ids))
	for rows.Next() {
		var id int64
		var title string
		if err := rows.Scan(&id, &title); err != nil {
			return nil, err
		}
		titles[id] = title
	}
	return titles, rows.Err()
}

// AttachmentTexts lists a note's extraction records in insert order.
func (s *Store) AttachmentTexts(ctx context.Context, noteID int64) ([]AttachmentText, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, note_id, filename, mime_type, extracted_text, status, vision_description
		FROM attachment_texts WHERE note_id = $1 ORDER BY id`, noteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var texts []AttachmentText
	for rows.Next() {
		var at AttachmentText
		if err := rows.Scan(&at.ID, &at.NoteID, &at.Filename, &at.MIMEType,
			&at.ExtractedText, &at.Status, &at.VisionDescription); err != nil {
			return nil, err
		}
		texts = append(texts, at)
	}
	return texts, rows.Err()
}

// SaveAttachmentText persists one extraction record.
func (s *Store) SaveAttachmentText(ctx context.Context, at *AttachmentText) error {
	return s.db.QueryRowContext(ctx, `
		INSERT INTO attachment_texts (note_id, filename, mime_type, extracted_text, status, vision_description)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		at.NoteID, at.Filename, at.MIMEType, at.ExtractedText, at.Status, at.VisionDescription,
	).Scan(&at.ID)
}
