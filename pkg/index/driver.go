package index

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noteum-io/noteum/pkg/config"
	"github.com/noteum-io/noteum/pkg/noteerr"
	"github.com/noteum-io/noteum/pkg/observability"
)

// Status is the driver lifecycle state.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusIndexing  Status = "indexing"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Progress is the singleton run state. Total counts the notes selected
// for this run; skipped notes count as indexed since they already have
// embeddings.
type Progress struct {
	Status       Status `json:"status"`
	Total        int    `json:"total"`
	Indexed      int    `json:"indexed"`
	Failed       int    `json:"failed"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Driver runs background re-indexing. Only one run proceeds at a time;
// a cancel flag stops between batches, never mid-batch.
type Driver struct {
	indexer *Indexer
	store   Store
	cfg     config.IndexConfig

	mu       sync.Mutex
	progress Progress
	canceled atomic.Bool
}

// NewDriver creates an idle driver.
func NewDriver(indexer *Indexer, store Store, cfg config.IndexConfig) *Driver {
	return &Driver{
		indexer:  indexer,
		store:    store,
		cfg:      cfg,
		progress: Progress{Status: StatusIdle},
	}
}

// Start launches a background run over all unindexed notes. Returns
// ConflictBusy while a run is in progress. The run detaches from the
// caller's context so a disconnecting client never kills it.
func (d *Driver) Start() error {
	d.mu.Lock()
	if d.progress.Status == StatusIndexing {
		d.mu.Unlock()
		return noteerr.New(noteerr.KindConflictBusy, "index run already in progress")
	}
	d.progress = Progress{Status: StatusIndexing}
	d.canceled.Store(false)
	d.mu.Unlock()

	go d.run(context.Background())
	return nil
}

// Cancel requests a stop after the current batch.
func (d *Driver) Cancel() {
	d.canceled.Store(true)
}

// Progress returns a snapshot of the run state.
func (d *Driver) Progress() Progress {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.progress
}

func (d *Driver) run(ctx context.Context) {
	ctx, span := observability.GetTracer("noteum.index").Start(ctx, observability.SpanIndexRun)
	defer span.End()

	ids, err := d.store.ListUnindexedNoteIDs(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		d.finish(StatusError, err.Error())
		return
	}

	d.mu.Lock()
	d.progress.Total = len(ids)
	d.mu.Unlock()

	slog.Info("index run started", "pending_notes", len(ids),
		"batch_size", d.cfg.BatchSize)

	for start := 0; start < len(ids); start += d.cfg.BatchSize {
		if d.canceled.Load() {
			slog.Info("index run canceled", "processed", start)
			break
		}

		end := start + d.cfg.BatchSize
		if end > len(ids) {
			end = len(ids)
		}

		res := d.indexer.IndexBatch(ctx, ids[start:end])

		d.mu.Lock()
		d.progress.Indexed += res.Indexed + res.Skipped
		d.progress.Failed += res.Failed
		d.mu.Unlock()

		observability.GetGlobalMetrics().RecordIndexBatch(ctx, res.Indexed+res.Skipped, res.Failed)

		if end < len(ids) {
			time.Sleep(d.cfg.BatchDelay)
		}
	}

	d.finish(StatusCompleted, "")

	p := d.Progress()
	span.SetAttributes(
		attribute.Int("index.total", p.Total),
		attribute.Int("index.indexed", p.Indexed),
		attribute.Int("index.failed", p.Failed),
	)
	span.SetStatus(codes.Ok, "")
	slog.Info("index run finished", "total", p.Total,
		"indexed", p.Indexed, "failed", p.Failed)
}

func (d *Driver) finish(status Status, errMsg string) {
	d.mu.Lock()
	d.progress.Status = status
	d.progress.ErrorMessage = errMsg
	d.mu.Unlock()
}
