package search

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/noteum-io/noteum/pkg/config"
	"github.com/noteum-io/noteum/pkg/embedding"
	"github.com/noteum-io/noteum/pkg/metrics"
	"github.com/noteum-io/noteum/pkg/notes"
	"github.com/noteum-io/noteum/pkg/noteerr"
	"github.com/noteum-io/noteum/pkg/observability"
	"github.com/noteum-io/noteum/pkg/query"
	"github.com/noteum-io/noteum/pkg/vector"
)

// Store is the note query surface the pipeline reads from.
type Store interface {
	SearchFTS(ctx context.Context, expression string, limit int) ([]notes.SearchHit, error)
	SearchTrigram(ctx context.Context, rawQuery string, limit int) ([]notes.SearchHit, error)
	SearchSemantic(ctx context.Context, vector []float32, limit int) ([]notes.SearchHit, error)
	TitlesByID(ctx context.Context, ids []int64) (map[int64]string, error)
}

// VectorIndex is the optional external chunk index.
type VectorIndex interface {
	Search(ctx context.Context, vector []float32, limit int) ([]vector.Match, error)
}

// Recorder persists search events. May be nil to disable recording.
type Recorder interface {
	RecordSearchEvent(ctx context.Context, ev *metrics.SearchEvent) (string, error)
}

// Request is one search call.
type Request struct {
	Query  string
	Type   Type
	Limit  int
	UserID string
}

// Response is the search payload returned to clients. EventID lets the
// client attach relevance feedback later.
type Response struct {
	Results    []Result `json:"results"`
	Query      string   `json:"query"`
	SearchType Type     `json:"search_type"`
	Total      int      `json:"total"`
	EventID    string   `json:"event_id,omitempty"`
}

// Service runs the retrieval pipeline. Engines share the analyzed
// query; the judge gates the embedding call in hybrid mode.
type Service struct {
	cfg      config.SearchConfig
	store    Store
	embedder embedding.Service
	vectors  VectorIndex
	events   Recorder
	judge    *Judge
	reranker *Reranker
}

// NewService wires the pipeline. vectors may be nil to use pgvector in
// the primary store; events may be nil to skip event recording.
func NewService(cfg config.SearchConfig, store Store, embedder embedding.Service, vectors VectorIndex, events Recorder) *Service {
	return &Service{
		cfg:      cfg,
		store:    store,
		embedder: embedder,
		vectors:  vectors,
		events:   events,
		judge:    NewJudge(cfg.Judge),
		reranker: NewReranker(cfg.Reranker),
	}
}

// Search validates the request, runs the requested strategy, and
// records a search event. Recording failures never fail the search.
func (s *Service) Search(ctx context.Context, req Request) (*Response, error) {
	started := time.Now()

	raw := strings.TrimSpace(req.Query)
	if raw == "" {
		return nil, noteerr.New(noteerr.KindInvalidInput, "query must not be empty")
	}

	limit := req.Limit
	if limit == 0 {
		limit = s.cfg.DefaultLimit
	}
	if limit < 1 || limit > s.cfg.MaxLimit {
		return nil, noteerr.Newf(noteerr.KindInvalidInput, "limit must be between 1 and %d", s.cfg.MaxLimit)
	}

	searchType := req.Type
	if searchType == "" {
		searchType = TypeHybrid
	}
	if !ValidType(searchType) {
		return nil, noteerr.Newf(noteerr.KindInvalidInput, "invalid search type %q", searchType)
	}

	ctx, span := observability.GetTracer("noteum.search").Start(ctx, observability.SpanSearch,
		trace.WithAttributes(attribute.String(observability.AttrSearchType, string(searchType))))
	defer span.End()

	analysis := query.Analyze(raw)

	var (
		results  []Result
		decision *Decision
		err      error
	)
	switch searchType {
	case TypeFTS:
		results, err = s.searchFTS(ctx, &analysis, limit)
	case TypeTrigram:
		results, err = s.searchTrigram(ctx, &analysis, limit)
	case TypeSemantic:
		results, err = s.searchSemantic(ctx, &analysis, limit)
	case TypeHybrid:
		results, decision, err = s.searchHybrid(ctx, &analysis, limit)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String(observability.AttrErrorType, string(noteerr.KindOf(err))))
		return nil, err
	}

	results = s.reranker.Rerank(ctx, analysis.Normalized, results)
	truncateSnippets(results, s.cfg.SnippetLength)
	if len(results) > limit {
		results = results[:limit]
	}

	eventID := s.recordEvent(ctx, req.UserID, raw, searchType, len(results), time.Since(started), decision)

	ranSemantic := searchType == TypeSemantic || (decision != nil && decision.RunSemantic)
	observability.GetGlobalMetrics().RecordSearch(ctx, string(searchType), time.Since(started), len(results), ranSemantic)
	span.SetAttributes(
		attribute.Int(observability.AttrSearchResults, len(results)),
		attribute.Bool("search.ran_semantic", ranSemantic),
	)
	span.SetStatus(codes.Ok, "")

	return &Response{
		Results:    results,
		Query:      raw,
		SearchType: searchType,
		Total:      len(results),
		EventID:    eventID,
	}, nil
}

// searchFTS runs the token-index engine. A query with no indexable
// expression (punctuation only) matches nothing.
func (s *Service) searchFTS(ctx context.Context, analysis *query.Analysis, limit int) ([]Result, error) {
	if analysis.Expression == "" {
		return []Result{}, nil
	}
	hits, err := s.store.SearchFTS(ctx, analysis.Expression, limit)
	if err != nil {
		return nil, err
	}
	return fromHits(hits, TypeFTS), nil
}

func (s *Service) searchTrigram(ctx context.Context, analysis *query.Analysis, limit int) ([]Result, error) {
	hits, err := s.store.SearchTrigram(ctx, analysis.Normalized, limit)
	if err != nil {
		return nil, err
	}
	return fromHits(hits, TypeTrigram), nil
}

// searchSemantic embeds the query and runs nearest-neighbor search.
// With the external index enabled, matches carry chunk text only and
// titles are hydrated from the relational store.
func (s *Service) searchSemantic(ctx context.Context, analysis *query.Analysis, limit int) ([]Result, error) {
	vec, err := s.embedder.Embed(ctx, analysis.Normalized)
	if err != nil {
		return nil, err
	}
	if vec == nil {
		return []Result{}, nil
	}

	if s.vectors == nil {
		hits, err := s.store.SearchSemantic(ctx, vec, limit)
		if err != nil {
			return nil, err
		}
		return fromHits(hits, TypeSemantic), nil
	}

	matches, err := s.vectors.Search(ctx, vec, limit)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, len(matches))
	for i, m := range matches {
		ids[i] = m.NoteID
	}
	titles, err := s.store.TitlesByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(matches))
	for i, m := range matches {
		results[i] = Result{
			NoteID:     m.NoteID,
			Title:      titles[m.NoteID],
			Snippet:    m.ChunkText,
			Score:      m.Score,
			SearchType: TypeSemantic,
		}
	}
	return results, nil
}

// searchHybrid is the adaptive pipeline: FTS first, then the judge
// decides whether the embedding call is worth it. The trigram engine
// fills in when FTS finds nothing; it runs concurrently with semantic.
func (s *Service) searchHybrid(ctx context.Context, analysis *query.Analysis, limit int) ([]Result, *Decision, error) {
	var ftsHits []notes.SearchHit
	if analysis.Expression != "" {
		var err error
		ftsHits, err = s.store.SearchFTS(ctx, analysis.Expression, limit)
		if err != nil {
			return nil, nil, err
		}
	}

	decision := s.judge.Decide(analysis, ftsHits)
	slog.Debug("search judge decision",
		"run_semantic", decision.RunSemantic,
		"reason", decision.Reason,
		"confidence", decision.Confidence,
		"fts_count", decision.FTSCount,
		"coverage", decision.Coverage)

	var trigram, semantic []Result
	g, gctx := errgroup.WithContext(ctx)
	if len(ftsHits) == 0 {
		g.Go(func() error {
			res, err := s.searchTrigram(gctx, analysis, limit)
			if err != nil {
				return err
			}
			trigram = res
			return nil
		})
	}
	if decision.RunSemantic {
		g.Go(func() error {
			res, err := s.searchSemantic(gctx, analysis, limit)
			if err != nil {
				return err
			}
			semantic = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	keyword := fromHits(ftsHits, TypeFTS)
	if len(keyword) == 0 {
		keyword = trigram
	}

	lists := make([][]Result, 0, 2)
	if len(keyword) > 0 {
		lists = append(lists, keyword)
	}
	if len(semantic) > 0 {
		lists = append(lists, semantic)
	}

	switch len(lists) {
	case 0:
		return []Result{}, &decision, nil
	case 1:
		return lists[0], &decision, nil
	default:
		return fuseRRF(s.cfg.Fusion.K, lists...), &decision, nil
	}
}

// recordEvent persists the search event. The event ID is generated
// here so the response can reference it even if the write fails.
func (s *Service) recordEvent(ctx context.Context, userID, rawQuery string, searchType Type, resultCount int, latency time.Duration, decision *Decision) string {
	if s.events == nil {
		return ""
	}

	ev := &metrics.SearchEvent{
		EventID:     uuid.NewString(),
		UserID:      userID,
		Query:       rawQuery,
		SearchType:  string(searchType),
		ResultCount: resultCount,
		LatencyMS:   latency.Milliseconds(),
	}
	if decision != nil {
		ran := decision.RunSemantic
		conf := decision.Confidence
		ev.RanSemantic = &ran
		ev.JudgeReason = decision.Reason
		ev.JudgeConfidence = &conf
	}

	if _, err := s.events.RecordSearchEvent(ctx, ev); err != nil {
		slog.Warn("failed to record search event", "error", err)
		return ""
	}
	return ev.EventID
}
