// Package search orchestrates the query-to-results pipeline: intent
// extraction, source aggregation, persistence, similarity ranking, and
// history recording. Only the first stage can fail a search; everything
// downstream degrades instead.
package search

import (
	"context"
	"log/slog"
	"time"

	"github.com/WessleyAI/carseek-mvp/engine/domain"
	"github.com/WessleyAI/carseek-mvp/pkg/fn"
	"github.com/WessleyAI/carseek-mvp/pkg/metrics"
)

// Analyzer extracts intent and embeds the query.
type Analyzer interface {
	Analyze(ctx context.Context, query string) (domain.Intent, []float32, error)
}

// Fetcher aggregates listings from external sources. It never fails.
type Fetcher interface {
	FetchAll(ctx context.Context, query string, intent domain.Intent) []domain.Listing
}

// Persister stores fetched listings, keeping only the successes.
type Persister interface {
	PersistAll(ctx context.Context, listings []domain.Listing) []domain.StoredListing
}

// Ranker turns the query embedding into ranked results.
type Ranker interface {
	Rank(ctx context.Context, embedding []float32, limit int) ([]domain.RankedResult, error)
}

// Recorder persists search history for authenticated users.
type Recorder interface {
	Record(ctx context.Context, userID int64, search domain.Search, results []domain.RankedResult) (int64, bool, error)
}

// Publisher announces completed searches. Optional.
type Publisher interface {
	SearchCompleted(ctx context.Context, e CompletedEvent)
}

// CompletedEvent is the payload published after a search finishes.
type CompletedEvent struct {
	SearchID    int64     `json:"search_id,omitempty"`
	UserID      int64     `json:"user_id"`
	Query       string    `json:"query"`
	ResultCount int       `json:"result_count"`
	Fallback    bool      `json:"fallback"`
	Duration    float64   `json:"duration_seconds"`
	CompletedAt time.Time `json:"completed_at"`
}

// State carries a search through the pipeline stages.
type State struct {
	Query          string
	UserID         int64
	Intent         domain.Intent
	QueryEmbedding []float32
	Fetched        []domain.Listing
	Stored         []domain.StoredListing
	Ranked         []domain.RankedResult
	SearchID       int64
	Recorded       bool
}

// Outcome is what a finished search returns to the transport layer.
type Outcome struct {
	Query    string                `json:"query"`
	Intent   domain.Intent         `json:"intent"`
	Results  []domain.RankedResult `json:"results"`
	SearchID int64                 `json:"search_id,omitempty"`
	Recorded bool                  `json:"recorded"`
}

// Options configures an Engine.
type Options struct {
	// Timeout bounds one whole search.
	Timeout time.Duration
	// ResultLimit is how many ranked results a search returns.
	ResultLimit int
}

// DefaultOptions returns the production pipeline settings.
func DefaultOptions() Options {
	return Options{
		Timeout:     120 * time.Second,
		ResultLimit: 15,
	}
}

// Engine runs the search pipeline.
type Engine struct {
	analyzer  Analyzer
	fetcher   Fetcher
	persister Persister
	ranker    Ranker
	recorder  Recorder
	publisher Publisher
	opts      Options
	logger    *slog.Logger

	searches  *metrics.Counter
	failures  *metrics.Counter
	durations *metrics.Histogram
}

// NewEngine creates an Engine. publisher, logger, and reg may be nil.
func NewEngine(analyzer Analyzer, fetcher Fetcher, persister Persister, ranker Ranker, recorder Recorder, publisher Publisher, opts Options, logger *slog.Logger, reg *metrics.Registry) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	if opts.ResultLimit <= 0 {
		opts.ResultLimit = DefaultOptions().ResultLimit
	}
	if reg == nil {
		reg = metrics.New()
	}
	return &Engine{
		analyzer:  analyzer,
		fetcher:   fetcher,
		persister: persister,
		ranker:    ranker,
		recorder:  recorder,
		publisher: publisher,
		opts:      opts,
		logger:    logger,
		searches:  reg.Counter("search_completed_total", "Searches that returned results"),
		failures:  reg.Counter("search_failed_total", "Searches rejected before producing results"),
		durations: reg.Histogram("search_duration_seconds", "End-to-end search latency", nil),
	}
}

// RunSearch executes the full pipeline for one query. userID 0 marks a
// guest: results are returned but nothing is recorded.
func (e *Engine) RunSearch(ctx context.Context, query string, userID int64) (*Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	start := time.Now()
	pipeline := fn.Pipeline(
		e.stage("extract", e.extract),
		e.stage("fetch", e.fetch),
		e.stage("persist", e.persist),
		e.stage("rank", e.rank),
		e.stage("record", e.record),
	)

	state, err := pipeline(ctx, State{Query: query, UserID: userID}).Unwrap()
	if err != nil {
		e.failures.Inc()
		return nil, err
	}

	e.searches.Inc()
	e.durations.Since(start)
	e.publish(ctx, state, time.Since(start))

	return &Outcome{
		Query:    state.Query,
		Intent:   state.Intent,
		Results:  state.Ranked,
		SearchID: state.SearchID,
		Recorded: state.Recorded,
	}, nil
}

// stage wraps a pipeline step with tracing and entry/exit logging.
func (e *Engine) stage(name string, f fn.Stage[State, State]) fn.Stage[State, State] {
	traced := fn.TracedStage("search."+name, f)
	return func(ctx context.Context, s State) fn.Result[State] {
		e.logger.Debug("stage enter", "stage", name)
		start := time.Now()
		r := traced(ctx, s)
		if _, err := r.Unwrap(); err != nil {
			e.logger.Warn("stage failed", "stage", name, "elapsed", time.Since(start), "error", err)
		} else {
			e.logger.Debug("stage done", "stage", name, "elapsed", time.Since(start))
		}
		return r
	}
}

func (e *Engine) extract(ctx context.Context, s State) fn.Result[State] {
	intent, embedding, err := e.analyzer.Analyze(ctx, s.Query)
	if err != nil {
		return fn.Err[State](err)
	}
	s.Intent = intent
	s.QueryEmbedding = embedding
	return fn.Ok(s)
}

func (e *Engine) fetch(ctx context.Context, s State) fn.Result[State] {
	s.Fetched = e.fetcher.FetchAll(ctx, s.Query, s.Intent)
	return fn.Ok(s)
}

func (e *Engine) persist(ctx context.Context, s State) fn.Result[State] {
	s.Stored = e.persister.PersistAll(ctx, s.Fetched)
	if len(s.Stored) < len(s.Fetched) {
		e.logger.Warn("some listings not persisted",
			"fetched", len(s.Fetched),
			"stored", len(s.Stored),
		)
	}
	return fn.Ok(s)
}

func (e *Engine) rank(ctx context.Context, s State) fn.Result[State] {
	ranked, err := e.ranker.Rank(ctx, s.QueryEmbedding, e.opts.ResultLimit)
	if err != nil {
		// Ranking trouble degrades to an empty result set rather than
		// failing a search that already produced durable listings.
		e.logger.Error("ranking failed", "error", err)
		s.Ranked = nil
		return fn.Ok(s)
	}
	s.Ranked = ranked
	return fn.Ok(s)
}

func (e *Engine) record(ctx context.Context, s State) fn.Result[State] {
	id, recorded, err := e.recorder.Record(ctx, s.UserID, domain.Search{
		UserID:         s.UserID,
		Query:          s.Query,
		Intent:         s.Intent,
		QueryEmbedding: s.QueryEmbedding,
	}, s.Ranked)
	if err != nil {
		// History is an enhancement. The user still gets their results.
		e.logger.Error("history recording failed", "user_id", s.UserID, "error", err)
		return fn.Ok(s)
	}
	s.SearchID = id
	s.Recorded = recorded
	return fn.Ok(s)
}

func (e *Engine) publish(ctx context.Context, s State, elapsed time.Duration) {
	if e.publisher == nil {
		return
	}
	e.publisher.SearchCompleted(ctx, CompletedEvent{
		SearchID:    s.SearchID,
		UserID:      s.UserID,
		Query:       s.Query,
		ResultCount: len(s.Ranked),
		Fallback:    isFallback(s.Fetched),
		Duration:    elapsed.Seconds(),
		CompletedAt: time.Now().UTC(),
	})
}

func isFallback(fetched []domain.Listing) bool {
	for _, l := range fetched {
		if l.Source != "generated" {
			return false
		}
	}
	return len(fetched) > 0
}
