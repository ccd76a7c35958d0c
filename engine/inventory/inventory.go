// Package inventory owns durable vehicle listings: relational rows in
// Postgres and a vector index in Qdrant, written together at persist time.
// Postgres is the source of truth; the index only accelerates similarity
// lookups and is always hydrated back through the rows.
package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/WessleyAI/carseek-mvp/engine/domain"
	"github.com/WessleyAI/carseek-mvp/pkg/fn"
)

// Embedder generates the listing embedding at persist time.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ListingRows is the relational side of the store.
type ListingRows interface {
	Insert(ctx context.Context, l domain.Listing, embedding []float32, contentText string) (domain.StoredListing, error)
	ByIDs(ctx context.Context, ids []int64) ([]domain.StoredListing, error)
	ByLocation(ctx context.Context, text string, k int) ([]domain.StoredListing, error)
	SetActive(ctx context.Context, id int64, active bool) error
}

// Hit is one vector index match.
type Hit struct {
	ListingID int64
	Score     float32
}

// VectorIndex is the similarity side of the store.
type VectorIndex interface {
	Upsert(ctx context.Context, pointID string, embedding []float32, listingID int64) error
	Search(ctx context.Context, embedding []float32, k int) ([]Hit, error)
}

// Options configures a Store.
type Options struct {
	// Workers bounds PersistAll concurrency.
	Workers int
	// EmbedRate throttles calls to the embedder across the whole batch.
	EmbedRate rate.Limit
	// EmbedBurst is the limiter burst size.
	EmbedBurst int
	// EmbedTimeout bounds one embedding call.
	EmbedTimeout time.Duration
}

// DefaultOptions returns the production store settings.
func DefaultOptions() Options {
	return Options{
		Workers:      4,
		EmbedRate:    rate.Limit(10),
		EmbedBurst:   4,
		EmbedTimeout: 30 * time.Second,
	}
}

// Store persists listings and serves similarity lookups over them.
type Store struct {
	rows     ListingRows
	index    VectorIndex
	embedder Embedder
	limiter  *rate.Limiter
	opts     Options
	logger   *slog.Logger
}

// NewStore creates a Store. logger may be nil.
func NewStore(rows ListingRows, index VectorIndex, embedder Embedder, opts Options, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultOptions().Workers
	}
	if opts.EmbedRate <= 0 {
		opts.EmbedRate = DefaultOptions().EmbedRate
	}
	if opts.EmbedBurst <= 0 {
		opts.EmbedBurst = DefaultOptions().EmbedBurst
	}
	if opts.EmbedTimeout <= 0 {
		opts.EmbedTimeout = DefaultOptions().EmbedTimeout
	}
	return &Store{
		rows:     rows,
		index:    index,
		embedder: embedder,
		limiter:  rate.NewLimiter(opts.EmbedRate, opts.EmbedBurst),
		opts:     opts,
		logger:   logger,
	}
}

// ContentText builds the canonical text that gets embedded for a listing.
// Field order is fixed so the same listing always embeds identically.
func ContentText(l domain.Listing) string {
	parts := make([]string, 0, 8)
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	add(l.Brand)
	add(l.Model)
	if l.Year > 0 {
		add(strconv.Itoa(l.Year))
	}
	add(l.BodyType)
	add(l.FuelType)
	add(strings.Join(l.Features, ", "))
	add(l.Description)
	return strings.Join(parts, ". ")
}

// PointID derives the deterministic vector index id for a stored listing.
func PointID(listingID int64) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("carseek-listing-%d", listingID))).String()
}

// Persist validates, embeds, and durably stores one listing. The embedding
// is computed once here and never rewritten.
func (s *Store) Persist(ctx context.Context, l domain.Listing) (domain.StoredListing, error) {
	if err := domain.ValidateListing(l); err != nil {
		return domain.StoredListing{}, fmt.Errorf("inventory: persist: %w", err)
	}

	content := ContentText(l)
	embedding, err := s.embed(ctx, content)
	if err != nil {
		return domain.StoredListing{}, fmt.Errorf("inventory: embed: %w", err)
	}

	stored, err := s.rows.Insert(ctx, l, embedding, content)
	if err != nil {
		return domain.StoredListing{}, fmt.Errorf("inventory: insert: %w", err)
	}

	if err := s.index.Upsert(ctx, PointID(stored.ID), embedding, stored.ID); err != nil {
		// The row is the source of truth. A missing point only hides the
		// listing from similarity search until the next reindex.
		s.logger.Warn("vector index upsert failed", "listing_id", stored.ID, "error", err)
	}
	return stored, nil
}

// PersistAll stores a batch with per-listing isolation: one bad listing
// never aborts the rest. Returns only the successes.
func (s *Store) PersistAll(ctx context.Context, listings []domain.Listing) []domain.StoredListing {
	results := fn.ParMapResult(listings, s.opts.Workers, func(l domain.Listing) fn.Result[domain.StoredListing] {
		stored, err := s.Persist(ctx, l)
		if err != nil {
			s.logger.Warn("listing not persisted",
				"source", l.Source,
				"url", l.URL,
				"error", err,
			)
		}
		return fn.FromPair(stored, err)
	})
	return fn.Successes(results)
}

// NearestNeighbors returns up to k active stored listings closest to
// embedding, best match first. Equal scores break toward the older row.
func (s *Store) NearestNeighbors(ctx context.Context, embedding []float32, k int) ([]domain.StoredListing, error) {
	if err := domain.ValidateEmbedding(embedding); err != nil {
		return nil, fmt.Errorf("inventory: search: %w", err)
	}
	if k <= 0 {
		k = 10
	}

	// Overfetch so rows that hydration drops (retired listings, index
	// strays) don't shrink the result below k.
	hits, err := s.index.Search(ctx, embedding, k*2)
	if err != nil {
		return nil, fmt.Errorf("inventory: index search: %w", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ListingID < hits[j].ListingID
	})

	ids := fn.Map(hits, func(h Hit) int64 { return h.ListingID })
	rows, err := s.rows.ByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("inventory: hydrate: %w", err)
	}
	byID := make(map[int64]domain.StoredListing, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}

	out := make([]domain.StoredListing, 0, k)
	for _, h := range hits {
		row, ok := byID[h.ListingID]
		if !ok || !row.Active || len(row.Embedding) == 0 {
			continue
		}
		out = append(out, row)
		if len(out) == k {
			break
		}
	}
	return out, nil
}

// FindByLocation returns up to k active listings whose location matches
// text, newest first.
func (s *Store) FindByLocation(ctx context.Context, text string, k int) ([]domain.StoredListing, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if k <= 0 {
		k = 10
	}
	rows, err := s.rows.ByLocation(ctx, text, k)
	if err != nil {
		return nil, fmt.Errorf("inventory: by location: %w", err)
	}
	return rows, nil
}

// SetActive flips the soft retirement flag on a stored listing.
func (s *Store) SetActive(ctx context.Context, id int64, active bool) error {
	if err := s.rows.SetActive(ctx, id, active); err != nil {
		return fmt.Errorf("inventory: set active: %w", err)
	}
	return nil
}

func (s *Store) embed(ctx context.Context, content string) ([]float32, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, s.opts.EmbedTimeout)
	defer cancel()

	embedding, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateEmbedding(embedding); err != nil {
		return nil, err
	}
	return embedding, nil
}
