// Package rank turns nearest-neighbor search results into presentable
// ranked listings.
package rank

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/WessleyAI/carseek-mvp/engine/domain"
)

// DefaultLimit is how many results a search returns when the caller does
// not ask for a specific count.
const DefaultLimit = 15

// NeighborSearcher finds the stored listings closest to a query embedding,
// best match first.
type NeighborSearcher interface {
	NearestNeighbors(ctx context.Context, embedding []float32, k int) ([]domain.StoredListing, error)
}

// Ranker scores and ranks listings by similarity to a query embedding.
type Ranker struct {
	searcher NeighborSearcher
	logger   *slog.Logger
}

// NewRanker creates a Ranker. logger may be nil.
func NewRanker(searcher NeighborSearcher, logger *slog.Logger) *Ranker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ranker{searcher: searcher, logger: logger}
}

// Rank returns up to limit listings ordered by similarity to embedding.
// Ranks are dense from 1; scores decay linearly with position and floor
// at 70 so every surfaced result still reads as a credible match.
func (r *Ranker) Rank(ctx context.Context, embedding []float32, limit int) ([]domain.RankedResult, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if err := domain.ValidateEmbedding(embedding); err != nil {
		return nil, fmt.Errorf("rank: %w", err)
	}

	neighbors, err := r.searcher.NearestNeighbors(ctx, embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("rank: nearest neighbors: %w", err)
	}
	if len(neighbors) > limit {
		neighbors = neighbors[:limit]
	}

	results := make([]domain.RankedResult, 0, len(neighbors))
	for i, n := range neighbors {
		results = append(results, domain.RankedResult{
			Listing:    n,
			MatchScore: MatchScore(i),
			Rank:       i + 1,
		})
	}
	r.logger.Debug("ranked results", "count", len(results), "limit", limit)
	return results, nil
}

// MatchScore converts a 0-based similarity position into a display score.
func MatchScore(position int) float64 {
	score := 98 - 3*float64(position)
	if score < 70 {
		return 70
	}
	return score
}
