// Package history records completed searches and folds them into per-user
// preference profiles. Search rows are append-only facts; the profile is
// the only merge-updated entity and is maintained best-effort.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/WessleyAI/carseek-mvp/engine/domain"
)

// GuestUserID marks an unauthenticated search. Nothing is ever recorded
// for guests.
const GuestUserID int64 = 0

// SearchRepo persists search rows and their result snapshots.
type SearchRepo interface {
	// InsertSearch writes the search row and its result rows atomically
	// and returns the new search id. Result rows must reference cars
	// that already exist.
	InsertSearch(ctx context.Context, s domain.Search, results []domain.SearchResult) (int64, error)
	// RecentSearches returns a user's searches, newest first.
	RecentSearches(ctx context.Context, userID int64, limit int) ([]domain.Search, error)
	// ResultsForSearch returns a search's snapshot rows ordered by rank.
	ResultsForSearch(ctx context.Context, searchID int64) ([]domain.SearchResult, error)
}

// ProfileRepo persists preference profiles.
type ProfileRepo interface {
	// Profile returns the user's profile, or domain.ErrNotFound if none
	// exists yet.
	Profile(ctx context.Context, userID int64) (domain.PreferenceProfile, error)
	// UpsertProfile writes the profile, replacing any existing row.
	UpsertProfile(ctx context.Context, p domain.PreferenceProfile) error
}

// Recorder writes search history and maintains preference profiles.
type Recorder struct {
	searches SearchRepo
	profiles ProfileRepo
	logger   *slog.Logger
	now      func() time.Time
}

// NewRecorder creates a Recorder. logger may be nil.
func NewRecorder(searches SearchRepo, profiles ProfileRepo, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{searches: searches, profiles: profiles, logger: logger, now: time.Now}
}

// Record persists one completed search for an authenticated user and
// returns the search id. Guests are skipped: recorded is false and no
// rows are written. The profile update after the search commit is
// best-effort; its failure never surfaces.
func (r *Recorder) Record(ctx context.Context, userID int64, search domain.Search, results []domain.RankedResult) (searchID int64, recorded bool, err error) {
	if userID == GuestUserID {
		return 0, false, nil
	}

	search.UserID = userID
	if search.CreatedAt.IsZero() {
		search.CreatedAt = r.now().UTC()
	}

	rows := make([]domain.SearchResult, 0, len(results))
	for _, res := range results {
		rows = append(rows, domain.SearchResult{
			CarID:      res.Listing.ID,
			MatchScore: res.MatchScore,
			Rank:       res.Rank,
		})
	}

	searchID, err = r.searches.InsertSearch(ctx, search, rows)
	if err != nil {
		return 0, false, fmt.Errorf("history: record search: %w", err)
	}

	if err := r.updateProfile(ctx, userID, search.Intent, results); err != nil {
		r.logger.Warn("preference profile update failed",
			"user_id", userID,
			"search_id", searchID,
			"error", err,
		)
	}
	return searchID, true, nil
}

// updateProfile folds the search's intent and results into the user's
// profile. Intent values fold first so explicit asks outrank what the
// results happened to contain.
func (r *Recorder) updateProfile(ctx context.Context, userID int64, intent domain.Intent, results []domain.RankedResult) error {
	p, err := r.profiles.Profile(ctx, userID)
	if err != nil {
		if !isNotFound(err) {
			return err
		}
		p = domain.PreferenceProfile{UserID: userID}
	}

	// Fold results first, then the intent, so the intent's values end up
	// at the front of the most-recent-first lists.
	for i := len(results) - 1; i >= 0; i-- {
		p.FoldBrand(results[i].Listing.Brand)
		p.FoldType(results[i].Listing.BodyType)
	}
	if intent.Brand != nil {
		p.FoldBrand(*intent.Brand)
	}
	if intent.BodyType != nil {
		p.FoldType(*intent.BodyType)
	}
	if intent.MinPrice != nil {
		p.PriceRangeMin = intent.MinPrice
	}
	if intent.MaxPrice != nil {
		p.PriceRangeMax = intent.MaxPrice
	}
	for _, f := range intent.DesiredFeatures {
		p.PreferredFeatures = appendIfAbsent(p.PreferredFeatures, f)
	}
	p.UpdatedAt = r.now().UTC()

	return r.profiles.UpsertProfile(ctx, p)
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}

func appendIfAbsent(list []string, v string) []string {
	if v == "" {
		return list
	}
	for _, have := range list {
		if strings.EqualFold(have, v) {
			return list
		}
	}
	return append(list, v)
}
