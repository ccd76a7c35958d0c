package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/WessleyAI/carseek-mvp/engine/domain"
)

// PostgresRepo implements SearchRepo and ProfileRepo on Postgres.
type PostgresRepo struct {
	db *sql.DB
}

// NewPostgresRepo connects to Postgres and ensures the schema exists.
func NewPostgresRepo(dsn string) (*PostgresRepo, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open postgres: %w", err)
	}
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return NewPostgresRepoFromDB(db)
}

// NewPostgresRepoFromDB reuses an existing *sql.DB.
func NewPostgresRepoFromDB(db *sql.DB) (*PostgresRepo, error) {
	if db == nil {
		return nil, errors.New("history: db is required")
	}
	r := &PostgresRepo{db: db}
	if err := r.ensureSchema(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *PostgresRepo) ensureSchema() error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS searches (
  id              bigserial PRIMARY KEY,
  user_id         bigint NOT NULL,
  query           text NOT NULL,
  intent          jsonb NOT NULL DEFAULT '{}',
  query_embedding vector(%d),
  created_at      timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS searches_user_idx ON searches (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS search_results (
  id          bigserial PRIMARY KEY,
  search_id   bigint NOT NULL REFERENCES searches(id) ON DELETE CASCADE,
  car_id      bigint NOT NULL REFERENCES listings(id),
  match_score double precision NOT NULL,
  rank        integer NOT NULL
);
CREATE INDEX IF NOT EXISTS search_results_search_idx ON search_results (search_id, rank);

CREATE TABLE IF NOT EXISTS preference_profiles (
  user_id            bigint PRIMARY KEY,
  preferred_brands   text[] NOT NULL DEFAULT '{}',
  preferred_types    text[] NOT NULL DEFAULT '{}',
  price_range_min    double precision,
  price_range_max    double precision,
  preferred_features text[] NOT NULL DEFAULT '{}',
  updated_at         timestamptz NOT NULL DEFAULT now()
);
`, domain.EmbeddingDim)
	if _, err := r.db.Exec(ddl); err != nil {
		return fmt.Errorf("history: ensure schema: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (r *PostgresRepo) Close() error {
	return r.db.Close()
}

// InsertSearch writes the search row and its result snapshot in one
// transaction, ordered by rank.
func (r *PostgresRepo) InsertSearch(ctx context.Context, s domain.Search, results []domain.SearchResult) (int64, error) {
	intentBytes, err := json.Marshal(s.Intent)
	if err != nil {
		return 0, fmt.Errorf("history: marshal intent: %w", err)
	}
	var embLit any
	if len(s.QueryEmbedding) > 0 {
		lit, err := toVectorLiteral(s.QueryEmbedding, domain.EmbeddingDim)
		if err != nil {
			return 0, fmt.Errorf("history: %w", err)
		}
		embLit = lit
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var searchID int64
	err = tx.QueryRowContext(ctx, `
INSERT INTO searches (user_id, query, intent, query_embedding, created_at)
 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		s.UserID, s.Query, intentBytes, embLit, s.CreatedAt,
	).Scan(&searchID)
	if err != nil {
		return 0, err
	}

	ordered := make([]domain.SearchResult, len(results))
	copy(ordered, results)
	sortByRank(ordered)

	for _, res := range ordered {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO search_results (search_id, car_id, match_score, rank)
 VALUES ($1, $2, $3, $4)`,
			searchID, res.CarID, res.MatchScore, res.Rank,
		); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return searchID, nil
}

// RecentSearches returns a user's searches, newest first.
func (r *PostgresRepo) RecentSearches(ctx context.Context, userID int64, limit int) ([]domain.Search, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, user_id, query, intent, created_at
 FROM searches WHERE user_id = $1
 ORDER BY created_at DESC, id DESC LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Search
	for rows.Next() {
		var s domain.Search
		var intentBytes []byte
		if err := rows.Scan(&s.ID, &s.UserID, &s.Query, &intentBytes, &s.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(intentBytes, &s.Intent); err != nil {
			return nil, fmt.Errorf("history: unmarshal intent for search %d: %w", s.ID, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ResultsForSearch returns a search's snapshot rows ordered by rank.
func (r *PostgresRepo) ResultsForSearch(ctx context.Context, searchID int64) ([]domain.SearchResult, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, search_id, car_id, match_score, rank
 FROM search_results WHERE search_id = $1 ORDER BY rank ASC`,
		searchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SearchResult
	for rows.Next() {
		var res domain.SearchResult
		if err := rows.Scan(&res.ID, &res.SearchID, &res.CarID, &res.MatchScore, &res.Rank); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// Profile returns the user's preference profile.
func (r *PostgresRepo) Profile(ctx context.Context, userID int64) (domain.PreferenceProfile, error) {
	var p domain.PreferenceProfile
	err := r.db.QueryRowContext(ctx, `
SELECT user_id, preferred_brands, preferred_types, price_range_min, price_range_max, preferred_features, updated_at
 FROM preference_profiles WHERE user_id = $1`,
		userID,
	).Scan(&p.UserID, pq.Array(&p.PreferredBrands), pq.Array(&p.PreferredTypes),
		&p.PriceRangeMin, &p.PriceRangeMax, pq.Array(&p.PreferredFeatures), &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PreferenceProfile{}, fmt.Errorf("profile for user %d: %w", userID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.PreferenceProfile{}, err
	}
	return p, nil
}

// UpsertProfile writes the profile, replacing any existing row.
func (r *PostgresRepo) UpsertProfile(ctx context.Context, p domain.PreferenceProfile) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO preference_profiles
 (user_id, preferred_brands, preferred_types, price_range_min, price_range_max, preferred_features, updated_at)
 VALUES ($1, $2, $3, $4, $5, $6, $7)
 ON CONFLICT (user_id) DO UPDATE SET
   preferred_brands = EXCLUDED.preferred_brands,
   preferred_types = EXCLUDED.preferred_types,
   price_range_min = EXCLUDED.price_range_min,
   price_range_max = EXCLUDED.price_range_max,
   preferred_features = EXCLUDED.preferred_features,
   updated_at = EXCLUDED.updated_at`,
		p.UserID, pq.Array(p.PreferredBrands), pq.Array(p.PreferredTypes),
		p.PriceRangeMin, p.PriceRangeMax, pq.Array(p.PreferredFeatures), p.UpdatedAt)
	return err
}

func sortByRank(results []domain.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool { return results[i].Rank < results[j].Rank })
}

func toVectorLiteral(embedding []float32, dim int) (string, error) {
	if len(embedding) == 0 {
		return "", errors.New("embedding is required")
	}
	if dim > 0 && len(embedding) != dim {
		return "", fmt.Errorf("embedding length %d does not match dimension %d", len(embedding), dim)
	}
	parts := make([]string, len(embedding))
	for i, v := range embedding {
		parts[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return fmt.Sprintf("[%s]", strings.Join(parts, ",")), nil
}
