package inventory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/WessleyAI/carseek-mvp/engine/domain"
)

// PostgresRows implements ListingRows on Postgres with the pgvector
// extension. Listing rows are append-only; only the active flag mutates.
type PostgresRows struct {
	db *sql.DB
}

// NewPostgresRows connects to Postgres and ensures the schema exists.
func NewPostgresRows(dsn string) (*PostgresRows, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("inventory: open postgres: %w", err)
	}
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return NewPostgresRowsFromDB(db)
}

// NewPostgresRowsFromDB reuses an existing *sql.DB.
func NewPostgresRowsFromDB(db *sql.DB) (*PostgresRows, error) {
	if db == nil {
		return nil, errors.New("inventory: db is required")
	}
	p := &PostgresRows{db: db}
	if err := p.ensureSchema(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *PostgresRows) ensureSchema() error {
	ddl := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS listings (
  id            bigserial PRIMARY KEY,
  source        text NOT NULL,
  url           text NOT NULL,
  vin           text,
  brand         text NOT NULL DEFAULT '',
  model         text NOT NULL DEFAULT '',
  year          integer,
  price         text,
  price_numeric double precision,
  mileage       text,
  mileage_miles integer,
  location      text,
  dealer_name   text,
  dealer_phone  text,
  dealer_addr   text,
  body_type     text,
  fuel_type     text,
  transmission  text,
  colors        text[],
  spec          jsonb,
  features      text[],
  description   text,
  images        text[],
  content_text  text NOT NULL,
  embedding     vector(%d),
  active        boolean NOT NULL DEFAULT true,
  created_at    timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS listings_vin_idx ON listings (vin) WHERE vin IS NOT NULL;
CREATE INDEX IF NOT EXISTS listings_location_idx ON listings (location);
CREATE INDEX IF NOT EXISTS listings_embedding_idx ON listings USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);
`, domain.EmbeddingDim)
	if _, err := p.db.Exec(ddl); err != nil {
		return fmt.Errorf("inventory: ensure schema: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (p *PostgresRows) Close() error {
	return p.db.Close()
}

const listingColumns = `id, source, url, COALESCE(vin, ''), brand, model, COALESCE(year, 0),
 COALESCE(price, ''), COALESCE(price_numeric, 0), COALESCE(mileage, ''), COALESCE(mileage_miles, 0),
 COALESCE(location, ''), COALESCE(dealer_name, ''), COALESCE(dealer_phone, ''), COALESCE(dealer_addr, ''),
 COALESCE(body_type, ''), COALESCE(fuel_type, ''), COALESCE(transmission, ''),
 colors, spec, features, COALESCE(description, ''), images,
 COALESCE(embedding::text, ''), active, created_at`

// Insert writes one listing row with its embedding and returns the stored
// form. The embedding is written here and never updated.
func (p *PostgresRows) Insert(ctx context.Context, l domain.Listing, embedding []float32, contentText string) (domain.StoredListing, error) {
	embLit, err := toVectorLiteral(embedding, domain.EmbeddingDim)
	if err != nil {
		return domain.StoredListing{}, err
	}
	specBytes, err := json.Marshal(l.Spec)
	if err != nil {
		return domain.StoredListing{}, fmt.Errorf("marshal spec: %w", err)
	}

	var id int64
	var createdAt time.Time
	err = p.db.QueryRowContext(ctx, `
INSERT INTO listings
 (source, url, vin, brand, model, year, price, price_numeric, mileage, mileage_miles,
  location, dealer_name, dealer_phone, dealer_addr, body_type, fuel_type, transmission,
  colors, spec, features, description, images, content_text, embedding)
 VALUES ($1,$2,NULLIF($3,''),$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)
 RETURNING id, created_at`,
		l.Source, l.URL, l.VIN, l.Brand, l.Model, l.Year, l.Price, l.PriceNumeric,
		l.Mileage, l.MileageMiles, l.Location, l.DealerName, l.DealerPhone, l.DealerAddr,
		l.BodyType, l.FuelType, l.Transmission,
		pq.Array(l.Colors), specBytes, pq.Array(l.Features), l.Description, pq.Array(l.Images),
		contentText, embLit,
	).Scan(&id, &createdAt)
	if err != nil {
		return domain.StoredListing{}, err
	}

	return domain.StoredListing{
		Listing:   l,
		ID:        id,
		Embedding: embedding,
		Active:    true,
		CreatedAt: createdAt,
	}, nil
}

// ByIDs fetches stored listings by id. Missing ids are simply absent from
// the result; callers decide what to do about them.
func (p *PostgresRows) ByIDs(ctx context.Context, ids []int64) ([]domain.StoredListing, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = ANY($1) ORDER BY id ASC`,
		pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanListings(rows)
}

// ByLocation returns active listings whose location matches text,
// case-insensitively, newest first.
func (p *PostgresRows) ByLocation(ctx context.Context, text string, k int) ([]domain.StoredListing, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+listingColumns+` FROM listings
		 WHERE active AND location ILIKE '%' || $1 || '%'
		 ORDER BY created_at DESC, id DESC LIMIT $2`,
		text, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanListings(rows)
}

// SetActive flips a listing's soft retirement flag.
func (p *PostgresRows) SetActive(ctx context.Context, id int64, active bool) error {
	res, err := p.db.ExecContext(ctx, `UPDATE listings SET active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("listing %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

func scanListings(rows *sql.Rows) ([]domain.StoredListing, error) {
	var out []domain.StoredListing
	for rows.Next() {
		var s domain.StoredListing
		var specBytes []byte
		var embText string
		err := rows.Scan(
			&s.ID, &s.Source, &s.URL, &s.VIN, &s.Brand, &s.Model, &s.Year,
			&s.Price, &s.PriceNumeric, &s.Mileage, &s.MileageMiles,
			&s.Location, &s.DealerName, &s.DealerPhone, &s.DealerAddr,
			&s.BodyType, &s.FuelType, &s.Transmission,
			pq.Array(&s.Colors), &specBytes, pq.Array(&s.Features), &s.Description, pq.Array(&s.Images),
			&embText, &s.Active, &s.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		if len(specBytes) > 0 {
			if err := json.Unmarshal(specBytes, &s.Spec); err != nil {
				return nil, fmt.Errorf("unmarshal spec for listing %d: %w", s.ID, err)
			}
		}
		if embText != "" {
			s.Embedding, err = fromVectorLiteral(embText)
			if err != nil {
				return nil, fmt.Errorf("parse embedding for listing %d: %w", s.ID, err)
			}
		}
		out = append(out, s)
	}
	return out, rows.Err()
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

func fromVectorLiteral(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return nil, fmt.Errorf("malformed vector literal %q", abbrev(s))
	}
	parts := strings.Split(s[1:len(s)-1], ",")
	out := make([]float32, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, err
		}
		out[i] = float32(v)
	}
	return out, nil
}

func abbrev(s string) string {
	if len(s) > 24 {
		return s[:24] + "..."
	}
	return s
}
