// Package domain defines core domain types, constants, and validation for the
// carseek engine pipeline. It acts as the validation gate at pipeline entry points.
package domain

import (
	"strings"
	"time"
)

// EmbeddingDim is the dimensionality of every embedding in the system.
// The listing table's vector column and the Qdrant collection are created
// with this size; embedders must produce vectors of exactly this length.
const EmbeddingDim = 1536

// Spec holds the performance block of a listing.
type Spec struct {
	AccelerationSec float64 `json:"acceleration_sec,omitempty"`
	TopSpeedMPH     int     `json:"top_speed_mph,omitempty"`
	PowerHP         int     `json:"power_hp,omitempty"`
	Engine          string  `json:"engine,omitempty"`
	MPG             float64 `json:"mpg,omitempty"`
}

// Listing is a candidate vehicle produced by a source adapter or the
// fallback generator, before persistence.
type Listing struct {
	Source       string   `json:"source"`
	URL          string   `json:"url"`
	VIN          string   `json:"vin,omitempty"`
	Brand        string   `json:"brand"`
	Model        string   `json:"model"`
	Year         int      `json:"year"`
	Price        string   `json:"price"` // display string, e.g. "$34,500"
	PriceNumeric float64  `json:"price_numeric,omitempty"`
	Mileage      string   `json:"mileage,omitempty"`
	MileageMiles int      `json:"mileage_miles,omitempty"`
	Location     string   `json:"location,omitempty"`
	DealerName   string   `json:"dealer_name,omitempty"`
	DealerPhone  string   `json:"dealer_phone,omitempty"`
	DealerAddr   string   `json:"dealer_addr,omitempty"`
	BodyType     string   `json:"body_type,omitempty"`
	FuelType     string   `json:"fuel_type,omitempty"`
	Transmission string   `json:"transmission,omitempty"`
	Colors       []string `json:"colors,omitempty"`
	Spec         Spec     `json:"spec,omitempty"`
	Features     []string `json:"features,omitempty"`
	Description  string   `json:"description,omitempty"`
	Images       []string `json:"images,omitempty"`
}

// StoredListing is a Listing that has been embedded and made durable.
// The embedding is write-once: a changed listing is a new record, never an
// in-place re-embed. Only Active may change after insertion.
type StoredListing struct {
	Listing
	ID        int64     `json:"id"`
	Embedding []float32 `json:"-"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Intent is the structured filter extracted from a free-text query.
// Pointer fields distinguish "unknown" from a zero value; extraction must
// never fabricate a field the query does not mention.
type Intent struct {
	Brand           *string  `json:"brand,omitempty"`
	Model           *string  `json:"model,omitempty"`
	BodyType        *string  `json:"body_type,omitempty"`
	FuelType        *string  `json:"fuel_type,omitempty"`
	MinPrice        *float64 `json:"min_price,omitempty"`
	MaxPrice        *float64 `json:"max_price,omitempty"`
	MinYear         *int     `json:"min_year,omitempty"`
	MaxYear         *int     `json:"max_year,omitempty"`
	MaxMileage      *int     `json:"max_mileage,omitempty"`
	Location        *string  `json:"location,omitempty"`
	DesiredFeatures []string `json:"desired_features,omitempty"`
}

// RankedResult pairs a stored listing with its presentation score and
// 1-based dense rank within one result set.
type RankedResult struct {
	Listing    StoredListing `json:"listing"`
	MatchScore float64       `json:"match_score"`
	Rank       int           `json:"rank"`
}

// Search is one recorded search for an authenticated user. Append-only:
// its result snapshot rows are written exactly once, in the same
// transaction that creates the search row.
type Search struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"user_id"`
	Query          string    `json:"query"`
	Intent         Intent    `json:"intent"`
	QueryEmbedding []float32 `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

// SearchResult is one snapshot row linking a search to a listing with the
// score and rank it held at search time.
type SearchResult struct {
	ID         int64   `json:"id"`
	SearchID   int64   `json:"search_id"`
	CarID      int64   `json:"car_id"`
	MatchScore float64 `json:"match_score"`
	Rank       int     `json:"rank"`
}

// Preference list caps. Folding drops the oldest entries past the cap.
const (
	MaxPreferredBrands = 10
	MaxPreferredTypes  = 5
)

// PreferenceProfile is the per-user long-lived preference record, the only
// entity with merge-based updates. Lists are most-recent-first and
// de-duplicated case-insensitively.
type PreferenceProfile struct {
	UserID            int64     `json:"user_id"`
	PreferredBrands   []string  `json:"preferred_brands"`
	PreferredTypes    []string  `json:"preferred_types"`
	PriceRangeMin     *float64  `json:"price_range_min,omitempty"`
	PriceRangeMax     *float64  `json:"price_range_max,omitempty"`
	PreferredFeatures []string  `json:"preferred_features,omitempty"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// FoldBrand moves or inserts a brand at the front of PreferredBrands,
// dropping the oldest entry beyond the cap. Matching is case-insensitive;
// an already-present brand is never duplicated.
func (p *PreferenceProfile) FoldBrand(brand string) {
	p.PreferredBrands = foldFront(p.PreferredBrands, brand, MaxPreferredBrands)
}

// FoldType is FoldBrand for body types.
func (p *PreferenceProfile) FoldType(bodyType string) {
	p.PreferredTypes = foldFront(p.PreferredTypes, bodyType, MaxPreferredTypes)
}

func foldFront(list []string, v string, cap_ int) []string {
	if v == "" {
		return list
	}
	out := make([]string, 0, len(list)+1)
	out = append(out, v)
	for _, existing := range list {
		if !strings.EqualFold(existing, v) {
			out = append(out, existing)
		}
	}
	if len(out) > cap_ {
		out = out[:cap_]
	}
	return out
}
