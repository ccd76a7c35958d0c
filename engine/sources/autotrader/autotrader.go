// Package autotrader fetches vehicle listings from the Autotrader search
// API.
package autotrader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strconv"
	"time"

	"github.com/WessleyAI/carseek-mvp/engine/domain"
	"github.com/WessleyAI/carseek-mvp/pkg/carspec"
	"github.com/WessleyAI/carseek-mvp/pkg/fn"
)

const defaultBaseURL = "https://api.autotrader.com/v2/listings"

// Config configures the Autotrader adapter.
type Config struct {
	BaseURL    string
	APIKey     string
	MaxResults int
	Timeout    time.Duration
}

// DefaultConfig returns the production adapter settings.
func DefaultConfig() Config {
	return Config{
		BaseURL:    defaultBaseURL,
		MaxResults: 25,
		Timeout:    8 * time.Second,
	}
}

// Adapter queries the Autotrader listings API.
type Adapter struct {
	cfg    Config
	client *http.Client
}

// New creates an Adapter with the given config.
func New(cfg Config) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultConfig().MaxResults
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	return &Adapter{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (a *Adapter) Name() string { return "autotrader" }

// Fetch searches Autotrader for listings matching the intent. The free-text
// query is passed through as a keyword parameter for fields the intent does
// not capture.
func (a *Adapter) Fetch(ctx context.Context, query string, intent domain.Intent) ([]domain.Listing, error) {
	url := a.cfg.BaseURL + "?" + searchParams(query, intent, a.cfg.MaxResults).Encode()

	result := fn.Retry(ctx, fn.RetryOpts{
		MaxAttempts: 2,
		InitialWait: 500 * time.Millisecond,
		MaxWait:     2 * time.Second,
		Jitter:      true,
	}, func(ctx context.Context) fn.Result[*searchResponse] {
		return a.doGet(ctx, url)
	})

	resp, err := result.Unwrap()
	if err != nil {
		return nil, fmt.Errorf("autotrader: search: %w", err)
	}

	listings := make([]domain.Listing, 0, len(resp.Listings))
	for _, e := range resp.Listings {
		listings = append(listings, e.toListing())
	}
	return listings, nil
}

func searchParams(query string, intent domain.Intent, limit int) neturl.Values {
	v := neturl.Values{}
	v.Set("keywords", query)
	v.Set("limit", strconv.Itoa(limit))
	if intent.Brand != nil {
		v.Set("make", *intent.Brand)
	}
	if intent.Model != nil {
		v.Set("model", *intent.Model)
	}
	if intent.BodyType != nil {
		v.Set("bodyStyle", *intent.BodyType)
	}
	if intent.FuelType != nil {
		v.Set("fuelType", *intent.FuelType)
	}
	if intent.MinPrice != nil {
		v.Set("minPrice", strconv.Itoa(int(*intent.MinPrice)))
	}
	if intent.MaxPrice != nil {
		v.Set("maxPrice", strconv.Itoa(int(*intent.MaxPrice)))
	}
	if intent.MinYear != nil {
		v.Set("startYear", strconv.Itoa(*intent.MinYear))
	}
	if intent.MaxYear != nil {
		v.Set("endYear", strconv.Itoa(*intent.MaxYear))
	}
	if intent.MaxMileage != nil {
		v.Set("maxMileage", strconv.Itoa(*intent.MaxMileage))
	}
	if intent.Location != nil {
		v.Set("location", *intent.Location)
	}
	return v
}

type searchResponse struct {
	Count    int            `json:"count"`
	Listings []listingEntry `json:"listings"`
}

type listingEntry struct {
	ID         string   `json:"id"`
	VIN        string   `json:"vin"`
	Make       string   `json:"make"`
	Model      string   `json:"model"`
	Year       int      `json:"year"`
	Price      float64  `json:"price"`
	Mileage    int      `json:"mileage"`
	BodyStyle  string   `json:"bodyStyle"`
	FuelType   string   `json:"fuelType"`
	Trans      string   `json:"transmission"`
	Color      string   `json:"exteriorColor"`
	Features   []string `json:"features"`
	Summary    string   `json:"description"`
	ListingURL string   `json:"listingUrl"`
	Images     []string `json:"imageUrls"`
	Dealer     struct {
		Name    string `json:"name"`
		Phone   string `json:"phone"`
		Address string `json:"address"`
		City    string `json:"city"`
		State   string `json:"state"`
	} `json:"dealer"`
}

func (e listingEntry) toListing() domain.Listing {
	url := e.ListingURL
	if url == "" && e.ID != "" {
		url = "https://www.autotrader.com/cars-for-sale/vehicle/" + e.ID
	}
	brand := e.Make
	if canon, ok := carspec.CanonicalMake(brand); ok {
		brand = canon
	}
	bodyType := e.BodyStyle
	if canon, ok := carspec.CanonicalBodyType(bodyType); ok {
		bodyType = canon
	}
	fuelType := e.FuelType
	if canon, ok := carspec.CanonicalFuelType(fuelType); ok {
		fuelType = canon
	}
	var colors []string
	if e.Color != "" {
		colors = []string{e.Color}
	}
	location := e.Dealer.City
	if e.Dealer.State != "" {
		if location != "" {
			location += ", "
		}
		location += e.Dealer.State
	}
	return domain.Listing{
		Source:       "autotrader",
		URL:          url,
		VIN:          e.VIN,
		Brand:        brand,
		Model:        e.Model,
		Year:         e.Year,
		Price:        carspec.FormatPrice(e.Price),
		PriceNumeric: e.Price,
		Mileage:      fmt.Sprintf("%d miles", e.Mileage),
		MileageMiles: e.Mileage,
		Location:     location,
		DealerName:   e.Dealer.Name,
		DealerPhone:  e.Dealer.Phone,
		DealerAddr:   e.Dealer.Address,
		BodyType:     bodyType,
		FuelType:     fuelType,
		Transmission: e.Trans,
		Colors:       colors,
		Features:     e.Features,
		Description:  e.Summary,
		Images:       e.Images,
	}
}

func (a *Adapter) doGet(ctx context.Context, url string) fn.Result[*searchResponse] {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fn.Err[*searchResponse](err)
	}
	req.Header.Set("User-Agent", "carseek/1.0 (vehicle search)")
	if a.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fn.Err[*searchResponse](err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return fn.Err[*searchResponse](fmt.Errorf("http %d from %s", resp.StatusCode, url))
	}
	if resp.StatusCode != http.StatusOK {
		return fn.Err[*searchResponse](fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fn.Err[*searchResponse](fmt.Errorf("read body: %w", err))
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return fn.Err[*searchResponse](fmt.Errorf("decode: %w", err))
	}
	return fn.Ok(&sr)
}
