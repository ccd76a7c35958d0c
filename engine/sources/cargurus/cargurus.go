// Package cargurus fetches vehicle listings from the CarGurus inventory
// API.
package cargurus

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

const defaultBaseURL = "https://api.cargurus.com/inventory/v1/search"

// Config configures the CarGurus adapter.
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

// Adapter queries the CarGurus inventory API.
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

func (a *Adapter) Name() string { return "cargurus" }

// Fetch searches CarGurus for listings matching the intent.
func (a *Adapter) Fetch(ctx context.Context, query string, intent domain.Intent) ([]domain.Listing, error) {
	url := a.cfg.BaseURL + "?" + searchParams(query, intent, a.cfg.MaxResults).Encode()

	result := fn.Retry(ctx, fn.RetryOpts{
		MaxAttempts: 2,
		InitialWait: 500 * time.Millisecond,
		MaxWait:     2 * time.Second,
		Jitter:      true,
	}, func(ctx context.Context) fn.Result[*inventoryResponse] {
		return a.doGet(ctx, url)
	})

	resp, err := result.Unwrap()
	if err != nil {
		return nil, fmt.Errorf("cargurus: search: %w", err)
	}

	listings := make([]domain.Listing, 0, len(resp.Results))
	for _, e := range resp.Results {
		listings = append(listings, e.toListing())
	}
	return listings, nil
}

func searchParams(query string, intent domain.Intent, limit int) neturl.Values {
	v := neturl.Values{}
	v.Set("q", query)
	v.Set("maxResults", strconv.Itoa(limit))
	if intent.Brand != nil {
		v.Set("makeName", *intent.Brand)
	}
	if intent.Model != nil {
		v.Set("modelName", *intent.Model)
	}
	if intent.BodyType != nil {
		v.Set("bodyTypeGroup", *intent.BodyType)
	}
	if intent.FuelType != nil {
		v.Set("fuelType", *intent.FuelType)
	}
	if intent.MinPrice != nil {
		v.Set("priceMin", strconv.Itoa(int(*intent.MinPrice)))
	}
	if intent.MaxPrice != nil {
		v.Set("priceMax", strconv.Itoa(int(*intent.MaxPrice)))
	}
	if intent.MinYear != nil {
		v.Set("yearMin", strconv.Itoa(*intent.MinYear))
	}
	if intent.MaxYear != nil {
		v.Set("yearMax", strconv.Itoa(*intent.MaxYear))
	}
	if intent.MaxMileage != nil {
		v.Set("mileageMax", strconv.Itoa(*intent.MaxMileage))
	}
	if intent.Location != nil {
		v.Set("zipOrCity", *intent.Location)
	}
	return v
}

type inventoryResponse struct {
	TotalCount int              `json:"totalCount"`
	Results    []inventoryEntry `json:"results"`
}

type inventoryEntry struct {
	ListingID      int64    `json:"listingId"`
	VIN            string   `json:"vin"`
	MakeName       string   `json:"makeName"`
	ModelName      string   `json:"modelName"`
	Year           int      `json:"carYear"`
	Price          float64  `json:"price"`
	Mileage        int      `json:"mileage"`
	BodyType       string   `json:"bodyTypeName"`
	FuelType       string   `json:"localizedFuelType"`
	Transmission   string   `json:"localizedTransmission"`
	ExteriorColor  string   `json:"exteriorColorName"`
	Options        []string `json:"options"`
	SellerComments string   `json:"sellerComments"`
	VdpURL         string   `json:"vdpUrl"`
	Pictures       []string `json:"pictureUrls"`
	DealerName     string   `json:"serviceProviderName"`
	DealerPhone    string   `json:"phoneNumber"`
	DealerCity     string   `json:"sellerCity"`
	DealerRegion   string   `json:"sellerRegion"`
}

func (e inventoryEntry) toListing() domain.Listing {
	url := e.VdpURL
	if url == "" && e.ListingID != 0 {
		url = fmt.Sprintf("https://www.cargurus.com/Cars/link/%d", e.ListingID)
	}
	brand := e.MakeName
	if canon, ok := carspec.CanonicalMake(brand); ok {
		brand = canon
	}
	bodyType := e.BodyType
	if canon, ok := carspec.CanonicalBodyType(bodyType); ok {
		bodyType = canon
	}
	fuelType := e.FuelType
	if canon, ok := carspec.CanonicalFuelType(fuelType); ok {
		fuelType = canon
	}
	var colors []string
	if e.ExteriorColor != "" {
		colors = []string{e.ExteriorColor}
	}
	location := e.DealerCity
	if e.DealerRegion != "" {
		if location != "" {
			location += ", "
		}
		location += e.DealerRegion
	}
	return domain.Listing{
		Source:       "cargurus",
		URL:          url,
		VIN:          e.VIN,
		Brand:        brand,
		Model:        e.ModelName,
		Year:         e.Year,
		Price:        carspec.FormatPrice(e.Price),
		PriceNumeric: e.Price,
		Mileage:      fmt.Sprintf("%d miles", e.Mileage),
		MileageMiles: e.Mileage,
		Location:     location,
		DealerName:   e.DealerName,
		DealerPhone:  e.DealerPhone,
		BodyType:     bodyType,
		FuelType:     fuelType,
		Transmission: e.Transmission,
		Colors:       colors,
		Features:     e.Options,
		Description:  e.SellerComments,
		Images:       e.Pictures,
	}
}

func (a *Adapter) doGet(ctx context.Context, url string) fn.Result[*inventoryResponse] {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fn.Err[*inventoryResponse](err)
	}
	req.Header.Set("User-Agent", "carseek/1.0 (vehicle search)")
	if a.cfg.APIKey != "" {
		req.Header.Set("X-Api-Key", a.cfg.APIKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fn.Err[*inventoryResponse](err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return fn.Err[*inventoryResponse](fmt.Errorf("http %d from %s", resp.StatusCode, url))
	}
	if resp.StatusCode != http.StatusOK {
		return fn.Err[*inventoryResponse](fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fn.Err[*inventoryResponse](fmt.Errorf("read body: %w", err))
	}

	var ir inventoryResponse
	if err := json.Unmarshal(body, &ir); err != nil {
		return fn.Err[*inventoryResponse](fmt.Errorf("decode: %w", err))
	}
	return fn.Ok(&ir)
}
