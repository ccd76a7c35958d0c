package autotrader

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	neturl "net/url"
	"testing"

	"github.com/WessleyAI/carseek-mvp/engine/domain"
)

func TestFetch(t *testing.T) {
	var gotQuery neturl.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(searchResponse{
			Count: 1,
			Listings: []listingEntry{{
				ID:       "at-123",
				VIN:      "1HGBH41JXMN109186",
				Make:     "chevy",
				Model:    "Equinox EV",
				Year:     2024,
				Price:    41500,
				Mileage:  8200,
				BodyStyle: "crossover",
				FuelType: "ev",
				Trans:    "Automatic",
				Color:    "Blue",
				Features: []string{"Backup Camera", "Heated Seats"},
				Summary:  "One-owner electric crossover.",
			}},
		})
	}))
	defer srv.Close()

	brand := "Chevrolet"
	maxPrice := 45000.0
	a := New(Config{BaseURL: srv.URL})
	got, err := a.Fetch(context.Background(), "electric suv", domain.Intent{Brand: &brand, MaxPrice: &maxPrice})
	if err != nil {
		t.Fatalf("Fetch err = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d listings, want 1", len(got))
	}

	l := got[0]
	if l.Source != "autotrader" {
		t.Errorf("source = %q", l.Source)
	}
	if l.Brand != "Chevrolet" {
		t.Errorf("brand = %q, want canonical Chevrolet", l.Brand)
	}
	if l.BodyType != "SUV" {
		t.Errorf("body type = %q, want SUV", l.BodyType)
	}
	if l.FuelType != "Electric" {
		t.Errorf("fuel type = %q, want Electric", l.FuelType)
	}
	if l.Price != "$41,500" {
		t.Errorf("price = %q", l.Price)
	}
	if l.MileageMiles != 8200 {
		t.Errorf("mileage = %d", l.MileageMiles)
	}
	if l.URL == "" {
		t.Error("listing URL missing")
	}
	if err := domain.ValidateListing(l); err != nil {
		t.Errorf("mapped listing invalid: %v", err)
	}

	if gotQuery.Get("make") != "Chevrolet" {
		t.Errorf("make param = %q", gotQuery.Get("make"))
	}
	if gotQuery.Get("maxPrice") != "45000" {
		t.Errorf("maxPrice param = %q", gotQuery.Get("maxPrice"))
	}
	if gotQuery.Get("keywords") != "electric suv" {
		t.Errorf("keywords param = %q", gotQuery.Get("keywords"))
	}
}

func TestFetch_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream broken", http.StatusBadGateway)
	}))
	defer srv.Close()

	a := New(Config{BaseURL: srv.URL})
	if _, err := a.Fetch(context.Background(), "anything", domain.Intent{}); err == nil {
		t.Fatal("expected error on 502")
	}
}

func TestFetch_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	a := New(Config{BaseURL: srv.URL})
	if _, err := a.Fetch(context.Background(), "anything", domain.Intent{}); err == nil {
		t.Fatal("expected decode error")
	}
}
