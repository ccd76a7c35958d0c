package sources

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/WessleyAI/carseek-mvp/engine/domain"
	"github.com/WessleyAI/carseek-mvp/pkg/carspec"
)

// DefaultFallbackCount is how many listings the generator produces when no
// external source returned anything.
const DefaultFallbackCount = 15

var fallbackColors = []string{"White", "Black", "Silver", "Gray", "Blue", "Red", "Green"}

var fallbackFeatures = []string{
	"Backup Camera", "Bluetooth", "Apple CarPlay", "Android Auto",
	"Heated Seats", "Sunroof", "Navigation", "Adaptive Cruise Control",
	"Blind Spot Monitor", "Lane Keep Assist", "Leather Seats",
	"Premium Audio", "Keyless Entry", "Remote Start", "Third Row Seating",
}

var fallbackDealers = []string{
	"Summit Auto Group", "Riverside Motors", "Premier Auto Mall",
	"Lakeview Car Center", "Metro Auto Outlet", "Crossroads Motors",
}

var fallbackCities = []string{
	"Austin, TX", "Denver, CO", "Phoenix, AZ", "Seattle, WA",
	"Atlanta, GA", "Columbus, OH", "Charlotte, NC", "Portland, OR",
}

// FallbackGenerator synthesizes plausible listings from the carspec
// vocabulary, honoring whatever constraints the intent carries.
type FallbackGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewFallbackGenerator creates a generator with a non-deterministic seed.
func NewFallbackGenerator() *FallbackGenerator {
	return &FallbackGenerator{rng: rand.New(rand.NewSource(rand.Int63()))}
}

// NewSeededFallbackGenerator creates a generator with a fixed seed for
// reproducible output.
func NewSeededFallbackGenerator(seed int64) *FallbackGenerator {
	return &FallbackGenerator{rng: rand.New(rand.NewSource(seed))}
}

// Generate produces count synthetic listings. Brand, body type, fuel type,
// year, and price honor the intent when set; everything else is randomized
// from the carspec vocabulary.
func (g *FallbackGenerator) Generate(intent domain.Intent, count int) []domain.Listing {
	if count <= 0 {
		count = DefaultFallbackCount
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	listings := make([]domain.Listing, 0, count)
	for i := 0; i < count; i++ {
		listings = append(listings, g.one(intent, i))
	}
	return listings
}

func (g *FallbackGenerator) one(intent domain.Intent, i int) domain.Listing {
	makes := carspec.Makes()
	brand := makes[g.rng.Intn(len(makes))]
	if intent.Brand != nil {
		if canon, ok := carspec.CanonicalMake(*intent.Brand); ok {
			brand = canon
		} else {
			brand = *intent.Brand
		}
	}

	models := carspec.MakeModels[brand]
	model := fmt.Sprintf("Model %c", 'A'+g.rng.Intn(8))
	if len(models) > 0 {
		model = models[g.rng.Intn(len(models))]
	}
	if intent.Model != nil {
		model = *intent.Model
	}

	bodyType := carspec.BodyTypes[g.rng.Intn(len(carspec.BodyTypes))]
	if intent.BodyType != nil {
		if canon, ok := carspec.CanonicalBodyType(*intent.BodyType); ok {
			bodyType = canon
		} else {
			bodyType = *intent.BodyType
		}
	}

	fuelType := carspec.FuelTypes[g.rng.Intn(len(carspec.FuelTypes))]
	if intent.FuelType != nil {
		if canon, ok := carspec.CanonicalFuelType(*intent.FuelType); ok {
			fuelType = canon
		} else {
			fuelType = *intent.FuelType
		}
	}

	year := g.yearIn(intent)
	price := g.priceIn(intent)
	mileage := g.mileageIn(intent, year)

	features := g.pickFeatures(intent.DesiredFeatures)
	city := fallbackCities[g.rng.Intn(len(fallbackCities))]
	if intent.Location != nil && *intent.Location != "" {
		city = *intent.Location
	}

	return domain.Listing{
		Source:       "generated",
		URL:          fmt.Sprintf("https://listings.carseek.internal/generated/%d-%s-%s-%d", year, slug(brand), slug(model), i),
		Brand:        brand,
		Model:        model,
		Year:         year,
		Price:        carspec.FormatPrice(price),
		PriceNumeric: price,
		Mileage:      fmt.Sprintf("%d miles", mileage),
		MileageMiles: mileage,
		Location:     city,
		DealerName:   fallbackDealers[g.rng.Intn(len(fallbackDealers))],
		BodyType:     bodyType,
		FuelType:     fuelType,
		Transmission: "Automatic",
		Colors:       []string{fallbackColors[g.rng.Intn(len(fallbackColors))]},
		Features:     features,
		Description: fmt.Sprintf("%d %s %s %s in excellent condition. %s powertrain, %s miles. Includes %s.",
			year, brand, model, bodyType, fuelType, humanInt(mileage), strings.Join(features[:min(3, len(features))], ", ")),
	}
}

func (g *FallbackGenerator) yearIn(intent domain.Intent) int {
	lo, hi := 2016, time.Now().Year()
	if intent.MinYear != nil {
		lo = *intent.MinYear
	}
	if intent.MaxYear != nil {
		hi = *intent.MaxYear
		if intent.MinYear == nil && hi < lo {
			// The stated cap is below the default range; slide the
			// window down so the cap still holds.
			lo = hi - 9
		}
	}
	if hi < lo {
		hi = lo
	}
	return lo + g.rng.Intn(hi-lo+1)
}

func (g *FallbackGenerator) priceIn(intent domain.Intent) float64 {
	lo, hi := 18000.0, 65000.0
	if intent.MinPrice != nil {
		lo = *intent.MinPrice
	}
	if intent.MaxPrice != nil {
		hi = *intent.MaxPrice
		if intent.MinPrice == nil && hi < lo {
			lo = hi / 2
		}
	}
	if hi < lo {
		hi = lo
	}
	p := lo + g.rng.Float64()*(hi-lo)
	return float64(int(p/100)) * 100 // round to a plausible sticker price
}

func (g *FallbackGenerator) mileageIn(intent domain.Intent, year int) int {
	age := time.Now().Year() - year
	if age < 0 {
		age = 0
	}
	m := g.rng.Intn(12000*(age+1) + 1)
	if intent.MaxMileage != nil && m > *intent.MaxMileage {
		m = g.rng.Intn(*intent.MaxMileage + 1)
	}
	return m
}

// pickFeatures always includes the requested features, then pads with
// random extras up to six total.
func (g *FallbackGenerator) pickFeatures(desired []string) []string {
	features := make([]string, 0, 6)
	seen := make(map[string]bool)
	for _, f := range desired {
		if f == "" || seen[strings.ToLower(f)] {
			continue
		}
		seen[strings.ToLower(f)] = true
		features = append(features, f)
	}
	for len(features) < 6 {
		f := fallbackFeatures[g.rng.Intn(len(fallbackFeatures))]
		if seen[strings.ToLower(f)] {
			continue
		}
		seen[strings.ToLower(f)] = true
		features = append(features, f)
	}
	return features
}

func slug(s string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", "-"))
}

func humanInt(n int) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	return string(out)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
