// Package carspec holds the vehicle vocabulary shared across the engine:
// canonical make names with alias resolution, models per make, body and
// fuel types, and parsing helpers for price/mileage display strings.
// No external dependencies.
package carspec

import (
	"regexp"
	"strconv"
	"strings"
)

// makeAliases maps abbreviations/nicknames to canonical make names.
var makeAliases = map[string]string{
	"chevy":         "Chevrolet",
	"chevrolet":     "Chevrolet",
	"merc":          "Mercedes-Benz",
	"benz":          "Mercedes-Benz",
	"mercedes":      "Mercedes-Benz",
	"mercedes-benz": "Mercedes-Benz",
	"vw":            "Volkswagen",
	"volkswagen":    "Volkswagen",
	"toyota":        "Toyota",
	"honda":         "Honda",
	"ford":          "Ford",
	"bmw":           "BMW",
	"audi":          "Audi",
	"nissan":        "Nissan",
	"hyundai":       "Hyundai",
	"kia":           "Kia",
	"subaru":        "Subaru",
	"mazda":         "Mazda",
	"jeep":          "Jeep",
	"ram":           "Ram",
	"gmc":           "GMC",
	"dodge":         "Dodge",
	"lexus":         "Lexus",
	"acura":         "Acura",
	"tesla":         "Tesla",
	"porsche":       "Porsche",
	"volvo":         "Volvo",
	"cadillac":      "Cadillac",
	"lincoln":       "Lincoln",
	"infiniti":      "Infiniti",
	"genesis":       "Genesis",
	"mitsubishi":    "Mitsubishi",
	"chrysler":      "Chrysler",
	"land rover":    "Land Rover",
	"jaguar":        "Jaguar",
	"fiat":          "Fiat",
	"mini":          "Mini",
	"rivian":        "Rivian",
	"lucid":         "Lucid",
	"polestar":      "Polestar",
}

// MakeModels maps canonical make to known models.
var MakeModels = map[string][]string{
	"Toyota":        {"Camry", "Corolla", "RAV4", "Highlander", "Tacoma", "Tundra", "Prius", "4Runner", "Sienna", "Supra"},
	"Honda":         {"Civic", "Accord", "CR-V", "Pilot", "Odyssey", "HR-V", "Ridgeline", "Passport"},
	"Ford":          {"F-150", "Mustang", "Explorer", "Escape", "Ranger", "Bronco", "Edge", "Expedition", "Maverick"},
	"Chevrolet":     {"Silverado", "Equinox", "Malibu", "Tahoe", "Suburban", "Camaro", "Colorado", "Traverse", "Bolt"},
	"BMW":           {"3 Series", "5 Series", "X3", "X5", "X1", "M3", "i4", "iX"},
	"Mercedes-Benz": {"C-Class", "E-Class", "S-Class", "GLC", "GLE", "CLA", "EQS", "EQE"},
	"Audi":          {"A4", "A6", "Q5", "Q7", "Q3", "A5", "Q8", "e-tron"},
	"Nissan":        {"Altima", "Sentra", "Rogue", "Pathfinder", "Frontier", "Murano", "Leaf", "Ariya"},
	"Hyundai":       {"Elantra", "Sonata", "Tucson", "Santa Fe", "Kona", "Palisade", "Ioniq 5", "Ioniq 6"},
	"Kia":           {"Forte", "K5", "Sportage", "Telluride", "Sorento", "EV6", "EV9", "Niro"},
	"Volkswagen":    {"Golf", "Jetta", "Tiguan", "Atlas", "Taos", "ID.4", "GTI"},
	"Subaru":        {"Outback", "Forester", "Crosstrek", "Impreza", "WRX", "Ascent", "Solterra"},
	"Mazda":         {"Mazda3", "CX-5", "CX-9", "CX-30", "CX-50", "MX-5"},
	"Jeep":          {"Wrangler", "Grand Cherokee", "Cherokee", "Compass", "Gladiator"},
	"Ram":           {"1500", "2500", "3500"},
	"GMC":           {"Sierra", "Terrain", "Acadia", "Yukon", "Hummer EV"},
	"Dodge":         {"Charger", "Challenger", "Durango", "Hornet"},
	"Lexus":         {"RX", "ES", "NX", "IS", "GX", "UX"},
	"Acura":         {"TLX", "MDX", "RDX", "Integra"},
	"Tesla":         {"Model 3", "Model Y", "Model S", "Model X", "Cybertruck"},
	"Porsche":       {"911", "Cayenne", "Macan", "Taycan", "Panamera"},
	"Volvo":         {"XC90", "XC60", "XC40", "S60", "EX90"},
	"Rivian":        {"R1T", "R1S"},
	"Lucid":         {"Air"},
	"Polestar":      {"Polestar 2", "Polestar 3"},
}

// BodyTypes is the canonical body-type vocabulary.
var BodyTypes = []string{"Sedan", "SUV", "Truck", "Coupe", "Hatchback", "Convertible", "Wagon", "Minivan"}

// FuelTypes is the canonical fuel-type vocabulary.
var FuelTypes = []string{"Gasoline", "Diesel", "Hybrid", "Plug-in Hybrid", "Electric"}

// bodyTypeAliases maps lowercase synonyms to canonical body types.
var bodyTypeAliases = map[string]string{
	"sedan": "Sedan", "saloon": "Sedan",
	"suv": "SUV", "crossover": "SUV", "sport utility": "SUV", "sport utility vehicle": "SUV",
	"truck": "Truck", "pickup": "Truck", "pickup truck": "Truck",
	"coupe": "Coupe", "coupé": "Coupe",
	"hatchback": "Hatchback", "hatch": "Hatchback",
	"convertible": "Convertible", "cabriolet": "Convertible",
	"wagon": "Wagon", "estate": "Wagon",
	"minivan": "Minivan", "van": "Minivan",
}

// fuelTypeAliases maps lowercase synonyms to canonical fuel types.
var fuelTypeAliases = map[string]string{
	"gas": "Gasoline", "gasoline": "Gasoline", "petrol": "Gasoline",
	"diesel": "Diesel",
	"hybrid": "Hybrid", "hev": "Hybrid",
	"plug-in hybrid": "Plug-in Hybrid", "plugin hybrid": "Plug-in Hybrid", "phev": "Plug-in Hybrid",
	"electric": "Electric", "ev": "Electric", "bev": "Electric", "battery electric": "Electric",
}

// CanonicalMake resolves a make name or alias to its canonical form.
// Returns ("", false) when the make is unknown.
func CanonicalMake(s string) (string, bool) {
	m, ok := makeAliases[strings.ToLower(strings.TrimSpace(s))]
	return m, ok
}

// CanonicalBodyType resolves a body-type synonym to its canonical form.
func CanonicalBodyType(s string) (string, bool) {
	bt, ok := bodyTypeAliases[strings.ToLower(strings.TrimSpace(s))]
	return bt, ok
}

// CanonicalFuelType resolves a fuel-type synonym to its canonical form.
func CanonicalFuelType(s string) (string, bool) {
	ft, ok := fuelTypeAliases[strings.ToLower(strings.TrimSpace(s))]
	return ft, ok
}

// Makes returns the canonical make names in deterministic order.
func Makes() []string {
	out := make([]string, 0, len(MakeModels))
	for m := range MakeModels {
		out = append(out, m)
	}
	// Deterministic order without importing sort of maps: simple insertion sort.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

var nonNumeric = regexp.MustCompile(`[^0-9.]`)

// ParsePrice extracts a numeric dollar amount from a display string like
// "$34,500" or "34500 USD". Returns 0 when nothing numeric is present.
func ParsePrice(s string) float64 {
	cleaned := nonNumeric.ReplaceAllString(s, "")
	if cleaned == "" {
		return 0
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return v
}

// ParseMileage extracts whole miles from a display string like "42,000 mi".
func ParseMileage(s string) int {
	cleaned := nonNumeric.ReplaceAllString(s, "")
	if cleaned == "" {
		return 0
	}
	// Drop a fractional part if one sneaks in.
	if i := strings.IndexByte(cleaned, '.'); i >= 0 {
		cleaned = cleaned[:i]
	}
	if cleaned == "" {
		return 0
	}
	v, err := strconv.Atoi(cleaned)
	if err != nil {
		return 0
	}
	return v
}

// FormatPrice renders a numeric price as a display string ("$34,500").
func FormatPrice(v float64) string {
	if v <= 0 {
		return "Contact for price"
	}
	n := int64(v + 0.5)
	s := strconv.FormatInt(n, 10)
	var b strings.Builder
	b.WriteByte('$')
	pre := len(s) % 3
	if pre > 0 {
		b.WriteString(s[:pre])
		if len(s) > pre {
			b.WriteByte(',')
		}
	}
	for i := pre; i < len(s); i += 3 {
		b.WriteString(s[i : i+3])
		if i+3 < len(s) {
			b.WriteByte(',')
		}
	}
	return b.String()
}
