package carspec

import "testing"

func TestCanonicalMake(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"chevy", "Chevrolet", true},
		{"Chevrolet", "Chevrolet", true},
		{"VW", "Volkswagen", true},
		{"  tesla  ", "Tesla", true},
		{"benz", "Mercedes-Benz", true},
		{"yugo", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := CanonicalMake(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("CanonicalMake(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestCanonicalBodyType(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"crossover", "SUV", true},
		{"SUV", "SUV", true},
		{"pickup", "Truck", true},
		{"estate", "Wagon", true},
		{"spaceship", "", false},
	}
	for _, tc := range cases {
		got, ok := CanonicalBodyType(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("CanonicalBodyType(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestCanonicalFuelType(t *testing.T) {
	if got, ok := CanonicalFuelType("EV"); !ok || got != "Electric" {
		t.Fatalf("CanonicalFuelType(EV) = (%q, %v)", got, ok)
	}
	if got, ok := CanonicalFuelType("phev"); !ok || got != "Plug-in Hybrid" {
		t.Fatalf("CanonicalFuelType(phev) = (%q, %v)", got, ok)
	}
}

func TestMakes_SortedAndComplete(t *testing.T) {
	makes := Makes()
	if len(makes) != len(MakeModels) {
		t.Fatalf("Makes() len = %d, want %d", len(makes), len(MakeModels))
	}
	for i := 1; i < len(makes); i++ {
		if makes[i-1] >= makes[i] {
			t.Fatalf("Makes() not strictly sorted at %d: %q >= %q", i, makes[i-1], makes[i])
		}
	}
}

func TestParsePrice(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"$34,500", 34500},
		{"34500", 34500},
		{"$12,999.50", 12999.50},
		{"Contact for price", 0},
		{"", 0},
	}
	for _, tc := range cases {
		if got := ParsePrice(tc.in); got != tc.want {
			t.Errorf("ParsePrice(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseMileage(t *testing.T) {
	if got := ParseMileage("42,000 mi"); got != 42000 {
		t.Fatalf("ParseMileage = %d, want 42000", got)
	}
	if got := ParseMileage("n/a"); got != 0 {
		t.Fatalf("ParseMileage(n/a) = %d, want 0", got)
	}
}

func TestFormatPrice(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{34500, "$34,500"},
		{999, "$999"},
		{1000000, "$1,000,000"},
		{0, "Contact for price"},
	}
	for _, tc := range cases {
		if got := FormatPrice(tc.in); got != tc.want {
			t.Errorf("FormatPrice(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRoundTripPriceParse(t *testing.T) {
	if got := ParsePrice(FormatPrice(45250)); got != 45250 {
		t.Fatalf("round trip = %v", got)
	}
}
