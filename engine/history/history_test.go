package history

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/WessleyAI/carseek-mvp/engine/domain"
)

type fakeSearchRepo struct {
	nextID   int64
	searches map[int64]domain.Search
	results  map[int64][]domain.SearchResult
	insErr   error
}

func newFakeSearchRepo() *fakeSearchRepo {
	return &fakeSearchRepo{
		searches: make(map[int64]domain.Search),
		results:  make(map[int64][]domain.SearchResult),
	}
}

func (f *fakeSearchRepo) InsertSearch(ctx context.Context, s domain.Search, results []domain.SearchResult) (int64, error) {
	if f.insErr != nil {
		return 0, f.insErr
	}
	f.nextID++
	s.ID = f.nextID
	f.searches[s.ID] = s
	rows := make([]domain.SearchResult, len(results))
	for i, r := range results {
		r.ID = int64(i + 1)
		r.SearchID = s.ID
		rows[i] = r
	}
	f.results[s.ID] = rows
	return s.ID, nil
}

func (f *fakeSearchRepo) RecentSearches(ctx context.Context, userID int64, limit int) ([]domain.Search, error) {
	var out []domain.Search
	for id := f.nextID; id >= 1 && len(out) < limit; id-- {
		if s, ok := f.searches[id]; ok && s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeSearchRepo) ResultsForSearch(ctx context.Context, searchID int64) ([]domain.SearchResult, error) {
	return f.results[searchID], nil
}

type fakeProfileRepo struct {
	profiles  map[int64]domain.PreferenceProfile
	upsertErr error
	readErr   error
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{profiles: make(map[int64]domain.PreferenceProfile)}
}

func (f *fakeProfileRepo) Profile(ctx context.Context, userID int64) (domain.PreferenceProfile, error) {
	if f.readErr != nil {
		return domain.PreferenceProfile{}, f.readErr
	}
	p, ok := f.profiles[userID]
	if !ok {
		return domain.PreferenceProfile{}, fmt.Errorf("profile for user %d: %w", userID, domain.ErrNotFound)
	}
	return p, nil
}

func (f *fakeProfileRepo) UpsertProfile(ctx context.Context, p domain.PreferenceProfile) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.profiles[p.UserID] = p
	return nil
}

// rankedResults builds results from "Brand/BodyType" specs.
func rankedResults(specs ...string) []domain.RankedResult {
	out := make([]domain.RankedResult, len(specs))
	for i, spec := range specs {
		brand, body, _ := strings.Cut(spec, "/")
		out[i] = domain.RankedResult{
			Listing: domain.StoredListing{
				ID:      int64(100 + i),
				Listing: domain.Listing{Brand: brand, BodyType: body},
			},
			MatchScore: 98 - 3*float64(i),
			Rank:       i + 1,
		}
	}
	return out
}

func TestRecord_GuestIsSkipped(t *testing.T) {
	searches := newFakeSearchRepo()
	profiles := newFakeProfileRepo()
	r := NewRecorder(searches, profiles, nil)

	id, recorded, err := r.Record(context.Background(), GuestUserID, domain.Search{Query: "any"}, rankedResults("Tesla/SUV"))
	if err != nil {
		t.Fatalf("Record err = %v", err)
	}
	if recorded || id != 0 {
		t.Fatalf("recorded = %v, id = %d; want skipped", recorded, id)
	}
	if len(searches.searches) != 0 || len(profiles.profiles) != 0 {
		t.Fatal("guest search left rows behind")
	}
}

func TestRecord_WritesSearchAndResults(t *testing.T) {
	searches := newFakeSearchRepo()
	profiles := newFakeProfileRepo()
	r := NewRecorder(searches, profiles, nil)

	results := rankedResults("Tesla/SUV", "Ford/Truck")
	id, recorded, err := r.Record(context.Background(), 7, domain.Search{Query: "electric suv"}, results)
	if err != nil {
		t.Fatalf("Record err = %v", err)
	}
	if !recorded || id == 0 {
		t.Fatalf("recorded = %v, id = %d", recorded, id)
	}

	rows, _ := searches.ResultsForSearch(context.Background(), id)
	if len(rows) != 2 {
		t.Fatalf("got %d result rows, want 2", len(rows))
	}
	if rows[0].CarID != 100 || rows[0].Rank != 1 || rows[0].MatchScore != 98 {
		t.Fatalf("first row = %+v", rows[0])
	}

	got, _ := searches.RecentSearches(context.Background(), 7, 10)
	if len(got) != 1 || got[0].Query != "electric suv" || got[0].UserID != 7 {
		t.Fatalf("recent searches = %+v", got)
	}
}

func TestRecord_SearchInsertFailurePropagates(t *testing.T) {
	searches := newFakeSearchRepo()
	searches.insErr = errors.New("db down")
	r := NewRecorder(searches, newFakeProfileRepo(), nil)

	_, recorded, err := r.Record(context.Background(), 7, domain.Search{Query: "x"}, nil)
	if err == nil || recorded {
		t.Fatalf("err = %v, recorded = %v; want failure", err, recorded)
	}
}

func TestRecord_ProfileFailureDoesNotPropagate(t *testing.T) {
	profiles := newFakeProfileRepo()
	profiles.upsertErr = errors.New("profile table locked")
	r := NewRecorder(newFakeSearchRepo(), profiles, nil)

	id, recorded, err := r.Record(context.Background(), 7, domain.Search{Query: "x"}, rankedResults("Kia/Sedan"))
	if err != nil || !recorded || id == 0 {
		t.Fatalf("Record = (%d, %v, %v); profile failure must stay silent", id, recorded, err)
	}
}

func TestRecord_ProfileFolding(t *testing.T) {
	searches := newFakeSearchRepo()
	profiles := newFakeProfileRepo()
	r := NewRecorder(searches, profiles, nil)

	brand := "Tesla"
	body := "SUV"
	maxPrice := 50000.0
	intent := domain.Intent{
		Brand:           &brand,
		BodyType:        &body,
		MaxPrice:        &maxPrice,
		DesiredFeatures: []string{"Autopilot"},
	}
	// Results repeat the intent's brand in different case plus one more.
	results := rankedResults("tesla/SUV", "Ford/Truck")

	if _, _, err := r.Record(context.Background(), 7, domain.Search{Query: "q", Intent: intent}, results); err != nil {
		t.Fatalf("Record err = %v", err)
	}

	p := profiles.profiles[7]
	if len(p.PreferredBrands) != 2 {
		t.Fatalf("brands = %v, want case-insensitive dedupe to 2", p.PreferredBrands)
	}
	if p.PreferredBrands[0] != "Tesla" {
		t.Errorf("front brand = %q, want intent's Tesla", p.PreferredBrands[0])
	}
	if len(p.PreferredTypes) != 2 || p.PreferredTypes[0] != "SUV" {
		t.Errorf("types = %v", p.PreferredTypes)
	}
	if p.PriceRangeMax == nil || *p.PriceRangeMax != 50000 {
		t.Errorf("price max = %v", p.PriceRangeMax)
	}
	if len(p.PreferredFeatures) != 1 || p.PreferredFeatures[0] != "Autopilot" {
		t.Errorf("features = %v", p.PreferredFeatures)
	}
}

func TestRecord_BrandCapHoldsAcrossSearches(t *testing.T) {
	searches := newFakeSearchRepo()
	profiles := newFakeProfileRepo()
	r := NewRecorder(searches, profiles, nil)

	for i := 0; i < 14; i++ {
		brand := fmt.Sprintf("Brand%02d", i)
		intent := domain.Intent{Brand: &brand}
		if _, _, err := r.Record(context.Background(), 7, domain.Search{Query: "q", Intent: intent}, nil); err != nil {
			t.Fatalf("Record err = %v", err)
		}
	}

	p := profiles.profiles[7]
	if len(p.PreferredBrands) != domain.MaxPreferredBrands {
		t.Fatalf("brands = %d, want capped %d", len(p.PreferredBrands), domain.MaxPreferredBrands)
	}
	if p.PreferredBrands[0] != "Brand13" {
		t.Errorf("front = %q, want most recent Brand13", p.PreferredBrands[0])
	}
}

func TestRecord_RepeatedBrandFoldsOnce(t *testing.T) {
	searches := newFakeSearchRepo()
	profiles := newFakeProfileRepo()
	r := NewRecorder(searches, profiles, nil)

	// Two consecutive searches surfacing Tesla; the second must read the
	// profile the first one wrote.
	for i := 0; i < 2; i++ {
		if _, _, err := r.Record(context.Background(), 7, domain.Search{Query: "q"}, rankedResults("Tesla/SUV")); err != nil {
			t.Fatalf("Record err = %v", err)
		}
	}

	p := profiles.profiles[7]
	count := 0
	for _, b := range p.PreferredBrands {
		if strings.EqualFold(b, "Tesla") {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("brands = %v, want Tesla exactly once", p.PreferredBrands)
	}
}

func TestRecord_ProfileReadFailureStaysSilent(t *testing.T) {
	profiles := newFakeProfileRepo()
	profiles.readErr = errors.New("transient")
	r := NewRecorder(newFakeSearchRepo(), profiles, nil)

	_, recorded, err := r.Record(context.Background(), 7, domain.Search{Query: "x"}, nil)
	if err != nil || !recorded {
		t.Fatalf("Record = (%v, %v)", recorded, err)
	}
}
