package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/WessleyAI/carseek-mvp/engine/domain"
	"github.com/WessleyAI/carseek-mvp/engine/intent/intenttest"
)

type fakeRows struct {
	mu      sync.Mutex
	nextID  int64
	byID    map[int64]domain.StoredListing
	insErr  error
	failURL string
}

func newFakeRows() *fakeRows {
	return &fakeRows{byID: make(map[int64]domain.StoredListing)}
}

func (f *fakeRows) Insert(ctx context.Context, l domain.Listing, embedding []float32, contentText string) (domain.StoredListing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insErr != nil {
		return domain.StoredListing{}, f.insErr
	}
	if f.failURL != "" && l.URL == f.failURL {
		return domain.StoredListing{}, errors.New("constraint violation")
	}
	f.nextID++
	s := domain.StoredListing{Listing: l, ID: f.nextID, Embedding: embedding, Active: true}
	f.byID[s.ID] = s
	return s, nil
}

func (f *fakeRows) ByIDs(ctx context.Context, ids []int64) ([]domain.StoredListing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.StoredListing
	for _, id := range ids {
		if s, ok := f.byID[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeRows) ByLocation(ctx context.Context, text string, k int) ([]domain.StoredListing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.StoredListing
	for _, s := range f.byID {
		if s.Active && strings.Contains(strings.ToLower(s.Location), strings.ToLower(text)) {
			out = append(out, s)
		}
		if len(out) == k {
			break
		}
	}
	return out, nil
}

func (f *fakeRows) SetActive(ctx context.Context, id int64, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.Active = active
	f.byID[id] = s
	return nil
}

type fakeIndex struct {
	mu        sync.Mutex
	upserts   map[string]int64
	hits      []Hit
	upsertErr error
	searchErr error
	gotK      int
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{upserts: make(map[string]int64)}
}

func (f *fakeIndex) Upsert(ctx context.Context, pointID string, embedding []float32, listingID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts[pointID] = listingID
	return nil
}

func (f *fakeIndex) Search(ctx context.Context, embedding []float32, k int) ([]Hit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gotK = k
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.hits, nil
}

func validListing(n int) domain.Listing {
	return domain.Listing{
		Source:      "test",
		URL:         fmt.Sprintf("https://test.example.com/%d", n),
		Brand:       "Honda",
		Model:       "Civic",
		Year:        2023,
		BodyType:    "Sedan",
		Features:    []string{"Backup Camera"},
		Description: "Well maintained.",
	}
}

func newTestStore(rows *fakeRows, index *fakeIndex) *Store {
	opts := DefaultOptions()
	opts.EmbedRate = 1e6 // don't throttle tests
	return NewStore(rows, index, &intenttest.Embedder{}, opts, nil)
}

func TestContentText_FixedOrder(t *testing.T) {
	l := validListing(1)
	l.FuelType = "Gasoline"
	got := ContentText(l)
	want := "Honda. Civic. 2023. Sedan. Gasoline. Backup Camera. Well maintained."
	if got != want {
		t.Fatalf("ContentText = %q, want %q", got, want)
	}
}

func TestContentText_SkipsEmptyFields(t *testing.T) {
	got := ContentText(domain.Listing{Brand: "Kia", Model: "EV6"})
	if got != "Kia. EV6" {
		t.Fatalf("ContentText = %q", got)
	}
}

func TestPointID_Deterministic(t *testing.T) {
	if PointID(42) != PointID(42) {
		t.Fatal("PointID not deterministic")
	}
	if PointID(42) == PointID(43) {
		t.Fatal("PointID collision across listings")
	}
}

func TestPersist_StoresRowAndPoint(t *testing.T) {
	rows := newFakeRows()
	index := newFakeIndex()
	s := newTestStore(rows, index)

	stored, err := s.Persist(context.Background(), validListing(1))
	if err != nil {
		t.Fatalf("Persist err = %v", err)
	}
	if stored.ID == 0 || !stored.Active {
		t.Fatalf("stored = %+v", stored)
	}
	if len(stored.Embedding) != domain.EmbeddingDim {
		t.Fatalf("embedding dim = %d", len(stored.Embedding))
	}
	if got := index.upserts[PointID(stored.ID)]; got != stored.ID {
		t.Fatalf("index point maps to %d, want %d", got, stored.ID)
	}
}

func TestPersist_InvalidListingRejected(t *testing.T) {
	s := newTestStore(newFakeRows(), newFakeIndex())
	if _, err := s.Persist(context.Background(), domain.Listing{URL: "https://x"}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestPersist_IndexFailureIsNotFatal(t *testing.T) {
	rows := newFakeRows()
	index := newFakeIndex()
	index.upsertErr = errors.New("qdrant offline")
	s := newTestStore(rows, index)

	stored, err := s.Persist(context.Background(), validListing(1))
	if err != nil {
		t.Fatalf("Persist err = %v, want success despite index failure", err)
	}
	if _, ok := rows.byID[stored.ID]; !ok {
		t.Fatal("row missing")
	}
}

func TestPersistAll_IsolatesFailures(t *testing.T) {
	rows := newFakeRows()
	rows.failURL = "https://test.example.com/2"
	s := newTestStore(rows, newFakeIndex())

	listings := []domain.Listing{validListing(1), validListing(2), validListing(3)}
	stored := s.PersistAll(context.Background(), listings)
	if len(stored) != 2 {
		t.Fatalf("got %d stored, want 2 survivors", len(stored))
	}
	for _, st := range stored {
		if st.URL == rows.failURL {
			t.Fatal("failed listing leaked into successes")
		}
	}
}

func TestPersistAll_EmptyBatch(t *testing.T) {
	s := newTestStore(newFakeRows(), newFakeIndex())
	if got := s.PersistAll(context.Background(), nil); len(got) != 0 {
		t.Fatalf("got %d stored from empty batch", len(got))
	}
}

func TestNearestNeighbors_OrdersAndFilters(t *testing.T) {
	rows := newFakeRows()
	index := newFakeIndex()
	s := newTestStore(rows, index)

	var stored []domain.StoredListing
	for i := 1; i <= 4; i++ {
		st, err := s.Persist(context.Background(), validListing(i))
		if err != nil {
			t.Fatalf("Persist err = %v", err)
		}
		stored = append(stored, st)
	}
	// Retire one listing; it must not surface even though the index
	// still has its point.
	if err := s.SetActive(context.Background(), stored[1].ID, false); err != nil {
		t.Fatalf("SetActive err = %v", err)
	}

	index.hits = []Hit{
		{ListingID: stored[2].ID, Score: 0.9},
		{ListingID: stored[1].ID, Score: 0.8}, // retired
		{ListingID: stored[0].ID, Score: 0.7},
		{ListingID: stored[3].ID, Score: 0.7}, // tie, higher id
	}

	got, err := s.NearestNeighbors(context.Background(), make([]float32, domain.EmbeddingDim), 3)
	if err != nil {
		t.Fatalf("NearestNeighbors err = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d neighbors, want 3", len(got))
	}
	if got[0].ID != stored[2].ID {
		t.Errorf("first = %d, want best-scoring %d", got[0].ID, stored[2].ID)
	}
	// Tie at 0.7 breaks toward the older row.
	if got[1].ID != stored[0].ID || got[2].ID != stored[3].ID {
		t.Errorf("tie order = %d, %d; want %d, %d", got[1].ID, got[2].ID, stored[0].ID, stored[3].ID)
	}
	if index.gotK != 6 {
		t.Errorf("index k = %d, want overfetched 6", index.gotK)
	}
}

func TestNearestNeighbors_BadEmbedding(t *testing.T) {
	s := newTestStore(newFakeRows(), newFakeIndex())
	if _, err := s.NearestNeighbors(context.Background(), make([]float32, 3), 5); !errors.Is(err, domain.ErrBadVector) {
		t.Fatalf("err = %v, want ErrBadVector", err)
	}
}

func TestNearestNeighbors_EmptyIndex(t *testing.T) {
	s := newTestStore(newFakeRows(), newFakeIndex())
	got, err := s.NearestNeighbors(context.Background(), make([]float32, domain.EmbeddingDim), 5)
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d neighbors from empty index", len(got))
	}
}

func TestFindByLocation_BlankTextReturnsNothing(t *testing.T) {
	s := newTestStore(newFakeRows(), newFakeIndex())
	got, err := s.FindByLocation(context.Background(), "   ", 5)
	if err != nil || len(got) != 0 {
		t.Fatalf("got %d, err %v", len(got), err)
	}
}

func TestSetActive_Missing(t *testing.T) {
	s := newTestStore(newFakeRows(), newFakeIndex())
	if err := s.SetActive(context.Background(), 999, false); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestVectorLiteralRoundTrip(t *testing.T) {
	in := []float32{0.25, -1, 3.5}
	lit, err := toVectorLiteral(in, 3)
	if err != nil {
		t.Fatalf("toVectorLiteral err = %v", err)
	}
	if lit != "[0.25,-1,3.5]" {
		t.Fatalf("literal = %q", lit)
	}
	out, err := fromVectorLiteral(lit)
	if err != nil {
		t.Fatalf("fromVectorLiteral err = %v", err)
	}
	if len(out) != 3 || out[0] != 0.25 || out[1] != -1 || out[2] != 3.5 {
		t.Fatalf("round trip = %v", out)
	}
}

func TestVectorLiteral_DimensionMismatch(t *testing.T) {
	if _, err := toVectorLiteral([]float32{1, 2}, 3); err == nil {
		t.Fatal("expected dimension error")
	}
}
