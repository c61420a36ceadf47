package catalog

import (
	"context"
	"testing"
	"time"
)

func TestCanonical_OrderIndependent(t *testing.T) {
	a := QueryFilters{
		MerchantID: String("m1"),
		PriceMin:   Float(10),
		Categories: []string{"audio", "video"},
		InStock:    Bool(true),
	}
	b := QueryFilters{
		InStock:    Bool(true),
		Categories: []string{"audio", "video"},
		PriceMin:   Float(10),
		MerchantID: String("m1"),
	}

	if a.Canonical() != b.Canonical() {
		t.Errorf("Expected identical canonical forms, got %q vs %q", a.Canonical(), b.Canonical())
	}
}

func TestCanonical_OmitsUnsetFields(t *testing.T) {
	empty := QueryFilters{}
	if empty.Canonical() != "{}" {
		t.Errorf("Expected empty object for unset filters, got %q", empty.Canonical())
	}

	// An explicitly false filter is not the same query as an unset one
	explicit := QueryFilters{InStock: Bool(false)}
	if explicit.Canonical() == empty.Canonical() {
		t.Error("Expected explicit false to differ from unset")
	}
}

func TestCanonical_DistinctFiltersDistinctForms(t *testing.T) {
	a := QueryFilters{MerchantID: String("m1")}
	b := QueryFilters{MerchantID: String("m2")}

	if a.Canonical() == b.Canonical() {
		t.Error("Expected distinct merchants to canonicalize differently")
	}
}

func TestCursorRoundTrip(t *testing.T) {
	createdAt := time.Date(2025, 6, 15, 12, 30, 0, 0, time.UTC)
	cursor := EncodeCursor("prod-42", createdAt)

	id, got, err := DecodeCursor(cursor)
	if err != nil {
		t.Fatalf("Unexpected decode error: %v", err)
	}
	if id != "prod-42" {
		t.Errorf("Expected id 'prod-42', got %q", id)
	}
	if !got.Equal(createdAt) {
		t.Errorf("Expected createdAt %v, got %v", createdAt, got)
	}
}

func TestDecodeCursor_Malformed(t *testing.T) {
	cases := []string{
		"not-base64!!!",
		"aGVsbG8=", // base64 of "hello", not JSON
		"e30=",     // base64 of "{}", missing fields
		"",
	}

	for _, c := range cases {
		if _, _, err := DecodeCursor(c); err == nil {
			t.Errorf("Expected error for cursor %q", c)
		}
	}
}

func testProducts() []Product {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return []Product{
		{ID: "p1", MerchantID: "m1", Title: "Wireless Mouse", Price: 25, Categories: []string{"peripherals"}, InStock: true, IsActive: true, CreatedAt: base.Add(1 * time.Hour)},
		{ID: "p2", MerchantID: "m1", Title: "Mechanical Keyboard", Price: 120, Categories: []string{"peripherals"}, InStock: true, IsActive: true, Featured: true, CreatedAt: base.Add(2 * time.Hour)},
		{ID: "p3", MerchantID: "m2", Title: "USB Hub", Price: 40, Categories: []string{"accessories"}, InStock: false, IsActive: true, CreatedAt: base.Add(3 * time.Hour)},
		{ID: "p4", MerchantID: "m2", Title: "Monitor Stand", Price: 60, Categories: []string{"accessories"}, InStock: true, IsActive: false, CreatedAt: base.Add(4 * time.Hour)},
	}
}

func TestMemoryStore_QueryOrdering(t *testing.T) {
	store := NewMemoryStore(testProducts()...)

	items, total, err := store.Query(context.Background(), QueryFilters{}, 0, 10)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if total != 4 {
		t.Errorf("Expected total 4, got %d", total)
	}
	// Newest first
	if items[0].ID != "p4" || items[3].ID != "p1" {
		t.Errorf("Expected createdAt DESC ordering, got %s..%s", items[0].ID, items[3].ID)
	}
}

func TestMemoryStore_QueryFilters(t *testing.T) {
	store := NewMemoryStore(testProducts()...)
	ctx := context.Background()

	tests := []struct {
		name    string
		filters QueryFilters
		wantIDs []string
	}{
		{"merchant", QueryFilters{MerchantID: String("m1")}, []string{"p2", "p1"}},
		{"in stock", QueryFilters{InStock: Bool(true)}, []string{"p4", "p2", "p1"}},
		{"featured", QueryFilters{Featured: Bool(true)}, []string{"p2"}},
		{"price range", QueryFilters{PriceMin: Float(30), PriceMax: Float(100)}, []string{"p4", "p3"}},
		{"category", QueryFilters{Categories: []string{"accessories"}}, []string{"p4", "p3"}},
		{"search", QueryFilters{SearchQuery: String("keyboard")}, []string{"p2"}},
		{"active only", QueryFilters{IsActive: Bool(true)}, []string{"p3", "p2", "p1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, total, err := store.Query(ctx, tt.filters, 0, 10)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if total != len(tt.wantIDs) {
				t.Fatalf("Expected total %d, got %d", len(tt.wantIDs), total)
			}
			for i, want := range tt.wantIDs {
				if items[i].ID != want {
					t.Errorf("Position %d: expected %s, got %s", i, want, items[i].ID)
				}
			}
		})
	}
}

func TestMemoryStore_Paging(t *testing.T) {
	store := NewMemoryStore(testProducts()...)
	ctx := context.Background()

	page1, total, err := store.Query(ctx, QueryFilters{}, 0, 2)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if total != 4 || len(page1) != 2 {
		t.Fatalf("Expected total 4 and 2 items, got %d and %d", total, len(page1))
	}

	page2, _, _ := store.Query(ctx, QueryFilters{}, 2, 2)
	if len(page2) != 2 {
		t.Fatalf("Expected 2 items on page 2, got %d", len(page2))
	}
	if page1[0].ID == page2[0].ID {
		t.Error("Expected distinct pages")
	}

	// Past the end
	empty, _, _ := store.Query(ctx, QueryFilters{}, 10, 2)
	if len(empty) != 0 {
		t.Errorf("Expected empty page past the end, got %d items", len(empty))
	}

	// Zero take means no page limit
	all, _, _ := store.Query(ctx, QueryFilters{}, 0, 0)
	if len(all) != 4 {
		t.Errorf("Expected all 4 items with take 0, got %d", len(all))
	}
	rest, _, _ := store.Query(ctx, QueryFilters{}, 1, 0)
	if len(rest) != 3 {
		t.Errorf("Expected 3 items from skip 1 with take 0, got %d", len(rest))
	}
}

func TestMemoryStore_CursorFilter(t *testing.T) {
	store := NewMemoryStore(testProducts()...)
	ctx := context.Background()

	// Position at p3: only items created strictly before should match
	cutoff := time.Date(2025, 1, 1, 3, 0, 0, 0, time.UTC)
	items, _, err := store.Query(ctx, QueryFilters{
		CursorCreatedBefore: &cutoff,
		CursorIDBefore:      String("p3"),
	}, 0, 10)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("Expected 2 items before cursor, got %d", len(items))
	}
	if items[0].ID != "p2" || items[1].ID != "p1" {
		t.Errorf("Expected p2,p1 got %s,%s", items[0].ID, items[1].ID)
	}
}

func TestMemoryStore_ContextCancelled(t *testing.T) {
	store := NewMemoryStore(testProducts()...)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := store.Query(ctx, QueryFilters{}, 0, 10); err == nil {
		t.Error("Expected error for cancelled context")
	}
}
