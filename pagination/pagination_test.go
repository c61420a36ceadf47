package pagination

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"catalog-cache-go/cache"
	"catalog-cache-go/catalog"
	"catalog-cache-go/circuitbreaker"
)

func newTestPaginationCache(t *testing.T) *PaginationCache {
	t.Helper()

	breaker := circuitbreaker.New(circuitbreaker.Config{
		Name:      "test-pagination",
		Threshold: 100,
		Cooldown:  time.Minute,
	})
	rc := cache.NewResilientCache(cache.NewMemoryClient(), cache.NewFallbackCache(1000, time.Minute), breaker)
	return New(rc)
}

func sampleItems() []catalog.Product {
	return []catalog.Product{
		{ID: "p1", MerchantID: "m1", Title: "Wireless Mouse"},
		{ID: "p2", MerchantID: "m1", Title: "Mechanical Keyboard"},
	}
}

func TestGeneratePageKey_FilterOrderIndependent(t *testing.T) {
	a := catalog.QueryFilters{MerchantID: catalog.String("m1"), InStock: catalog.Bool(true)}
	b := catalog.QueryFilters{InStock: catalog.Bool(true), MerchantID: catalog.String("m1")}

	if GeneratePageKey("merchant", a, 1) != GeneratePageKey("merchant", b, 1) {
		t.Error("Expected identical keys for identical filters in any order")
	}
}

func TestGeneratePageKey_DistinguishesPages(t *testing.T) {
	filters := catalog.QueryFilters{MerchantID: catalog.String("m1")}

	if GeneratePageKey("merchant", filters, 1) == GeneratePageKey("merchant", filters, 2) {
		t.Error("Expected different pages to have different keys")
	}
	if GeneratePageKey("merchant", filters, 1) == GeneratePageKey("category", filters, 1) {
		t.Error("Expected different prefixes to have different keys")
	}
}

func TestCachePageAndGetPage(t *testing.T) {
	pc := newTestPaginationCache(t)
	ctx := context.Background()
	filters := catalog.QueryFilters{MerchantID: catalog.String("m1")}

	pc.CachePage(ctx, 1, sampleItems(), CachePageOptions{
		KeyPrefix:  "merchant",
		Filters:    filters,
		TotalItems: 100,
		PageSize:   10,
	})

	result, ok := pc.GetPage(ctx, "merchant", filters, 1)
	if !ok {
		t.Fatal("Expected cached page")
	}
	if len(result.Items) != 2 {
		t.Errorf("Expected 2 items, got %d", len(result.Items))
	}
	if result.Metadata.TotalItems != 100 {
		t.Errorf("Expected totalItems 100, got %d", result.Metadata.TotalItems)
	}
	if result.Metadata.TotalPages != 10 {
		t.Errorf("Expected totalPages 10, got %d", result.Metadata.TotalPages)
	}
}

func TestGetPage_Miss(t *testing.T) {
	pc := newTestPaginationCache(t)

	if _, ok := pc.GetPage(context.Background(), "merchant", catalog.QueryFilters{}, 1); ok {
		t.Error("Expected miss for uncached page")
	}
}

func TestGetPage_MetadataMissingEvictsPage(t *testing.T) {
	pc := newTestPaginationCache(t)
	ctx := context.Background()
	filters := catalog.QueryFilters{MerchantID: catalog.String("m1")}

	pc.CachePage(ctx, 1, sampleItems(), CachePageOptions{
		KeyPrefix:  "merchant",
		Filters:    filters,
		TotalItems: 2,
		PageSize:   2,
	})

	// Metadata expires independently of the page
	pc.cache.Del(metadataKey("merchant", filters))

	if _, ok := pc.GetPage(ctx, "merchant", filters, 1); ok {
		t.Fatal("Expected miss when metadata is gone")
	}

	// The orphan page content itself must be evicted too
	pageKey := GeneratePageKey("merchant", filters, 1)
	var items []catalog.Product
	if pc.cache.GetJSON(pageKey, &items) {
		t.Error("Expected orphan page content to be evicted")
	}
}

func TestInvalidatePages(t *testing.T) {
	pc := newTestPaginationCache(t)
	ctx := context.Background()
	filters := catalog.QueryFilters{MerchantID: catalog.String("m1")}

	for page := 1; page <= 3; page++ {
		pc.CachePage(ctx, page, sampleItems(), CachePageOptions{
			KeyPrefix:  "merchant",
			Filters:    filters,
			TotalItems: 6,
			PageSize:   2,
		})
	}

	pc.InvalidatePages(ctx, "merchant", filters)

	for page := 1; page <= 3; page++ {
		if _, ok := pc.GetPage(ctx, "merchant", filters, page); ok {
			t.Errorf("Expected page %d to be invalidated", page)
		}
	}
}

func TestInvalidatePages_Idempotent(t *testing.T) {
	pc := newTestPaginationCache(t)
	ctx := context.Background()
	filters := catalog.QueryFilters{MerchantID: catalog.String("m1")}

	pc.CachePage(ctx, 1, sampleItems(), CachePageOptions{
		KeyPrefix:  "merchant",
		Filters:    filters,
		TotalItems: 2,
		PageSize:   2,
	})

	pc.InvalidatePages(ctx, "merchant", filters)
	// Second call finds no metadata and must be a clean no-op
	pc.InvalidatePages(ctx, "merchant", filters)

	if _, ok := pc.GetPage(ctx, "merchant", filters, 1); ok {
		t.Error("Expected page to stay invalidated")
	}
}

func TestInvalidateRelatedPages(t *testing.T) {
	pc := newTestPaginationCache(t)
	ctx := context.Background()

	merchantFilters := catalog.QueryFilters{MerchantID: catalog.String("m1")}
	otherMerchant := catalog.QueryFilters{MerchantID: catalog.String("m2")}
	categoryFilters := catalog.QueryFilters{Categories: []string{"audio"}}
	featuredFilters := catalog.QueryFilters{}

	opts := func(prefix string, f catalog.QueryFilters) CachePageOptions {
		return CachePageOptions{KeyPrefix: prefix, Filters: f, TotalItems: 2, PageSize: 2}
	}

	pc.CachePage(ctx, 1, sampleItems(), opts("merchant", merchantFilters))
	pc.CachePage(ctx, 1, sampleItems(), opts("merchant", otherMerchant))
	pc.CachePage(ctx, 1, sampleItems(), opts("category", categoryFilters))
	pc.CachePage(ctx, 1, sampleItems(), opts("featured", featuredFilters))
	pc.CachePage(ctx, 1, sampleItems(), opts("recent", catalog.QueryFilters{}))

	pc.InvalidateRelatedPages(ctx, catalog.Product{
		ID:         "p1",
		MerchantID: "m1",
		Categories: []string{"audio"},
		Featured:   true,
	})

	if _, ok := pc.GetPage(ctx, "merchant", merchantFilters, 1); ok {
		t.Error("Expected the product's merchant pages to be invalidated")
	}
	if _, ok := pc.GetPage(ctx, "category", categoryFilters, 1); ok {
		t.Error("Expected the product's category pages to be invalidated")
	}
	if _, ok := pc.GetPage(ctx, "featured", featuredFilters, 1); ok {
		t.Error("Expected featured pages to be invalidated for a featured product")
	}
	if _, ok := pc.GetPage(ctx, "recent", catalog.QueryFilters{}, 1); ok {
		t.Error("Expected recent pages to be invalidated")
	}

	// Unrelated merchant untouched
	if _, ok := pc.GetPage(ctx, "merchant", otherMerchant, 1); !ok {
		t.Error("Expected unrelated merchant pages to survive")
	}
}

func TestInvalidateRelatedPages_NonFeaturedLeavesFeatured(t *testing.T) {
	pc := newTestPaginationCache(t)
	ctx := context.Background()

	pc.CachePage(ctx, 1, sampleItems(), CachePageOptions{
		KeyPrefix: "featured", Filters: catalog.QueryFilters{}, TotalItems: 2, PageSize: 2,
	})

	pc.InvalidateRelatedPages(ctx, catalog.Product{
		ID:         "p1",
		MerchantID: "m1",
		Featured:   false,
	})

	if _, ok := pc.GetPage(ctx, "featured", catalog.QueryFilters{}, 1); !ok {
		t.Error("Expected featured pages to survive a non-featured product change")
	}
}

func TestInvalidateAllPages(t *testing.T) {
	pc := newTestPaginationCache(t)
	ctx := context.Background()

	a := catalog.QueryFilters{MerchantID: catalog.String("m1")}
	b := catalog.QueryFilters{Categories: []string{"audio"}}

	pc.CachePage(ctx, 1, sampleItems(), CachePageOptions{KeyPrefix: "merchant", Filters: a, TotalItems: 2, PageSize: 2})
	pc.CachePage(ctx, 1, sampleItems(), CachePageOptions{KeyPrefix: "category", Filters: b, TotalItems: 2, PageSize: 2})

	pc.InvalidateAllPages(ctx)

	if _, ok := pc.GetPage(ctx, "merchant", a, 1); ok {
		t.Error("Expected all merchant pages invalidated")
	}
	if _, ok := pc.GetPage(ctx, "category", b, 1); ok {
		t.Error("Expected all category pages invalidated")
	}
}

func TestDetermineOptimalTTL(t *testing.T) {
	pc := newTestPaginationCache(t)
	ctx := context.Background()
	filters := catalog.QueryFilters{MerchantID: catalog.String("m1")}

	// No access history: default
	if ttl := pc.DetermineOptimalTTL("merchant", filters, 1); ttl != DefaultTTL {
		t.Errorf("Expected default TTL without history, got %v", ttl)
	}

	pc.CachePage(ctx, 1, sampleItems(), CachePageOptions{
		KeyPrefix: "merchant", Filters: filters, TotalItems: 2, PageSize: 2,
	})

	base := time.Now()
	tests := []struct {
		name        string
		sinceAccess time.Duration
		expected    time.Duration
	}{
		{"hot page", 30 * time.Second, MaxTTL},
		{"warm page", 3 * time.Minute, 2 * DefaultTTL},
		{"cool page", 30 * time.Minute, DefaultTTL},
		{"cold page", 2 * time.Hour, MinTTL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Access happened at base; "now" is sinceAccess later
			pc.now = func() time.Time { return base }
			pc.cache.SetJSON(ctx, accessKey(GeneratePageKey("merchant", filters, 1)), base.UnixMilli(), accessTTL)

			pc.now = func() time.Time { return base.Add(tt.sinceAccess) }
			if ttl := pc.DetermineOptimalTTL("merchant", filters, 1); ttl != tt.expected {
				t.Errorf("Expected %v for access %v ago, got %v", tt.expected, tt.sinceAccess, ttl)
			}
		})
	}
}

func TestConcurrentCachePageRegistersEveryQuery(t *testing.T) {
	pc := newTestPaginationCache(t)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			filters := catalog.QueryFilters{MerchantID: catalog.String(fmt.Sprintf("m%d", i))}
			pc.CachePage(ctx, 1, sampleItems(), CachePageOptions{
				KeyPrefix: "merchant", Filters: filters, TotalItems: 2, PageSize: 2,
			})
		}(i)
	}
	wg.Wait()

	pc.InvalidateAllPages(ctx)

	for i := 0; i < n; i++ {
		filters := catalog.QueryFilters{MerchantID: catalog.String(fmt.Sprintf("m%d", i))}
		if _, ok := pc.GetPage(ctx, "merchant", filters, 1); ok {
			t.Errorf("Expected page for m%d invalidated; its metadata key was not registered", i)
		}
	}
}
