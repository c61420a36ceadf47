package pagination

import (
	"context"
	"fmt"
	"sync"
	"time"

	"catalog-cache-go/cache"
	"catalog-cache-go/catalog"
	"catalog-cache-go/logcolors"

	log "github.com/sirupsen/logrus"
)

const (
	// DefaultTTL is used when no access history informs a better choice
	DefaultTTL = 300 * time.Second
	// MinTTL is the floor for rarely accessed pages
	MinTTL = 60 * time.Second
	// MaxTTL is the ceiling for hot pages
	MaxTTL = 3600 * time.Second

	metadataTTL = 600 * time.Second
	accessTTL   = 600 * time.Second

	metaRegistryKey = "pagination:meta:keys"
	registryTTL     = 7 * 24 * time.Hour
)

// PageMetadata describes one cached query's pagination shape
type PageMetadata struct {
	TotalItems  int                  `json:"totalItems"`
	PageSize    int                  `json:"pageSize"`
	TotalPages  int                  `json:"totalPages"`
	LastUpdated int64                `json:"lastUpdated"` // unix milliseconds
	KeyPrefix   string               `json:"keyPrefix"`
	Filters     catalog.QueryFilters `json:"filters"`
}

// CachePageOptions configures a CachePage call
type CachePageOptions struct {
	KeyPrefix  string
	Filters    catalog.QueryFilters
	TotalItems int
	PageSize   int
	TTL        time.Duration // zero means DefaultTTL
}

// PageResult is a cached page plus its metadata
type PageResult struct {
	Items    []catalog.Product `json:"items"`
	Metadata PageMetadata      `json:"metadata"`
}

// PaginationCache caches query result pages with per-query metadata and
// access tracking, enabling group invalidation and access-driven TTLs.
type PaginationCache struct {
	cache *cache.ResilientCache
	now   func() time.Time

	registryMu sync.Mutex // serializes read-modify-write of the metadata key registry
}

// New creates a pagination cache on top of the resilient cache
func New(rc *cache.ResilientCache) *PaginationCache {
	return &PaginationCache{cache: rc, now: time.Now}
}

// GeneratePageKey builds the cache key of one page. Filter order does not
// matter: the canonical filter form is part of the key.
func GeneratePageKey(keyPrefix string, filters catalog.QueryFilters, page int) string {
	return fmt.Sprintf("pagination:page:%s:%s:%d", keyPrefix, filters.Canonical(), page)
}

func metadataKey(keyPrefix string, filters catalog.QueryFilters) string {
	return fmt.Sprintf("pagination:meta:%s:%s", keyPrefix, filters.Canonical())
}

func accessKey(pageKey string) string {
	return "pagination:access:" + pageKey
}

// CachePage stores a page, its query metadata and the access timestamp
func (pc *PaginationCache) CachePage(ctx context.Context, page int, items []catalog.Product, opts CachePageOptions) {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	totalPages := 0
	if opts.PageSize > 0 {
		totalPages = (opts.TotalItems + opts.PageSize - 1) / opts.PageSize
	}

	metaKey := metadataKey(opts.KeyPrefix, opts.Filters)
	pc.cache.SetJSON(ctx, metaKey, PageMetadata{
		TotalItems:  opts.TotalItems,
		PageSize:    opts.PageSize,
		TotalPages:  totalPages,
		LastUpdated: pc.now().UnixMilli(),
		KeyPrefix:   opts.KeyPrefix,
		Filters:     opts.Filters,
	}, metadataTTL)

	pageKey := GeneratePageKey(opts.KeyPrefix, opts.Filters, page)
	pc.cache.SetJSON(ctx, pageKey, items, ttl)
	pc.cache.SetJSON(ctx, accessKey(pageKey), pc.now().UnixMilli(), accessTTL)

	pc.registerMetadataKey(ctx, metaKey)

	log.Debugf("%s Cached page %d of %s (%d items, ttl %v)", logcolors.LogPagination, page, opts.KeyPrefix, len(items), ttl)
}

// GetPage retrieves a cached page. A page whose metadata has expired is
// evicted and reported as a miss, so stale orphan pages never serve.
func (pc *PaginationCache) GetPage(ctx context.Context, keyPrefix string, filters catalog.QueryFilters, page int) (*PageResult, bool) {
	pageKey := GeneratePageKey(keyPrefix, filters, page)

	var items []catalog.Product
	if !pc.cache.GetJSON(pageKey, &items) {
		return nil, false
	}

	var meta PageMetadata
	if !pc.cache.GetJSON(metadataKey(keyPrefix, filters), &meta) {
		log.Debugf("%s Metadata missing for %s, evicting page %d", logcolors.LogPagination, keyPrefix, page)
		pc.cache.Del(pageKey)
		pc.cache.Del(accessKey(pageKey))
		return nil, false
	}

	// Refresh the access timestamp for TTL tuning
	pc.cache.SetJSON(ctx, accessKey(pageKey), pc.now().UnixMilli(), accessTTL)

	return &PageResult{Items: items, Metadata: meta}, true
}

// InvalidatePages removes every cached page of one query. Without
// metadata there is nothing to enumerate, so the call is a no-op (and
// therefore idempotent).
func (pc *PaginationCache) InvalidatePages(ctx context.Context, keyPrefix string, filters catalog.QueryFilters) {
	metaKey := metadataKey(keyPrefix, filters)

	var meta PageMetadata
	if !pc.cache.GetJSON(metaKey, &meta) {
		return
	}

	for page := 1; page <= meta.TotalPages; page++ {
		pageKey := GeneratePageKey(keyPrefix, filters, page)
		pc.cache.Del(pageKey)
		pc.cache.Del(accessKey(pageKey))
	}
	pc.cache.Del(metaKey)

	log.Debugf("%s Invalidated %d pages of %s", logcolors.LogPagination, meta.TotalPages, keyPrefix)
}

// InvalidateAllPages removes every cached page of every tracked query
func (pc *PaginationCache) InvalidateAllPages(ctx context.Context) {
	var metaKeys []string
	pc.cache.GetJSON(metaRegistryKey, &metaKeys)

	count := 0
	for _, metaKey := range metaKeys {
		var meta PageMetadata
		if !pc.cache.GetJSON(metaKey, &meta) {
			continue
		}
		pc.InvalidatePages(ctx, meta.KeyPrefix, meta.Filters)
		count++
	}
	pc.cache.Del(metaRegistryKey)

	log.Infof("%s Invalidated all cached pagination (%d queries)", logcolors.LogPagination, count)
}

// InvalidateRelatedPages removes page groups a product change can affect:
// its merchant's pages, each of its categories' pages, the featured set
// when the product is featured, and the recent set.
func (pc *PaginationCache) InvalidateRelatedPages(ctx context.Context, product catalog.Product) {
	pc.InvalidatePages(ctx, "merchant", catalog.QueryFilters{MerchantID: catalog.String(product.MerchantID)})

	for _, category := range product.Categories {
		pc.InvalidatePages(ctx, "category", catalog.QueryFilters{Categories: []string{category}})
	}

	if product.Featured {
		pc.InvalidatePages(ctx, "featured", catalog.QueryFilters{})
	}

	pc.InvalidatePages(ctx, "recent", catalog.QueryFilters{})

	log.Debugf("%s Invalidated pages related to product %s", logcolors.LogPagination, product.ID)
}

// DetermineOptimalTTL picks a TTL from the page's access recency:
// accessed within a minute gets the max, within five minutes double the
// default, idle an hour or more gets the floor.
func (pc *PaginationCache) DetermineOptimalTTL(keyPrefix string, filters catalog.QueryFilters, page int) time.Duration {
	pageKey := GeneratePageKey(keyPrefix, filters, page)

	var lastAccessMs int64
	if !pc.cache.GetJSON(accessKey(pageKey), &lastAccessMs) {
		return DefaultTTL
	}

	sinceAccess := pc.now().Sub(time.UnixMilli(lastAccessMs))
	switch {
	case sinceAccess < time.Minute:
		return MaxTTL
	case sinceAccess < 5*time.Minute:
		return 2 * DefaultTTL
	case sinceAccess >= time.Hour:
		return MinTTL
	default:
		return DefaultTTL
	}
}

// registerMetadataKey keeps the list of tracked metadata keys used by
// InvalidateAllPages
func (pc *PaginationCache) registerMetadataKey(ctx context.Context, metaKey string) {
	pc.registryMu.Lock()
	defer pc.registryMu.Unlock()

	var keys []string
	pc.cache.GetJSON(metaRegistryKey, &keys)

	for _, k := range keys {
		if k == metaKey {
			return
		}
	}
	keys = append(keys, metaKey)
	pc.cache.SetJSON(ctx, metaRegistryKey, keys, registryTTL)
}
