package optimizer

import (
	"context"
	"fmt"
	"time"

	"catalog-cache-go/analytics"
	"catalog-cache-go/cache"
	"catalog-cache-go/catalog"
	"catalog-cache-go/logcolors"
	"catalog-cache-go/pagination"
	"catalog-cache-go/stats"

	log "github.com/sirupsen/logrus"
)

// QueryPattern names the one query shape the optimizer serves. Analytics
// aggregates per (pattern, filters), so the pattern pins all catalog listing
// traffic to one analytics family.
const QueryPattern = "ProductListing"

const (
	baseTTL = 5 * time.Minute
	minTTL  = time.Minute
	maxTTL  = time.Hour
)

// Result is what a catalog listing query produces, cache or store.
type Result struct {
	Items []catalog.Product `json:"items"`
	Total int               `json:"total"`
}

// QueryOptimizer orchestrates the read path: pagination cache, then the
// generic result cache, then the store. Every store round trip feeds
// analytics, and analytics feed the TTL of the next write.
type QueryOptimizer struct {
	cache     *cache.ResilientCache
	pages     *pagination.PaginationCache
	analytics *analytics.Service
	store     catalog.Store
}

func New(rc *cache.ResilientCache, pages *pagination.PaginationCache, svc *analytics.Service, store catalog.Store) *QueryOptimizer {
	return &QueryOptimizer{
		cache:     rc,
		pages:     pages,
		analytics: svc,
		store:     store,
	}
}

// GenerateQueryCacheKey keys the generic result cache by the canonical
// filter encoding plus page and limit.
func GenerateQueryCacheKey(filters catalog.QueryFilters, page, limit int) string {
	return fmt.Sprintf("products:query:%s:page:%d:limit:%d", filters.Canonical(), page, limit)
}

// OptimizedQuery serves a filtered catalog page. Only store errors
// propagate; a broken cache layer degrades to always-miss.
func (o *QueryOptimizer) OptimizedQuery(ctx context.Context, filters catalog.QueryFilters, pag catalog.Pagination) (*Result, error) {
	page := pag.Page
	if page < 1 {
		page = 1
	}
	limit := pag.Limit
	if limit < 1 {
		limit = 10
	}

	if result, ok := o.pages.GetPage(ctx, QueryPattern, filters, page); ok {
		log.Debugf("%s Pagination cache hit for page %d", logcolors.LogOptimizer, page)
		return &Result{Items: result.Items, Total: result.Metadata.TotalItems}, nil
	}

	queryKey := GenerateQueryCacheKey(filters, page, limit)
	var cached Result
	if o.cache.GetJSON(queryKey, &cached) {
		log.Debugf("%s Query cache hit for %s", logcolors.LogOptimizer, queryKey)
		return &cached, nil
	}

	started := time.Now()
	items, total, err := o.store.Query(ctx, filters, (page-1)*limit, limit)
	elapsed := time.Since(started)
	if err != nil {
		return nil, err
	}
	stats.Get().RecordStoreQuery(elapsed)

	o.analytics.RecordQuery(ctx, QueryPattern, filters, elapsed, len(items))

	ttl := o.DetermineOptimalCacheTTL(filters)
	result := &Result{Items: items, Total: total}

	o.cache.SetJSON(ctx, queryKey, result, ttl)
	o.pages.CachePage(ctx, page, items, pagination.CachePageOptions{
		KeyPrefix:  QueryPattern,
		Filters:    filters,
		TotalItems: total,
		PageSize:   limit,
		TTL:        ttl,
	})

	log.Debugf("%s Store query took %s, cached page %d with TTL %s", logcolors.LogOptimizer, elapsed, page, ttl)
	return result, nil
}

// DetermineOptimalCacheTTL scales the baseline TTL by how often the query
// runs and how slow it is, clamped to [minTTL, maxTTL]. With no analytics
// snapshot yet the baseline stands.
func (o *QueryOptimizer) DetermineOptimalCacheTTL(filters catalog.QueryFilters) time.Duration {
	ttl := float64(baseTTL)

	record := o.analytics.GetQueryAnalyticsByID(analytics.GenerateQueryID(QueryPattern, filters))
	if record != nil {
		switch {
		case record.Frequency > 100:
			ttl *= 2
		case record.Frequency > 50:
			ttl *= 1.5
		case record.Frequency < 5:
			ttl *= 0.8
		}

		switch {
		case record.AverageExecutionTime > 500:
			ttl *= 1.5
		case record.AverageExecutionTime > 200:
			ttl *= 1.2
		}
	}

	result := time.Duration(ttl)
	if result < minTTL {
		return minTTL
	}
	if result > maxTTL {
		return maxTTL
	}
	return result
}

// WarmupQueryCache primes the filter and page combinations listing traffic
// hits most, so the first requests after a deploy or reset do not all fall
// through to the store.
func (o *QueryOptimizer) WarmupQueryCache(ctx context.Context) {
	commonFilters := []catalog.QueryFilters{
		{},
		{InStock: catalog.Bool(true)},
		{Featured: catalog.Bool(true)},
		{InStock: catalog.Bool(true), Featured: catalog.Bool(true)},
	}
	commonPages := []catalog.Pagination{
		{Page: 1, Limit: 10},
		{Page: 1, Limit: 20},
	}

	started := time.Now()
	warmed := 0
	for _, filters := range commonFilters {
		for _, pag := range commonPages {
			if _, err := o.OptimizedQuery(ctx, filters, pag); err != nil {
				log.Warnf("%s Warmup query failed: %v", logcolors.LogOptimizer, err)
				continue
			}
			warmed++
		}
	}
	log.Infof("%s Warmed %d query combinations in %s", logcolors.LogOptimizer, warmed, time.Since(started))
}
