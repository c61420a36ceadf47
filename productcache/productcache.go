package productcache

import (
	"context"
	"time"

	"catalog-cache-go/cache"
	"catalog-cache-go/catalog"
	"catalog-cache-go/logcolors"
	"catalog-cache-go/pagination"
	"catalog-cache-go/services/notifier"

	log "github.com/sirupsen/logrus"
)

// Options carries the per-keyspace TTLs and warming parameters. Zero values
// fall back to the defaults used in production.
type Options struct {
	ProductTTL     time.Duration
	PopularTTL     time.Duration
	CategoryTTL    time.Duration
	MerchantTTL    time.Duration
	WarmCategories []string
}

// Service is the product-aware layer over the resilient cache. It owns the
// product keyspaces, keeps them consistent with catalog mutations via domain
// events, and pre-warms the entries most traffic lands on.
type Service struct {
	cache *cache.ResilientCache
	pages *pagination.PaginationCache
	store catalog.Store
	bus   *notifier.EventBus

	productTTL  time.Duration
	popularTTL  time.Duration
	categoryTTL time.Duration
	merchantTTL time.Duration

	warmCategories []string
}

// New builds the product cache service. The pagination cache may be nil when
// page invalidation is handled elsewhere.
func New(rc *cache.ResilientCache, pages *pagination.PaginationCache, store catalog.Store, bus *notifier.EventBus, opts Options) *Service {
	if opts.ProductTTL <= 0 {
		opts.ProductTTL = time.Hour
	}
	if opts.PopularTTL <= 0 {
		opts.PopularTTL = 30 * time.Minute
	}
	if opts.CategoryTTL <= 0 {
		opts.CategoryTTL = time.Hour
	}
	if opts.MerchantTTL <= 0 {
		opts.MerchantTTL = time.Hour
	}
	if len(opts.WarmCategories) == 0 {
		opts.WarmCategories = []string{"electronics", "clothing", "home", "beauty"}
	}

	return &Service{
		cache:          rc,
		pages:          pages,
		store:          store,
		bus:            bus,
		productTTL:     opts.ProductTTL,
		popularTTL:     opts.PopularTTL,
		categoryTTL:    opts.CategoryTTL,
		merchantTTL:    opts.MerchantTTL,
		warmCategories: opts.WarmCategories,
	}
}

// GetCachedProduct returns a single cached product by ID.
func (s *Service) GetCachedProduct(productID string) (*catalog.Product, bool) {
	var p catalog.Product
	if !s.cache.GetJSON(ProductKey(productID), &p) {
		return nil, false
	}
	return &p, true
}

// CacheProduct stores a single product under its ID key.
func (s *Service) CacheProduct(ctx context.Context, p catalog.Product) {
	s.cache.SetJSON(ctx, ProductKey(p.ID), p, s.productTTL)
}

// GetCachedProductList returns a cached offset page of the full listing.
func (s *Service) GetCachedProductList(page, limit int) ([]catalog.Product, bool) {
	return s.getProducts(ProductListKey(page, limit))
}

// CacheProductList stores an offset page of the full listing.
func (s *Service) CacheProductList(ctx context.Context, page, limit int, products []catalog.Product) {
	s.cache.SetJSON(ctx, ProductListKey(page, limit), products, s.productTTL)
}

// GetCachedCursorPage returns a cached cursor page.
func (s *Service) GetCachedCursorPage(cursor string, limit int) (*catalog.PaginatedResponse, bool) {
	var resp catalog.PaginatedResponse
	if !s.cache.GetJSON(CursorListKey(cursor, limit), &resp) {
		return nil, false
	}
	return &resp, true
}

// CacheCursorPage stores a cursor page, including its next cursor, so a
// repeat of the same request skips the store entirely.
func (s *Service) CacheCursorPage(ctx context.Context, cursor string, limit int, resp catalog.PaginatedResponse) {
	s.cache.SetJSON(ctx, CursorListKey(cursor, limit), resp, s.productTTL)
}

// GetCachedMerchantProducts returns a cached merchant page.
func (s *Service) GetCachedMerchantProducts(merchantID string, page, limit int) ([]catalog.Product, bool) {
	return s.getProducts(MerchantProductsKey(merchantID, page, limit))
}

// CacheMerchantProducts stores a merchant page.
func (s *Service) CacheMerchantProducts(ctx context.Context, merchantID string, page, limit int, products []catalog.Product) {
	s.cache.SetJSON(ctx, MerchantProductsKey(merchantID, page, limit), products, s.merchantTTL)
}

// GetCachedCategoryProducts returns a cached category page.
func (s *Service) GetCachedCategoryProducts(category string, page, limit int) ([]catalog.Product, bool) {
	return s.getProducts(CategoryProductsKey(category, page, limit))
}

// CacheCategoryProducts stores a category page.
func (s *Service) CacheCategoryProducts(ctx context.Context, category string, page, limit int, products []catalog.Product) {
	s.cache.SetJSON(ctx, CategoryProductsKey(category, page, limit), products, s.categoryTTL)
}

// GetCachedPopularProducts returns the cached popular set for a limit.
func (s *Service) GetCachedPopularProducts(limit int) ([]catalog.Product, bool) {
	return s.getProducts(PopularProductsKey(limit))
}

// CachePopularProducts stores the popular set for a limit.
func (s *Service) CachePopularProducts(ctx context.Context, limit int, products []catalog.Product) {
	s.cache.SetJSON(ctx, PopularProductsKey(limit), products, s.popularTTL)
}

// GetCachedRecommendedProducts returns cached recommendations for a user.
func (s *Service) GetCachedRecommendedProducts(userID string, limit int) ([]catalog.Product, bool) {
	return s.getProducts(RecommendedProductsKey(userID, limit))
}

// CacheRecommendedProducts stores recommendations for a user.
func (s *Service) CacheRecommendedProducts(ctx context.Context, userID string, limit int, products []catalog.Product) {
	s.cache.SetJSON(ctx, RecommendedProductsKey(userID, limit), products, s.productTTL)
}

// GetCachedDiscoveryProducts returns the cached discovery feed for a limit.
func (s *Service) GetCachedDiscoveryProducts(limit int) ([]catalog.Product, bool) {
	return s.getProducts(DiscoveryProductsKey(limit))
}

// CacheDiscoveryProducts stores the discovery feed. Discovery content churns
// like the popular set, so it shares that TTL.
func (s *Service) CacheDiscoveryProducts(ctx context.Context, limit int, products []catalog.Product) {
	s.cache.SetJSON(ctx, DiscoveryProductsKey(limit), products, s.popularTTL)
}

// GetCachedSearchResults returns a cached search page.
func (s *Service) GetCachedSearchResults(query string, page, limit int, filters *catalog.QueryFilters) ([]catalog.Product, bool) {
	return s.getProducts(SearchKey(query, page, limit, filters))
}

// CacheSearchResults stores a search page.
func (s *Service) CacheSearchResults(ctx context.Context, query string, page, limit int, filters *catalog.QueryFilters, products []catalog.Product) {
	s.cache.SetJSON(ctx, SearchKey(query, page, limit, filters), products, s.productTTL)
}

func (s *Service) getProducts(key string) ([]catalog.Product, bool) {
	var products []catalog.Product
	if !s.cache.GetJSON(key, &products) {
		return nil, false
	}
	return products, true
}

// InvalidateProduct drops the single-product entry.
func (s *Service) InvalidateProduct(productID string) {
	s.cache.Del(ProductKey(productID))
	log.Debugf("%s Invalidated product %s", logcolors.LogProductCache, productID)
}

// InvalidateProductsByMerchant drops every cached page for one merchant.
func (s *Service) InvalidateProductsByMerchant(merchantID string) {
	s.cache.DelPrefix(merchantPrefix(merchantID))
	log.Debugf("%s Invalidated merchant pages for %s", logcolors.LogProductCache, merchantID)
}

// InvalidateAllProductsCache wipes both cache tiers. Used when a mutation
// changes listing membership and targeted invalidation cannot name every
// affected key.
func (s *Service) InvalidateAllProductsCache() {
	if err := s.cache.Reset(); err != nil {
		log.Warnf("%s Full cache reset incomplete: %v", logcolors.LogProductCache, err)
	}
	log.Infof("%s Full product cache reset", logcolors.LogProductCache)
}

// SubscribeInvalidation registers the cache consistency handlers on the
// event bus. Creations and deletions change which products appear in lists,
// so they reset everything; updates touch only the entity, its merchant
// pages and the related pagination groups.
func (s *Service) SubscribeInvalidation(ctx context.Context) {
	s.bus.Subscribe(notifier.EventProductCreated, func(event *notifier.Event) {
		s.InvalidateAllProductsCache()
	})
	s.bus.Subscribe(notifier.EventProductsBulkCreated, func(event *notifier.Event) {
		s.InvalidateAllProductsCache()
	})

	s.bus.Subscribe(notifier.EventProductUpdated, func(event *notifier.Event) {
		p, ok := event.Data["product"].(catalog.Product)
		if !ok {
			log.Warnf("%s product.updated event without product payload", logcolors.LogProductCache)
			return
		}
		s.handleProductUpdated(ctx, p)
	})
	s.bus.Subscribe(notifier.EventProductsBulkUpdated, func(event *notifier.Event) {
		products, ok := event.Data["products"].([]catalog.Product)
		if !ok {
			log.Warnf("%s products.bulk_updated event without products payload", logcolors.LogProductCache)
			return
		}
		for _, p := range products {
			s.handleProductUpdated(ctx, p)
		}
	})

	s.bus.Subscribe(notifier.EventProductDeleted, func(event *notifier.Event) {
		id, ok := event.Data["id"].(string)
		if ok {
			s.InvalidateProduct(id)
		}
		s.InvalidateAllProductsCache()
	})
}

func (s *Service) handleProductUpdated(ctx context.Context, p catalog.Product) {
	s.InvalidateProduct(p.ID)
	s.InvalidateProductsByMerchant(p.MerchantID)
	if s.pages != nil {
		s.pages.InvalidateRelatedPages(ctx, p)
	}
}
