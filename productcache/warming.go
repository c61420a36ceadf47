package productcache

import (
	"context"
	"sort"
	"time"

	"catalog-cache-go/catalog"
	"catalog-cache-go/logcolors"
	"catalog-cache-go/services/notifier"

	log "github.com/sirupsen/logrus"
)

const (
	warmPopularTake  = 50
	warmTopMerchants = 10
)

var (
	warmPopularLimits = []int{10, 20, 30, 50}
	warmListingLimits = []int{10, 20}
	warmCategoryPages = []int{1, 2}
)

// WarmPopularProductsCache fetches the featured in-stock set once and fans
// it out across the limits clients actually request.
func (s *Service) WarmPopularProductsCache(ctx context.Context) error {
	filters := catalog.QueryFilters{
		Featured: catalog.Bool(true),
		InStock:  catalog.Bool(true),
		IsActive: catalog.Bool(true),
	}
	products, _, err := s.store.Query(ctx, filters, 0, warmPopularTake)
	if err != nil {
		return err
	}

	for _, limit := range warmPopularLimits {
		n := limit
		if n > len(products) {
			n = len(products)
		}
		s.CachePopularProducts(ctx, limit, products[:n])
	}
	log.Infof("%s Warmed popular products, %d items across %d limits", logcolors.LogWarmup, len(products), len(warmPopularLimits))
	return nil
}

// WarmCategoryProductsCache pre-fills the first pages of the configured
// high-traffic categories.
func (s *Service) WarmCategoryProductsCache(ctx context.Context) error {
	for _, category := range s.warmCategories {
		filters := catalog.QueryFilters{
			Categories: []string{category},
			IsActive:   catalog.Bool(true),
		}
		for _, page := range warmCategoryPages {
			for _, limit := range warmListingLimits {
				products, _, err := s.store.Query(ctx, filters, (page-1)*limit, limit)
				if err != nil {
					return err
				}
				if len(products) == 0 {
					continue
				}
				s.CacheCategoryProducts(ctx, category, page, limit, products)
			}
		}
	}
	log.Infof("%s Warmed category products for %d categories", logcolors.LogWarmup, len(s.warmCategories))
	return nil
}

// WarmMerchantProductsCache finds the merchants with the largest active
// catalogs and pre-fills their first page.
func (s *Service) WarmMerchantProductsCache(ctx context.Context) error {
	merchants, err := s.topMerchants(ctx, warmTopMerchants)
	if err != nil {
		return err
	}

	for _, merchantID := range merchants {
		filters := catalog.QueryFilters{
			MerchantID: catalog.String(merchantID),
			IsActive:   catalog.Bool(true),
		}
		for _, limit := range warmListingLimits {
			products, _, err := s.store.Query(ctx, filters, 0, limit)
			if err != nil {
				return err
			}
			if len(products) == 0 {
				continue
			}
			s.CacheMerchantProducts(ctx, merchantID, 1, limit, products)
		}
	}
	log.Infof("%s Warmed merchant products for %d merchants", logcolors.LogWarmup, len(merchants))
	return nil
}

// topMerchants ranks merchants by active product count, ties broken by ID
// so the result is stable between runs.
func (s *Service) topMerchants(ctx context.Context, n int) ([]string, error) {
	products, _, err := s.store.Query(ctx, catalog.QueryFilters{IsActive: catalog.Bool(true)}, 0, 0)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, p := range products {
		counts[p.MerchantID]++
	}

	merchants := make([]string, 0, len(counts))
	for id := range counts {
		merchants = append(merchants, id)
	}
	sort.Slice(merchants, func(i, j int) bool {
		if counts[merchants[i]] != counts[merchants[j]] {
			return counts[merchants[i]] > counts[merchants[j]]
		}
		return merchants[i] < merchants[j]
	})

	if len(merchants) > n {
		merchants = merchants[:n]
	}
	return merchants, nil
}

// WarmCache runs the full warming pass. Individual failures are logged but
// do not abort the remaining passes; the store may recover between them.
func (s *Service) WarmCache(ctx context.Context) {
	started := time.Now()

	if err := s.WarmPopularProductsCache(ctx); err != nil {
		log.Warnf("%s Popular warming failed: %v", logcolors.LogWarmup, err)
	}
	if err := s.WarmCategoryProductsCache(ctx); err != nil {
		log.Warnf("%s Category warming failed: %v", logcolors.LogWarmup, err)
	}
	if err := s.WarmMerchantProductsCache(ctx); err != nil {
		log.Warnf("%s Merchant warming failed: %v", logcolors.LogWarmup, err)
	}

	duration := time.Since(started)
	log.Infof("%s Cache warming complete in %s", logcolors.LogWarmup, duration)

	notifier.PublishCacheWarmingComplete(duration)
}

// StartWarming warms immediately and then on every tick until ctx is done.
func (s *Service) StartWarming(ctx context.Context, interval time.Duration) {
	go func() {
		s.WarmCache(ctx)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.WarmCache(ctx)
			}
		}
	}()
}
