package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Store is the backing product source the cache layer sits in front of.
// Query returns one page of matching products ordered by createdAt
// descending (id descending as tiebreak), plus the total match count.
// A take of zero or less means no page limit: every match from skip
// onward is returned.
type Store interface {
	Query(ctx context.Context, filters QueryFilters, skip, take int) ([]Product, int, error)
}

// MemoryStore is a map-backed Store for tests and local wiring
type MemoryStore struct {
	mu       sync.RWMutex
	products []Product
}

// NewMemoryStore creates a store pre-populated with the given products
func NewMemoryStore(products ...Product) *MemoryStore {
	s := &MemoryStore{}
	s.products = append(s.products, products...)
	return s
}

// Add appends a product
func (s *MemoryStore) Add(p Product) {
	s.mu.Lock()
	s.products = append(s.products, p)
	s.mu.Unlock()
}

// Query filters, sorts and pages the stored products
func (s *MemoryStore) Query(ctx context.Context, filters QueryFilters, skip, take int) ([]Product, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	s.mu.RLock()
	matched := make([]Product, 0, len(s.products))
	for _, p := range s.products {
		if matches(p, filters) {
			matched = append(matched, p)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := len(matched)
	if skip < 0 {
		skip = 0
	}
	if skip >= total {
		return []Product{}, total, nil
	}
	end := skip + take
	if take <= 0 || end > total {
		end = total
	}
	return matched[skip:end], total, nil
}

func matches(p Product, f QueryFilters) bool {
	if len(f.Categories) > 0 && !intersects(p.Categories, f.Categories) {
		return false
	}
	if f.PriceMin != nil && p.Price < *f.PriceMin {
		return false
	}
	if f.PriceMax != nil && p.Price > *f.PriceMax {
		return false
	}
	if f.MerchantID != nil && p.MerchantID != *f.MerchantID {
		return false
	}
	if f.InStock != nil && p.InStock != *f.InStock {
		return false
	}
	if f.Featured != nil && p.Featured != *f.Featured {
		return false
	}
	if len(f.Values) > 0 && !intersects(p.Values, f.Values) {
		return false
	}
	if f.IsActive != nil && p.IsActive != *f.IsActive {
		return false
	}
	if f.IsSuppressed != nil && p.IsSuppressed != *f.IsSuppressed {
		return false
	}
	if f.SearchQuery != nil {
		q := strings.ToLower(*f.SearchQuery)
		if !strings.Contains(strings.ToLower(p.Title), q) &&
			!strings.Contains(strings.ToLower(p.Description), q) &&
			!strings.Contains(strings.ToLower(p.BrandName), q) {
			return false
		}
	}
	if f.CursorCreatedBefore != nil {
		if p.CreatedAt.After(*f.CursorCreatedBefore) || p.CreatedAt.Equal(*f.CursorCreatedBefore) {
			// Same-instant rows pass only when the id tiebreak says so
			if f.CursorIDBefore == nil || !p.CreatedAt.Equal(*f.CursorCreatedBefore) || p.ID >= *f.CursorIDBefore {
				return false
			}
		}
	}
	return true
}

func intersects(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}
