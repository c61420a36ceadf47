package productcache

import (
	"fmt"

	"catalog-cache-go/catalog"
)

// Key generators for every product keyspace. Keys are deterministic so the
// same request always lands on the same entry regardless of which caller
// built the key.

func ProductKey(productID string) string {
	return "product:" + productID
}

func ProductListKey(page, limit int) string {
	return fmt.Sprintf("products:list:%d:%d", page, limit)
}

// CursorListKey keys a cursor page. The first page has no cursor and is
// stored under the "initial" slot.
func CursorListKey(cursor string, limit int) string {
	if cursor == "" {
		cursor = "initial"
	}
	return fmt.Sprintf("products:cursor:%s:%d", cursor, limit)
}

func MerchantProductsKey(merchantID string, page, limit int) string {
	return fmt.Sprintf("products:merchant:%s:%d:%d", merchantID, page, limit)
}

// merchantPrefix covers every page and limit cached for one merchant.
func merchantPrefix(merchantID string) string {
	return fmt.Sprintf("products:merchant:%s:", merchantID)
}

func CategoryProductsKey(category string, page, limit int) string {
	return fmt.Sprintf("products:category:%s:%d:%d", category, page, limit)
}

func PopularProductsKey(limit int) string {
	return fmt.Sprintf("products:popular:%d", limit)
}

func RecommendedProductsKey(userID string, limit int) string {
	return fmt.Sprintf("products:recommended:%s:%d", userID, limit)
}

func DiscoveryProductsKey(limit int) string {
	return fmt.Sprintf("products:discovery:%d", limit)
}

// SearchKey includes the canonical filter encoding so two searches with the
// same text but different filters never collide.
func SearchKey(query string, page, limit int, filters *catalog.QueryFilters) string {
	filterPart := "nofilters"
	if filters != nil {
		if canonical := filters.Canonical(); canonical != "{}" {
			filterPart = canonical
		}
	}
	return fmt.Sprintf("products:search:%s:%d:%d:%s", query, page, limit, filterPart)
}
