package catalog

import (
	"encoding/json"
	"time"
)

// QueryFilters is the closed set of product query filters. Optional scalar
// filters are pointers so unset and zero-valued filters stay distinct.
type QueryFilters struct {
	Categories       []string `json:"categories,omitempty"`
	PriceMin         *float64 `json:"priceMin,omitempty"`
	PriceMax         *float64 `json:"priceMax,omitempty"`
	MerchantID       *string  `json:"merchantId,omitempty"`
	InStock          *bool    `json:"inStock,omitempty"`
	Featured         *bool    `json:"featured,omitempty"`
	Values           []string `json:"values,omitempty"`
	IsActive         *bool    `json:"isActive,omitempty"`
	IsSuppressed     *bool    `json:"isSuppressed,omitempty"`
	SearchQuery      *string  `json:"searchQuery,omitempty"`
	OrderByRelevance *bool    `json:"orderByRelevance,omitempty"`

	// Cursor position filters used by cursor-based queries
	CursorCreatedBefore *time.Time `json:"cursorCreatedBefore,omitempty"`
	CursorIDBefore      *string    `json:"cursorIdBefore,omitempty"`
}

// Canonical returns a deterministic serialization of the set filters:
// a JSON object with keys in sorted order, unset fields omitted. Two
// filter values describing the same query always canonicalize identically.
func (f QueryFilters) Canonical() string {
	m := map[string]interface{}{}

	if len(f.Categories) > 0 {
		m["categories"] = f.Categories
	}
	if f.PriceMin != nil {
		m["priceMin"] = *f.PriceMin
	}
	if f.PriceMax != nil {
		m["priceMax"] = *f.PriceMax
	}
	if f.MerchantID != nil {
		m["merchantId"] = *f.MerchantID
	}
	if f.InStock != nil {
		m["inStock"] = *f.InStock
	}
	if f.Featured != nil {
		m["featured"] = *f.Featured
	}
	if len(f.Values) > 0 {
		m["values"] = f.Values
	}
	if f.IsActive != nil {
		m["isActive"] = *f.IsActive
	}
	if f.IsSuppressed != nil {
		m["isSuppressed"] = *f.IsSuppressed
	}
	if f.SearchQuery != nil {
		m["searchQuery"] = *f.SearchQuery
	}
	if f.OrderByRelevance != nil {
		m["orderByRelevance"] = *f.OrderByRelevance
	}
	if f.CursorCreatedBefore != nil {
		m["cursorCreatedBefore"] = f.CursorCreatedBefore.UTC().Format(time.RFC3339Nano)
	}
	if f.CursorIDBefore != nil {
		m["cursorIdBefore"] = *f.CursorIDBefore
	}

	// Map keys marshal in sorted order
	data, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// Bool returns a pointer to v, for building filters inline
func Bool(v bool) *bool { return &v }

// String returns a pointer to v, for building filters inline
func String(v string) *string { return &v }

// Float returns a pointer to v, for building filters inline
func Float(v float64) *float64 { return &v }
