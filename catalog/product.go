package catalog

import "time"

// Product is the catalog entity flowing through the cache layer
type Product struct {
	ID           string    `json:"id"`
	MerchantID   string    `json:"merchantId"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	BrandName    string    `json:"brandName"`
	Price        float64   `json:"price"`
	Categories   []string  `json:"categories"`
	Values       []string  `json:"values"`
	InStock      bool      `json:"inStock"`
	IsActive     bool      `json:"isActive"`
	IsSuppressed bool      `json:"isSuppressed"`
	Featured     bool      `json:"featured"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Pagination is offset-based pagination input
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// CursorPagination is cursor-based pagination input
type CursorPagination struct {
	Cursor    string `json:"cursor,omitempty"`
	Limit     int    `json:"limit"`
	WithCount bool   `json:"withCount"`
}

// PaginatedResponse is the cursor pagination result envelope
type PaginatedResponse struct {
	Items      []Product `json:"items"`
	NextCursor string    `json:"nextCursor,omitempty"`
	PrevCursor string    `json:"prevCursor,omitempty"`
	Total      *int      `json:"total,omitempty"`
	HasMore    bool      `json:"hasMore"`
}
