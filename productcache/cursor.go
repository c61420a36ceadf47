package productcache

import (
	"context"

	"catalog-cache-go/catalog"
	"catalog-cache-go/logcolors"

	log "github.com/sirupsen/logrus"
)

const (
	defaultCursorLimit = 20
	maxCursorLimit     = 100
)

// CursorProducts serves a cursor page of the catalog, cache first. A
// malformed cursor is not an error: the page restarts from the newest
// products, matching what a client with a stale cursor needs anyway.
// Inactive listings are only visible when includeInactive is set, and
// those responses bypass the cache so public traffic never sees them.
func (s *Service) CursorProducts(ctx context.Context, pag catalog.CursorPagination, includeInactive bool) (*catalog.PaginatedResponse, error) {
	limit := pag.Limit
	if limit <= 0 {
		limit = defaultCursorLimit
	}
	if limit > maxCursorLimit {
		limit = maxCursorLimit
	}

	cacheable := !includeInactive
	if cacheable && !pag.WithCount {
		if resp, ok := s.GetCachedCursorPage(pag.Cursor, limit); ok {
			return resp, nil
		}
	}

	filters := catalog.QueryFilters{
		IsSuppressed: catalog.Bool(false),
	}
	if !includeInactive {
		filters.IsActive = catalog.Bool(true)
	}

	if pag.Cursor != "" {
		id, createdAt, err := catalog.DecodeCursor(pag.Cursor)
		if err != nil {
			log.Warnf("%s Malformed cursor %q, restarting from the top: %v", logcolors.LogCursor, pag.Cursor, err)
		} else {
			filters.CursorCreatedBefore = &createdAt
			filters.CursorIDBefore = &id
		}
	}

	// One extra row tells us whether another page exists without a count.
	items, _, err := s.store.Query(ctx, filters, 0, limit+1)
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	resp := catalog.PaginatedResponse{
		Items:   items,
		HasMore: hasMore,
	}
	if hasMore {
		last := items[len(items)-1]
		resp.NextCursor = catalog.EncodeCursor(last.ID, last.CreatedAt)
	}

	if pag.WithCount {
		countFilters := filters
		countFilters.CursorCreatedBefore = nil
		countFilters.CursorIDBefore = nil
		_, total, err := s.store.Query(ctx, countFilters, 0, 1)
		if err != nil {
			return nil, err
		}
		resp.Total = &total
	}

	if cacheable && !pag.WithCount {
		s.CacheCursorPage(ctx, pag.Cursor, limit, resp)
	}
	return &resp, nil
}
