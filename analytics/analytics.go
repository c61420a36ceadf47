package analytics

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"catalog-cache-go/cache"
	"catalog-cache-go/catalog"
	"catalog-cache-go/logcolors"
	"catalog-cache-go/services/notifier"
	"catalog-cache-go/stats"

	"github.com/cespare/xxhash/v2"
	log "github.com/sirupsen/logrus"
)

const (
	analyticsCacheKey = "query:analytics"
	metricKeysKey     = "query:metric:keys"
	metricKeyPrefix   = "query:metrics:"

	maxStoredQueries = 100
	analyticsTTL     = 7 * 24 * time.Hour
	metricsRetention = 48 * time.Hour
)

// QueryMetrics is one recorded query execution
type QueryMetrics struct {
	QueryID       string               `json:"queryId"`
	QueryPattern  string               `json:"queryPattern"`
	Filters       catalog.QueryFilters `json:"filters"`
	ExecutionTime int64                `json:"executionTime"` // milliseconds
	Timestamp     int64                `json:"timestamp"`     // unix milliseconds
	ResultCount   int                  `json:"resultCount"`
}

// QueryAnalytics is the aggregated view of one query's recent executions
type QueryAnalytics struct {
	QueryID              string         `json:"queryId"`
	QueryPattern         string         `json:"queryPattern"`
	AverageExecutionTime float64        `json:"averageExecutionTime"`
	MinExecutionTime     int64          `json:"minExecutionTime"`
	MaxExecutionTime     int64          `json:"maxExecutionTime"`
	TotalExecutions      int            `json:"totalExecutions"`
	LastExecutionTime    int64          `json:"lastExecutionTime"`
	LastExecuted         int64          `json:"lastExecuted"`
	Frequency            int            `json:"frequency"` // executions in the last hour
	IsSlowQuery          bool           `json:"isSlowQuery"`
	CommonFilters        map[string]int `json:"commonFilters"` // filter name -> occurrences
	ResultSizes          []int          `json:"resultSizes"`   // last 10 result sizes
}

// Service records query executions and periodically aggregates them into
// an analytics snapshot. All state lives in the resilient cache, so a cache
// outage degrades analytics instead of the query path.
type Service struct {
	cache              *cache.ResilientCache
	slowQueryThreshold time.Duration
	now                func() time.Time

	mu sync.Mutex // serializes read-modify-write of the cached metric lists
}

// New creates an analytics service with the given slow-query threshold
func New(rc *cache.ResilientCache, slowQueryThreshold time.Duration) *Service {
	if slowQueryThreshold <= 0 {
		slowQueryThreshold = 500 * time.Millisecond
	}
	return &Service{
		cache:              rc,
		slowQueryThreshold: slowQueryThreshold,
		now:                time.Now,
	}
}

// GenerateQueryID fingerprints a query pattern plus its filters.
// Identical queries always map to the same id.
func GenerateQueryID(queryPattern string, filters catalog.QueryFilters) string {
	queryString := queryPattern + ":" + filters.Canonical()
	sum := xxhash.Sum64String(queryString)
	return "q" + strconv.FormatUint(sum, 36)
}

// RecordQuery records one query execution: appends it to the per-query
// metric list, tracks the query id, and flags slow executions. Failures
// here never affect the caller.
func (s *Service) RecordQuery(ctx context.Context, queryPattern string, filters catalog.QueryFilters, executionTime time.Duration, resultCount int) {
	queryID := GenerateQueryID(queryPattern, filters)
	metricKey := metricKeyPrefix + queryID
	now := s.now()

	s.mu.Lock()
	s.trackMetricKey(ctx, metricKey)

	// Append to this query's metric list, dropping entries past retention
	var metrics []QueryMetrics
	s.cache.GetJSON(metricKey, &metrics)

	metrics = append(metrics, QueryMetrics{
		QueryID:       queryID,
		QueryPattern:  queryPattern,
		Filters:       filters,
		ExecutionTime: executionTime.Milliseconds(),
		Timestamp:     now.UnixMilli(),
		ResultCount:   resultCount,
	})

	cutoff := now.Add(-metricsRetention).UnixMilli()
	kept := metrics[:0]
	for _, m := range metrics {
		if m.Timestamp >= cutoff {
			kept = append(kept, m)
		}
	}
	s.cache.SetJSON(ctx, metricKey, kept, analyticsTTL)
	s.mu.Unlock()

	if executionTime > s.slowQueryThreshold {
		stats.Get().RecordSlowQuery()
		log.Warnf("%s Slow query detected: %s (%dms)", logcolors.LogAnalytics, queryPattern, executionTime.Milliseconds())
		notifier.PublishSlowQuery(queryID, queryPattern,
			float64(executionTime.Milliseconds()), int(s.slowQueryThreshold.Milliseconds()))
	}
}

// trackMetricKey keeps the capped list of known metric keys, evicting the
// oldest once maxStoredQueries distinct queries are tracked. Callers must
// hold s.mu.
func (s *Service) trackMetricKey(ctx context.Context, metricKey string) {
	var keys []string
	s.cache.GetJSON(metricKeysKey, &keys)

	for _, k := range keys {
		if k == metricKey {
			return
		}
	}

	if len(keys) >= maxStoredQueries {
		keys = keys[1:] // Remove oldest
	}
	keys = append(keys, metricKey)
	s.cache.SetJSON(ctx, metricKeysKey, keys, analyticsTTL)
}

// ProcessQueryAnalytics rebuilds the full analytics snapshot from the
// tracked per-query metric lists. Queries whose metrics have aged out are
// dropped from the snapshot.
func (s *Service) ProcessQueryAnalytics(ctx context.Context) {
	log.Infof("%s Processing query analytics...", logcolors.LogAnalytics)

	var metricKeys []string
	s.cache.GetJSON(metricKeysKey, &metricKeys)

	analyticsByID := make(map[string]QueryAnalytics)
	now := s.now()

	for _, key := range metricKeys {
		queryID := strings.TrimPrefix(key, metricKeyPrefix)

		var metrics []QueryMetrics
		s.cache.GetJSON(key, &metrics)
		if len(metrics) == 0 {
			continue
		}

		analyticsByID[queryID] = s.aggregate(queryID, metrics, now)
	}

	s.cache.SetJSON(ctx, analyticsCacheKey, analyticsByID, analyticsTTL)
	log.Infof("%s Processed analytics for %d queries", logcolors.LogAnalytics, len(analyticsByID))
}

func (s *Service) aggregate(queryID string, metrics []QueryMetrics, now time.Time) QueryAnalytics {
	total := len(metrics)
	var sum int64
	minTime := metrics[0].ExecutionTime
	maxTime := metrics[0].ExecutionTime
	var lastExecuted int64
	var lastExecutionTime int64

	for _, m := range metrics {
		sum += m.ExecutionTime
		if m.ExecutionTime < minTime {
			minTime = m.ExecutionTime
		}
		if m.ExecutionTime > maxTime {
			maxTime = m.ExecutionTime
		}
		if m.Timestamp > lastExecuted {
			lastExecuted = m.Timestamp
			lastExecutionTime = m.ExecutionTime
		}
	}
	avg := float64(sum) / float64(total)

	// Frequency: executions within the last hour
	hourAgo := now.Add(-time.Hour).UnixMilli()
	frequency := 0
	for _, m := range metrics {
		if m.Timestamp >= hourAgo {
			frequency++
		}
	}

	// Count filter usage across executions
	commonFilters := make(map[string]int)
	for _, m := range metrics {
		for _, name := range filterNames(m.Filters) {
			commonFilters[name]++
		}
	}

	// Last 10 result sizes, newest first
	sorted := make([]QueryMetrics, len(metrics))
	copy(sorted, metrics)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp > sorted[j].Timestamp })
	n := len(sorted)
	if n > 10 {
		n = 10
	}
	resultSizes := make([]int, 0, n)
	for _, m := range sorted[:n] {
		resultSizes = append(resultSizes, m.ResultCount)
	}

	return QueryAnalytics{
		QueryID:              queryID,
		QueryPattern:         metrics[0].QueryPattern,
		AverageExecutionTime: avg,
		MinExecutionTime:     minTime,
		MaxExecutionTime:     maxTime,
		TotalExecutions:      total,
		LastExecutionTime:    lastExecutionTime,
		LastExecuted:         lastExecuted,
		Frequency:            frequency,
		IsSlowQuery:          avg > float64(s.slowQueryThreshold.Milliseconds()),
		CommonFilters:        commonFilters,
		ResultSizes:          resultSizes,
	}
}

// StartProcessing rebuilds the snapshot on the given interval until ctx
// is cancelled
func (s *Service) StartProcessing(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Infof("%s Analytics processing stopped", logcolors.LogAnalytics)
				return
			case <-ticker.C:
				s.ProcessQueryAnalytics(ctx)
			}
		}
	}()
	log.Infof("%s Analytics processing scheduled every %v", logcolors.LogAnalytics, interval)
}

// GetQueryAnalytics returns the last processed snapshot for all queries
func (s *Service) GetQueryAnalytics() []QueryAnalytics {
	snapshot := s.snapshot()
	out := make([]QueryAnalytics, 0, len(snapshot))
	for _, a := range snapshot {
		out = append(out, a)
	}
	return out
}

// GetSlowQueries returns snapshot entries whose average exceeds the threshold
func (s *Service) GetSlowQueries() []QueryAnalytics {
	all := s.GetQueryAnalytics()
	slow := make([]QueryAnalytics, 0)
	for _, a := range all {
		if a.IsSlowQuery {
			slow = append(slow, a)
		}
	}
	return slow
}

// GetQueryAnalyticsByID returns the snapshot entry for one query, or nil
func (s *Service) GetQueryAnalyticsByID(queryID string) *QueryAnalytics {
	snapshot := s.snapshot()
	if a, ok := snapshot[queryID]; ok {
		return &a
	}
	return nil
}

// GetMostFrequentQueries returns up to limit snapshot entries ordered by
// last-hour frequency, highest first
func (s *Service) GetMostFrequentQueries(limit int) []QueryAnalytics {
	if limit <= 0 {
		limit = 10
	}
	all := s.GetQueryAnalytics()
	sort.Slice(all, func(i, j int) bool { return all[i].Frequency > all[j].Frequency })
	if len(all) > limit {
		all = all[:limit]
	}
	return all
}

func (s *Service) snapshot() map[string]QueryAnalytics {
	snapshot := make(map[string]QueryAnalytics)
	s.cache.GetJSON(analyticsCacheKey, &snapshot)
	return snapshot
}

// filterNames lists the set filter fields by their canonical names
func filterNames(f catalog.QueryFilters) []string {
	var names []string
	if len(f.Categories) > 0 {
		names = append(names, "categories")
	}
	if f.PriceMin != nil {
		names = append(names, "priceMin")
	}
	if f.PriceMax != nil {
		names = append(names, "priceMax")
	}
	if f.MerchantID != nil {
		names = append(names, "merchantId")
	}
	if f.InStock != nil {
		names = append(names, "inStock")
	}
	if f.Featured != nil {
		names = append(names, "featured")
	}
	if len(f.Values) > 0 {
		names = append(names, "values")
	}
	if f.IsActive != nil {
		names = append(names, "isActive")
	}
	if f.IsSuppressed != nil {
		names = append(names, "isSuppressed")
	}
	if f.SearchQuery != nil {
		names = append(names, "searchQuery")
	}
	if f.OrderByRelevance != nil {
		names = append(names, "orderByRelevance")
	}
	return names
}
