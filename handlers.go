package main

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"catalog-cache-go/logcolors"
	"catalog-cache-go/services/notifier"
	"catalog-cache-go/stats"

	log "github.com/sirupsen/logrus"
)

func (a *App) helpHandler(w http.ResponseWriter, r *http.Request) {
	Respond(w, r).JSON(map[string]interface{}{
		"service": "catalog-cache",
		"endpoints": map[string]string{
			"GET /health":                 "Service and circuit breaker health",
			"GET /stats":                  "Request, cache and query counters",
			"GET /cache/stats":            "Cache tier sizes and breaker metrics",
			"POST /cache/reset":           "Clear both cache tiers (token required)",
			"GET /analytics":              "Last aggregated query analytics snapshot",
			"GET /analytics/slow":         "Queries averaging over the slow threshold",
			"GET /analytics/frequent":     "Most frequent queries, ?limit=N",
			"POST /warmup":                "Trigger cache warming (token required)",
			"GET /circuit-breaker":        "Breaker state and configuration",
			"POST /circuit-breaker/reset": "Force the breaker closed (token required)",
		},
	})
}

func (a *App) getHealthStatus(w http.ResponseWriter, r *http.Request) {
	metrics := a.breaker.GetMetrics()

	status := "ok"
	httpStatus := http.StatusOK
	if metrics.State == "OPEN" {
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable
	}

	body := map[string]interface{}{
		"status":          status,
		"uptime":          stats.Get().Uptime().String(),
		"circuit_breaker": metrics,
	}
	if httpStatus == http.StatusOK {
		Respond(w, r).JSON(body)
		return
	}
	Respond(w, r).Error(httpStatus, body)
}

func (a *App) getStats(w http.ResponseWriter, r *http.Request) {
	Respond(w, r).JSON(stats.Get().Snapshot())
}

func (a *App) getCacheStats(w http.ResponseWriter, r *http.Request) {
	Respond(w, r).JSON(a.cache.Stats())
}

// checkAccessToken gates destructive endpoints. With no token configured
// the endpoints stay disabled rather than open.
func (a *App) checkAccessToken(w http.ResponseWriter, r *http.Request) bool {
	configured := a.conf.Configuration.CacheAccessToken
	if configured == "" {
		Respond(w, r).Error(http.StatusForbidden, map[string]string{
			"error": "Access token not configured",
		})
		return false
	}

	provided := r.Header.Get("X-Access-Token")
	if provided == "" {
		provided = r.URL.Query().Get("token")
	}
	if provided != configured {
		log.Warnf("%s Invalid access token from %s for %s", logcolors.LogCache, r.RemoteAddr, r.URL.Path)
		Respond(w, r).Error(http.StatusUnauthorized, map[string]string{
			"error": "Invalid access token",
		})
		return false
	}
	return true
}

func (a *App) resetCache(w http.ResponseWriter, r *http.Request) {
	if !a.checkAccessToken(w, r) {
		return
	}

	if err := a.cache.Reset(); err != nil {
		Respond(w, r).Error(http.StatusInternalServerError, map[string]string{
			"error": "Cache reset incomplete: " + err.Error(),
		})
		return
	}

	log.Infof("%s Cache reset requested via API", logcolors.LogCacheReset)
	notifier.PublishCacheReset("api request")
	Respond(w, r).JSON(map[string]string{"status": "cache cleared"})
}

func (a *App) getQueryAnalytics(w http.ResponseWriter, r *http.Request) {
	Respond(w, r).JSON(map[string]interface{}{
		"queries": a.analytics.GetQueryAnalytics(),
	})
}

func (a *App) getSlowQueries(w http.ResponseWriter, r *http.Request) {
	Respond(w, r).JSON(map[string]interface{}{
		"queries": a.analytics.GetSlowQueries(),
	})
}

func (a *App) getFrequentQueries(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			Respond(w, r).Error(http.StatusBadRequest, map[string]string{
				"error": "limit must be a positive integer",
			})
			return
		}
		limit = parsed
	}

	Respond(w, r).JSON(map[string]interface{}{
		"queries": a.analytics.GetMostFrequentQueries(limit),
	})
}

func (a *App) warmupHandler(w http.ResponseWriter, r *http.Request) {
	if !a.checkAccessToken(w, r) {
		return
	}

	// Warming outlives the request, so it runs detached from its context.
	go func() {
		started := time.Now()
		ctx := context.Background()
		a.products.WarmCache(ctx)
		a.optimizer.WarmupQueryCache(ctx)
		log.Infof("%s API-triggered warmup finished in %s", logcolors.LogWarmup, time.Since(started))
	}()

	Respond(w, r).Error(http.StatusAccepted, map[string]string{"status": "warming started"})
}

func (a *App) getCircuitBreakerStatus(w http.ResponseWriter, r *http.Request) {
	Respond(w, r).JSON(a.breaker.GetMetrics())
}

func (a *App) resetCircuitBreaker(w http.ResponseWriter, r *http.Request) {
	if !a.checkAccessToken(w, r) {
		return
	}

	a.breaker.Reset()
	Respond(w, r).JSON(map[string]interface{}{
		"status":          "circuit breaker reset",
		"circuit_breaker": a.breaker.GetMetrics(),
	})
}
