package main

import (
	"github.com/gorilla/mux"
)

// setupRoutes configures the ops/observability HTTP surface
func setupRoutes(router *mux.Router, app *App) {
	// Health and stats endpoints
	router.HandleFunc("/health", app.getHealthStatus).Methods("GET")
	router.HandleFunc("/stats", app.getStats).Methods("GET")

	// Cache management endpoints
	router.HandleFunc("/cache/stats", app.getCacheStats).Methods("GET")
	router.HandleFunc("/cache/reset", app.resetCache).Methods("POST")

	// Query analytics endpoints
	router.HandleFunc("/analytics", app.getQueryAnalytics).Methods("GET")
	router.HandleFunc("/analytics/slow", app.getSlowQueries).Methods("GET")
	router.HandleFunc("/analytics/frequent", app.getFrequentQueries).Methods("GET")

	// Warming
	router.HandleFunc("/warmup", app.warmupHandler).Methods("POST")

	// Circuit breaker endpoints
	router.HandleFunc("/circuit-breaker", app.getCircuitBreakerStatus).Methods("GET")
	router.HandleFunc("/circuit-breaker/reset", app.resetCircuitBreaker).Methods("POST")

	// Help endpoint
	router.HandleFunc("/", app.helpHandler).Methods("GET")
}
