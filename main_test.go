package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"catalog-cache-go/analytics"
	"catalog-cache-go/cache"
	"catalog-cache-go/catalog"
	"catalog-cache-go/circuitbreaker"
	"catalog-cache-go/config"
	"catalog-cache-go/optimizer"
	"catalog-cache-go/pagination"
	"catalog-cache-go/productcache"
	"catalog-cache-go/services/notifier"

	"github.com/gorilla/mux"
)

func newTestApp(t *testing.T, accessToken string) *App {
	t.Helper()

	testConf := config.Get()
	testConf.Configuration.CacheAccessToken = accessToken

	primary := cache.NewMemoryClient()
	fallback := cache.NewFallbackCache(1000, time.Minute)
	breaker := circuitbreaker.New(circuitbreaker.Config{
		Name:      "ops-test",
		Threshold: 3,
		Cooldown:  time.Minute,
	})
	rc := cache.NewResilientCache(primary, fallback, breaker)

	store := catalog.NewMemoryStore(catalog.Product{
		ID: "p1", MerchantID: "m1", Title: "Wireless Earbuds",
		InStock: true, IsActive: true, Featured: true,
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	})
	bus := notifier.NewEventBus()
	analyticsSvc := analytics.New(rc, 500*time.Millisecond)
	pages := pagination.New(rc)
	products := productcache.New(rc, pages, store, bus, productcache.Options{})
	opt := optimizer.New(rc, pages, analyticsSvc, store)

	return &App{
		conf:      testConf,
		primary:   primary,
		cache:     rc,
		breaker:   breaker,
		analytics: analyticsSvc,
		pages:     pages,
		products:  products,
		optimizer: opt,
		store:     store,
		bus:       bus,
	}
}

func newTestRouter(t *testing.T, accessToken string) (*mux.Router, *App) {
	app := newTestApp(t, accessToken)
	router := mux.NewRouter()
	setupRoutes(router, app)
	return router, app
}

func doRequest(router *mux.Router, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHelpEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, "")

	rec := doRequest(router, "GET", "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if body["service"] != "catalog-cache" {
		t.Errorf("Expected service name in help, got %v", body["service"])
	}
	if _, ok := body["endpoints"]; !ok {
		t.Error("Expected endpoint listing in help")
	}
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, "")

	rec := doRequest(router, "GET", "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("Expected ok status, got %v", body["status"])
	}
}

func TestHealthEndpointDegradedWhenBreakerOpen(t *testing.T) {
	router, app := newTestRouter(t, "")

	for i := 0; i < 3; i++ {
		app.breaker.RecordFailure()
	}

	rec := doRequest(router, "GET", "/health")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503 with open breaker, got %d", rec.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if body["status"] != "degraded" {
		t.Errorf("Expected degraded status, got %v", body["status"])
	}
}

func TestStatsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, "")

	rec := doRequest(router, "GET", "/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	for _, section := range []string{"server", "requests", "cache"} {
		if _, ok := body[section]; !ok {
			t.Errorf("Expected %q section in stats", section)
		}
	}
}

func TestCacheStatsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, "")

	rec := doRequest(router, "GET", "/cache/stats")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if _, ok := body["circuit_breaker"]; !ok {
		t.Error("Expected circuit_breaker section in cache stats")
	}
}

func TestCacheResetRequiresConfiguredToken(t *testing.T) {
	router, _ := newTestRouter(t, "")

	rec := doRequest(router, "POST", "/cache/reset")
	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403 with no token configured, got %d", rec.Code)
	}
}

func TestCacheResetRejectsWrongToken(t *testing.T) {
	router, _ := newTestRouter(t, "secret")

	rec := doRequest(router, "POST", "/cache/reset?token=wrong")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 with wrong token, got %d", rec.Code)
	}
}

func TestCacheResetClearsCache(t *testing.T) {
	router, app := newTestRouter(t, "secret")

	app.cache.Set(context.Background(), "some:key", "value", time.Minute)

	rec := doRequest(router, "POST", "/cache/reset?token=secret")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	if _, ok := app.cache.Get("some:key"); ok {
		t.Error("Expected cache to be empty after reset")
	}
}

func TestCacheResetPublishesEvent(t *testing.T) {
	router, _ := newTestRouter(t, "secret")

	received := make(chan *notifier.Event, 1)
	notifier.GetEventBus().Subscribe(notifier.EventCacheReset, func(e *notifier.Event) {
		select {
		case received <- e:
		default:
		}
	})

	rec := doRequest(router, "POST", "/cache/reset?token=secret")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	select {
	case e := <-received:
		if e.Data["reason"] != "api request" {
			t.Errorf("Expected reason 'api request', got %v", e.Data["reason"])
		}
	case <-time.After(time.Second):
		t.Fatal("Expected cache_reset event")
	}
}

func TestCacheResetAcceptsHeaderToken(t *testing.T) {
	router, _ := newTestRouter(t, "secret")

	req := httptest.NewRequest("POST", "/cache/reset", nil)
	req.Header.Set("X-Access-Token", "secret")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 with header token, got %d", rec.Code)
	}
}

func TestAnalyticsEndpoints(t *testing.T) {
	router, _ := newTestRouter(t, "")

	for _, path := range []string{"/analytics", "/analytics/slow", "/analytics/frequent"} {
		rec := doRequest(router, "GET", path)
		if rec.Code != http.StatusOK {
			t.Errorf("Expected 200 from %s, got %d", path, rec.Code)
			continue
		}

		var body map[string]interface{}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Errorf("Failed to decode %s body: %v", path, err)
			continue
		}
		if _, ok := body["queries"]; !ok {
			t.Errorf("Expected queries key from %s", path)
		}
	}
}

func TestFrequentQueriesRejectsBadLimit(t *testing.T) {
	router, _ := newTestRouter(t, "")

	for _, path := range []string{"/analytics/frequent?limit=abc", "/analytics/frequent?limit=0"} {
		rec := doRequest(router, "GET", path)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400 from %s, got %d", path, rec.Code)
		}
	}
}

func TestWarmupEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, "secret")

	rec := doRequest(router, "POST", "/warmup?token=secret")
	if rec.Code != http.StatusAccepted {
		t.Errorf("Expected 202, got %d", rec.Code)
	}
}

func TestCircuitBreakerStatusEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, "")

	rec := doRequest(router, "GET", "/circuit-breaker")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Failed to decode body: %v", err)
	}
	if body["state"] != "CLOSED" {
		t.Errorf("Expected CLOSED state, got %v", body["state"])
	}
}

func TestCircuitBreakerResetEndpoint(t *testing.T) {
	router, app := newTestRouter(t, "secret")

	for i := 0; i < 3; i++ {
		app.breaker.RecordFailure()
	}
	if !app.breaker.IsOpen() {
		t.Fatal("Expected breaker open before reset")
	}

	rec := doRequest(router, "POST", "/circuit-breaker/reset?token=secret")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if app.breaker.IsOpen() {
		t.Error("Expected breaker closed after reset")
	}
}
