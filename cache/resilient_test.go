package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"catalog-cache-go/circuitbreaker"
)

// flakyClient wraps MemoryClient with switchable failure injection
type flakyClient struct {
	mem *MemoryClient

	mu       sync.Mutex
	fail     bool
	getCalls int
}

func newFlakyClient() *flakyClient {
	return &flakyClient{mem: NewMemoryClient()}
}

func (f *flakyClient) setFailing(fail bool) {
	f.mu.Lock()
	f.fail = fail
	f.mu.Unlock()
}

func (f *flakyClient) failing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fail
}

func (f *flakyClient) gets() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getCalls
}

func (f *flakyClient) Get(key string) (string, bool, error) {
	f.mu.Lock()
	f.getCalls++
	fail := f.fail
	f.mu.Unlock()

	if fail {
		return "", false, errors.New("primary unavailable")
	}
	return f.mem.Get(key)
}

func (f *flakyClient) Set(key, value string, ttl time.Duration) error {
	if f.failing() {
		return errors.New("primary unavailable")
	}
	return f.mem.Set(key, value, ttl)
}

func (f *flakyClient) Del(key string) error {
	if f.failing() {
		return errors.New("primary unavailable")
	}
	return f.mem.Del(key)
}

func (f *flakyClient) Reset() error {
	if f.failing() {
		return errors.New("primary unavailable")
	}
	return f.mem.Reset()
}

func newTestResilientCache(primary Client) *ResilientCache {
	breaker := circuitbreaker.New(circuitbreaker.Config{
		Name:       "test-cache",
		Threshold:  3,
		Cooldown:   time.Minute,
		MaxRetries: 1,
		RetryDelay: time.Millisecond,
	})
	fallback := NewFallbackCache(100, time.Minute)
	return NewResilientCache(primary, fallback, breaker)
}

func TestResilientSetAndGet(t *testing.T) {
	rc := newTestResilientCache(newFlakyClient())

	rc.Set(context.Background(), "product:p1", `{"id":"p1"}`, time.Minute)

	value, ok := rc.Get("product:p1")
	if !ok {
		t.Fatal("Expected to find the key")
	}
	if value != `{"id":"p1"}` {
		t.Errorf("Expected stored value, got %q", value)
	}
}

func TestResilientGet_Miss(t *testing.T) {
	rc := newTestResilientCache(newFlakyClient())

	if _, ok := rc.Get("absent"); ok {
		t.Error("Expected miss for absent key")
	}
}

func TestResilientGet_PrimaryHitMirroredToFallback(t *testing.T) {
	primary := newFlakyClient()
	rc := newTestResilientCache(primary)

	rc.Set(context.Background(), "mirrored", "value", time.Minute)

	// Healthy read mirrors the value into the fallback tier
	if _, ok := rc.Get("mirrored"); !ok {
		t.Fatal("Expected hit from primary")
	}

	// Primary goes down; the mirrored value must still be served
	primary.setFailing(true)
	value, ok := rc.Get("mirrored")
	if !ok {
		t.Fatal("Expected fallback to serve the mirrored value")
	}
	if value != "value" {
		t.Errorf("Expected %q from fallback, got %q", "value", value)
	}
}

func TestResilientSet_RetainedInFallbackWhenPrimaryDown(t *testing.T) {
	primary := newFlakyClient()
	rc := newTestResilientCache(primary)

	primary.setFailing(true)
	rc.Set(context.Background(), "written-while-down", "value", time.Minute)

	value, ok := rc.Get("written-while-down")
	if !ok {
		t.Fatal("Expected fallback to retain the write")
	}
	if value != "value" {
		t.Errorf("Expected %q, got %q", "value", value)
	}
}

func TestResilient_BreakerOpensAndSkipsPrimary(t *testing.T) {
	primary := newFlakyClient()
	rc := newTestResilientCache(primary)

	primary.setFailing(true)

	// Trip the breaker (threshold 3)
	for i := 0; i < 3; i++ {
		rc.Get("anything")
	}

	if !rc.Breaker().IsOpen() {
		t.Fatalf("Expected breaker to open, state is %s", rc.Breaker().State())
	}

	// Further reads must not touch the primary
	before := primary.gets()
	rc.Get("anything")
	rc.Get("anything")
	if primary.gets() != before {
		t.Errorf("Expected no primary calls while OPEN, got %d extra", primary.gets()-before)
	}
}

func TestResilient_NeverReturnsErrorUnderFailureInjection(t *testing.T) {
	primary := newFlakyClient()
	rc := newTestResilientCache(primary)
	ctx := context.Background()

	// Alternate primary health while hammering every operation; the
	// point is that the cache layer absorbs everything.
	for i := 0; i < 50; i++ {
		primary.setFailing(i%2 == 0)
		rc.Set(ctx, "k", "v", time.Minute)
		rc.Get("k")
		rc.Del("k")
	}
}

func TestResilientDel_RemovesBothTiers(t *testing.T) {
	rc := newTestResilientCache(newFlakyClient())
	ctx := context.Background()

	rc.Set(ctx, "doomed", "value", time.Minute)
	rc.Get("doomed") // mirror into fallback

	rc.Del("doomed")

	if _, ok := rc.Get("doomed"); ok {
		t.Error("Expected key to be gone from both tiers")
	}
}

func TestResilientReset(t *testing.T) {
	rc := newTestResilientCache(newFlakyClient())
	ctx := context.Background()

	rc.Set(ctx, "a", "1", time.Minute)
	rc.Set(ctx, "b", "2", time.Minute)

	if err := rc.Reset(); err != nil {
		t.Fatalf("Unexpected reset error: %v", err)
	}

	if _, ok := rc.Get("a"); ok {
		t.Error("Expected key 'a' to be cleared")
	}
	if _, ok := rc.Get("b"); ok {
		t.Error("Expected key 'b' to be cleared")
	}
}

func TestResilientReset_PrimaryErrorSurfaces(t *testing.T) {
	primary := newFlakyClient()
	rc := newTestResilientCache(primary)

	primary.setFailing(true)
	if err := rc.Reset(); err == nil {
		t.Error("Expected primary reset error to surface")
	}
}

func TestResilientJSONRoundTrip(t *testing.T) {
	rc := newTestResilientCache(newFlakyClient())
	ctx := context.Background()

	type product struct {
		ID    string  `json:"id"`
		Price float64 `json:"price"`
	}

	rc.SetJSON(ctx, "product:json", product{ID: "p1", Price: 19.99}, time.Minute)

	var got product
	if !rc.GetJSON("product:json", &got) {
		t.Fatal("Expected to find JSON entry")
	}
	if got.ID != "p1" || got.Price != 19.99 {
		t.Errorf("Unexpected decoded value: %+v", got)
	}
}

func TestResilientGetJSON_CorruptEntryEvicted(t *testing.T) {
	rc := newTestResilientCache(newFlakyClient())
	ctx := context.Background()

	rc.Set(ctx, "corrupt", "{not-json", time.Minute)

	var dest map[string]interface{}
	if rc.GetJSON("corrupt", &dest) {
		t.Error("Expected corrupt entry to be treated as a miss")
	}

	// The bad entry is evicted rather than left to fail forever
	if _, ok := rc.Get("corrupt"); ok {
		t.Error("Expected corrupt entry to be evicted")
	}
}

func TestResilientStats(t *testing.T) {
	rc := newTestResilientCache(newFlakyClient())
	rc.Set(context.Background(), "k", "v", time.Minute)
	rc.Get("k")

	s := rc.Stats()
	if _, ok := s["fallback"]; !ok {
		t.Error("Expected fallback section in stats")
	}
	if _, ok := s["circuit_breaker"]; !ok {
		t.Error("Expected circuit_breaker section in stats")
	}
	if _, ok := s["counters"]; !ok {
		t.Error("Expected counters section in stats")
	}
}
