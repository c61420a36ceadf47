package cache

import (
	"time"

	"github.com/viccon/sturdyc"
)

const (
	fallbackNumShards          = 64
	fallbackEvictionPercentage = 10
)

// FallbackCache is the bounded in-process tier served when the primary
// cache is unavailable. Capacity and TTL are fixed at construction; when
// full, the oldest slice of entries is evicted.
type FallbackCache struct {
	client *sturdyc.Client[string]
	ttl    time.Duration
}

// NewFallbackCache creates a fallback tier with the given capacity and TTL
func NewFallbackCache(capacity int, ttl time.Duration) *FallbackCache {
	if capacity <= 0 {
		capacity = 5000
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	client := sturdyc.New[string](
		capacity,
		fallbackNumShards,
		ttl,
		fallbackEvictionPercentage,
		sturdyc.WithEvictionInterval(ttl/2),
	)

	return &FallbackCache{client: client, ttl: ttl}
}

// Get retrieves a value from the fallback tier
func (f *FallbackCache) Get(key string) (string, bool) {
	return f.client.Get(key)
}

// Set stores a value in the fallback tier
func (f *FallbackCache) Set(key, value string) {
	f.client.Set(key, value)
}

// Del removes a key from the fallback tier
func (f *FallbackCache) Del(key string) {
	f.client.Delete(key)
}

// Reset removes all entries from the fallback tier
func (f *FallbackCache) Reset() {
	for _, key := range f.client.ScanKeys() {
		f.client.Delete(key)
	}
}

// Size returns the number of entries in the fallback tier
func (f *FallbackCache) Size() int {
	return f.client.Size()
}

// TTL returns the configured entry lifetime
func (f *FallbackCache) TTL() time.Duration {
	return f.ttl
}
