package cache

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"catalog-cache-go/circuitbreaker"
	"catalog-cache-go/logcolors"
	"catalog-cache-go/stats"

	log "github.com/sirupsen/logrus"
)

// ResilientCache fronts the primary Client with a circuit breaker and an
// in-process fallback tier. No method returns an error caused by the
// primary: failures are logged, counted, and absorbed by the fallback.
type ResilientCache struct {
	primary  Client
	fallback *FallbackCache
	breaker  *circuitbreaker.CircuitBreaker
}

// NewResilientCache wires the primary client, fallback tier and breaker
func NewResilientCache(primary Client, fallback *FallbackCache, breaker *circuitbreaker.CircuitBreaker) *ResilientCache {
	return &ResilientCache{
		primary:  primary,
		fallback: fallback,
		breaker:  breaker,
	}
}

// Get retrieves a value. Primary hits are mirrored into the fallback so a
// later outage can still serve them. When the breaker is open or the
// primary errors, the fallback answers instead.
func (rc *ResilientCache) Get(key string) (string, bool) {
	if rc.breaker.Allow() {
		value, ok, err := rc.primary.Get(key)
		if err == nil {
			rc.breaker.RecordSuccess()
			if !ok {
				stats.Get().RecordCacheMiss()
				return "", false
			}
			stats.Get().RecordCacheHit()
			rc.fallback.Set(key, value)
			return value, true
		}

		rc.breaker.RecordFailure()
		stats.Get().RecordPrimaryFailure()
		log.Warnf("%s Get %s failed, serving fallback: %v", logcolors.LogCachePrimary, key, err)
	} else {
		stats.Get().RecordPrimaryFailure()
	}

	if value, ok := rc.fallback.Get(key); ok {
		stats.Get().RecordCacheHit()
		stats.Get().RecordFallbackHit()
		log.Debugf("%s Served %s from fallback tier", logcolors.LogCacheFallback, key)
		return value, true
	}

	stats.Get().RecordCacheMiss()
	return "", false
}

// Set stores a value in both tiers. The fallback is written first so the
// value is retained even when the primary write fails or is blocked.
func (rc *ResilientCache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	rc.fallback.Set(key, value)

	_, err := rc.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return nil, rc.primary.Set(key, value, ttl)
	}, nil)
	if err != nil {
		stats.Get().RecordPrimaryFailure()
		log.Warnf("%s Set %s failed (value retained in fallback): %v", logcolors.LogCachePrimary, key, err)
	}
}

// Del removes a key from both tiers, best-effort
func (rc *ResilientCache) Del(key string) {
	rc.fallback.Del(key)

	if !rc.breaker.Allow() {
		return
	}
	if err := rc.primary.Del(key); err != nil {
		rc.breaker.RecordFailure()
		stats.Get().RecordPrimaryFailure()
		log.Warnf("%s Del %s failed: %v", logcolors.LogCachePrimary, key, err)
		return
	}
	rc.breaker.RecordSuccess()
}

// DelPrefix removes every key starting with prefix from both tiers.
// The primary participates only when it can enumerate keys.
func (rc *ResilientCache) DelPrefix(prefix string) {
	for _, key := range rc.fallback.client.ScanKeys() {
		if strings.HasPrefix(key, prefix) {
			rc.fallback.Del(key)
		}
	}

	scanner, ok := rc.primary.(interface{ Keys() []string })
	if !ok {
		log.Debugf("%s Primary does not support key scans, prefix %s cleared from fallback only", logcolors.LogCache, prefix)
		return
	}
	if !rc.breaker.Allow() {
		return
	}
	for _, key := range scanner.Keys() {
		if strings.HasPrefix(key, prefix) {
			if err := rc.primary.Del(key); err != nil {
				rc.breaker.RecordFailure()
				stats.Get().RecordPrimaryFailure()
				log.Warnf("%s DelPrefix %s failed on %s: %v", logcolors.LogCachePrimary, prefix, key, err)
				return
			}
		}
	}
	rc.breaker.RecordSuccess()
}

// Reset clears both tiers. The primary is always attempted (operator
// initiated), so its error is returned for the caller to report.
func (rc *ResilientCache) Reset() error {
	rc.fallback.Reset()

	if err := rc.primary.Reset(); err != nil {
		log.Errorf("%s Reset failed: %v", logcolors.LogCacheReset, err)
		return err
	}
	log.Infof("%s Both cache tiers cleared", logcolors.LogCacheReset)
	return nil
}

// GetJSON retrieves a value and unmarshals it into dest.
// An unmarshalable entry is treated as a miss and evicted.
func (rc *ResilientCache) GetJSON(key string, dest interface{}) bool {
	value, ok := rc.Get(key)
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(value), dest); err != nil {
		log.Warnf("%s Corrupt JSON entry for %s, evicting: %v", logcolors.LogCache, key, err)
		rc.Del(key)
		return false
	}
	return true
}

// SetJSON marshals v and stores it. Marshal failures are logged and skipped.
func (rc *ResilientCache) SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Errorf("%s Failed to marshal value for %s: %v", logcolors.LogCache, key, err)
		return
	}
	rc.Set(ctx, key, string(data), ttl)
}

// Breaker exposes the guarding circuit breaker
func (rc *ResilientCache) Breaker() *circuitbreaker.CircuitBreaker {
	return rc.breaker
}

// Stats reports fallback size, hit/miss counters and breaker metrics
func (rc *ResilientCache) Stats() map[string]interface{} {
	s := stats.Get()

	out := map[string]interface{}{
		"fallback": map[string]interface{}{
			"size": rc.fallback.Size(),
			"ttl":  rc.fallback.TTL().String(),
		},
		"counters": map[string]interface{}{
			"hits":             s.CacheHits.Load(),
			"misses":           s.CacheMisses.Load(),
			"fallback_hits":    s.FallbackHits.Load(),
			"primary_failures": s.PrimaryFailures.Load(),
			"hit_rate":         s.CacheHitRate(),
		},
		"circuit_breaker": rc.breaker.GetMetrics(),
	}

	if pc, ok := rc.primary.(interface{ Stats() (int, int) }); ok {
		numKeys, sizeKB := pc.Stats()
		out["primary"] = map[string]interface{}{
			"keys":    numKeys,
			"size_kb": sizeKB,
		}
	}

	return out
}
