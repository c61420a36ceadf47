package config

import (
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	log "github.com/sirupsen/logrus"
)

var conf = mustLoad()

type Config struct {
	Configuration struct {
		Port int `envconfig:"PORT" default:"8787"`

		// Circuit breaker
		CircuitBreakerThreshold           int `envconfig:"CIRCUIT_BREAKER_THRESHOLD" default:"5"`       // Consecutive failures before circuit opens
		CircuitBreakerCooldownSecs        int `envconfig:"CIRCUIT_BREAKER_COOLDOWN_SECS" default:"300"` // Seconds to wait before retrying
		CircuitBreakerMaxRetries          int `envconfig:"CIRCUIT_BREAKER_MAX_RETRIES" default:"3"`
		CircuitBreakerRetryDelayMs        int `envconfig:"CIRCUIT_BREAKER_RETRY_DELAY_MS" default:"100"`
		CircuitBreakerMonitorIntervalSecs int `envconfig:"CIRCUIT_BREAKER_MONITOR_INTERVAL_SECS" default:"30"`

		// Fallback in-process cache tier
		FallbackCacheTTLInSeconds int `envconfig:"FALLBACK_CACHE_TTL_SECS" default:"300"`
		FallbackCacheMaxKeys      int `envconfig:"FALLBACK_CACHE_MAX_KEYS" default:"5000"`

		// Per-keyspace TTLs (seconds)
		ProductCacheTTLInSeconds          int `envconfig:"PRODUCT_CACHE_TTL" default:"3600"`
		PopularProductsCacheTTLInSeconds  int `envconfig:"POPULAR_PRODUCTS_CACHE_TTL" default:"1800"`
		CategoryProductsCacheTTLInSeconds int `envconfig:"CATEGORY_PRODUCTS_CACHE_TTL" default:"3600"`
		MerchantProductsCacheTTLInSeconds int `envconfig:"MERCHANT_PRODUCTS_CACHE_TTL" default:"3600"`

		// Query analytics
		SlowQueryThresholdMs       int    `envconfig:"SLOW_QUERY_THRESHOLD_MS" default:"500"`
		CacheMonitoringEnabled     bool   `envconfig:"CACHE_MONITORING_ENABLED" default:"true"`
		CacheWarmIntervalInSeconds int    `envconfig:"CACHE_WARM_INTERVAL_IN_SECONDS" default:"3600"`
		CacheWarmCategories        string `envconfig:"CACHE_WARM_CATEGORIES" default:"electronics,clothing,home,beauty"`

		// Primary cache storage
		CacheDBPath      string `envconfig:"CACHE_DB_PATH" default:"./data/catalog-cache.db"`
		CacheAccessToken string `envconfig:"CACHE_ACCESS_TOKEN" default:""`

		// Stats persistence
		StatsDBPath                string `envconfig:"STATS_DB_PATH" default:"./data/catalog-stats.db"`
		StatsSaveIntervalInSeconds int    `envconfig:"STATS_SAVE_INTERVAL_IN_SECONDS" default:"300"`

		// Ops surface rate limiting
		RateLimitPerSecond  int `envconfig:"RATE_LIMIT_PER_SECOND" default:"5"`
		RateLimitBurstLimit int `envconfig:"RATE_LIMIT_BURST_LIMIT" default:"10"`
	}

	FeatureFlags struct {
		CacheCompression bool `envconfig:"FF_CACHE_COMPRESSION" default:"true"`
	}
}

// load loads the configuration from the environment.
func load() (Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Warnf("Error loading env config: %v", err)
	}

	cfg := Config{}
	err = envconfig.Process("", &cfg)
	return cfg, err
}

func mustLoad() Config {
	c, err := load()
	if err != nil {
		log.WithError(err).Warnf("Unable to load configuration")
	}

	return c
}

func Get() Config {
	return conf
}
