package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"catalog-cache-go/analytics"
	"catalog-cache-go/cache"
	"catalog-cache-go/catalog"
	"catalog-cache-go/circuitbreaker"
	"catalog-cache-go/config"
	"catalog-cache-go/logcolors"
	"catalog-cache-go/optimizer"
	"catalog-cache-go/pagination"
	"catalog-cache-go/productcache"
	"catalog-cache-go/services/notifier"
	"catalog-cache-go/stats"

	log "github.com/sirupsen/logrus"
)

// App holds the wired component graph for the ops surface and background
// jobs.
type App struct {
	conf       config.Config
	primary    cache.Client
	cache      *cache.ResilientCache
	breaker    *circuitbreaker.CircuitBreaker
	analytics  *analytics.Service
	pages      *pagination.PaginationCache
	products   *productcache.Service
	optimizer  *optimizer.QueryOptimizer
	store      catalog.Store
	bus        *notifier.EventBus
	statsStore *stats.Store
}

func secs(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func millis(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

// newApp wires config -> clients -> caches -> services on top of the given
// backing store.
func newApp(store catalog.Store) (*App, error) {
	conf := config.Get()
	cfg := conf.Configuration

	primary, err := cache.NewBoltClient(cfg.CacheDBPath, conf.FeatureFlags.CacheCompression)
	if err != nil {
		return nil, fmt.Errorf("open primary cache: %w", err)
	}

	breaker := circuitbreaker.New(circuitbreaker.Config{
		Name:            "primary-cache",
		Threshold:       cfg.CircuitBreakerThreshold,
		Cooldown:        secs(cfg.CircuitBreakerCooldownSecs),
		MaxRetries:      cfg.CircuitBreakerMaxRetries,
		RetryDelay:      millis(cfg.CircuitBreakerRetryDelayMs),
		MonitorInterval: secs(cfg.CircuitBreakerMonitorIntervalSecs),
	})

	fallback := cache.NewFallbackCache(cfg.FallbackCacheMaxKeys, secs(cfg.FallbackCacheTTLInSeconds))
	rc := cache.NewResilientCache(primary, fallback, breaker)

	bus := notifier.GetEventBus()
	analyticsSvc := analytics.New(rc, millis(cfg.SlowQueryThresholdMs))
	pages := pagination.New(rc)
	products := productcache.New(rc, pages, store, bus, productcache.Options{
		ProductTTL:     secs(cfg.ProductCacheTTLInSeconds),
		PopularTTL:     secs(cfg.PopularProductsCacheTTLInSeconds),
		CategoryTTL:    secs(cfg.CategoryProductsCacheTTLInSeconds),
		MerchantTTL:    secs(cfg.MerchantProductsCacheTTLInSeconds),
		WarmCategories: splitCategories(cfg.CacheWarmCategories),
	})
	opt := optimizer.New(rc, pages, analyticsSvc, store)

	statsStore, err := stats.NewStore(cfg.StatsDBPath)
	if err != nil {
		log.Warnf("%s Stats persistence unavailable: %v", logcolors.LogStats, err)
		statsStore = nil
	}

	return &App{
		conf:       conf,
		primary:    primary,
		cache:      rc,
		breaker:    breaker,
		analytics:  analyticsSvc,
		pages:      pages,
		products:   products,
		optimizer:  opt,
		store:      store,
		bus:        bus,
		statsStore: statsStore,
	}, nil
}

func splitCategories(raw string) []string {
	var categories []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			categories = append(categories, trimmed)
		}
	}
	return categories
}

// start launches the background jobs: invalidation handlers, the breaker
// health monitor, hourly analytics aggregation, scheduled warming and stats
// persistence.
func (a *App) start(ctx context.Context) {
	cfg := a.conf.Configuration

	a.products.SubscribeInvalidation(ctx)
	a.breaker.StartMonitor(ctx, a.probePrimary)
	a.analytics.StartProcessing(ctx, time.Hour)

	if cfg.CacheMonitoringEnabled {
		a.products.StartWarming(ctx, secs(cfg.CacheWarmIntervalInSeconds))
		go a.optimizer.WarmupQueryCache(ctx)
	}

	if a.statsStore != nil {
		if err := a.statsStore.Load(); err != nil {
			log.Warnf("%s Failed to load persisted stats: %v", logcolors.LogStats, err)
		}
		a.statsStore.StartAutoSave(secs(cfg.StatsSaveIntervalInSeconds))
	}

	setupAlerting()
}

// probePrimary verifies the primary cache answers reads. A miss is healthy;
// only transport or storage errors count as failures.
func (a *App) probePrimary(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, _, err := a.primary.Get("healthcheck:probe")
	return err
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// setupAlerting wires webhook/email sinks onto the event bus when any are
// configured.
func setupAlerting() {
	var notifiers []notifier.Notifier

	if smtpHost := os.Getenv("NOTIFIER_SMTP_HOST"); smtpHost != "" {
		notifiers = append(notifiers, &notifier.EmailNotifier{
			SMTPHost:     smtpHost,
			SMTPPort:     getEnvOrDefault("NOTIFIER_SMTP_PORT", "587"),
			SMTPUsername: os.Getenv("NOTIFIER_SMTP_USERNAME"),
			SMTPPassword: os.Getenv("NOTIFIER_SMTP_PASSWORD"),
			FromEmail:    os.Getenv("NOTIFIER_FROM_EMAIL"),
			ToEmail:      os.Getenv("NOTIFIER_TO_EMAIL"),
		})
		log.Infof("%s Email notifier enabled", logcolors.LogNotifier)
	}

	if botToken := os.Getenv("NOTIFIER_TELEGRAM_BOT_TOKEN"); botToken != "" {
		notifiers = append(notifiers, &notifier.TelegramNotifier{
			BotToken: botToken,
			ChatID:   os.Getenv("NOTIFIER_TELEGRAM_CHAT_ID"),
		})
		log.Infof("%s Telegram notifier enabled", logcolors.LogNotifier)
	}

	if topic := os.Getenv("NOTIFIER_NTFY_TOPIC"); topic != "" {
		notifiers = append(notifiers, &notifier.NtfyNotifier{
			Topic:  topic,
			Server: getEnvOrDefault("NOTIFIER_NTFY_SERVER", "https://ntfy.sh"),
		})
		log.Infof("%s Ntfy.sh notifier enabled", logcolors.LogNotifier)
	}

	if len(notifiers) == 0 {
		log.Infof("%s No alert notifiers configured", logcolors.LogNotifier)
		return
	}

	notifier.NewAlertHandler(notifier.AlertConfig{Notifiers: notifiers}).Start()
}
