package logcolors

// ANSI color codes for log prefixes
const (
	Reset  = "\033[0m"
	Green  = "\033[32m"
	Blue   = "\033[34m"
	Purple = "\033[35m"
	Cyan   = "\033[36m"

	// Bright variants for more color variety
	BrightGreen   = "\033[92m"
	BrightBlue    = "\033[94m"
	BrightMagenta = "\033[95m"
	BrightCyan    = "\033[96m"

	// Red variants
	Red       = "\033[31m"
	BrightRed = "\033[91m"
)

// Cache-related log prefixes
const (
	LogCacheInit     = Blue + "[Cache:Init]" + Reset
	LogCache         = Blue + "[Cache]" + Reset
	LogCachePrimary  = Blue + "[Cache:Primary]" + Reset
	LogCacheFallback = Cyan + "[Cache:Fallback]" + Reset
	LogCacheReset    = Blue + "[Cache:Reset]" + Reset
	LogProductCache  = Green + "[ProductCache]" + Reset
	LogPagination    = BrightCyan + "[PaginationCache]" + Reset
	LogWarmup        = BrightGreen + "[Warmup]" + Reset
)

// Query-layer log prefixes
const (
	LogAnalytics = BrightMagenta + "[Analytics]" + Reset
	LogOptimizer = BrightBlue + "[Optimizer]" + Reset
	LogCursor    = Cyan + "[Cursor]" + Reset
)

// Rate limiting log prefixes
const (
	LogRateLimit = Purple + "[RateLimit]" + Reset
)

// Stats log prefix
const (
	LogStats = BrightGreen + "[Stats]" + Reset
)

// Notifier log prefix
const (
	LogNotifier = BrightMagenta + "[Notifier]" + Reset
)

// CircuitBreakerPrefix returns a colored circuit breaker prefix with the given name
func CircuitBreakerPrefix(name string) string {
	return Purple + "[CircuitBreaker:" + name + "]" + Reset
}
