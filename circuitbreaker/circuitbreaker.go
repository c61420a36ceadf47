package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"catalog-cache-go/logcolors"
	"catalog-cache-go/services/notifier"

	log "github.com/sirupsen/logrus"
)

// State represents the circuit breaker state
type State int

const (
	StateClosed   State = iota // Normal operation, requests allowed
	StateOpen                  // Circuit tripped, requests blocked
	StateHalfOpen              // Testing if service recovered
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF-OPEN"
	default:
		return "UNKNOWN"
	}
}

var (
	ErrCircuitOpen = errors.New("circuit breaker is open")
)

// Operation is a fallible call guarded by the breaker.
type Operation func(ctx context.Context) (interface{}, error)

// CircuitBreaker implements the circuit breaker pattern
type CircuitBreaker struct {
	name            string
	state           State
	failures        int           // consecutive failures
	threshold       int           // failures before opening
	cooldown        time.Duration // how long to stay open
	halfOpenTimeout time.Duration // max time to wait in half-open state
	maxRetries      int           // attempts per Execute call
	retryDelay      time.Duration // fixed delay between attempts
	monitorInterval time.Duration // background health probe interval
	lastFailureTime time.Time     // when circuit opened
	halfOpenStart   time.Time     // when half-open state began
	mu              sync.RWMutex
}

// Config holds circuit breaker configuration
type Config struct {
	Name            string        // Name for logging
	Threshold       int           // Number of consecutive failures before opening
	Cooldown        time.Duration // How long to stay open before testing
	HalfOpenTimeout time.Duration // Max time to wait in half-open state before resetting to open
	MaxRetries      int           // Attempts per guarded call before a failure is recorded
	RetryDelay      time.Duration // Delay between attempts
	MonitorInterval time.Duration // Background health probe interval
}

// Metrics is a read-only snapshot of breaker state for operational visibility
type Metrics struct {
	Name            string    `json:"name"`
	State           string    `json:"state"`
	Failures        int       `json:"failures"`
	LastFailureTime time.Time `json:"lastFailureTime"`
	Threshold       int       `json:"threshold"`
	Cooldown        string    `json:"cooldown"`
	MaxRetries      int       `json:"maxRetries"`
	RetryDelay      string    `json:"retryDelay"`
}

// New creates a new circuit breaker
func New(cfg Config) *CircuitBreaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5 // default: 5 consecutive failures
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute // default: 5 minute cooldown
	}
	if cfg.HalfOpenTimeout <= 0 {
		cfg.HalfOpenTimeout = 30 * time.Second // default: 30 second half-open timeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1 // default: single attempt, no retry
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 100 * time.Millisecond
	}
	if cfg.MonitorInterval <= 0 {
		cfg.MonitorInterval = 30 * time.Second
	}
	if cfg.Name == "" {
		cfg.Name = "default"
	}

	return &CircuitBreaker{
		name:            cfg.Name,
		state:           StateClosed,
		threshold:       cfg.Threshold,
		cooldown:        cfg.Cooldown,
		halfOpenTimeout: cfg.HalfOpenTimeout,
		maxRetries:      cfg.MaxRetries,
		retryDelay:      cfg.RetryDelay,
		monitorInterval: cfg.MonitorInterval,
	}
}

// Allow checks if a request should be allowed
// Returns true if the request can proceed, false if blocked
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true

	case StateOpen:
		// Check if cooldown has passed
		if time.Since(cb.lastFailureTime) >= cb.cooldown {
			cb.state = StateHalfOpen
			cb.halfOpenStart = time.Now()
			log.Infof("%s Cooldown passed, transitioning to HALF-OPEN", logcolors.CircuitBreakerPrefix(cb.name))
			return true // Allow one test request
		}
		return false

	case StateHalfOpen:
		// Check if half-open timeout has expired
		if time.Since(cb.halfOpenStart) >= cb.halfOpenTimeout {
			// Test request timed out, reset to OPEN
			cb.state = StateOpen
			cb.lastFailureTime = time.Now()
			log.Warnf("%s Half-open timeout expired, transitioning back to OPEN", logcolors.CircuitBreakerPrefix(cb.name))
			return false
		}
		// Only allow one request at a time in half-open state
		// The first request is already in progress, block others
		return false

	default:
		return true
	}
}

// Execute runs op through the breaker. When the circuit is open the fallback
// runs instead (ErrCircuitOpen when no fallback is given). In CLOSED or
// HALF-OPEN the operation gets up to MaxRetries attempts separated by
// RetryDelay; exhausting them records a single failure and falls back.
func (cb *CircuitBreaker) Execute(ctx context.Context, op Operation, fallback Operation) (interface{}, error) {
	if !cb.Allow() {
		if fallback != nil {
			return fallback(ctx)
		}
		return nil, ErrCircuitOpen
	}

	var lastErr error
	for attempt := 1; attempt <= cb.maxRetries; attempt++ {
		result, err := op(ctx)
		if err == nil {
			cb.RecordSuccess()
			return result, nil
		}
		lastErr = err
		log.Debugf("%s Attempt %d/%d failed: %v", logcolors.CircuitBreakerPrefix(cb.name), attempt, cb.maxRetries, err)

		if attempt < cb.maxRetries {
			select {
			case <-time.After(cb.retryDelay):
			case <-ctx.Done():
				cb.RecordFailure()
				return nil, ctx.Err()
			}
		}
	}

	cb.RecordFailure()
	if fallback != nil {
		return fallback(ctx)
	}
	return nil, lastErr
}

// RecordSuccess records a successful request
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen {
		// Test request succeeded, close the circuit
		cb.state = StateClosed
		cb.failures = 0
		log.Infof("%s Test request succeeded, transitioning to CLOSED", logcolors.CircuitBreakerPrefix(cb.name))
		// Emit recovery event
		notifier.PublishCircuitBreakerRecovered(cb.name)
	} else if cb.state == StateClosed {
		// Reset failure count on success
		cb.failures = 0
	}
}

// RecordFailure records a failed request
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailureTime = time.Now()

	if cb.state == StateHalfOpen {
		// Test request failed, back to open
		cb.state = StateOpen
		log.Warnf("%s Test request failed, transitioning back to OPEN", logcolors.CircuitBreakerPrefix(cb.name))
		// Emit circuit open event
		notifier.PublishCircuitBreakerOpen(cb.name, cb.failures, cb.cooldown)
		return
	}

	if cb.state == StateClosed {
		// Check for high failure rate warning (at 60% of threshold)
		warningThreshold := (cb.threshold * 3) / 5 // 60% of threshold
		if warningThreshold < 2 {
			warningThreshold = 2
		}
		if cb.failures == warningThreshold {
			notifier.PublishHighFailureRate(cb.name, cb.failures, cb.threshold)
		}

		if cb.failures >= cb.threshold {
			cb.state = StateOpen
			log.Warnf("%s Threshold reached (%d failures), transitioning to OPEN (cooldown: %v)",
				logcolors.CircuitBreakerPrefix(cb.name), cb.failures, cb.cooldown)
			// Emit circuit open event
			notifier.PublishCircuitBreakerOpen(cb.name, cb.failures, cb.cooldown)
		}
	}
}

// HandleHealthCheckSuccess lets an out-of-band probe accelerate recovery:
// an OPEN circuit moves straight to HALF-OPEN, and a HALF-OPEN circuit closes.
func (cb *CircuitBreaker) HandleHealthCheckSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		cb.state = StateHalfOpen
		cb.halfOpenStart = time.Now()
		log.Infof("%s Health probe succeeded, transitioning to HALF-OPEN early", logcolors.CircuitBreakerPrefix(cb.name))
	case StateHalfOpen:
		cb.state = StateClosed
		cb.failures = 0
		log.Infof("%s Health probe succeeded, transitioning to CLOSED", logcolors.CircuitBreakerPrefix(cb.name))
		notifier.PublishCircuitBreakerRecovered(cb.name)
	}
}

// HandleHealthCheckFailure keeps an open circuit open: the cooldown restarts
// so request traffic is not used to rediscover a known-bad dependency.
func (cb *CircuitBreaker) HandleHealthCheckFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen || cb.state == StateHalfOpen {
		cb.state = StateOpen
		cb.lastFailureTime = time.Now()
		log.Debugf("%s Health probe failed, cooldown restarted", logcolors.CircuitBreakerPrefix(cb.name))
	}
}

// StartMonitor runs probe on the configured interval until ctx is cancelled.
// Probe results feed HandleHealthCheckSuccess/Failure so recovery is detected
// without waiting for request traffic.
func (cb *CircuitBreaker) StartMonitor(ctx context.Context, probe func(ctx context.Context) error) {
	go func() {
		ticker := time.NewTicker(cb.monitorInterval)
		defer ticker.Stop()

		log.Infof("%s Health monitor started (interval: %v)", logcolors.CircuitBreakerPrefix(cb.name), cb.monitorInterval)
		for {
			select {
			case <-ctx.Done():
				log.Infof("%s Health monitor stopped", logcolors.CircuitBreakerPrefix(cb.name))
				return
			case <-ticker.C:
				if cb.State() == StateClosed {
					continue
				}
				if err := probe(ctx); err != nil {
					cb.HandleHealthCheckFailure()
				} else {
					cb.HandleHealthCheckSuccess()
				}
			}
		}
	}()
}

// State returns the current state
func (cb *CircuitBreaker) State() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// Failures returns the current consecutive failure count
func (cb *CircuitBreaker) Failures() int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.failures
}

// Stats returns circuit breaker statistics
func (cb *CircuitBreaker) Stats() (state State, failures int, lastFailure time.Time) {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state, cb.failures, cb.lastFailureTime
}

// GetMetrics returns a snapshot of the breaker without mutating state
func (cb *CircuitBreaker) GetMetrics() Metrics {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return Metrics{
		Name:            cb.name,
		State:           cb.state.String(),
		Failures:        cb.failures,
		LastFailureTime: cb.lastFailureTime,
		Threshold:       cb.threshold,
		Cooldown:        cb.cooldown.String(),
		MaxRetries:      cb.maxRetries,
		RetryDelay:      cb.retryDelay.String(),
	}
}

// Reset manually resets the circuit breaker to closed state
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
	cb.lastFailureTime = time.Time{}
	cb.halfOpenStart = time.Time{}
	log.Infof("%s Manually reset to CLOSED", logcolors.CircuitBreakerPrefix(cb.name))
}

// IsOpen returns true if the circuit is open (blocking requests)
func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state == StateOpen
}

// IsHalfOpen returns true if the circuit is in half-open state
func (cb *CircuitBreaker) IsHalfOpen() bool {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state == StateHalfOpen
}

// TimeUntilRetry returns how long until the circuit will try again
// For OPEN state: returns remaining cooldown time
// For HALF-OPEN state: returns remaining timeout until reset to OPEN
// Returns 0 if circuit is closed
func (cb *CircuitBreaker) TimeUntilRetry() time.Duration {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	switch cb.state {
	case StateOpen:
		elapsed := time.Since(cb.lastFailureTime)
		if elapsed >= cb.cooldown {
			return 0
		}
		return cb.cooldown - elapsed

	case StateHalfOpen:
		elapsed := time.Since(cb.halfOpenStart)
		if elapsed >= cb.halfOpenTimeout {
			return 0
		}
		return cb.halfOpenTimeout - elapsed

	default:
		return 0
	}
}

// Threshold returns the configured failure threshold
func (cb *CircuitBreaker) Threshold() int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.threshold
}
