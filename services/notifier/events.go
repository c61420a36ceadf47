package notifier

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of event
type EventType string

const (
	// Critical events
	EventCircuitBreakerOpen  EventType = "circuit_breaker_open"
	EventServerStartupFailed EventType = "server_startup_failed"

	// Warning events
	EventHighFailureRate EventType = "high_failure_rate"
	EventSlowQuery       EventType = "query.slow"

	// Info events
	EventCircuitBreakerRecovered EventType = "circuit_breaker_recovered"
	EventServerStarted           EventType = "server_started"
	EventCacheReset              EventType = "cache_reset"
	EventCacheWarmingComplete    EventType = "cache.warming.complete"

	// Domain events consumed by the cache layer
	EventProductCreated      EventType = "product.created"
	EventProductUpdated      EventType = "product.updated"
	EventProductDeleted      EventType = "product.deleted"
	EventProductsBulkCreated EventType = "products.bulk_created"
	EventProductsBulkUpdated EventType = "products.bulk_updated"
)

// Severity represents the severity level of an event
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Event represents a system event. ID is unique per publication so that
// consumers can detect redelivery; handlers must stay idempotent regardless.
type Event struct {
	ID        string
	Type      EventType
	Severity  Severity
	Message   string
	Data      map[string]interface{}
	Timestamp time.Time
}

// NewEvent creates a new event with the current timestamp
func NewEvent(eventType EventType, severity Severity, message string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Severity:  severity,
		Message:   message,
		Data:      make(map[string]interface{}),
		Timestamp: time.Now(),
	}
}

// WithData adds data to the event (chainable)
func (e *Event) WithData(key string, value interface{}) *Event {
	e.Data[key] = value
	return e
}

// EventHandler is a function that handles events
type EventHandler func(event *Event)

// EventBus manages event publishing and subscription
type EventBus struct {
	handlers    map[EventType][]EventHandler
	allHandlers []EventHandler // handlers that receive all events
	mu          sync.RWMutex
}

// Global event bus instance
var globalBus *EventBus
var busOnce sync.Once

// GetEventBus returns the global event bus instance
func GetEventBus() *EventBus {
	busOnce.Do(func() {
		globalBus = &EventBus{
			handlers:    make(map[EventType][]EventHandler),
			allHandlers: make([]EventHandler, 0),
		}
	})
	return globalBus
}

// NewEventBus creates an isolated bus. Tests and embedded consumers use this
// instead of the process-global bus.
func NewEventBus() *EventBus {
	return &EventBus{
		handlers:    make(map[EventType][]EventHandler),
		allHandlers: make([]EventHandler, 0),
	}
}

// Subscribe adds a handler for a specific event type
func (b *EventBus) Subscribe(eventType EventType, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// SubscribeAll adds a handler that receives all events
func (b *EventBus) SubscribeAll(handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allHandlers = append(b.allHandlers, handler)
}

// Publish sends an event to all subscribed handlers
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	// Call specific handlers
	if handlers, ok := b.handlers[event.Type]; ok {
		for _, handler := range handlers {
			go handler(event)
		}
	}

	// Call handlers subscribed to all events
	for _, handler := range b.allHandlers {
		go handler(event)
	}
}

// PublishSync delivers an event to all handlers on the caller's goroutine.
// Invalidation consumers use this on mutation paths so that a read issued
// after the mutation returns cannot observe stale cache entries.
func (b *EventBus) PublishSync(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.handlers[event.Type]...)
	all := append([]EventHandler(nil), b.allHandlers...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
	for _, handler := range all {
		handler(event)
	}
}

// Helper functions for publishing common events

// PublishCircuitBreakerOpen publishes a circuit breaker open event
func PublishCircuitBreakerOpen(name string, failures int, cooldown time.Duration) {
	event := NewEvent(EventCircuitBreakerOpen, SeverityCritical,
		"Circuit breaker has opened due to consecutive failures").
		WithData("name", name).
		WithData("failures", failures).
		WithData("cooldown", cooldown.String())
	GetEventBus().Publish(event)
}

// PublishCircuitBreakerRecovered publishes a circuit breaker recovery event
func PublishCircuitBreakerRecovered(name string) {
	event := NewEvent(EventCircuitBreakerRecovered, SeverityInfo,
		"Circuit breaker has recovered and is operational").
		WithData("name", name)
	GetEventBus().Publish(event)
}

// PublishHighFailureRate publishes a high failure rate warning
func PublishHighFailureRate(name string, failures, threshold int) {
	event := NewEvent(EventHighFailureRate, SeverityWarning,
		"High failure rate detected, circuit breaker may trip soon").
		WithData("name", name).
		WithData("failures", failures).
		WithData("threshold", threshold)
	GetEventBus().Publish(event)
}

// PublishSlowQuery publishes a slow query warning
func PublishSlowQuery(queryID, queryPattern string, executionTimeMs float64, thresholdMs int) {
	event := NewEvent(EventSlowQuery, SeverityWarning,
		"Slow query detected").
		WithData("query_id", queryID).
		WithData("query_pattern", queryPattern).
		WithData("execution_time_ms", executionTimeMs).
		WithData("threshold_ms", thresholdMs)
	GetEventBus().Publish(event)
}

// PublishCacheReset publishes when the product cache is fully reset
func PublishCacheReset(reason string) {
	event := NewEvent(EventCacheReset, SeverityInfo,
		"Product cache has been reset").
		WithData("reason", reason)
	GetEventBus().Publish(event)
}

// PublishCacheWarmingComplete publishes when a warming cycle finishes
func PublishCacheWarmingComplete(duration time.Duration) {
	event := NewEvent(EventCacheWarmingComplete, SeverityInfo,
		"Cache warming cycle completed").
		WithData("duration", duration.String())
	GetEventBus().Publish(event)
}

// PublishServerStarted publishes when the server starts successfully
func PublishServerStarted(port string) {
	event := NewEvent(EventServerStarted, SeverityInfo,
		"Server started successfully").
		WithData("port", port)
	GetEventBus().Publish(event)
}

// PublishServerStartupFailed publishes when the server fails to start
func PublishServerStartupFailed(component string, err error) {
	event := NewEvent(EventServerStartupFailed, SeverityCritical,
		"Server failed to start").
		WithData("component", component).
		WithData("error", err.Error())
	GetEventBus().Publish(event)
}
