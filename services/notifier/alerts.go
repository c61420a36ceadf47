package notifier

import (
	"fmt"
	"sync"
	"time"

	"catalog-cache-go/logcolors"

	log "github.com/sirupsen/logrus"
)

const (
	// Default cooldown between alerts of the same type
	DefaultAlertCooldown = 15 * time.Minute
)

// AlertHandler handles events and sends notifications
type AlertHandler struct {
	notifiers        []Notifier
	cooldowns        map[EventType]time.Time // last alert time per event type
	cooldownDuration time.Duration
	mu               sync.RWMutex
}

// AlertConfig holds configuration for the alert handler
type AlertConfig struct {
	Notifiers        []Notifier
	CooldownDuration time.Duration
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(config AlertConfig) *AlertHandler {
	cooldown := config.CooldownDuration
	if cooldown == 0 {
		cooldown = DefaultAlertCooldown
	}

	handler := &AlertHandler{
		notifiers:        config.Notifiers,
		cooldowns:        make(map[EventType]time.Time),
		cooldownDuration: cooldown,
	}

	return handler
}

// Start subscribes the handler to the event bus
func (h *AlertHandler) Start() {
	bus := GetEventBus()
	bus.SubscribeAll(h.handleEvent)
	log.Infof("%s Alert handler started (cooldown: %v, notifiers: %d)",
		logcolors.LogNotifier, h.cooldownDuration, len(h.notifiers))
}

// handleEvent processes incoming events
func (h *AlertHandler) handleEvent(event *Event) {
	// Check cooldown
	if !h.shouldAlert(event.Type) {
		log.Debugf("%s Skipping alert for %s (cooldown active)", logcolors.LogNotifier, event.Type)
		return
	}

	// Format and send the alert
	subject, message := h.formatAlert(event)
	if subject == "" {
		return // Unknown or non-alerting event type
	}

	h.sendAlert(subject, message, event)
}

// shouldAlert checks if we should send an alert based on cooldown
func (h *AlertHandler) shouldAlert(eventType EventType) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	lastAlert, exists := h.cooldowns[eventType]
	if !exists || time.Since(lastAlert) >= h.cooldownDuration {
		h.cooldowns[eventType] = time.Now()
		return true
	}
	return false
}

// formatAlert formats an event into a notification message
func (h *AlertHandler) formatAlert(event *Event) (subject, message string) {
	switch event.Type {
	// Critical events
	case EventCircuitBreakerOpen:
		name := event.Data["name"].(string)
		failures := event.Data["failures"].(int)
		cooldown := event.Data["cooldown"].(string)
		subject = "Circuit Breaker OPEN"
		message = fmt.Sprintf(
			"The %s circuit breaker has tripped after %d consecutive failures.\n\n"+
				"All primary cache calls will fail over to the in-process tier for %s.\n\n"+
				"Action: Check primary cache availability and network health.",
			name, failures, cooldown)

	case EventServerStartupFailed:
		component := event.Data["component"].(string)
		errMsg := event.Data["error"].(string)
		subject = "Server Startup FAILED"
		message = fmt.Sprintf(
			"The server failed to start.\n\n"+
				"Component: %s\n"+
				"Error: %s\n\n"+
				"Action: Check logs and fix the issue immediately.",
			component, errMsg)

	// Warning events
	case EventHighFailureRate:
		name := event.Data["name"].(string)
		failures := event.Data["failures"].(int)
		threshold := event.Data["threshold"].(int)
		subject = "High Failure Rate Warning"
		message = fmt.Sprintf(
			"The %s circuit breaker has recorded %d/%d failures.\n\n"+
				"If failures continue, the circuit will open and reads will degrade to the fallback tier.\n\n"+
				"Action: Monitor the situation closely.",
			name, failures, threshold)

	case EventSlowQuery:
		pattern := event.Data["query_pattern"].(string)
		execTime := event.Data["execution_time_ms"].(float64)
		threshold := event.Data["threshold_ms"].(int)
		subject = "Slow Query Detected"
		message = fmt.Sprintf(
			"Query pattern %q took %.0fms (threshold: %dms).\n\n"+
				"The optimizer will extend cache retention for this pattern.\n\n"+
				"Action: Review backing store indexes for this filter combination.",
			pattern, execTime, threshold)

	// Info events
	case EventCircuitBreakerRecovered:
		name := event.Data["name"].(string)
		subject = "Circuit Breaker Recovered"
		message = fmt.Sprintf("The %s circuit breaker has recovered and is now operational.", name)

	case EventServerStarted:
		port := event.Data["port"].(string)
		subject = "Server Started"
		message = fmt.Sprintf("Server started successfully on port %s.", port)

	case EventCacheReset:
		reason := event.Data["reason"].(string)
		subject = "Cache Reset"
		message = fmt.Sprintf("The product cache has been fully reset.\n\nReason: %s", reason)

	default:
		return "", ""
	}

	// Add severity emoji prefix
	switch event.Severity {
	case SeverityCritical:
		subject = "🚨 " + subject
	case SeverityWarning:
		subject = "⚠️ " + subject
	case SeverityInfo:
		subject = "ℹ️ " + subject
	}

	return subject, message
}

// sendAlert sends the alert through all configured notifiers
func (h *AlertHandler) sendAlert(subject, message string, event *Event) {
	if len(h.notifiers) == 0 {
		log.Warnf("%s No notifiers configured, skipping alert: %s", logcolors.LogNotifier, subject)
		return
	}

	log.Infof("%s Sending alert: %s", logcolors.LogNotifier, subject)

	successCount := 0
	for _, n := range h.notifiers {
		if err := n.Send(subject, message); err != nil {
			log.Errorf("%s Failed to send alert via notifier: %v", logcolors.LogNotifier, err)
		} else {
			successCount++
		}
	}

	if successCount > 0 {
		log.Infof("%s Alert sent successfully via %d/%d notifiers", logcolors.LogNotifier, successCount, len(h.notifiers))
	}
}

// ResetCooldown manually resets the cooldown for a specific event type
// Useful for testing or when you want to force an alert
func (h *AlertHandler) ResetCooldown(eventType EventType) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.cooldowns, eventType)
}

// ResetAllCooldowns resets all cooldowns
func (h *AlertHandler) ResetAllCooldowns() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cooldowns = make(map[EventType]time.Time)
}
