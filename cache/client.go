package cache

import (
	"sync"
	"time"
)

// Client is the primary cache tier. Implementations must be safe for
// concurrent use. A false second return from Get means the key is absent
// or expired; an error means the backend itself failed.
type Client interface {
	Get(key string) (string, bool, error)
	Set(key, value string, ttl time.Duration) error
	Del(key string) error
	Reset() error
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

// MemoryClient is a map-backed Client. It backs tests and local wiring
// where no disk or remote cache is configured.
type MemoryClient struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemoryClient creates an empty in-memory client
func NewMemoryClient() *MemoryClient {
	return &MemoryClient{entries: make(map[string]memoryEntry)}
}

// Get retrieves a value, expiring it lazily
func (m *MemoryClient) Get(key string) (string, bool, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return "", false, nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return "", false, nil
	}
	return entry.value, true, nil
}

// Set stores a value with a TTL (zero means no expiry)
func (m *MemoryClient) Set(key, value string, ttl time.Duration) error {
	entry := memoryEntry{value: value}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}

	m.mu.Lock()
	m.entries[key] = entry
	m.mu.Unlock()
	return nil
}

// Del removes a key
func (m *MemoryClient) Del(key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

// Reset removes all keys
func (m *MemoryClient) Reset() error {
	m.mu.Lock()
	m.entries = make(map[string]memoryEntry)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored keys, including not-yet-expired ones
func (m *MemoryClient) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Keys returns all stored keys
func (m *MemoryClient) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	return keys
}
