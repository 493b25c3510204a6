package utils

import (
	"sync"
	"time"
)

// Clock is the time source for expiring maps.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

type ttlEntry[V any] struct {
	value   V
	expires time.Time
}

// TTLMap is a mutex-guarded map whose entries expire after a fixed time to live.
// Expired entries are dropped lazily on access.
type TTLMap[V any] struct {
	mu      sync.Mutex
	clock   Clock
	ttl     time.Duration
	entries map[string]ttlEntry[V]
}

func NewTTLMap[V any](ttl time.Duration, clock Clock) *TTLMap[V] {
	if clock == nil {
		clock = SystemClock{}
	}
	return &TTLMap[V]{
		clock:   clock,
		ttl:     ttl,
		entries: make(map[string]ttlEntry[V]),
	}
}

func (m *TTLMap[V]) Get(key string) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	if !m.clock.Now().Before(entry.expires) {
		delete(m.entries, key)
		var zero V
		return zero, false
	}
	return entry.value, true
}

func (m *TTLMap[V]) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

func (m *TTLMap[V]) Set(key string, value V) {
	m.SetWithTTL(key, value, m.ttl)
}

func (m *TTLMap[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = ttlEntry[V]{value: value, expires: m.clock.Now().Add(ttl)}
}

// SetIfAbsent stores value only when key is missing or expired and reports
// whether it did. The check and the write happen under one lock.
func (m *TTLMap[V]) SetIfAbsent(key string, value V) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	if entry, ok := m.entries[key]; ok && now.Before(entry.expires) {
		return false
	}
	m.entries[key] = ttlEntry[V]{value: value, expires: now.Add(m.ttl)}
	return true
}

func (m *TTLMap[V]) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
}

// Len counts live entries and purges the expired ones.
func (m *TTLMap[V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	for key, entry := range m.entries {
		if !now.Before(entry.expires) {
			delete(m.entries, key)
		}
	}
	return len(m.entries)
}
