package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store using in-process memory. This is the default
// backend for tests and single-process deployments without durability
// requirements; all counters are lost when the process exits.
//
// Increments are serialized behind a write lock, which satisfies the atomic
// increment-and-get contract within one process.
type MemoryStore struct {
	// counters maps counter keys to their current state.
	counters map[Key]*memoryCounter

	// mu protects counters.
	mu sync.RWMutex
}

type memoryCounter struct {
	count     int64
	updatedAt time.Time
}

// NewMemoryStore creates an empty in-memory counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: make(map[Key]*memoryCounter)}
}

// Read returns the current count for a key, 0 if absent.
func (m *MemoryStore) Read(ctx context.Context, key Key) (int64, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	counter, ok := m.counters[key]
	if !ok {
		return 0, nil
	}
	return counter.count, nil
}

// IncrementAndGet atomically increments the counter for a key, creating it
// with count 1 if absent.
func (m *MemoryStore) IncrementAndGet(ctx context.Context, key Key) (int64, error) {
	if err := key.Validate(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	counter, ok := m.counters[key]
	if !ok {
		counter = &memoryCounter{}
		m.counters[key] = counter
	}
	counter.count++
	counter.updatedAt = time.Now()

	return counter.count, nil
}

// Sum returns the total count across all scopes for a workspace, channel,
// period type, and period key.
func (m *MemoryStore) Sum(ctx context.Context, workspaceID, channel, periodType, periodKey string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var total int64
	for key, counter := range m.counters {
		if key.WorkspaceID == workspaceID &&
			key.Channel == channel &&
			key.PeriodType == periodType &&
			key.PeriodKey == periodKey {
			total += counter.count
		}
	}
	return total, nil
}

// DeleteExpired removes counters from expired periods.
func (m *MemoryStore) DeleteExpired(ctx context.Context, dailyBefore, monthlyBefore string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted int64
	for key := range m.counters {
		switch key.PeriodType {
		case "daily":
			if key.PeriodKey < dailyBefore {
				delete(m.counters, key)
				deleted++
			}
		case "monthly":
			if key.PeriodKey < monthlyBefore {
				delete(m.counters, key)
				deleted++
			}
		}
	}
	return deleted, nil
}

// Size returns the current number of counters. Useful for monitoring and
// testing.
func (m *MemoryStore) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.counters)
}

// Close releases resources held by the store. No-op for memory.
func (m *MemoryStore) Close() error {
	return nil
}
