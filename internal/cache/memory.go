package cache

import (
	"container/list"
	"context"
	"path"
	"sync"
	"time"
)

// MemoryTier is a thread-safe, bounded in-process store with LRU eviction
// and per-entry TTL. It never fails: operations on absent keys report a
// miss, and the zero-capacity guard falls back to a default bound.
type MemoryTier struct {
	mu       sync.Mutex
	items    map[string]*memoryEntry
	lruList  *list.List
	maxItems int
	maxBytes int

	sizeBytes int64
	evictions int64
	expired   int64

	sweepEvery time.Duration
	stopChan   chan struct{}
	stopOnce   sync.Once
}

type memoryEntry struct {
	key       string
	value     []byte
	createdAt time.Time
	expiresAt time.Time
	element   *list.Element
}

const (
	defaultMaxEntries    = 1000
	defaultSweepInterval = time.Minute
)

// MemoryOption adjusts MemoryTier construction.
type MemoryOption func(*MemoryTier)

// WithSweepInterval overrides how often the background sweep reclaims
// expired entries.
func WithSweepInterval(d time.Duration) MemoryOption {
	return func(m *MemoryTier) {
		if d > 0 {
			m.sweepEvery = d
		}
	}
}

// WithMaxValueBytes rejects values larger than n at write time.
func WithMaxValueBytes(n int) MemoryOption {
	return func(m *MemoryTier) {
		m.maxBytes = n
	}
}

// NewMemoryTier creates a memory tier bounded to maxEntries and starts its
// sweep goroutine. Call Stop when the tier is no longer needed.
func NewMemoryTier(maxEntries int, opts ...MemoryOption) *MemoryTier {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}

	m := &MemoryTier{
		items:      make(map[string]*memoryEntry),
		lruList:    list.New(),
		maxItems:   maxEntries,
		sweepEvery: defaultSweepInterval,
		stopChan:   make(chan struct{}),
	}

	for _, opt := range opts {
		opt(m)
	}

	go m.sweep()

	return m
}

func (m *MemoryTier) Name() string { return "memory" }

// Get returns the value for key or ErrMiss. A hit refreshes the entry's
// recency; an expired entry is removed on access.
func (m *MemoryTier) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.items[key]
	if !exists {
		return nil, ErrMiss
	}

	if time.Now().After(entry.expiresAt) {
		m.removeEntry(entry)
		m.expired++
		return nil, ErrMiss
	}

	m.lruList.MoveToFront(entry.element)
	return entry.value, nil
}

// MGet returns the present, unexpired subset of keys. Each hit refreshes
// recency exactly as Get does.
func (m *MemoryTier) MGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	result := make(map[string][]byte, len(keys))
	for _, key := range keys {
		entry, exists := m.items[key]
		if !exists {
			continue
		}
		if now.After(entry.expiresAt) {
			m.removeEntry(entry)
			m.expired++
			continue
		}
		m.lruList.MoveToFront(entry.element)
		result[key] = entry.value
	}
	return result, nil
}

// Set inserts or overwrites key. When the store is at capacity the least
// recently used entry is evicted before the insert.
func (m *MemoryTier) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.maxBytes > 0 && len(value) > m.maxBytes {
		return ErrValueTooLarge
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.set(key, value, ttl)
	return nil
}

// MSet stores each entry with the same TTL. Oversized values fail the
// whole batch before anything is written; there is no atomicity guarantee
// beyond that.
func (m *MemoryTier) MSet(ctx context.Context, entries map[string][]byte, ttl time.Duration) error {
	if m.maxBytes > 0 {
		for _, value := range entries {
			if len(value) > m.maxBytes {
				return ErrValueTooLarge
			}
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for key, value := range entries {
		m.set(key, value, ttl)
	}
	return nil
}

// set assumes m.mu is held.
func (m *MemoryTier) set(key string, value []byte, ttl time.Duration) {
	now := time.Now()

	if existing, exists := m.items[key]; exists {
		m.sizeBytes += int64(len(value)) - int64(len(existing.value))
		existing.value = value
		existing.createdAt = now
		existing.expiresAt = now.Add(ttl)
		m.lruList.MoveToFront(existing.element)
		return
	}

	if m.lruList.Len() >= m.maxItems {
		m.evictLRU()
	}

	entry := &memoryEntry{
		key:       key,
		value:     value,
		createdAt: now,
		expiresAt: now.Add(ttl),
	}
	entry.element = m.lruList.PushFront(entry)
	m.items[key] = entry
	m.sizeBytes += int64(len(value))
}

// Delete removes key if present.
func (m *MemoryTier) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, exists := m.items[key]; exists {
		m.removeEntry(entry)
	}
	return nil
}

// DeleteByPattern removes every key matching the glob pattern and returns
// the removed count. Patterns follow path.Match syntax ("user:*").
func (m *MemoryTier) DeleteByPattern(ctx context.Context, pattern string) (int, error) {
	// Reject malformed patterns even when the store is empty.
	if _, err := path.Match(pattern, ""); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*memoryEntry
	for key, entry := range m.items {
		ok, err := path.Match(pattern, key)
		if err != nil {
			return 0, err
		}
		if ok {
			matched = append(matched, entry)
		}
	}

	for _, entry := range matched {
		m.removeEntry(entry)
	}
	return len(matched), nil
}

// Clear removes all entries.
func (m *MemoryTier) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items = make(map[string]*memoryEntry)
	m.lruList.Init()
	m.sizeBytes = 0
	return nil
}

// Healthy always reports true; the memory tier has no failure modes.
func (m *MemoryTier) Healthy(ctx context.Context) bool { return true }

// Len returns the current entry count.
func (m *MemoryTier) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// SizeBytes returns the approximate total size of stored values.
func (m *MemoryTier) SizeBytes() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sizeBytes
}

// Evictions returns how many entries have been evicted for capacity.
func (m *MemoryTier) Evictions() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.evictions
}

// Stop shuts down the sweep goroutine. Safe to call more than once.
func (m *MemoryTier) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
}

// removeEntry assumes m.mu is held.
func (m *MemoryTier) removeEntry(entry *memoryEntry) {
	delete(m.items, entry.key)
	m.lruList.Remove(entry.element)
	m.sizeBytes -= int64(len(entry.value))
}

// evictLRU assumes m.mu is held.
func (m *MemoryTier) evictLRU() {
	element := m.lruList.Back()
	if element == nil {
		return
	}
	m.removeEntry(element.Value.(*memoryEntry))
	m.evictions++
}

// sweep periodically reclaims expired entries so memory is not retained
// for keys that are never read again.
func (m *MemoryTier) sweep() {
	ticker := time.NewTicker(m.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sweepExpired()
		case <-m.stopChan:
			return
		}
	}
}

func (m *MemoryTier) sweepExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var expired []*memoryEntry
	for _, entry := range m.items {
		if now.After(entry.expiresAt) {
			expired = append(expired, entry)
		}
	}
	for _, entry := range expired {
		m.removeEntry(entry)
		m.expired++
	}
}

var _ Tier = (*MemoryTier)(nil)
