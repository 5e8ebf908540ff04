package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// entry holds a cached value with its expiration time, key and priority.
type entry[V any] struct {
	expiresAt time.Time // zero value = never expires
	value     V
	key       string
	priority  Priority
}

// isExpired reports whether the entry has passed its expiration time.
func (e *entry[V]) isExpired() bool {
	if e.expiresAt.IsZero() {
		return false
	}
	return time.Now().After(e.expiresAt)
}

// Memory is an in-memory store with TTL-based expiration and priority-aware
// LRU eviction when a maximum entry count is configured.
//
// It keeps a hash map for O(1) lookups and one doubly-linked list per
// priority class for O(1) eviction ordering. When the store is full, the
// least recently used entry of the lowest populated priority class goes
// first; high-priority entries are only evicted once the lower classes are
// empty.
type Memory[V any] struct {
	items    map[string]*list.Element
	eviction [priorityClasses]*list.List
	opts     *memoryOptions
	onEvict  func(key string, value V)
	done     chan struct{}
	mu       sync.Mutex
	size     int
	closed   bool
}

// NewMemory creates a new in-memory store.
//
// Example:
//
//	c := cache.NewMemory[string](
//	    cache.WithDefaultTTL(5 * time.Minute),
//	    cache.WithCleanupInterval(30 * time.Second),
//	    cache.WithMaxEntries(10000),
//	)
//	defer c.Close()
func NewMemory[V any](opts ...MemoryOption) *Memory[V] {
	o := defaultMemoryOptions()
	for _, opt := range opts {
		opt(o)
	}

	m := &Memory[V]{
		items: make(map[string]*list.Element),
		opts:  o,
		done:  make(chan struct{}),
	}
	for i := range m.eviction {
		m.eviction[i] = list.New()
	}

	if o.cleanupInterval > 0 {
		go m.janitor()
	}

	return m
}

// SetEvictCallback sets a callback function that is called when items
// are evicted from the store. This includes capacity eviction, TTL
// expiration cleanup, manual deletion, and clearing.
func (m *Memory[V]) SetEvictCallback(fn func(key string, value V)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onEvict = fn
}

// Get retrieves a value by key.
// Returns ErrNotFound if the key does not exist or has expired.
// Accessing a key marks it as recently used within its priority class.
func (m *Memory[V]) Get(_ context.Context, key string) (V, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.items[key]
	if !ok {
		var zero V
		return zero, ErrNotFound
	}

	e := elem.Value.(*entry[V])

	if e.isExpired() {
		m.removeElement(elem)
		var zero V
		return zero, ErrNotFound
	}

	// Mark as recently used within its class.
	m.eviction[e.priority].MoveToFront(elem)

	return e.value, nil
}

// Set stores a value with the given TTL and eviction priority.
// TTL semantics: positive = expires after duration, zero = use default TTL,
// negative = never expires.
func (m *Memory[V]) Set(_ context.Context, key string, value V, ttl time.Duration, priority Priority) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	if priority >= priorityClasses {
		priority = PriorityHigh
	}

	// Resolve TTL.
	if ttl == 0 {
		ttl = m.opts.defaultTTL
	}

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	// ttl < 0: expiresAt stays zero (never expires)

	// Update existing entry. A priority change moves the entry to the
	// front of its new class list.
	if elem, ok := m.items[key]; ok {
		e := elem.Value.(*entry[V])
		e.value = value
		e.expiresAt = expiresAt
		if e.priority != priority {
			m.eviction[e.priority].Remove(elem)
			e.priority = priority
			m.items[key] = m.eviction[priority].PushFront(e)
		} else {
			m.eviction[priority].MoveToFront(elem)
		}
		return nil
	}

	// Evict before inserting if at capacity.
	if m.opts.maxEntries > 0 && m.size >= m.opts.maxEntries {
		m.evictOne()
	}

	e := &entry[V]{key: key, value: value, expiresAt: expiresAt, priority: priority}
	m.items[key] = m.eviction[priority].PushFront(e)
	m.size++

	return nil
}

// Delete removes a key from the store.
func (m *Memory[V]) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	if elem, ok := m.items[key]; ok {
		m.removeElement(elem)
	}

	return nil
}

// Has checks whether a key exists and has not expired.
func (m *Memory[V]) Has(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	elem, ok := m.items[key]
	if !ok {
		return false, nil
	}

	e := elem.Value.(*entry[V])
	if e.isExpired() {
		m.removeElement(elem)
		return false, nil
	}

	return true, nil
}

// Clear removes all entries from the store.
func (m *Memory[V]) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	if m.onEvict != nil {
		for _, elem := range m.items {
			e := elem.Value.(*entry[V])
			m.onEvict(e.key, e.value)
		}
	}

	m.items = make(map[string]*list.Element)
	for i := range m.eviction {
		m.eviction[i].Init()
	}
	m.size = 0

	return nil
}

// Close stops the background janitor goroutine and marks the store as closed.
// Close is idempotent.
func (m *Memory[V]) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}

	m.closed = true
	close(m.done)

	return nil
}

// janitor periodically removes expired entries.
func (m *Memory[V]) janitor() {
	ticker := time.NewTicker(m.opts.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.deleteExpired()
		}
	}
}

// deleteExpired removes all expired entries across every priority class.
func (m *Memory[V]) deleteExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for _, l := range m.eviction {
		for elem := l.Back(); elem != nil; {
			e := elem.Value.(*entry[V])
			prev := elem.Prev()
			if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
				m.removeElement(elem)
			}
			elem = prev
		}
	}
}

// evictOne removes the least recently used entry from the lowest populated
// priority class. Caller must hold the mutex.
func (m *Memory[V]) evictOne() {
	for p := PriorityLow; p < priorityClasses; p++ {
		if elem := m.eviction[p].Back(); elem != nil {
			m.removeElement(elem)
			return
		}
	}
}

// removeElement removes a specific element and triggers the eviction callback.
// Caller must hold the mutex.
func (m *Memory[V]) removeElement(elem *list.Element) {
	e := elem.Value.(*entry[V])
	m.eviction[e.priority].Remove(elem)
	delete(m.items, e.key)
	m.size--

	if m.onEvict != nil {
		m.onEvict(e.key, e.value)
	}
}

var _ Cache[any] = (*Memory[any])(nil)
