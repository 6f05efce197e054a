package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// localTier is the bounded in-process tier: least-recently-used eviction with
// per-entry TTL. Expiry is lazy, checked on access, so no background sweep is
// required.
type localTier struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List // front = most recently used
}

type localEntry struct {
	key       string
	value     string
	expiresAt time.Time
}

// NewLocalTier creates an in-process LRU tier holding at most capacity
// entries.
func NewLocalTier(capacity int) Tier {
	if capacity <= 0 {
		capacity = 1024
	}
	return &localTier{
		capacity: capacity,
		entries:  make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

func (l *localTier) Name() string { return "local" }

func (l *localTier) Get(_ context.Context, key string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	elem, ok := l.entries[key]
	if !ok {
		return "", ErrCacheKeyNotFound{Key: key}
	}

	entry := elem.Value.(*localEntry)
	if time.Now().After(entry.expiresAt) {
		l.order.Remove(elem)
		delete(l.entries, key)
		return "", ErrCacheKeyNotFound{Key: key}
	}

	l.order.MoveToFront(elem)
	return entry.value, nil
}

func (l *localTier) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if elem, ok := l.entries[key]; ok {
		entry := elem.Value.(*localEntry)
		entry.value = value
		entry.expiresAt = time.Now().Add(ttl)
		l.order.MoveToFront(elem)
		return nil
	}

	elem := l.order.PushFront(&localEntry{
		key:       key,
		value:     value,
		expiresAt: time.Now().Add(ttl),
	})
	l.entries[key] = elem

	for len(l.entries) > l.capacity {
		oldest := l.order.Back()
		if oldest == nil {
			break
		}
		l.order.Remove(oldest)
		delete(l.entries, oldest.Value.(*localEntry).key)
	}

	return nil
}

func (l *localTier) Delete(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if elem, ok := l.entries[key]; ok {
		l.order.Remove(elem)
		delete(l.entries, key)
	}
	return nil
}

func (l *localTier) Close() error { return nil }

// Len returns the live entry count, for tests and metrics.
func (l *localTier) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
