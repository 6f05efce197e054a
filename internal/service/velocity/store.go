// Package velocity maintains per-key sliding-window behavioral counters for
// rule evaluation.
//
// Counting uses fixed-size windows: buckets are aligned to
// floor(event_time / window) and a bucket's data is discarded, not rolled
// over, when the window elapses. This trades precision at window boundaries
// for O(1) memory and update cost per key.
package velocity

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/davidleathers/transaction-risk-core/internal/domain/feature"
)

const shardCount = 64

// Counter is a point-in-time read of one key's current window.
type Counter struct {
	Count       uint64
	Amount      decimal.Decimal
	WindowStart time.Time
}

// Zero returns the zero-valued counter served for absent or elapsed windows.
func Zero() Counter {
	return Counter{Amount: decimal.Zero}
}

type bucket struct {
	count       uint64
	amount      decimal.Decimal
	windowStart time.Time
	window      time.Duration
}

func (b *bucket) expired(now time.Time) bool {
	return !now.Before(b.windowStart.Add(b.window))
}

type shard struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
}

// Store is an in-memory, sharded fixed-window counter store. Each shard is
// independently synchronized so a write on one key never blocks reads on
// unrelated keys in other shards.
type Store struct {
	shards [shardCount]shard
	logger *zap.Logger
}

// NewStore creates an empty velocity store.
func NewStore(logger *zap.Logger) *Store {
	s := &Store{logger: logger}
	for i := range s.shards {
		s.shards[i].buckets = make(map[string]*bucket)
	}
	return s
}

// Record increments the counter and accumulated amount for the key's current
// window. A new window replaces an elapsed one; the old window's data is
// discarded.
func (s *Store) Record(key feature.Key, at time.Time, amount decimal.Decimal) {
	k := key.String()
	start := at.Truncate(key.Window)

	sh := s.shard(k)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	b, ok := sh.buckets[k]
	if !ok || !b.windowStart.Equal(start) {
		sh.buckets[k] = &bucket{
			count:       1,
			amount:      amount,
			windowStart: start,
			window:      key.Window,
		}
		return
	}
	b.count++
	b.amount = b.amount.Add(amount)
}

// Read returns the current window's counter, or a zero counter when the key
// is absent or its window has elapsed. An elapsed bucket is logically empty;
// no synchronous purge is required.
func (s *Store) Read(key feature.Key, at time.Time) Counter {
	k := key.String()
	start := at.Truncate(key.Window)

	sh := s.shard(k)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	b, ok := sh.buckets[k]
	if !ok || !b.windowStart.Equal(start) {
		return Zero()
	}
	return Counter{
		Count:       b.count,
		Amount:      b.amount,
		WindowStart: b.windowStart,
	}
}

// PurgeExpired removes buckets whose window end has passed and returns how
// many were removed. Safe to run concurrently with reads and writes; each
// shard is swept under its own lock.
func (s *Store) PurgeExpired(now time.Time) int {
	purged := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		for k, b := range sh.buckets {
			if b.expired(now) {
				delete(sh.buckets, k)
				purged++
			}
		}
		sh.mu.Unlock()
	}
	if purged > 0 && s.logger != nil {
		s.logger.Debug("purged expired velocity windows", zap.Int("count", purged))
	}
	return purged
}

// Len returns the number of live buckets across all shards.
func (s *Store) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		n += len(sh.buckets)
		sh.mu.RUnlock()
	}
	return n
}

func (s *Store) shard(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &s.shards[h.Sum32()%shardCount]
}

// Sweeper runs PurgeExpired on a fixed interval until the stop channel
// closes. Active expiry complements the read-time passive expiry. onSweep,
// when non-nil, receives the purge count and live bucket count after each
// sweep.
func (s *Store) Sweeper(interval time.Duration, stop <-chan struct{}, onSweep func(purged, live int)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			purged := s.PurgeExpired(now)
			if onSweep != nil {
				onSweep(purged, s.Len())
			}
		}
	}
}
