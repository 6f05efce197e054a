package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ComputeFunc produces the canonical value for a key on a full miss. It must
// derive from a source of truth; the cache is never the only place a value is
// recorded.
type ComputeFunc func(ctx context.Context) (string, error)

// LookupRecorder receives hit/miss outcomes per lookup. A hit names the tier
// that served it; a full miss that reached compute carries an empty tier.
type LookupRecorder interface {
	RecordCacheLookup(ctx context.Context, tier string, hit bool)
}

// Layered fronts expensive lookups with an ordered list of tiers. Lookup
// walks the tiers in order; a hit in a later tier backfills every earlier
// one. Computation on a full miss is collapsed to at most one in-flight call
// per key, however many callers are waiting.
type Layered struct {
	tiers    []Tier
	logger   *zap.Logger
	group    singleflight.Group
	recorder LookupRecorder
}

// NewLayered builds a layered cache over the given tiers, ordered fastest
// first.
func NewLayered(logger *zap.Logger, tiers ...Tier) *Layered {
	return &Layered{
		tiers:  tiers,
		logger: logger,
	}
}

// WithMetrics attaches a lookup recorder. Safe to call only before the cache
// starts serving.
func (l *Layered) WithMetrics(recorder LookupRecorder) *Layered {
	l.recorder = recorder
	return l
}

// GetOrCompute returns the cached value for key, walking tiers in order, or
// invokes compute exactly once per key for the duration of the miss.
// Concurrent callers for the same key share the single in-flight result;
// distinct keys compute in full parallelism.
//
// A tier I/O error is logged and treated as a miss on that tier; a degraded
// shared tier never fails the call.
func (l *Layered) GetOrCompute(ctx context.Context, key string, ttl time.Duration, compute ComputeFunc) (string, error) {
	for i, tier := range l.tiers {
		value, err := tier.Get(ctx, key)
		if err == nil {
			if l.recorder != nil {
				l.recorder.RecordCacheLookup(ctx, tier.Name(), true)
			}
			l.backfill(ctx, key, value, ttl, i)
			return value, nil
		}
		if !IsNotFound(err) {
			l.logger.Warn("cache tier degraded, treating as miss",
				zap.String("tier", tier.Name()),
				zap.String("key", key),
				zap.Error(err))
		}
	}

	if l.recorder != nil {
		l.recorder.RecordCacheLookup(ctx, "", false)
	}

	result, err, _ := l.group.Do(key, func() (interface{}, error) {
		value, err := compute(ctx)
		if err != nil {
			return "", err
		}
		l.store(ctx, key, value, ttl)
		return value, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

// Invalidate removes the key from every tier; used when underlying state
// changes out of band.
func (l *Layered) Invalidate(ctx context.Context, key string) error {
	var firstErr error
	for _, tier := range l.tiers {
		if err := tier.Delete(ctx, key); err != nil {
			l.logger.Warn("cache invalidation failed on tier",
				zap.String("tier", tier.Name()),
				zap.String("key", key),
				zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Close closes every tier.
func (l *Layered) Close() error {
	var firstErr error
	for _, tier := range l.tiers {
		if err := tier.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// backfill populates tiers earlier than hitTier after a lower-tier hit.
func (l *Layered) backfill(ctx context.Context, key, value string, ttl time.Duration, hitTier int) {
	for i := 0; i < hitTier; i++ {
		if err := l.tiers[i].Set(ctx, key, value, ttl); err != nil {
			l.logger.Warn("cache backfill failed",
				zap.String("tier", l.tiers[i].Name()),
				zap.String("key", key),
				zap.Error(err))
		}
	}
}

// store writes a freshly computed value to every tier.
func (l *Layered) store(ctx context.Context, key, value string, ttl time.Duration) {
	for _, tier := range l.tiers {
		if err := tier.Set(ctx, key, value, ttl); err != nil {
			l.logger.Warn("cache store failed",
				zap.String("tier", tier.Name()),
				zap.String("key", key),
				zap.Error(err))
		}
	}
}
