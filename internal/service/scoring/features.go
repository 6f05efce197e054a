package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/davidleathers/transaction-risk-core/internal/domain/feature"
	"github.com/davidleathers/transaction-risk-core/internal/infrastructure/cache"
	"github.com/davidleathers/transaction-risk-core/internal/service/velocity"
)

// FeatureReader resolves the current velocity counter for a key. Rule
// evaluation depends only on this interface; tests substitute stubs.
type FeatureReader interface {
	ReadCounter(ctx context.Context, key feature.Key) (velocity.Counter, error)
}

// cachedCounter is the wire form of a counter in the cache tiers.
type cachedCounter struct {
	Count       uint64    `json:"count"`
	Amount      string    `json:"amount"`
	WindowStart time.Time `json:"window_start"`
}

// CachedFeatureReader serves counter reads through the layered cache, with
// the velocity store as the canonical source on a full miss. Staleness is
// bounded by the configured TTL.
type CachedFeatureReader struct {
	store *velocity.Store
	cache *cache.Layered
	ttl   time.Duration

	// now is the clock used to select the current window; overridable in
	// tests.
	now func() time.Time
}

// NewCachedFeatureReader builds a reader over the given store and cache.
func NewCachedFeatureReader(store *velocity.Store, layered *cache.Layered, ttl time.Duration) *CachedFeatureReader {
	if ttl <= 0 {
		ttl = cache.FeatureTTL
	}
	return &CachedFeatureReader{
		store: store,
		cache: layered,
		ttl:   ttl,
		now:   time.Now,
	}
}

// ReadCounter returns the counter for key, cached up to the TTL. A done
// context surfaces its error rather than falling through to a store read.
func (r *CachedFeatureReader) ReadCounter(ctx context.Context, key feature.Key) (velocity.Counter, error) {
	if err := ctx.Err(); err != nil {
		return velocity.Zero(), err
	}

	payload, err := r.cache.GetOrCompute(ctx, key.String(), r.ttl, func(ctx context.Context) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		c := r.store.Read(key, r.now())
		raw, err := json.Marshal(cachedCounter{
			Count:       c.Count,
			Amount:      c.Amount.String(),
			WindowStart: c.WindowStart,
		})
		if err != nil {
			return "", fmt.Errorf("encoding counter: %w", err)
		}
		return string(raw), nil
	})
	if err != nil {
		return velocity.Zero(), err
	}

	var decoded cachedCounter
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		return velocity.Zero(), fmt.Errorf("decoding counter: %w", err)
	}

	amount, err := decimal.NewFromString(decoded.Amount)
	if err != nil {
		return velocity.Zero(), fmt.Errorf("decoding counter amount: %w", err)
	}

	return velocity.Counter{
		Count:       decoded.Count,
		Amount:      amount,
		WindowStart: decoded.WindowStart,
	}, nil
}
