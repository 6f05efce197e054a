package cache

import (
	"context"
	"errors"
	"time"
)

// Tier is one cache layer. Tiers share a single capability surface so the
// layered cache can iterate an ordered tier list uniformly; adding a tier
// never adds branching logic.
type Tier interface {
	// Get retrieves a value by key
	Get(ctx context.Context, key string) (string, error)

	// Set stores a value with a TTL
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	// Delete removes a key
	Delete(ctx context.Context, key string) error

	// Name identifies the tier in logs and metrics
	Name() string

	// Close releases tier resources
	Close() error
}

// Common TTL values
const (
	DefaultTTL = 1 * time.Hour
	FeatureTTL = 30 * time.Second
)

// ErrCacheKeyNotFound is returned when a cache key doesn't exist
type ErrCacheKeyNotFound struct {
	Key string
}

func (e ErrCacheKeyNotFound) Error() string {
	return "cache key not found: " + e.Key
}

// IsNotFound reports whether an error is a key-not-found miss rather than a
// tier failure.
func IsNotFound(err error) bool {
	var nf ErrCacheKeyNotFound
	return errors.As(err, &nf)
}
