package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalTier_SetGet(t *testing.T) {
	tier := NewLocalTier(4)
	ctx := context.Background()

	require.NoError(t, tier.Set(ctx, "k1", "v1", time.Minute))

	value, err := tier.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "v1", value)
}

func TestLocalTier_MissIsNotFound(t *testing.T) {
	tier := NewLocalTier(4)

	_, err := tier.Get(context.Background(), "absent")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestLocalTier_TTLExpiry(t *testing.T) {
	tier := NewLocalTier(4)
	ctx := context.Background()

	require.NoError(t, tier.Set(ctx, "k1", "v1", 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	_, err := tier.Get(ctx, "k1")
	assert.True(t, IsNotFound(err))
}

func TestLocalTier_EvictsLeastRecentlyUsed(t *testing.T) {
	tier := NewLocalTier(2).(*localTier)
	ctx := context.Background()

	require.NoError(t, tier.Set(ctx, "a", "1", time.Minute))
	require.NoError(t, tier.Set(ctx, "b", "2", time.Minute))

	// Touch "a" so "b" becomes the eviction candidate.
	_, err := tier.Get(ctx, "a")
	require.NoError(t, err)

	require.NoError(t, tier.Set(ctx, "c", "3", time.Minute))
	assert.Equal(t, 2, tier.Len())

	_, err = tier.Get(ctx, "b")
	assert.True(t, IsNotFound(err), "least recently used entry should be evicted")

	_, err = tier.Get(ctx, "a")
	assert.NoError(t, err)
	_, err = tier.Get(ctx, "c")
	assert.NoError(t, err)
}

func TestLocalTier_OverwriteKeepsSingleEntry(t *testing.T) {
	tier := NewLocalTier(2).(*localTier)
	ctx := context.Background()

	require.NoError(t, tier.Set(ctx, "a", "1", time.Minute))
	require.NoError(t, tier.Set(ctx, "a", "2", time.Minute))
	assert.Equal(t, 1, tier.Len())

	value, err := tier.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "2", value)
}

func TestLocalTier_Delete(t *testing.T) {
	tier := NewLocalTier(4)
	ctx := context.Background()

	require.NoError(t, tier.Set(ctx, "a", "1", time.Minute))
	require.NoError(t, tier.Delete(ctx, "a"))

	_, err := tier.Get(ctx, "a")
	assert.True(t, IsNotFound(err))

	// Deleting an absent key is not an error.
	assert.NoError(t, tier.Delete(ctx, "a"))
}
