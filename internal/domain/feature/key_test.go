package feature

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewKey(t *testing.T) {
	key, err := NewKey(DimensionIP, "203.0.113.9", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "risk:velocity:ip:203.0.113.9:1h0m0s", key.String())
}

func TestNewKey_Rejections(t *testing.T) {
	_, err := NewKey("shoe_size", "x", time.Hour)
	assert.Error(t, err)

	_, err = NewKey(DimensionEmail, "", time.Hour)
	assert.Error(t, err)

	_, err = NewKey(DimensionCard, "x", 0)
	assert.Error(t, err)

	_, err = NewKey(DimensionCard, "x", -time.Minute)
	assert.Error(t, err)
}

func TestKey_DimensionsAndWindowsNeverCollide(t *testing.T) {
	a, err := NewKey(DimensionIP, "same", time.Hour)
	require.NoError(t, err)
	b, err := NewKey(DimensionEmail, "same", time.Hour)
	require.NoError(t, err)
	c, err := NewKey(DimensionIP, "same", 24*time.Hour)
	require.NoError(t, err)

	assert.NotEqual(t, a.String(), b.String())
	assert.NotEqual(t, a.String(), c.String())
}

func TestDimension_IsValid(t *testing.T) {
	for _, d := range []Dimension{DimensionIP, DimensionEmail, DimensionCard, DimensionUser, DimensionDevice} {
		assert.True(t, d.IsValid())
	}
	assert.False(t, Dimension("").IsValid())
	assert.False(t, Dimension("session").IsValid())
}

func TestKey_IsZero(t *testing.T) {
	assert.True(t, Key{}.IsZero())
	key, err := NewKey(DimensionUser, "u1", time.Hour)
	require.NoError(t, err)
	assert.False(t, key.IsZero())
}
