package feature

import (
	"fmt"
	"time"
)

// Dimension identifies which identity axis a velocity feature is keyed on.
// The dimension is part of the key, never inferred from the value shape.
type Dimension string

const (
	DimensionIP     Dimension = "ip"
	DimensionEmail  Dimension = "email"
	DimensionCard   Dimension = "card"
	DimensionUser   Dimension = "user"
	DimensionDevice Dimension = "device"
)

// IsValid reports whether the dimension is one of the known axes.
func (d Dimension) IsValid() bool {
	switch d {
	case DimensionIP, DimensionEmail, DimensionCard, DimensionUser, DimensionDevice:
		return true
	}
	return false
}

// Key addresses a velocity counter and its cache entries: one identity value
// on one dimension over one window size.
type Key struct {
	Dimension Dimension
	Identity  string
	Window    time.Duration
}

// NewKey constructs a Key, rejecting unknown dimensions, empty identities and
// non-positive windows.
func NewKey(dim Dimension, identity string, window time.Duration) (Key, error) {
	if !dim.IsValid() {
		return Key{}, fmt.Errorf("unknown feature dimension: %q", dim)
	}
	if identity == "" {
		return Key{}, fmt.Errorf("feature identity must not be empty")
	}
	if window <= 0 {
		return Key{}, fmt.Errorf("feature window must be positive, got %s", window)
	}
	return Key{Dimension: dim, Identity: identity, Window: window}, nil
}

// String renders the canonical cache/shard key form. Dimension and window are
// both encoded so identical identity values on different axes never collide.
func (k Key) String() string {
	return fmt.Sprintf("risk:velocity:%s:%s:%s", k.Dimension, k.Identity, k.Window)
}

// IsZero reports whether the key is the zero value.
func (k Key) IsZero() bool {
	return k.Dimension == "" && k.Identity == "" && k.Window == 0
}
