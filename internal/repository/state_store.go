package repository

import (
	"context"
	"time"
)

// StateStore abstracts ephemeral counters shared between instances.
// Implementations: Redis (production) or in-memory (local dev / single instance).
type StateStore interface {
	// Count returns the current value of key, zero when absent or expired.
	Count(ctx context.Context, key string) (int64, error)
	// Incr adds one to key. The ttl starts with the first increment and is
	// not extended by later ones.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Delete(ctx context.Context, key string) error
}
