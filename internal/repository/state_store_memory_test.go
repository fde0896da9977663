package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStateStore_IncrAndExpire(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := NewMemoryStateStore().(*memoryStateStore)
	store.now = func() time.Time { return now }

	n, err := store.Incr(ctx, "redeem:u1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	now = now.Add(30 * time.Second)
	n, err = store.Incr(ctx, "redeem:u1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// ttl runs from the first increment
	now = now.Add(31 * time.Second)
	count, err := store.Count(ctx, "redeem:u1")
	require.NoError(t, err)
	assert.Zero(t, count)

	n, err = store.Incr(ctx, "redeem:u1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, store.Delete(ctx, "redeem:u1"))
	count, err = store.Count(ctx, "redeem:u1")
	require.NoError(t, err)
	assert.Zero(t, count)
}
