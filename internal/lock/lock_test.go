package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisLockerExcludesSecondHolder(t *testing.T) {
	_, client := setupRedis(t)
	ctx := context.Background()
	a := NewRedisLocker(client, "wallet:lock:")
	b := NewRedisLocker(client, "wallet:lock:")

	ok, err := a.TryLock(ctx, "freeze-sweep", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.TryLock(ctx, "freeze-sweep", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second replica must not acquire a held lock")

	assert.ErrorIs(t, b.Unlock(ctx, "freeze-sweep"), ErrNotHeld, "non-owner must not release")
	require.NoError(t, a.Unlock(ctx, "freeze-sweep"))

	ok, err = b.TryLock(ctx, "freeze-sweep", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockerExpires(t *testing.T) {
	mr, client := setupRedis(t)
	ctx := context.Background()
	a := NewRedisLocker(client, "")
	b := NewRedisLocker(client, "")

	ok, err := a.TryLock(ctx, "limit-reset", 10*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(11 * time.Second)

	ok, err = b.TryLock(ctx, "limit-reset", 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.ErrorIs(t, a.Unlock(ctx, "limit-reset"), ErrNotHeld)
}

func TestLocalLocker(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLocalLocker()
	l.now = func() time.Time { return now }

	ok, _ := l.TryLock(ctx, "k", time.Minute)
	assert.True(t, ok)
	ok, _ = l.TryLock(ctx, "k", time.Minute)
	assert.False(t, ok)

	now = now.Add(2 * time.Minute)
	ok, _ = l.TryLock(ctx, "k", time.Minute)
	assert.True(t, ok)

	require.NoError(t, l.Unlock(ctx, "k"))
	assert.ErrorIs(t, l.Unlock(ctx, "k"), ErrNotHeld)
}
