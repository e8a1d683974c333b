package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	checkout_redis "ms-booking/internal/checkout/redis"
	"ms-booking/internal/logger"
)

func setupLock(t *testing.T) (*checkout_redis.Lock, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return checkout_redis.NewLock(client, logger.NewLogger()), mr
}

func TestAcquireAndRelease(t *testing.T) {
	lock, _ := setupLock(t)
	ctx := context.Background()

	ok, err := lock.Acquire(ctx, "hold-1", "token-a")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, lock.Release(ctx, "hold-1", "token-a"))

	ok, err = lock.Acquire(ctx, "hold-1", "token-b")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSecondAcquireIsRejected(t *testing.T) {
	lock, _ := setupLock(t)
	ctx := context.Background()

	ok, err := lock.Acquire(ctx, "hold-1", "token-a")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = lock.Acquire(ctx, "hold-1", "token-b")
	require.NoError(t, err)
	assert.False(t, ok)

	// A different hold is unaffected.
	ok, err = lock.Acquire(ctx, "hold-2", "token-c")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReleaseForeignTokenIsNoop(t *testing.T) {
	lock, _ := setupLock(t)
	ctx := context.Background()

	ok, err := lock.Acquire(ctx, "hold-1", "token-a")
	require.NoError(t, err)
	require.True(t, ok)

	// A stale owner cannot drop the current owner's lock.
	require.NoError(t, lock.Release(ctx, "hold-1", "token-stale"))

	ok, err = lock.Acquire(ctx, "hold-1", "token-b")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReleaseMissingLockIsNoop(t *testing.T) {
	lock, _ := setupLock(t)
	assert.NoError(t, lock.Release(context.Background(), "hold-gone", "token-a"))
}

func TestLockExpiresAfterTTL(t *testing.T) {
	lock, mr := setupLock(t)
	ctx := context.Background()

	ok, err := lock.Acquire(ctx, "hold-1", "token-a")
	require.NoError(t, err)
	require.True(t, ok)

	// Past the TTL an abandoned lock no longer blocks checkout.
	mr.FastForward(31 * time.Second)

	ok, err = lock.Acquire(ctx, "hold-1", "token-b")
	require.NoError(t, err)
	assert.True(t, ok)
}
