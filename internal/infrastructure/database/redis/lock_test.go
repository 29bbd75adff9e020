package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/monitoring/logging"
)

func TestMutex_LockUnlock(t *testing.T) {
	client, mr := newMiniredisClient(t)
	ctx := context.Background()
	lock := NewMutex(client, "scan-tick", logging.NewNopLogger(), WithLockTTL(time.Second))

	require.NoError(t, lock.Lock(ctx))
	assert.True(t, mr.Exists("ipw:lock:scan-tick"))

	require.NoError(t, lock.Unlock(ctx))
	assert.False(t, mr.Exists("ipw:lock:scan-tick"))
}

func TestMutex_Contention(t *testing.T) {
	client, _ := newMiniredisClient(t)
	ctx := context.Background()
	opts := []LockOption{WithRetryCount(2), WithRetryDelay(5 * time.Millisecond)}
	first := NewMutex(client, "scan-tick", nil, opts...)
	second := NewMutex(client, "scan-tick", nil, opts...)

	require.NoError(t, first.Lock(ctx))
	assert.ErrorIs(t, second.Lock(ctx), ErrLockNotAcquired)
	assert.ErrorIs(t, second.Unlock(ctx), ErrLockNotHeld)

	require.NoError(t, first.Unlock(ctx))
	assert.NoError(t, second.Lock(ctx))
}

func TestMutex_LockHonoursContext(t *testing.T) {
	client, _ := newMiniredisClient(t)
	holder := NewMutex(client, "scan-tick", nil)
	require.NoError(t, holder.Lock(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	waiter := NewMutex(client, "scan-tick", nil, WithRetryDelay(time.Second))
	assert.ErrorIs(t, waiter.Lock(ctx), context.Canceled)
}

func TestMutex_ExtendAndTTL(t *testing.T) {
	client, _ := newMiniredisClient(t)
	ctx := context.Background()
	lock := NewMutex(client, "scan-tick", nil, WithLockTTL(time.Second))
	require.NoError(t, lock.Lock(ctx))

	ok, err := lock.Extend(ctx, 10*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ttl, err := lock.TTL(ctx)
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Second)
}

func TestMutex_ExpiredLockCannotBeExtended(t *testing.T) {
	client, mr := newMiniredisClient(t)
	ctx := context.Background()
	lock := NewMutex(client, "scan-tick", nil, WithLockTTL(time.Second))
	require.NoError(t, lock.Lock(ctx))

	mr.FastForward(2 * time.Second)
	ok, err := lock.Extend(ctx, time.Second)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMutex_KeyPrefixFromConfig(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(&RedisConfig{Addr: mr.Addr(), KeyPrefix: "prod:"}, logging.NewNopLogger())
	require.NoError(t, err)
	defer client.Close()

	lock := NewMutex(client, "scan-tick", nil)
	require.NoError(t, lock.Lock(context.Background()))
	assert.True(t, mr.Exists("prod:lock:scan-tick"))
}

func TestTickGuard_SingleHolder(t *testing.T) {
	client, mr := newMiniredisClient(t)
	ctx := context.Background()
	guardA := NewTickGuard(client, "scheduler", time.Minute, nil)
	guardB := NewTickGuard(client, "scheduler", time.Minute, nil)

	release, acquired, err := guardA.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, acquired)
	require.NotNil(t, release)

	other, acquired, err := guardB.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, acquired)
	assert.Nil(t, other)

	release()
	assert.False(t, mr.Exists("ipw:lock:scheduler"))

	release, acquired, err = guardB.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, acquired)
	release()
}

func TestTickGuard_BackendDown(t *testing.T) {
	client, _ := newMiniredisClient(t)
	require.NoError(t, client.Close())

	release, acquired, err := NewTickGuard(client, "scheduler", 0, nil).Acquire(context.Background())
	assert.ErrorIs(t, err, ErrClientClosed)
	assert.False(t, acquired)
	assert.Nil(t, release)
}
