package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, normalize([]string{"c", "a", "b", "a"}))
}

func TestLocalMutualExclusion(t *testing.T) {
	l := NewLocal()
	var inside int32
	var maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background(), "teacher:t1", "classroom:r1")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, l.size())
}

func TestLocalAcquireHonoursContext(t *testing.T) {
	l := NewLocal()
	release, err := l.Acquire(context.Background(), "k")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "other", "k")
	assert.ErrorIs(t, err, ErrNotAcquired)

	// "other" was rolled back, so it is free again
	r2, err := l.Acquire(context.Background(), "other")
	require.NoError(t, err)
	r2()

	release()
	release()
	assert.Equal(t, 0, l.size())
}

func TestLocalDisjointKeysDoNotBlock(t *testing.T) {
	l := NewLocal()
	r1, err := l.Acquire(context.Background(), "a")
	require.NoError(t, err)
	defer r1()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r2, err := l.Acquire(ctx, "b")
	require.NoError(t, err)
	r2()
}

func newRedisLocker(t *testing.T) (*Redis, *miniredis.Miniredis) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, RedisConfig{Prefix: "test:", TTL: time.Second, RetryDelay: 5 * time.Millisecond}), srv
}

func TestRedisAcquireAndRelease(t *testing.T) {
	locker, srv := newRedisLocker(t)

	release, err := locker.Acquire(context.Background(), "classroom:r1")
	require.NoError(t, err)
	assert.True(t, srv.Exists("test:classroom:r1"))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = locker.Acquire(ctx, "classroom:r1")
	assert.ErrorIs(t, err, ErrNotAcquired)

	release()
	assert.False(t, srv.Exists("test:classroom:r1"))

	release2, err := locker.Acquire(context.Background(), "classroom:r1")
	require.NoError(t, err)
	release2()
}

func TestRedisReleaseKeepsForeignToken(t *testing.T) {
	locker, srv := newRedisLocker(t)

	release, err := locker.Acquire(context.Background(), "teacher:t1")
	require.NoError(t, err)

	// simulate expiry and takeover by another holder
	require.NoError(t, srv.Set("test:teacher:t1", "someone-else"))
	release()

	got, err := srv.Get("test:teacher:t1")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}
