package lock

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLockerExcludes(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lk, err := l.Obtain(ctx, "schedules:generate", time.Minute)
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
			assert.NoError(t, lk.Release(ctx))
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
}

func TestLocalLockerHonoursContext(t *testing.T) {
	l := NewLocalLocker()
	held, err := l.Obtain(context.Background(), "k", time.Minute)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.Obtain(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, ErrNotObtained)

	require.NoError(t, held.Release(context.Background()))
	require.NoError(t, held.Release(context.Background()))
	other, err := l.Obtain(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	assert.NoError(t, other.Release(context.Background()))
}

func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("REDIS_ADDRESS")
	if os.Getenv("INTEGRATION_TESTS") != "1" || addr == "" {
		t.Skip("set INTEGRATION_TESTS=1 and REDIS_ADDRESS to run")
	}
	ctx := context.Background()
	rdb, err := Connect(ctx, addr, os.Getenv("REDIS_PASSWORD"))
	require.NoError(t, err)
	defer rdb.Close()

	l := NewRedisLocker(rdb)
	l.retries = 1
	l.backoff = 10 * time.Millisecond

	lk, err := l.Obtain(ctx, "test:burrito-lock", 5*time.Second)
	require.NoError(t, err)
	_, err = l.Obtain(ctx, "test:burrito-lock", 5*time.Second)
	assert.ErrorIs(t, err, ErrNotObtained)
	require.NoError(t, lk.Release(ctx))
}
