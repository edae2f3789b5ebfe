package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCounter() (*MemoryCounter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	mc := NewMemoryCounter()
	mc.now = clock.now
	return mc, clock
}

func TestMemoryCounterWindow(t *testing.T) {
	mc, clock := newTestCounter()
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		res, err := mc.Allow(ctx, "key", 5, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i)
		assert.Equal(t, i, res.Usage)
		assert.Equal(t, 5-i, res.Remaining)
		clock.advance(time.Second)
	}

	res, err := mc.Allow(ctx, "key", 5, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 5, res.Usage)
	assert.Equal(t, 0, res.Remaining)
	assert.Equal(t, 55*time.Second, res.ResetIn)

	// a different key has its own window
	res, err = mc.Allow(ctx, "other", 5, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	// the first request leaves the window
	clock.advance(55 * time.Second)
	res, err = mc.Allow(ctx, "key", 5, time.Minute)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 5, res.Usage)
}

func TestMemoryCounterConcurrent(t *testing.T) {
	mc := NewMemoryCounter()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := mc.Allow(ctx, "shared", 20, time.Minute)
			if err == nil && res.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, allowed)
}

func TestMemoryCounterSweep(t *testing.T) {
	mc, clock := newTestCounter()
	ctx := context.Background()

	_, _ = mc.Allow(ctx, "old", 5, time.Minute)
	clock.advance(10 * time.Minute)
	_, _ = mc.Allow(ctx, "fresh", 5, time.Minute)

	assert.Equal(t, 1, mc.Sweep(5*time.Minute))
	assert.Len(t, mc.requests, 1)
}

func TestRedisCounter(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	endpoint, err := ctr.Endpoint(ctx, "")
	require.NoError(t, err)

	rdb, err := ConnectRedis(ctx, "redis://"+endpoint)
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })

	rc := NewRedisCounter(rdb)
	for i := 1; i <= 5; i++ {
		res, err := rc.Allow(ctx, "key", 5, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i)
		assert.Equal(t, i, res.Usage)
	}

	res, err := rc.Allow(ctx, "key", 5, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, 5, res.Usage)
	assert.Greater(t, res.ResetIn, time.Duration(0))
	assert.LessOrEqual(t, res.ResetIn, time.Minute)

	res, err = rc.Allow(ctx, "short", 1, 200*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	time.Sleep(400 * time.Millisecond)
	res, err = rc.Allow(ctx, "short", 1, 200*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, res.Allowed, "window should have rolled over")
}
