package middleware

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/Suhaibinator/SEffect/pkg/common"
	"github.com/Suhaibinator/SEffect/pkg/effect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances its time on Sleep instead of blocking.
type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	slept time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.slept += d
}

func (c *fakeClock) Slept() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slept
}

func TestThrottlePacesRequests(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	mw := Throttle(ThrottleConfig{Rate: 10, Per: time.Second, Clock: clock})

	for range 5 {
		out, err := mw(newRequest(http.MethodGet, "/", ""))
		require.NoError(t, err)
		require.NotNil(t, out)
	}

	// The first take is free, each following one waits 100ms.
	assert.Equal(t, 400*time.Millisecond, clock.Slept())
}

func TestThrottleSeparateKeys(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	mw := Throttle(ThrottleConfig{
		Rate:    1,
		Per:     time.Second,
		Clock:   clock,
		KeyFunc: func(req *common.Request) string { return req.Path },
	})

	for _, p := range []string{"/a", "/b", "/c"} {
		_, err := mw(newRequest(http.MethodGet, p, ""))
		require.NoError(t, err)
	}
	assert.Zero(t, clock.Slept())
}

func TestThrottleMaxWait(t *testing.T) {
	mw := Throttle(ThrottleConfig{Rate: 1, Per: time.Hour, MaxWait: 20 * time.Millisecond})

	_, err := mw(newRequest(http.MethodGet, "/", ""))
	require.NoError(t, err)

	out, err := mw(newRequest(http.MethodGet, "/", ""))
	assert.Nil(t, out)
	assert.Equal(t, http.StatusTooManyRequests, effect.StatusOf(err))
}

func TestThrottleRefusedRequestKeepsNoSlot(t *testing.T) {
	mw := Throttle(ThrottleConfig{Rate: 1, Per: 300 * time.Millisecond, MaxWait: 50 * time.Millisecond})

	_, err := mw(newRequest(http.MethodGet, "/", ""))
	require.NoError(t, err)

	_, err = mw(newRequest(http.MethodGet, "/", ""))
	require.Equal(t, http.StatusTooManyRequests, effect.StatusOf(err))

	// One idle period refills the bucket.
	time.Sleep(320 * time.Millisecond)
	out, err := mw(newRequest(http.MethodGet, "/", ""))
	require.NoError(t, err)
	assert.NotNil(t, out)
}

func TestThrottleWaitsWithinMaxWait(t *testing.T) {
	mw := Throttle(ThrottleConfig{Rate: 10, Per: time.Second, MaxWait: time.Second})

	_, err := mw(newRequest(http.MethodGet, "/", ""))
	require.NoError(t, err)

	start := time.Now()
	out, err := mw(newRequest(http.MethodGet, "/", ""))
	require.NoError(t, err)
	assert.NotNil(t, out)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestThrottleCanceledWaitReturnsSlot(t *testing.T) {
	mw := Throttle(ThrottleConfig{Rate: 1, Per: 300 * time.Millisecond, MaxWait: time.Second})

	_, err := mw(newRequest(http.MethodGet, "/", ""))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	out, err := mw(newRequest(http.MethodGet, "/", "").WithContext(ctx))
	assert.Nil(t, out)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// The first slot frees up 300ms after the first request. Had the canceled
	// request kept its reservation, the next one would wait another period.
	time.Sleep(320 * time.Millisecond)
	start := time.Now()
	_, err = mw(newRequest(http.MethodGet, "/", ""))
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 150*time.Millisecond)
}

func TestThrottleMaxWaitSeparateKeys(t *testing.T) {
	mw := Throttle(ThrottleConfig{
		Rate:    1,
		Per:     time.Hour,
		MaxWait: 10 * time.Millisecond,
		KeyFunc: func(req *common.Request) string { return req.Path },
	})

	for _, p := range []string{"/a", "/b"} {
		_, err := mw(newRequest(http.MethodGet, p, ""))
		require.NoError(t, err)
	}
	_, err := mw(newRequest(http.MethodGet, "/a", ""))
	assert.Equal(t, http.StatusTooManyRequests, effect.StatusOf(err))
}

func TestThrottleHonoursContext(t *testing.T) {
	mw := Throttle(ThrottleConfig{Rate: 1, Per: time.Hour})

	_, err := mw(newRequest(http.MethodGet, "/", ""))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	out, err := mw(newRequest(http.MethodGet, "/", "").WithContext(ctx))
	assert.Nil(t, out)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestUberRateLimiterReusesLimiter(t *testing.T) {
	u := NewUberRateLimiter(0)
	assert.Same(t, u.getLimiter("k"), u.getLimiter("k"))
	assert.Equal(t, 1, u.rate)
}
