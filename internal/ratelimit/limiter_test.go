// ABOUTME: Tests for the fixed-window limiter and its HTTP middleware.
// ABOUTME: Validates budgets, window rollover, eviction, sweep, 429 responses, and concurrency safety.

package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func TestLimiter_AllowsUpToLimit(t *testing.T) {
	clock := newClock()
	l := newLimiter(10, time.Minute, 100, clock.Now)

	for i := range 10 {
		d := l.Allow("key-a")
		require.True(t, d.Allowed, "request %d", i+1)
		assert.Equal(t, 10-(i+1), d.Remaining)
	}

	d := l.Allow("key-a")
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, time.Minute, d.RetryAfter)
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	l := newLimiter(1, time.Minute, 100, newClock().Now)

	assert.True(t, l.Allow("key-a").Allowed)
	assert.False(t, l.Allow("key-a").Allowed)
	assert.True(t, l.Allow("key-b").Allowed)
}

func TestLimiter_WindowRollover(t *testing.T) {
	clock := newClock()
	l := newLimiter(2, time.Minute, 100, clock.Now)

	assert.True(t, l.Allow("k").Allowed)
	clock.Advance(20 * time.Second)
	assert.True(t, l.Allow("k").Allowed)

	d := l.Allow("k")
	assert.False(t, d.Allowed)
	assert.Equal(t, 40*time.Second, d.RetryAfter)

	clock.Advance(40 * time.Second)
	assert.True(t, l.Allow("k").Allowed, "new window resets the count")
}

func TestLimiter_RejectionsAreNotCounted(t *testing.T) {
	clock := newClock()
	l := newLimiter(1, time.Minute, 100, clock.Now)

	assert.True(t, l.Allow("k").Allowed)
	for range 5 {
		assert.False(t, l.Allow("k").Allowed)
	}
	clock.Advance(time.Minute)
	assert.True(t, l.Allow("k").Allowed)
}

func TestLimiter_EvictsLeastRecentlyTouched(t *testing.T) {
	l := newLimiter(1, time.Minute, 2, newClock().Now)

	l.Allow("a")
	l.Allow("b")
	l.Allow("a") // touch a, b is now oldest
	l.Allow("c") // evicts b

	assert.Equal(t, 2, l.Len())
	assert.True(t, l.Allow("b").Allowed, "b was evicted so it starts fresh")
	assert.False(t, l.Allow("c").Allowed)
}

func TestLimiter_SweepDropsStaleWindows(t *testing.T) {
	clock := newClock()
	l := newLimiter(5, time.Minute, 100, clock.Now)

	l.Allow("old")
	clock.Advance(time.Minute)
	l.Allow("new")

	l.sweep()
	assert.Equal(t, 1, l.Len())
}

func TestLimiter_CloseIdempotent(t *testing.T) {
	l := New(10, time.Minute, 100)
	l.Close()
	l.Close()
}

func TestLimiter_ConcurrentAllowNeverExceedsLimit(t *testing.T) {
	l := newLimiter(50, time.Hour, 100, newClock().Now)

	var allowed atomic.Int64
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 10 {
				if l.Allow("shared").Allowed {
					allowed.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(50), allowed.Load())
}

func TestMiddleware(t *testing.T) {
	l := newLimiter(2, time.Minute, 100, newClock().Now)
	var served int
	handler := Middleware(l, func(r *http.Request) string {
		return r.Header.Get("X-API-Key")
	}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		served++
		w.WriteHeader(http.StatusOK)
	}))

	do := func(key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/chats", nil)
		if key != "" {
			req.Header.Set("X-API-Key", key)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, do("k").Code)
	rec := do("k")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = do("k")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"rate limit exceeded: 2 requests per 60 seconds"}`, rec.Body.String())

	// Unkeyed requests bypass the limiter.
	for range 5 {
		assert.Equal(t, http.StatusOK, do("").Code)
	}
	assert.Equal(t, 7, served)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "10 requests per 60 seconds", Describe(10, time.Minute))
	assert.Equal(t, "1 requests per 1 seconds", Describe(1, time.Second))
	assert.Equal(t, "5 requests per 1.5s", Describe(5, 1500*time.Millisecond))
}
