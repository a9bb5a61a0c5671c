// ABOUTME: Thread-safe fixed-window request limiter keyed by API key.
// ABOUTME: Size-limited with oldest-first eviction and a background sweep of stale windows.

package ratelimit

import (
	"container/list"
	"sync"
	"time"
)

// window stores the count for the current period of one key.
type window struct {
	start   time.Time
	count   int
	element *list.Element
}

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration // zero when Allowed
}

// Limiter admits at most limit requests per key in each fixed period.
// Windows are aligned to multiples of period, so a burst straddling a boundary
// can see up to 2*limit requests in one period's span.
// Uses a doubly-linked list in last-touched order for O(1) eviction.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	order   *list.List // keys, least recently touched at front
	limit   int
	period  time.Duration
	maxKeys int
	now     func() time.Time
	done    chan struct{}
	closed  bool
}

// New creates a limiter allowing limit requests per period per key and
// tracking at most maxKeys keys. A background goroutine drops stale windows.
func New(limit int, period time.Duration, maxKeys int) *Limiter {
	l := newLimiter(limit, period, maxKeys, time.Now)
	go l.cleanup()
	return l
}

func newLimiter(limit int, period time.Duration, maxKeys int, now func() time.Time) *Limiter {
	if maxKeys <= 0 {
		maxKeys = 1
	}
	return &Limiter{
		windows: make(map[string]*window),
		order:   list.New(),
		limit:   limit,
		period:  period,
		maxKeys: maxKeys,
		now:     now,
		done:    make(chan struct{}),
	}
}

// Allow counts one request for key and reports whether it fits the budget.
// Rejected requests are not counted.
func (l *Limiter) Allow(key string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	start := now.Truncate(l.period)

	w, exists := l.windows[key]
	if exists {
		l.order.MoveToBack(w.element)
		if !w.start.Equal(start) {
			w.start = start
			w.count = 0
		}
	} else {
		if len(l.windows) >= l.maxKeys {
			l.evictOldest()
		}
		w = &window{start: start, element: l.order.PushBack(key)}
		l.windows[key] = w
	}

	if w.count >= l.limit {
		return Decision{
			Allowed:    false,
			Limit:      l.limit,
			Remaining:  0,
			RetryAfter: start.Add(l.period).Sub(now),
		}
	}

	w.count++
	return Decision{
		Allowed:   true,
		Limit:     l.limit,
		Remaining: l.limit - w.count,
	}
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Limit returns the per-period request budget.
func (l *Limiter) Limit() int { return l.limit }

// Period returns the window length.
func (l *Limiter) Period() time.Duration { return l.period }

// evictOldest removes the least recently touched key. Must be called with mu held.
func (l *Limiter) evictOldest() {
	front := l.order.Front()
	if front == nil {
		return
	}
	key, _ := front.Value.(string)
	l.order.Remove(front)
	delete(l.windows, key)
}

// cleanup runs in a background goroutine, periodically removing stale windows.
func (l *Limiter) cleanup() {
	interval := l.period
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.done:
			return
		}
	}
}

// sweep drops windows that ended before the current one began.
func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	current := l.now().Truncate(l.period)
	for key, w := range l.windows {
		if w.start.Before(current) {
			l.order.Remove(w.element)
			delete(l.windows, key)
		}
	}
}

// Close stops the background cleanup goroutine. It is safe to call multiple times.
func (l *Limiter) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.closed {
		close(l.done)
		l.closed = true
	}
}
