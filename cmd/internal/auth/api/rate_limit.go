package authapi

import (
	"net/http"
	"strconv"
	"sync"
	"time"
)

// ipThrottle is an in-memory per-key sliding-window limiter used to slow
// credential-stuffing against the login endpoint. State is process-local;
// a multi-instance deployment throttles per instance.
type ipThrottle struct {
	mu        sync.Mutex
	limit     int
	window    time.Duration
	events    map[string][]time.Time
	lastSweep time.Time
}

func newIPThrottle(limit int, window time.Duration) *ipThrottle {
	if limit <= 0 {
		limit = 20
	}
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &ipThrottle{
		limit:  limit,
		window: window,
		events: make(map[string][]time.Time),
	}
}

// Allow reports whether an attempt from key at time "now" is permitted,
// and if not, how long until the oldest attempt falls out of the window.
func (t *ipThrottle) Allow(key string, now time.Time) (bool, time.Duration) {
	if key == "" {
		return true, 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	cut := now.Add(-t.window)
	t.sweep(now, cut)

	kept := t.events[key][:0]
	for _, at := range t.events[key] {
		if at.After(cut) {
			kept = append(kept, at)
		}
	}

	if len(kept) >= t.limit {
		t.events[key] = kept
		return false, kept[0].Add(t.window).Sub(now)
	}

	t.events[key] = append(kept, now)
	return true, 0
}

// sweep drops keys whose attempts have all aged out of the window, at
// most once per window, so the map does not grow with every distinct
// client IP ever seen. Caller must hold mu.
func (t *ipThrottle) sweep(now, cut time.Time) {
	if now.Sub(t.lastSweep) < t.window {
		return
	}
	t.lastSweep = now

	for key, attempts := range t.events {
		idle := true
		for _, at := range attempts {
			if at.After(cut) {
				idle = false
				break
			}
		}
		if idle {
			delete(t.events, key)
		}
	}
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.FormatInt(int64(retryAfter.Seconds())+1, 10))
	}
	writeError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts")
}
