// Package guard holds the in-memory abuse-protection structures: a sliding
// window request rate limiter and a failed-login lockout tracker. Both are
// process-wide maps keyed by client identity, pruned lazily on access and by
// a recurring background sweep so memory stays bounded regardless of traffic
// shape.
package guard

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const sweepInterval = 5 * time.Minute

// RateLimiter is a sliding-window request throttle. Each key retains at most
// maxRequests timestamps newer than now-window; older entries are discarded
// on access and whole keys are evicted by the sweep once fully aged out.
type RateLimiter struct {
	mu          sync.Mutex
	windows     map[string][]time.Time
	window      time.Duration
	maxRequests int
	nowFn       func() time.Time
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewRateLimiter builds a limiter allowing maxRequests per window per key.
func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	if maxRequests <= 0 {
		maxRequests = 100
	}
	if window <= 0 {
		window = time.Minute
	}
	l := &RateLimiter{
		windows:     make(map[string][]time.Time),
		window:      window,
		maxRequests: maxRequests,
		nowFn:       func() time.Time { return time.Now().UTC() },
		stopCh:      make(chan struct{}),
	}
	go l.sweepLoop()
	return l
}

// Allow records and admits the request unless the key already has
// maxRequests timestamps inside the window. Rejected requests are not
// recorded, so a saturated client does not extend its own throttle.
func (l *RateLimiter) Allow(key string) bool {
	now := l.nowFn()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := pruneBefore(l.windows[key], cutoff)
	if len(kept) >= l.maxRequests {
		l.windows[key] = kept
		return false
	}
	l.windows[key] = append(kept, now)
	return true
}

// Reset clears a key immediately.
func (l *RateLimiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
}

// Stop terminates the background sweep.
func (l *RateLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

func (l *RateLimiter) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			l.sweep()
		}
	}
}

func (l *RateLimiter) sweep() {
	cutoff := l.nowFn().Add(-l.window)

	l.mu.Lock()
	evicted := 0
	for key, stamps := range l.windows {
		kept := pruneBefore(stamps, cutoff)
		if len(kept) == 0 {
			delete(l.windows, key)
			evicted++
			continue
		}
		l.windows[key] = kept
	}
	remaining := len(l.windows)
	l.mu.Unlock()

	if evicted > 0 {
		slog.Default().DebugContext(context.Background(), "rate limiter sweep completed",
			"module", "guard",
			"operation", "rate_limit_sweep",
			"outcome", "success",
			"evicted_keys", evicted,
			"tracked_keys", remaining,
		)
	}
}

// pruneBefore drops timestamps at or before cutoff, preserving order.
func pruneBefore(stamps []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for idx < len(stamps) && !stamps[idx].After(cutoff) {
		idx++
	}
	if idx == 0 {
		return stamps
	}
	kept := make([]time.Time, len(stamps)-idx)
	copy(kept, stamps[idx:])
	return kept
}
