package guard

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type attemptState struct {
	count        int
	firstAttempt time.Time
	lockedUntil  time.Time
}

// LoginTracker locks a credential key after maxAttempts failures inside
// window. The lockout lasts lockoutFor from the failure that crossed the
// threshold, independent of attempts made while locked. A failure window
// that expires below the threshold restarts counting at 1 on the next
// failure, so sporadic failures spread over long periods never accumulate
// into a lockout.
type LoginTracker struct {
	mu          sync.Mutex
	attempts    map[string]*attemptState
	maxAttempts int
	window      time.Duration
	lockoutFor  time.Duration
	nowFn       func() time.Time
	stopCh      chan struct{}
	stopOnce    sync.Once
}

// NewLoginTracker builds a tracker locking keys for lockoutFor after
// maxAttempts failures within window.
func NewLoginTracker(maxAttempts int, window, lockoutFor time.Duration) *LoginTracker {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	if lockoutFor <= 0 {
		lockoutFor = 30 * time.Minute
	}
	t := &LoginTracker{
		attempts:    make(map[string]*attemptState),
		maxAttempts: maxAttempts,
		window:      window,
		lockoutFor:  lockoutFor,
		nowFn:       func() time.Time { return time.Now().UTC() },
		stopCh:      make(chan struct{}),
	}
	go t.sweepLoop()
	return t
}

// IsLocked reports whether key is currently locked out. An expired lockout
// is purged on observation so counting restarts from zero afterwards.
func (t *LoginTracker) IsLocked(key string) bool {
	now := t.nowFn()

	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.attempts[key]
	if !ok {
		return false
	}
	if state.lockedUntil.IsZero() {
		return false
	}
	if state.lockedUntil.After(now) {
		return true
	}
	delete(t.attempts, key)
	return false
}

// RecordFailure counts a failed attempt. The lockout activates strictly on
// the maxAttempts-th failure, timed from that failure.
func (t *LoginTracker) RecordFailure(key string) {
	now := t.nowFn()

	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.attempts[key]
	if ok && state.lockedUntil.After(now) {
		// An active lockout is timed from the failure that triggered it;
		// further failures neither extend nor reset it.
		return
	}
	if !ok || now.Sub(state.firstAttempt) > t.window {
		t.attempts[key] = &attemptState{count: 1, firstAttempt: now}
		return
	}

	state.count++
	if state.count >= t.maxAttempts && state.lockedUntil.IsZero() {
		state.lockedUntil = now.Add(t.lockoutFor)
		slog.Default().WarnContext(context.Background(), "login lockout triggered",
			"module", "guard",
			"operation", "record_login_failure",
			"outcome", "blocked",
			"failure_count", state.count,
			"locked_until", state.lockedUntil,
		)
	}
}

// RecordSuccess clears all failure state for key.
func (t *LoginTracker) RecordSuccess(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.attempts, key)
}

// RemainingAttempts returns how many more failures key can absorb before
// locking. A locked key has zero remaining.
func (t *LoginTracker) RemainingAttempts(key string) int {
	now := t.nowFn()

	t.mu.Lock()
	defer t.mu.Unlock()

	state, ok := t.attempts[key]
	if ok && state.lockedUntil.After(now) {
		return 0
	}
	if !ok || now.Sub(state.firstAttempt) > t.window {
		return t.maxAttempts
	}
	remaining := t.maxAttempts - state.count
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Stop terminates the background sweep.
func (t *LoginTracker) Stop() {
	t.stopOnce.Do(func() { close(t.stopCh) })
}

func (t *LoginTracker) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.stopCh:
			return
		case <-ticker.C:
			t.sweep()
		}
	}
}

func (t *LoginTracker) sweep() {
	now := t.nowFn()

	t.mu.Lock()
	for key, state := range t.attempts {
		if !state.lockedUntil.IsZero() {
			if !state.lockedUntil.After(now) {
				delete(t.attempts, key)
			}
			continue
		}
		if now.Sub(state.firstAttempt) > t.window {
			delete(t.attempts, key)
		}
	}
	t.mu.Unlock()
}
