package ports

// RateLimiter throttles request volume per client key over a sliding window.
type RateLimiter interface {
	Allow(key string) bool
	Reset(key string)
}

// LoginTracker enforces per-credential lockout after repeated failures.
type LoginTracker interface {
	IsLocked(key string) bool
	RecordFailure(key string)
	RecordSuccess(key string)
	RemainingAttempts(key string) int
}
