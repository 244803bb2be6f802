package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the requested resource does not exist.
	// Keeping this sentinel in domain allows adapters to map it consistently to 404/NOT_FOUND.
	ErrNotFound = errors.New("resource not found")
	// ErrInvalidCredentials hides whether username or password failed.
	// The reason is to prevent account-enumeration side channels.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked signals temporary lockout after repeated failed attempts.
	ErrAccountLocked = errors.New("account locked")
	// ErrInvalidToken covers malformed, mis-signed, and expired tokens alike.
	// Callers must not learn which of the three occurred.
	ErrInvalidToken = errors.New("invalid token")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrRateLimited  = errors.New("rate limited")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
	// ErrDuplicateLog is raised when an ingested payload checksum already exists for the device.
	ErrDuplicateLog = errors.New("duplicate log entry")
)

// QuotaExceededError carries current usage so callers can act on the denial.
// It maps to HTTP 403 and is not retryable until plan or usage changes.
type QuotaExceededError struct {
	Resource string
	Used     int64
	Max      int64
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("%s quota exceeded: %d of %d used", e.Resource, e.Used, e.Max)
}

// AsQuotaExceeded reports whether err is a quota denial and returns it typed.
func AsQuotaExceeded(err error) (*QuotaExceededError, bool) {
	var qe *QuotaExceededError
	if errors.As(err, &qe) {
		return qe, true
	}
	return nil, false
}
