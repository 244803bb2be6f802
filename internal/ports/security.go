package ports

import (
	"github.com/edgefleet/fleetcore/internal/domain"
)

// PasswordHasher verifies passwords across historical hash schemes and
// produces hashes in the current scheme.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, storedHash string) bool
}

// TokenService issues and validates signed identity tokens. Validate returns
// domain.ErrInvalidToken for malformed, mis-signed, and expired tokens alike.
type TokenService interface {
	Issue(identity domain.Identity) (string, error)
	Validate(token string) (domain.Identity, error)
	HasRole(token string, minimum domain.Role) bool
}
