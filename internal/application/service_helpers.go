package application

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/edgefleet/fleetcore/internal/domain"
	"github.com/edgefleet/fleetcore/internal/ports"
)

// resolveOrg authorizes actor against minimum and settles which organization
// the operation targets. Platform admins may act on any organization;
// everyone else is pinned to their own, and a requested foreign org is a
// forbidden access, not a fallback.
func (s *Service) resolveOrg(actor domain.Identity, requested uuid.UUID, minimum domain.Role) (uuid.UUID, error) {
	if !actor.Role.AtLeast(minimum) {
		return uuid.Nil, domain.ErrForbidden
	}
	if actor.Role == domain.RolePlatformAdmin {
		if requested == uuid.Nil {
			return uuid.Nil, domain.ErrInvalidInput
		}
		return requested, nil
	}
	if actor.OrgID == uuid.Nil {
		return uuid.Nil, domain.ErrForbidden
	}
	if requested != uuid.Nil && requested != actor.OrgID {
		return uuid.Nil, domain.ErrForbidden
	}
	return actor.OrgID, nil
}

func createUserParams(username, passwordHash string, role domain.Role, orgID uuid.UUID, now time.Time) ports.CreateUserParams {
	return ports.CreateUserParams{
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
		OrgID:        orgID,
		CreatedAtUTC: now,
	}
}

// randomHex returns a cryptographically random hex token.
func randomHex(bytesLen int) (string, error) {
	raw := make([]byte, bytesLen)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return hex.EncodeToString(raw), nil
}
