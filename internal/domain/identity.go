package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role is a fleet privilege level. Roles form a total order used for
// minimum-role checks; RoleAlias maps legacy names onto current levels.
type Role string

const (
	RolePlatformAdmin Role = "platform_admin"
	RoleOrgAdmin      Role = "org_admin"
	RoleTechnician    Role = "technician"
	RoleViewer        Role = "viewer"

	// RoleAliasAdmin is the pre-rename spelling of org_admin still present
	// in tokens issued by older deployments.
	RoleAliasAdmin Role = "admin"
)

// Rank returns the privilege rank of a role. Unknown roles rank 0 and
// therefore fail every minimum-role check.
func (r Role) Rank() int {
	switch r {
	case RolePlatformAdmin:
		return 4
	case RoleOrgAdmin, RoleAliasAdmin:
		return 3
	case RoleTechnician:
		return 2
	case RoleViewer:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether r carries at least the privilege of minimum.
func (r Role) AtLeast(minimum Role) bool {
	return r.Rank() >= minimum.Rank() && r.Rank() > 0
}

// Identity is the authenticated subject embedded in every issued token.
// OrgID is uuid.Nil for platform admins and set for everyone else; identity
// is immutable once issued, role or org changes require a new token.
type Identity struct {
	UserID   uuid.UUID
	Username string
	Role     Role
	OrgID    uuid.UUID
}

// User is the stored account record behind an Identity.
type User struct {
	UserID       uuid.UUID
	Username     string
	PasswordHash string
	Role         Role
	OrgID        uuid.UUID
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
