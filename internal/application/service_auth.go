package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/edgefleet/fleetcore/internal/domain"
	"github.com/edgefleet/fleetcore/internal/metrics"
)

// Login verifies credentials under lockout protection and issues a signed
// identity token. The lockout key couples caller IP with the username so one
// address cannot burn another address's attempt budget.
func (s *Service) Login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if username == "" || req.Password == "" {
		return LoginResponse{}, fmt.Errorf("%w: username and password are required", domain.ErrInvalidInput)
	}

	lockKey := req.IPAddress + "|" + username
	if s.logins.IsLocked(lockKey) {
		metrics.LoginLockouts.Inc()
		slog.Default().WarnContext(ctx, "login rejected while locked",
			"module", "application",
			"operation", "login",
			"outcome", "blocked",
			"username", username,
		)
		return LoginResponse{}, domain.ErrAccountLocked
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		s.logins.RecordFailure(lockKey)
		return LoginResponse{}, domain.ErrInvalidCredentials
	}
	if !user.IsActive {
		s.logins.RecordFailure(lockKey)
		return LoginResponse{}, domain.ErrInvalidCredentials
	}
	if !s.hasher.Verify(req.Password, user.PasswordHash) {
		s.logins.RecordFailure(lockKey)
		return LoginResponse{}, domain.ErrInvalidCredentials
	}

	s.logins.RecordSuccess(lockKey)

	identity := domain.Identity{
		UserID:   user.UserID,
		Username: user.Username,
		Role:     user.Role,
		OrgID:    user.OrgID,
	}
	token, err := s.tokens.Issue(identity)
	if err != nil {
		return LoginResponse{}, fmt.Errorf("issue token: %w", err)
	}
	return LoginResponse{Token: token, Identity: identity}, nil
}

// RegisterUser creates an org-scoped account after enforcing the user quota.
// The quota check happens before the write; enterprise-plan organizations
// skip the user ceiling entirely.
func (s *Service) RegisterUser(ctx context.Context, actor domain.Identity, req RegisterUserRequest) (RegisterUserResponse, error) {
	if !actor.Role.AtLeast(domain.RoleOrgAdmin) {
		return RegisterUserResponse{}, domain.ErrForbidden
	}
	orgID := req.OrgID
	if actor.Role != domain.RolePlatformAdmin {
		orgID = actor.OrgID
	}
	if orgID == uuid.Nil {
		return RegisterUserResponse{}, fmt.Errorf("%w: organization is required", domain.ErrInvalidInput)
	}

	username := strings.ToLower(strings.TrimSpace(req.Username))
	if username == "" {
		return RegisterUserResponse{}, fmt.Errorf("%w: username is required", domain.ErrInvalidInput)
	}
	if len(req.Password) < 8 {
		return RegisterUserResponse{}, fmt.Errorf("%w: password must be at least 8 characters", domain.ErrInvalidInput)
	}
	role := req.Role
	if role == "" {
		role = domain.RoleViewer
	}
	if role.Rank() == 0 || role == domain.RolePlatformAdmin {
		return RegisterUserResponse{}, fmt.Errorf("%w: invalid role %q", domain.ErrInvalidInput, role)
	}

	if err := s.EnforceUserQuota(ctx, orgID); err != nil {
		return RegisterUserResponse{}, err
	}

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return RegisterUserResponse{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, createUserParams(username, passwordHash, role, orgID, s.nowFn()))
	if err != nil {
		return RegisterUserResponse{}, err
	}
	return RegisterUserResponse{UserID: user.UserID}, nil
}

// BootstrapAdmin creates the first platform administrator. The operation is
// only open while no platform admin exists; afterwards every call is a
// conflict regardless of username. It shares the lockout machinery with
// login under a fixed per-IP key, so repeated failed bootstrap probes lock
// the address out like failed logins would.
func (s *Service) BootstrapAdmin(ctx context.Context, req BootstrapRequest) (LoginResponse, error) {
	lockKey := req.IPAddress + "|bootstrap"
	if s.logins.IsLocked(lockKey) {
		metrics.LoginLockouts.Inc()
		return LoginResponse{}, domain.ErrAccountLocked
	}

	username := strings.ToLower(strings.TrimSpace(req.Username))
	if username == "" || len(req.Password) < 8 {
		s.logins.RecordFailure(lockKey)
		return LoginResponse{}, fmt.Errorf("%w: username and an 8+ character password are required", domain.ErrInvalidInput)
	}

	admins, err := s.users.CountByRole(ctx, domain.RolePlatformAdmin)
	if err != nil {
		return LoginResponse{}, err
	}
	if admins > 0 {
		s.logins.RecordFailure(lockKey)
		slog.Default().WarnContext(ctx, "bootstrap rejected, platform administrator already exists",
			"module", "application",
			"operation", "bootstrap_admin",
			"outcome", "blocked",
			"username", username,
		)
		return LoginResponse{}, domain.ErrConflict
	}

	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		s.logins.RecordFailure(lockKey)
		return LoginResponse{}, domain.ErrConflict
	}

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return LoginResponse{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, createUserParams(username, passwordHash, domain.RolePlatformAdmin, uuid.Nil, s.nowFn()))
	if err != nil {
		return LoginResponse{}, err
	}
	s.logins.RecordSuccess(lockKey)

	identity := domain.Identity{
		UserID:   user.UserID,
		Username: user.Username,
		Role:     user.Role,
	}
	token, err := s.tokens.Issue(identity)
	if err != nil {
		return LoginResponse{}, fmt.Errorf("issue token: %w", err)
	}
	return LoginResponse{Token: token, Identity: identity}, nil
}

// ValidateToken resolves a raw token into its identity.
func (s *Service) ValidateToken(_ context.Context, token string) (domain.Identity, error) {
	return s.tokens.Validate(token)
}
