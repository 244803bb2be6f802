package security

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/edgefleet/fleetcore/internal/domain"
)

// DefaultTokenTTL is the fallback expiry applied when the configured
// duration string cannot be parsed. Failing open to a bounded default keeps
// login working through a config typo instead of hard-rejecting everyone.
const DefaultTokenTTL = 24 * time.Hour

// JWTService signs and validates HS256 identity tokens carrying role and
// organization scope. Tokens are stateless; expiry is the only termination
// mechanism for an issued token.
type JWTService struct {
	secret []byte
	ttl    time.Duration
	nowFn  func() time.Time
}

// NewJWTService builds a token service from a shared secret and an expiry
// string of the form <integer><unit>, unit one of s/m/h/d.
func NewJWTService(secret string, expiry string) (*JWTService, error) {
	if secret == "" {
		return nil, errors.New("token secret is required")
	}
	return &JWTService{
		secret: []byte(secret),
		ttl:    ParseExpiry(expiry),
		nowFn:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// ParseExpiry parses <integer><unit> durations (s, m, h, d). Anything
// unparseable falls back to DefaultTokenTTL.
func ParseExpiry(expiry string) time.Duration {
	trimmed := strings.TrimSpace(expiry)
	if len(trimmed) < 2 {
		return warnFallback(expiry)
	}
	value, err := strconv.Atoi(trimmed[:len(trimmed)-1])
	if err != nil || value <= 0 {
		return warnFallback(expiry)
	}
	switch trimmed[len(trimmed)-1] {
	case 's':
		return time.Duration(value) * time.Second
	case 'm':
		return time.Duration(value) * time.Minute
	case 'h':
		return time.Duration(value) * time.Hour
	case 'd':
		return time.Duration(value) * 24 * time.Hour
	default:
		return warnFallback(expiry)
	}
}

func warnFallback(expiry string) time.Duration {
	if strings.TrimSpace(expiry) != "" {
		slog.Default().WarnContext(context.Background(), "unparseable token expiry, using default",
			"module", "security",
			"operation", "parse_expiry",
			"outcome", "warning",
			"expiry", expiry,
			"fallback", DefaultTokenTTL.String(),
		)
	}
	return DefaultTokenTTL
}

type identityClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	OrgID    string `json:"org_id,omitempty"`
	jwt.RegisteredClaims
}

// Issue signs a token embedding the identity with an absolute expiry.
func (s *JWTService) Issue(identity domain.Identity) (string, error) {
	now := s.nowFn()
	claims := identityClaims{
		Username: identity.Username,
		Role:     string(identity.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	if identity.OrgID != uuid.Nil {
		claims.OrgID = identity.OrgID.String()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate parses the token and returns the embedded identity. All failure
// modes collapse into domain.ErrInvalidToken.
func (s *JWTService) Validate(raw string) (domain.Identity, error) {
	parsed, err := jwt.ParseWithClaims(raw, &identityClaims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.nowFn), jwt.WithExpirationRequired())
	if err != nil {
		return domain.Identity{}, domain.ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*identityClaims)
	if !ok || !parsed.Valid {
		return domain.Identity{}, domain.ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return domain.Identity{}, domain.ErrInvalidToken
	}
	identity := domain.Identity{
		UserID:   userID,
		Username: claims.Username,
		Role:     domain.Role(claims.Role),
	}
	if claims.OrgID != "" {
		orgID, err := uuid.Parse(claims.OrgID)
		if err != nil {
			return domain.Identity{}, domain.ErrInvalidToken
		}
		identity.OrgID = orgID
	}
	return identity, nil
}

// HasRole validates the token and checks the carried role against a minimum
// using the fixed privilege order. Invalid tokens always fail the check.
func (s *JWTService) HasRole(raw string, minimum domain.Role) bool {
	identity, err := s.Validate(raw)
	if err != nil {
		return false
	}
	return identity.Role.AtLeast(minimum)
}
