// Package token issues and checks librarian access tokens.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RoleLibrarian is the only role allowed on the librarian-facing routes.
const RoleLibrarian = "LIBRARIAN"

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenRevoked = errors.New("token has been revoked")
)

// Claims represents the JWT claims of an access token.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Service handles JWT creation, validation and revocation.
type Service struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
	revoked    RevocationList
	logger     *zap.Logger
	now        func() time.Time
}

func NewService(signingKey, issuer string, ttl time.Duration, revoked RevocationList, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		ttl:        ttl,
		revoked:    revoked,
		logger:     logger,
		now:        time.Now,
	}
}

// Issue signs a token for subject (a staff number) carrying role.
func (s *Service) Issue(subject, role string) (string, error) {
	now := s.now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})
	return t.SignedString(s.signingKey)
}

func (s *Service) parse(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithIssuer(s.issuer), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Verify parses the token and rejects it once revoked.
func (s *Service) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}
	revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("revocation check: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Blacklist revokes the token until it would have expired anyway. A token that
// has already expired counts as blacklisted.
func (s *Service) Blacklist(ctx context.Context, tokenString string) bool {
	claims, err := s.parse(tokenString)
	if errors.Is(err, ErrTokenExpired) {
		return true
	}
	if err != nil {
		s.logger.Warn("refusing to blacklist unparseable token", zap.Error(err))
		return false
	}
	if claims.ID == "" {
		s.logger.Warn("token has no jti, cannot blacklist", zap.String("subject", claims.Subject))
		return false
	}

	// parse guarantees exp is present.
	ttl := claims.ExpiresAt.Sub(s.now())
	if err := s.revoked.Revoke(ctx, claims.ID, ttl); err != nil {
		s.logger.Error("failed to revoke token", zap.String("jti", claims.ID), zap.Error(err))
		return false
	}
	return true
}
