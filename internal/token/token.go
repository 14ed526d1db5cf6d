// Package token mints and validates the signed, time-limited, role-scoped
// credentials issued on successful verification. The claim shape
// {sub, role, iat, exp} is part of the public contract: downstream
// middleware anywhere in the fleet must be able to verify these tokens.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	dErrors "faceguard/pkg/domain-errors"
	"faceguard/pkg/platform/sentinel"
)

// Claims are the credential claims. Role comes from the closed policy set.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Credential is the transient issued token. Never persisted by the core;
// rotation of the signing key invalidates all outstanding credentials.
type Credential struct {
	Token     string
	Subject   string
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Service signs and verifies credentials with a process-wide HS256 key
// loaded once at startup.
type Service struct {
	signingKey []byte
	ttl        time.Duration
}

// New builds the credential service. An empty key is a startup
// misconfiguration; config validation rejects it before this point.
func New(signingKey string, ttl time.Duration) *Service {
	return &Service{signingKey: []byte(signingKey), ttl: ttl}
}

// Issue mints a credential for the identity at the given time.
// exp = iat + configured TTL.
func (s *Service) Issue(subject, role string, now time.Time) (*Credential, error) {
	expiresAt := now.Add(s.ttl)
	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})

	signed, err := newToken.SignedString(s.signingKey)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign credential")
	}

	return &Credential{
		Token:     signed,
		Subject:   subject,
		Role:      role,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	}, nil
}

// ValidateToken parses and verifies a credential string.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.Wrap(sentinel.ErrExpired, dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	if claims.Subject == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}

	return claims, nil
}
