// Package token signs, parses and revokes the bearer tokens that carry
// a user's identity and bound company between requests.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/financeassistant/backend/internal/clock"
)

// Parse failures, distinguishable so the HTTP layer can log precisely.
var (
	ErrMalformed    = errors.New("token malformed")
	ErrBadSignature = errors.New("token signature invalid")
	ErrExpired      = errors.New("token expired")
)

// Claims is the signed payload: subject email, bound company, validity.
type Claims struct {
	CompanyID int64  `json:"companyId"`
	Type      string `json:"type"`
	jwt.RegisteredClaims
}

// Service issues and validates HMAC-SHA256 tokens.
type Service struct {
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

// NewService requires a decoded secret of at least 32 bytes; anything
// shorter is a fatal misconfiguration.
func NewService(secret []byte, ttl time.Duration, clk clock.Clock) (*Service, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("token secret is %d bytes, need at least 32", len(secret))
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{secret: secret, ttl: ttl, clock: clk}, nil
}

// TTL returns the configured validity window.
func (s *Service) TTL() time.Duration { return s.ttl }

// Issue signs a token binding the email to its company.
func (s *Service) Issue(email string, companyID int64) (string, error) {
	now := s.clock.Now()
	claims := Claims{
		CompanyID: companyID,
		Type:      "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies signature then expiry and returns the claims.
func (s *Service) Parse(tokenStr string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.clock.Now))
	switch {
	case err == nil:
		return &claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return nil, ErrBadSignature
	default:
		return nil, ErrMalformed
	}
}

// IsValidFor reports whether the token verifies and belongs to email.
func (s *Service) IsValidFor(tokenStr, email string) bool {
	claims, err := s.Parse(tokenStr)
	return err == nil && claims.Subject == email
}

// RemainingTTL returns how long a token stays valid from now, zero when it
// cannot be parsed or has already expired. Logout uses this to size the
// revocation entry.
func (s *Service) RemainingTTL(tokenStr string) time.Duration {
	claims, err := s.Parse(tokenStr)
	if err != nil || claims.ExpiresAt == nil {
		return 0
	}
	remaining := claims.ExpiresAt.Time.Sub(s.clock.Now())
	if remaining < 0 {
		return 0
	}
	return remaining
}
