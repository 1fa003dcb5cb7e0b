// Package auth issues and validates the stateless HS256 access tokens that
// authenticate every API call. Tokens are never stored; a token is trusted
// until its expiry.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/nazarriya/chatrelay/internal/common"
)

// Claims carries the standard registered claims; the subject is the user id.
type Claims struct {
	jwt.RegisteredClaims
}

// TokenService signs and verifies access tokens with a secret that is fixed
// at construction.
type TokenService struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

type Option func(*TokenService)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *TokenService) { s.now = now }
}

func NewTokenService(secret []byte, lifetime time.Duration, opts ...Option) *TokenService {
	s := &TokenService{
		secret:   append([]byte(nil), secret...),
		lifetime: lifetime,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Lifetime is the configured validity window of issued tokens.
func (s *TokenService) Lifetime() time.Duration { return s.lifetime }

// Issue returns a token for userID that expires lifetime from now.
func (s *TokenService) Issue(userID string) (string, error) {
	return GenerateToken(userID, s.secret, s.now(), s.lifetime)
}

// Validate checks token against the service clock and returns its subject.
func (s *TokenService) Validate(token string) (string, error) {
	return ValidateAt(token, s.secret, s.now())
}

// GenerateToken signs a token for userID issued at issuedAt. The token is
// valid at every instant before issuedAt+validity. NumericDate holds whole
// seconds, so exp is rounded up and may outlive that instant by under a
// second.
func GenerateToken(userID string, secretKey []byte, issuedAt time.Time, validity time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(ceilSecond(issuedAt.Add(validity))),
		},
	})
	return token.SignedString(secretKey)
}

func ceilSecond(t time.Time) time.Time {
	if f := t.Truncate(time.Second); !f.Equal(t) {
		return f.Add(time.Second)
	}
	return t
}

// ValidateAt is the pure validation function: it returns the subject of
// token when its signature verifies under secretKey and now is before its
// expiry. It fails with common.ErrTokenExpired once now >= exp and with
// common.ErrInvalidToken for anything else.
func ValidateAt(tokenString string, secretKey []byte, now time.Time) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", common.ErrInvalidToken
	}

	if !token.Valid || claims.Subject == "" {
		return "", common.ErrInvalidToken
	}

	return claims.Subject, nil
}
