package utils // package utils provides helper functions for token creation and hashing

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating and verifying signed tokens
)

// ErrInvalidToken is returned by Verify for every kind of rejection:
// bad signature, unexpected algorithm, expiry, missing claims or
// malformed input.  The underlying cause is wrapped for logging.
var ErrInvalidToken = errors.New("invalid token")

// AccessToken represents a signed JWT access token along with its expiry.
// The Token field contains the JWT string.  Exp stores the expiration
// timestamp.  Access tokens are sent in the Authorization header when
// calling protected endpoints and are never stored server side.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// TokenService issues and verifies HS256 session assertions.  It holds
// no per-token state, so a single instance is shared by all requests.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService builds a TokenService.  The secret must be non-empty
// and the TTL positive.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("invalid token ttl %s", ttl)
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// WithClock replaces the time source, for tests that need to step past
// the TTL.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	cp := *s
	cp.now = now
	return &cp
}

// TTL returns the lifetime given to newly issued tokens.
func (s *TokenService) TTL() time.Duration { return s.ttl }

// Issue signs a token whose subject is subjectID.  The claims are the
// registered sub, iat and exp claims only; the role is always re-read
// from storage on verification so a role change takes effect at once.
func (s *TokenService) Issue(subjectID string) (AccessToken, error) {
	if subjectID == "" {
		return AccessToken{}, errors.New("empty subject")
	}
	now := s.now().UTC()
	exp := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   subjectID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(s.secret)
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: claims.ExpiresAt.Time}, nil
}

// Verify checks the signature and expiry of raw and returns its subject.
func (s *TokenService) Verify(raw string) (string, error) {
	if raw == "" {
		return "", ErrInvalidToken
	}
	claims := &jwt.RegisteredClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !tok.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
