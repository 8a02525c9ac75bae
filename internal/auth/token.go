package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken indicates a bearer token failed signature or expiry checks.
var ErrInvalidToken = errors.New("auth: invalid token")

// TokenService issues and verifies signed bearer tokens and maintains the
// per-login CSRF binding each token refers to.
type TokenService struct {
	key      []byte
	ttl      time.Duration
	bindings BindingStore
	now      func() time.Time
}

// NewTokenService constructs a TokenService. The signing key is process-wide.
func NewTokenService(key string, ttl time.Duration, bindings BindingStore) *TokenService {
	return &TokenService{
		key:      []byte(key),
		ttl:      ttl,
		bindings: bindings,
		now:      time.Now,
	}
}

// TTL exposes the configured token lifetime.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue creates a fresh CSRF secret/token pair, persists the session binding
// and signs a bearer token for the user. Every successful login or
// registration produces exactly one new binding; existing bindings for the
// same user stay valid so concurrent devices keep working.
func (s *TokenService) Issue(ctx context.Context, userID int64, username string) (*Credentials, error) {
	secret, err := NewCSRFSecret()
	if err != nil {
		return nil, err
	}
	csrfToken := CreateCSRFToken(secret)

	if err := s.bindings.Put(ctx, userID, csrfToken, secret, s.ttl); err != nil {
		return nil, fmt.Errorf("auth: persist csrf binding: %w", err)
	}

	now := s.now()
	claims := Claims{
		Username:  username,
		CSRFToken: csrfToken,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return nil, fmt.Errorf("auth: sign token: %w", err)
	}

	return &Credentials{AccessToken: signed, CSRFToken: csrfToken}, nil
}

// Verify checks signature and expiry only; it performs no store I/O.
func (s *TokenService) Verify(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return s.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
