// Package auth provides session tokens, password hashing and the HTTP
// middleware that authenticates API requests.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. The client signs up locally or links a provider (POST /auth/{provider})
//  2. The server issues a signed session token (JWT) with a 30-day expiry
//  3. The client sends it back as "Authorization: Bearer <token>"
//  4. RequireAuth validates the token and puts the user ID in the request context
//
// The same signing key also issues short-lived, purpose-scoped tokens for
// email verification and password reset. A purpose-scoped token is never
// accepted as a session token and vice versa.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "unify"

// DefaultSessionTTL is the lifetime of a session token.
const DefaultSessionTTL = 30 * 24 * time.Hour

// Token purposes for non-session tokens.
const (
	PurposeVerifyEmail   = "verify_email"
	PurposeResetPassword = "reset_password"
)

// ErrInvalidToken is returned for malformed, tampered, expired or
// wrong-purpose tokens.
var ErrInvalidToken = errors.New("auth: invalid token")

// TokenService handles JWT creation and validation.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService with the given secret and the
// default 30-day session lifetime.
// The secret should be at least 32 bytes of random data in production.
func NewTokenService(secret string) (*TokenService, error) {
	return NewTokenServiceWithTTL(secret, DefaultSessionTTL)
}

// NewTokenServiceWithTTL is NewTokenService with a custom session lifetime.
func NewTokenServiceWithTTL(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// claims is the JWT payload. "sub" carries the internal user ID.
// Purpose is empty for session tokens.
type claims struct {
	Purpose string `json:"pur,omitempty"`
	jwt.RegisteredClaims
}

// Session is the verified content of a session token.
type Session struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Generate creates and signs a new session token for the given userID.
func (s *TokenService) Generate(userID string) (string, error) {
	return s.sign(userID, "", s.ttl)
}

// GenerateWithDuration creates a session token with a custom expiry duration.
// Used in tests to mint already-expired tokens.
func (s *TokenService) GenerateWithDuration(userID string, d time.Duration) (string, error) {
	return s.sign(userID, "", d)
}

// GeneratePurpose creates a short-lived token usable only for purpose.
func (s *TokenService) GeneratePurpose(userID, purpose string, d time.Duration) (string, error) {
	if purpose == "" {
		return "", errors.New("auth: purpose must not be empty")
	}
	return s.sign(userID, purpose, d)
}

func (s *TokenService) sign(userID, purpose string, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Verify parses a session token and returns its subject and validity window.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid
//   - Token is not expired
//   - Issuer matches "unify"
//   - Algorithm is HS256 (prevents algorithm confusion attacks)
func (s *TokenService) Verify(tokenStr string) (*Session, error) {
	c, err := s.parse(tokenStr)
	if err != nil {
		return nil, err
	}
	if c.Purpose != "" {
		return nil, fmt.Errorf("%w: not a session token", ErrInvalidToken)
	}
	return sessionFrom(c), nil
}

// Validate returns the userID carried by a session token.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	sess, err := s.Verify(tokenStr)
	if err != nil {
		return "", err
	}
	return sess.Subject, nil
}

// VerifyPurpose validates a purpose-scoped token and returns its userID.
func (s *TokenService) VerifyPurpose(tokenStr, purpose string) (string, error) {
	c, err := s.parse(tokenStr)
	if err != nil {
		return "", err
	}
	if c.Purpose != purpose {
		return "", fmt.Errorf("%w: wrong purpose", ErrInvalidToken)
	}
	return c.Subject, nil
}

func (s *TokenService) parse(tokenStr string) (*claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token expired", ErrInvalidToken)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%w: invalid claims", ErrInvalidToken)
	}
	if c.Subject == "" {
		return nil, fmt.Errorf("%w: token has no subject", ErrInvalidToken)
	}
	return c, nil
}

func sessionFrom(c *claims) *Session {
	sess := &Session{Subject: c.Subject}
	if c.IssuedAt != nil {
		sess.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		sess.ExpiresAt = c.ExpiresAt.Time
	}
	return sess
}
