// Package utils holds the credential primitives: tokens, password hashes
// and random values.
package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is the only error Verify returns.  Callers cannot tell a
// bad signature from an expired or malformed token.
var ErrInvalidToken = errors.New("invalid token")

// TokenType separates access tokens from refresh tokens.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Subject is the identity a token is issued for.
type Subject struct {
	UserID    string
	Username  string
	Email     string
	Role      string
	SessionID string
}

// Claims is the signed payload of every bearer token.  Each token also
// carries a random jti so two tokens issued in the same second differ.
type Claims struct {
	UserID    string    `json:"uid"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	SessionID string    `json:"sid"`
	TokenType TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenPair is what sign-up, sign-in and refresh hand back to clients.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// TokenCodec signs and verifies HS256 tokens with one shared secret.
type TokenCodec struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenCodec builds a codec.  The secret is copied.
func NewTokenCodec(secret string, accessTTL, refreshTTL time.Duration) *TokenCodec {
	return &TokenCodec{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock returns a copy of the codec that reads time from now.
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	cp := *c
	cp.now = now
	return &cp
}

// RefreshTTL is the lifetime of refresh tokens, and therefore of sessions.
func (c *TokenCodec) RefreshTTL() time.Duration { return c.refreshTTL }

// Issue signs a single token of the given type.
func (c *TokenCodec) Issue(sub Subject, typ TokenType) (string, time.Time, error) {
	ttl := c.accessTTL
	if typ == TokenTypeRefresh {
		ttl = c.refreshTTL
	}
	now := c.now()
	exp := now.Add(ttl)
	claims := Claims{
		UserID:    sub.UserID,
		Username:  sub.Username,
		Email:     sub.Email,
		Role:      sub.Role,
		SessionID: sub.SessionID,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub.UserID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// IssuePair signs an access and a refresh token for the same session.
func (c *TokenCodec) IssuePair(sub Subject) (TokenPair, error) {
	access, accessExp, err := c.Issue(sub, TokenTypeAccess)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := c.Issue(sub, TokenTypeRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Verify checks signature, algorithm and expiry and returns the claims.
func (c *TokenCodec) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil || !tok.Valid || !claims.wellFormed() {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Decode reads the claims without checking signature or expiry.  Only use
// it where acting on a forged token is harmless.
func (c *TokenCodec) Decode(raw string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (cl *Claims) wellFormed() bool {
	if cl.UserID == "" || cl.SessionID == "" {
		return false
	}
	return cl.TokenType == TokenTypeAccess || cl.TokenType == TokenTypeRefresh
}
