package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/auth-service/internal/utils"
)

// Credentials are the raw values a request presented.  Either may be empty.
type Credentials struct {
	APIKey string
	Bearer string
}

// Authenticator turns request credentials into a Principal.
type Authenticator struct {
	keys     *APIKeyService
	sessions *SessionRegistry
	users    UserStore
	codec    *utils.TokenCodec
	log      *logrus.Logger
}

func NewAuthenticator(keys *APIKeyService, sessions *SessionRegistry, users UserStore, codec *utils.TokenCodec, log *logrus.Logger) *Authenticator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Authenticator{keys: keys, sessions: sessions, users: users, codec: codec, log: log}
}

// Authenticate tries the API key first and falls back to the bearer token.
// A bearer token must be a verified access token whose session is still
// ACTIVE, so signing out takes effect immediately.  Role and identity come
// from the stored user, not the token claims.
//
// With no credentials the result is ErrUnauthenticated; a bearer that fails
// any check yields ErrInvalidOrExpiredToken.
func (a *Authenticator) Authenticate(ctx context.Context, c Credentials) (Principal, error) {
	if c.APIKey != "" && a.keys != nil {
		p, err := a.keys.Validate(ctx, c.APIKey)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, ErrNotFound) {
			a.log.WithError(err).Warn("api key lookup failed")
		}
	}

	if c.Bearer == "" {
		return Principal{}, ErrUnauthenticated
	}
	claims, err := a.codec.Verify(c.Bearer)
	if err != nil || claims.TokenType != utils.TokenTypeAccess {
		return Principal{}, ErrInvalidOrExpiredToken
	}

	s, err := a.sessions.FindValid(ctx, claims.SessionID)
	if errors.Is(err, ErrNotFound) || (err == nil && s.UserID != claims.UserID) {
		return Principal{}, ErrInvalidOrExpiredToken
	}
	if err != nil {
		return Principal{}, err
	}

	u, err := a.users.GetByID(ctx, claims.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return Principal{}, ErrInvalidOrExpiredToken
	}
	if err != nil {
		return Principal{}, err
	}

	return Principal{
		UserID:    u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		SessionID: claims.SessionID,
		Method:    AuthMethodBearer,
	}, nil
}
