package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/queue"
	"github.com/iliyamo/auth-service/internal/repository"
	"github.com/iliyamo/auth-service/internal/utils"
)

// SignUpInput is the self-service registration payload.
type SignUpInput struct {
	Name     string
	Username string
	Email    string
	Password string
}

// AuthResult is returned by sign-up and sign-in.
type AuthResult struct {
	User   model.User
	Tokens utils.TokenPair
}

// AuthDeps bundles what AuthService needs.  Audit and Log are optional.
type AuthDeps struct {
	Users    UserStore
	Sessions *SessionRegistry
	Resets   ResetTokenStore
	Hasher   PasswordHasher
	Codec    *utils.TokenCodec
	ResetTTL time.Duration
	Audit    Auditor
	Log      *logrus.Logger
}

// AuthService runs the sign-up, sign-in, refresh, sign-out and password
// reset protocols on top of the session registry.
type AuthService struct {
	users    UserStore
	sessions *SessionRegistry
	resets   ResetTokenStore
	hasher   PasswordHasher
	codec    *utils.TokenCodec
	resetTTL time.Duration
	audit    Auditor
	log      *logrus.Logger
	now      func() time.Time
}

func NewAuthService(d AuthDeps) *AuthService {
	s := &AuthService{
		users:    d.Users,
		sessions: d.Sessions,
		resets:   d.Resets,
		hasher:   d.Hasher,
		codec:    d.Codec,
		resetTTL: d.ResetTTL,
		audit:    d.Audit,
		log:      d.Log,
		now:      utcNow,
	}
	if s.audit == nil {
		s.audit = nopAuditor{}
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	if s.resetTTL <= 0 {
		s.resetTTL = time.Hour
	}
	return s
}

func subjectOf(u model.User, sessionID string) utils.Subject {
	return utils.Subject{
		UserID:    u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      string(u.Role),
		SessionID: sessionID,
	}
}

// issue signs a token pair for s and binds the refresh token to it.
func (a *AuthService) issue(u model.User, s *model.Session) (utils.TokenPair, error) {
	pair, err := a.codec.IssuePair(subjectOf(u, s.ID))
	if err != nil {
		return utils.TokenPair{}, fmt.Errorf("issue tokens: %w", err)
	}
	s.RefreshTokenHash = utils.SHA256Hex(pair.RefreshToken)
	s.ExpiresAt = pair.RefreshExpiresAt
	return pair, nil
}

func (a *AuthService) event(t queue.EventType, userID, sessionID string, detail map[string]string) {
	a.audit.Record(queue.AuthEvent{
		Type:       t,
		UserID:     userID,
		SessionID:  sessionID,
		Detail:     detail,
		OccurredAt: a.now(),
	})
}

func asDuplicate(err error) error {
	var dup *repository.DuplicateKeyError
	if errors.As(err, &dup) && (dup.Field == "username" || dup.Field == "email") {
		return &DuplicateCredentialError{Field: dup.Field}
	}
	return err
}

// SignUp registers a user and opens its first session.  The user row and
// the session row are written in one transaction.
func (a *AuthService) SignUp(ctx context.Context, in SignUpInput, meta model.DeviceMeta) (AuthResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)

	field, err := a.users.FindConflict(ctx, in.Username, in.Email, "")
	if err != nil {
		return AuthResult{}, err
	}
	if field != "" {
		return AuthResult{}, &DuplicateCredentialError{Field: field}
	}

	salt, digest, err := a.hasher.Hash(ctx, in.Password)
	if err != nil {
		return AuthResult{}, fmt.Errorf("hash password: %w", err)
	}

	now := a.now()
	u := model.User{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: digest,
		PasswordSalt: salt,
		Role:         model.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s := a.sessions.Prepare(u.ID, meta)
	pair, err := a.issue(u, &s)
	if err != nil {
		return AuthResult{}, err
	}
	if err := a.users.CreateWithSession(ctx, u, s); err != nil {
		return AuthResult{}, asDuplicate(err)
	}

	a.event(queue.EventSignUp, u.ID, s.ID, nil)
	return AuthResult{User: u, Tokens: pair}, nil
}

// SignIn accepts a username or an email plus password and opens a new
// session.  Unknown accounts and wrong passwords fail identically, with
// the same bcrypt cost spent on both paths.
func (a *AuthService) SignIn(ctx context.Context, login, password string, meta model.DeviceMeta) (AuthResult, error) {
	login = strings.TrimSpace(login)

	u, err := a.users.GetByLogin(ctx, login)
	if errors.Is(err, sql.ErrNoRows) {
		a.hasher.Burn(ctx, password)
		a.event(queue.EventSignInFailed, "", "", map[string]string{"reason": "unknown_login"})
		return AuthResult{}, ErrInvalidCredentials
	}
	if err != nil {
		return AuthResult{}, err
	}
	if !a.hasher.Verify(ctx, password, u.PasswordHash) {
		if ctx.Err() != nil {
			return AuthResult{}, ctx.Err()
		}
		a.event(queue.EventSignInFailed, u.ID, "", map[string]string{"reason": "bad_password"})
		return AuthResult{}, ErrInvalidCredentials
	}

	s := a.sessions.Prepare(u.ID, meta)
	pair, err := a.issue(u, &s)
	if err != nil {
		return AuthResult{}, err
	}
	if err := a.sessions.Create(ctx, s); err != nil {
		return AuthResult{}, fmt.Errorf("create session: %w", err)
	}

	a.event(queue.EventSignIn, u.ID, s.ID, nil)
	return AuthResult{User: u, Tokens: pair}, nil
}

// Refresh exchanges a refresh token for a new pair bound to the same
// session.  The session is rotated with a compare-and-swap on the stored
// refresh hash, so a refresh token works at most once.  Every rejection is
// ErrInvalidOrExpiredToken.
func (a *AuthService) Refresh(ctx context.Context, refreshToken string) (utils.TokenPair, error) {
	claims, err := a.codec.Verify(refreshToken)
	if err != nil || claims.TokenType != utils.TokenTypeRefresh {
		return utils.TokenPair{}, ErrInvalidOrExpiredToken
	}

	s, err := a.sessions.FindValid(ctx, claims.SessionID)
	if errors.Is(err, ErrNotFound) || (err == nil && s.UserID != claims.UserID) {
		return utils.TokenPair{}, ErrInvalidOrExpiredToken
	}
	if err != nil {
		return utils.TokenPair{}, err
	}

	// Re-read the user so role or profile changes reach the new tokens.
	u, err := a.users.GetByID(ctx, s.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return utils.TokenPair{}, ErrInvalidOrExpiredToken
	}
	if err != nil {
		return utils.TokenPair{}, err
	}

	next := s
	pair, err := a.issue(u, &next)
	if err != nil {
		return utils.TokenPair{}, err
	}
	presented := utils.SHA256Hex(refreshToken)
	if _, err := a.sessions.Rotate(ctx, s, presented, next.RefreshTokenHash, next.ExpiresAt); err != nil {
		if errors.Is(err, ErrNotFound) {
			return utils.TokenPair{}, ErrInvalidOrExpiredToken
		}
		return utils.TokenPair{}, err
	}

	a.event(queue.EventTokenRefreshed, u.ID, s.ID, nil)
	return pair, nil
}

// SignOut revokes the session named by accessToken for userID.  The token
// is only decoded: revoking a session that is already gone is a no-op.
func (a *AuthService) SignOut(ctx context.Context, accessToken, userID string) error {
	claims, err := a.codec.Decode(accessToken)
	if err != nil || claims.SessionID == "" {
		return ErrInvalidOrExpiredToken
	}
	if err := a.sessions.Revoke(ctx, claims.SessionID, userID); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	a.event(queue.EventSignOut, userID, claims.SessionID, nil)
	return nil
}

// ListSessions returns the user's ACTIVE sessions, newest first.
func (a *AuthService) ListSessions(ctx context.Context, userID string) ([]model.Session, error) {
	return a.sessions.List(ctx, userID)
}

// RevokeSession ends one of the user's sessions or returns ErrNotFound.
func (a *AuthService) RevokeSession(ctx context.Context, sessionID, userID string) error {
	if err := a.sessions.Revoke(ctx, sessionID, userID); err != nil {
		return err
	}
	a.event(queue.EventSessionRevoked, userID, sessionID, nil)
	return nil
}

// RevokeAllSessions signs the user out everywhere.
func (a *AuthService) RevokeAllSessions(ctx context.Context, userID string) (int64, error) {
	n, err := a.sessions.RevokeAll(ctx, userID)
	if err != nil {
		return 0, err
	}
	a.event(queue.EventSessionsRevokedAll, userID, "", map[string]string{"count": strconv.FormatInt(n, 10)})
	return n, nil
}

// RequestPasswordReset mints a one-hour reset token for the account with
// this email and returns the raw value.  An unknown email returns "" and
// no error so callers cannot probe for accounts.
func (a *AuthService) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	u, err := a.users.GetByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, sql.ErrNoRows) {
		a.log.Debug("password reset requested for unknown email")
		return "", nil
	}
	if err != nil {
		return "", err
	}

	raw, err := utils.RandomHex(32)
	if err != nil {
		return "", err
	}
	now := a.now()
	t := model.PasswordResetToken{
		ID:        uuid.NewString(),
		UserID:    u.ID,
		TokenHash: utils.SHA256Hex(raw),
		ExpiresAt: now.Add(a.resetTTL),
		CreatedAt: now,
	}
	if err := a.resets.Create(ctx, t); err != nil {
		return "", fmt.Errorf("store reset token: %w", err)
	}

	a.event(queue.EventPasswordResetRequested, u.ID, "", nil)
	return raw, nil
}

// ConfirmPasswordReset redeems a reset token.  The password change, the
// token deletion and the revocation of every session happen atomically.
func (a *AuthService) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	t, err := a.resets.FindValid(ctx, utils.SHA256Hex(strings.TrimSpace(token)), a.now())
	if errors.Is(err, sql.ErrNoRows) {
		return ErrInvalidOrExpiredResetToken
	}
	if err != nil {
		return err
	}

	salt, digest, err := a.hasher.Hash(ctx, newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	revoked, err := a.resets.Consume(ctx, t, salt, digest, a.now())
	if errors.Is(err, sql.ErrNoRows) {
		return ErrInvalidOrExpiredResetToken
	}
	if err != nil {
		return err
	}

	a.event(queue.EventPasswordResetCompleted, t.UserID, "",
		map[string]string{"sessions_revoked": strconv.FormatInt(revoked, 10)})
	return nil
}
