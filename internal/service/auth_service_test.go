package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/queue"
	"github.com/iliyamo/auth-service/internal/utils"
)

func TestSignUpIssuesTokensForNewSession(t *testing.T) {
	env := newTestEnv(t)
	res := env.signUp(t, "alice")

	assert.Equal(t, model.RoleUser, res.User.Role)
	assert.NotEqual(t, "password123", res.User.PasswordHash)
	assert.Equal(t, utils.SaltOf(res.User.PasswordHash), res.User.PasswordSalt)

	access, err := env.codec.Verify(res.Tokens.AccessToken)
	require.NoError(t, err)
	refresh, err := env.codec.Verify(res.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, utils.TokenTypeAccess, access.TokenType)
	assert.Equal(t, utils.TokenTypeRefresh, refresh.TokenType)
	assert.Equal(t, access.SessionID, refresh.SessionID)

	s, err := env.sessions.FindValid(context.Background(), access.SessionID)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, s.UserID)
	assert.Equal(t, utils.SHA256Hex(res.Tokens.RefreshToken), s.RefreshTokenHash)
	assert.Equal(t, "test", s.UserAgent)

	assert.Contains(t, env.audit.types(), queue.EventSignUp)
}

func TestSignUpRejectsDuplicates(t *testing.T) {
	env := newTestEnv(t)
	env.signUp(t, "alice")
	ctx := context.Background()

	_, err := env.auth.SignUp(ctx, SignUpInput{Name: "A", Username: "alice", Email: "other@example.com", Password: "password123"}, model.DeviceMeta{})
	var dup *DuplicateCredentialError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "username", dup.Field)

	_, err = env.auth.SignUp(ctx, SignUpInput{Name: "A", Username: "alice2", Email: "alice@example.com", Password: "password123"}, model.DeviceMeta{})
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "email", dup.Field)

	// usernames are case-sensitive
	_, err = env.auth.SignUp(ctx, SignUpInput{Name: "A", Username: "Alice", Email: "Alice@example.com", Password: "password123"}, model.DeviceMeta{})
	assert.NoError(t, err)
}

func TestSignInByUsernameOrEmail(t *testing.T) {
	env := newTestEnv(t)
	u := env.signUp(t, "bob").User
	ctx := context.Background()

	byName, err := env.auth.SignIn(ctx, "bob", "password123", model.DeviceMeta{})
	require.NoError(t, err)
	byEmail, err := env.auth.SignIn(ctx, "bob@example.com", "password123", model.DeviceMeta{DeviceID: "phone"})
	require.NoError(t, err)
	assert.Equal(t, u.ID, byName.User.ID)
	assert.Equal(t, u.ID, byEmail.User.ID)

	sessions, err := env.auth.ListSessions(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, sessions, 3, "sign-up plus two sign-ins")
}

func TestSignInFailuresAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	env.signUp(t, "carol")
	ctx := context.Background()

	_, errWrong := env.auth.SignIn(ctx, "carol", "wrong-password", model.DeviceMeta{})
	_, errUnknown := env.auth.SignIn(ctx, "nobody", "password123", model.DeviceMeta{})
	assert.ErrorIs(t, errWrong, ErrInvalidCredentials)
	assert.ErrorIs(t, errUnknown, ErrInvalidCredentials)
	assert.Equal(t, errWrong.Error(), errUnknown.Error())

	var failed int
	for _, typ := range env.audit.types() {
		if typ == queue.EventSignInFailed {
			failed++
		}
	}
	assert.Equal(t, 2, failed)
}

func TestRefreshRotatesWithinSameSession(t *testing.T) {
	env := newTestEnv(t)
	res := env.signUp(t, "dave")
	ctx := context.Background()

	pair, err := env.auth.Refresh(ctx, res.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, res.Tokens.RefreshToken, pair.RefreshToken)
	assert.NotEqual(t, res.Tokens.AccessToken, pair.AccessToken)

	before, _ := env.codec.Verify(res.Tokens.AccessToken)
	after, err := env.codec.Verify(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, before.SessionID, after.SessionID)

	// the superseded refresh token no longer works
	_, err = env.auth.Refresh(ctx, res.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)

	_, err = env.auth.Refresh(ctx, pair.RefreshToken)
	assert.NoError(t, err)
}

func TestRefreshRejectsBadTokens(t *testing.T) {
	env := newTestEnv(t)
	res := env.signUp(t, "erin")
	ctx := context.Background()

	for name, tok := range map[string]string{
		"access token": res.Tokens.AccessToken,
		"garbage":      "not.a.token",
		"empty":        "",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := env.auth.Refresh(ctx, tok)
			assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
		})
	}

	other := utils.NewTokenCodec("another-secret-that-is-32-characters-long", time.Minute, time.Hour)
	claims, _ := env.codec.Verify(res.Tokens.RefreshToken)
	forged, _, err := other.Issue(utils.Subject{UserID: claims.UserID, SessionID: claims.SessionID}, utils.TokenTypeRefresh)
	require.NoError(t, err)
	_, err = env.auth.Refresh(ctx, forged)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestRefreshPicksUpRoleChange(t *testing.T) {
	env := newTestEnv(t)
	res := env.signUp(t, "frank")
	env.promote(t, res.User.ID)

	pair, err := env.auth.Refresh(context.Background(), res.Tokens.RefreshToken)
	require.NoError(t, err)
	claims, err := env.codec.Verify(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, string(model.RoleAdmin), claims.Role)
}

func TestSignOutEndsSessionImmediately(t *testing.T) {
	env := newTestEnv(t)
	res := env.signUp(t, "gina")
	ctx := context.Background()

	p, err := env.authn.Authenticate(ctx, Credentials{Bearer: res.Tokens.AccessToken})
	require.NoError(t, err)

	require.NoError(t, env.auth.SignOut(ctx, res.Tokens.AccessToken, p.UserID))

	_, err = env.authn.Authenticate(ctx, Credentials{Bearer: res.Tokens.AccessToken})
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
	_, err = env.auth.Refresh(ctx, res.Tokens.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)

	// signing out twice is harmless
	assert.NoError(t, env.auth.SignOut(ctx, res.Tokens.AccessToken, p.UserID))
}

func TestBearerRoleFollowsStoredUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	root := env.promote(t, env.signUp(t, "root").User.ID)
	admin := env.signUp(t, "nora").User
	env.promote(t, admin.ID)
	victim := env.signUp(t, "otto").User

	res, err := env.auth.SignIn(ctx, "nora", "password123", model.DeviceMeta{})
	require.NoError(t, err)
	claims, err := env.codec.Verify(res.Tokens.AccessToken)
	require.NoError(t, err)
	require.Equal(t, string(model.RoleAdmin), claims.Role)

	demoted := model.RoleUser
	_, err = env.users.Update(ctx, root, admin.ID, model.UserPatch{Role: &demoted})
	require.NoError(t, err)

	p, err := env.authn.Authenticate(ctx, Credentials{Bearer: res.Tokens.AccessToken})
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, p.Role)
	assert.ErrorIs(t, env.users.Delete(ctx, p, victim.ID), ErrForbidden)

	_, err = env.users.Get(ctx, root, victim.ID)
	assert.NoError(t, err)
}

func TestBearerForDeletedUserIsRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res := env.signUp(t, "pete")

	// the row is gone but its session has not been swept yet
	env.db.mu.Lock()
	delete(env.db.users, res.User.ID)
	env.db.mu.Unlock()

	_, err := env.authn.Authenticate(ctx, Credentials{Bearer: res.Tokens.AccessToken})
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestRevokeSessionIsOwnerScoped(t *testing.T) {
	env := newTestEnv(t)
	a := env.signUp(t, "hank")
	b := env.signUp(t, "iris")
	ctx := context.Background()

	claims, _ := env.codec.Verify(a.Tokens.AccessToken)
	err := env.auth.RevokeSession(ctx, claims.SessionID, b.User.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, env.auth.RevokeSession(ctx, claims.SessionID, a.User.ID))
	assert.ErrorIs(t, env.auth.RevokeSession(ctx, claims.SessionID, a.User.ID), ErrNotFound)
}

func TestRevokeAllSessions(t *testing.T) {
	env := newTestEnv(t)
	res := env.signUp(t, "jack")
	bystander := env.signUp(t, "jill")
	ctx := context.Background()
	second, err := env.auth.SignIn(ctx, "jack", "password123", model.DeviceMeta{})
	require.NoError(t, err)
	other, err := env.auth.SignIn(ctx, "jill", "password123", model.DeviceMeta{})
	require.NoError(t, err)

	n, err := env.auth.RevokeAllSessions(ctx, res.User.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	for _, tok := range []string{res.Tokens.AccessToken, second.Tokens.AccessToken} {
		_, err := env.authn.Authenticate(ctx, Credentials{Bearer: tok})
		assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
	}
	sessions, err := env.auth.ListSessions(ctx, res.User.ID)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	// jill's sessions are untouched
	for _, tok := range []string{bystander.Tokens.AccessToken, other.Tokens.AccessToken} {
		p, err := env.authn.Authenticate(ctx, Credentials{Bearer: tok})
		require.NoError(t, err)
		assert.Equal(t, bystander.User.ID, p.UserID)
	}
	sessions, err = env.auth.ListSessions(ctx, bystander.User.ID)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
}

func TestExpiredSessionRejectsValidAccessToken(t *testing.T) {
	env := newTestEnv(t)
	res := env.signUp(t, "kate")

	env.sessions.now = func() time.Time { return time.Now().UTC().Add(8 * 24 * time.Hour) }
	_, err := env.authn.Authenticate(context.Background(), Credentials{Bearer: res.Tokens.AccessToken})
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)
}

func TestPasswordResetFlow(t *testing.T) {
	env := newTestEnv(t)
	res := env.signUp(t, "liam")
	ctx := context.Background()

	raw, err := env.auth.RequestPasswordReset(ctx, "liam@example.com")
	require.NoError(t, err)
	require.Len(t, raw, 64)

	env.db.mu.Lock()
	for _, tok := range env.db.resets {
		assert.Equal(t, utils.SHA256Hex(raw), tok.TokenHash)
	}
	env.db.mu.Unlock()

	require.NoError(t, env.auth.ConfirmPasswordReset(ctx, raw, "new-password-1"))

	_, err = env.authn.Authenticate(ctx, Credentials{Bearer: res.Tokens.AccessToken})
	assert.ErrorIs(t, err, ErrInvalidOrExpiredToken)

	_, err = env.auth.SignIn(ctx, "liam", "password123", model.DeviceMeta{})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = env.auth.SignIn(ctx, "liam", "new-password-1", model.DeviceMeta{})
	assert.NoError(t, err)

	// single use
	hash := env.db.users[res.User.ID].PasswordHash
	err = env.auth.ConfirmPasswordReset(ctx, raw, "new-password-2")
	assert.ErrorIs(t, err, ErrInvalidOrExpiredResetToken)
	assert.Equal(t, hash, env.db.users[res.User.ID].PasswordHash)
	_, err = env.auth.SignIn(ctx, "liam", "new-password-1", model.DeviceMeta{})
	assert.NoError(t, err)
}

func TestPasswordResetUnknownEmailIsSoft(t *testing.T) {
	env := newTestEnv(t)
	raw, err := env.auth.RequestPasswordReset(context.Background(), "ghost@example.com")
	assert.NoError(t, err)
	assert.Empty(t, raw)
	assert.Empty(t, env.db.resets)
}

func TestPasswordResetExpires(t *testing.T) {
	env := newTestEnv(t)
	res := env.signUp(t, "mona")
	ctx := context.Background()

	raw, err := env.auth.RequestPasswordReset(ctx, "mona@example.com")
	require.NoError(t, err)
	hash := env.db.users[res.User.ID].PasswordHash

	env.auth.now = func() time.Time { return time.Now().UTC().Add(61 * time.Minute) }
	err = env.auth.ConfirmPasswordReset(ctx, raw, "new-password-1")
	assert.True(t, errors.Is(err, ErrInvalidOrExpiredResetToken))

	assert.Equal(t, hash, env.db.users[res.User.ID].PasswordHash)
	_, err = env.auth.SignIn(ctx, "mona", "password123", model.DeviceMeta{})
	assert.NoError(t, err)
}
