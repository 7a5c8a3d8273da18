package handler

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/auth-service/internal/middleware"
	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/service"
	"github.com/iliyamo/auth-service/internal/utils"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// fixedAuthenticator authenticates every request as p.
type fixedAuthenticator struct{ p service.Principal }

func (f fixedAuthenticator) Authenticate(context.Context, service.Credentials) (service.Principal, error) {
	if f.p.UserID == "" {
		return service.Principal{}, service.ErrUnauthenticated
	}
	return f.p, nil
}

func asUser(id string, role model.Role) echo.MiddlewareFunc {
	return middleware.Authenticate(fixedAuthenticator{service.Principal{
		UserID: id, Username: "u" + id, Role: role, SessionID: "sess-" + id, Method: service.AuthMethodBearer,
	}}, quietLogger())
}

func request(e *echo.Echo, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

var fixedTime = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func sampleUser(id string) model.User {
	return model.User{
		ID: id, Name: "Sample", Username: "sample" + id, Email: "s" + id + "@example.com",
		PasswordHash: "$2a$10$secret", PasswordSalt: "salt", Role: model.RoleUser,
		CreatedAt: fixedTime, UpdatedAt: fixedTime,
	}
}

// stubAuth records calls and returns canned results.
type stubAuth struct {
	signUpIn    service.SignUpInput
	meta        model.DeviceMeta
	login       string
	signOutTok  string
	revokedID   string
	resetToken  string
	err         error
	sessions    []model.Session
	confirmPass string
}

func (s *stubAuth) result() service.AuthResult {
	return service.AuthResult{User: sampleUser("1"), Tokens: utils.TokenPair{
		AccessToken: "access", AccessExpiresAt: fixedTime,
		RefreshToken: "refresh", RefreshExpiresAt: fixedTime.Add(time.Hour),
	}}
}

func (s *stubAuth) SignUp(_ context.Context, in service.SignUpInput, meta model.DeviceMeta) (service.AuthResult, error) {
	s.signUpIn, s.meta = in, meta
	return s.result(), s.err
}

func (s *stubAuth) SignIn(_ context.Context, login, _ string, meta model.DeviceMeta) (service.AuthResult, error) {
	s.login, s.meta = login, meta
	return s.result(), s.err
}

func (s *stubAuth) Refresh(context.Context, string) (utils.TokenPair, error) {
	return s.result().Tokens, s.err
}

func (s *stubAuth) SignOut(_ context.Context, token, _ string) error {
	s.signOutTok = token
	return s.err
}

func (s *stubAuth) ListSessions(context.Context, string) ([]model.Session, error) {
	return s.sessions, s.err
}

func (s *stubAuth) RevokeSession(_ context.Context, id, _ string) error {
	s.revokedID = id
	return s.err
}

func (s *stubAuth) RevokeAllSessions(context.Context, string) (int64, error) { return 2, s.err }

func (s *stubAuth) RequestPasswordReset(context.Context, string) (string, error) {
	return s.resetToken, s.err
}

func (s *stubAuth) ConfirmPasswordReset(_ context.Context, _, pass string) error {
	s.confirmPass = pass
	return s.err
}
