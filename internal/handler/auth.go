package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/auth-service/internal/middleware"
	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/service"
	"github.com/iliyamo/auth-service/internal/utils"
)

// AuthService is the slice of *service.AuthService the auth endpoints use.
type AuthService interface {
	SignUp(ctx context.Context, in service.SignUpInput, meta model.DeviceMeta) (service.AuthResult, error)
	SignIn(ctx context.Context, login, password string, meta model.DeviceMeta) (service.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string) (utils.TokenPair, error)
	SignOut(ctx context.Context, accessToken, userID string) error
	ListSessions(ctx context.Context, userID string) ([]model.Session, error)
	RevokeSession(ctx context.Context, sessionID, userID string) error
	RevokeAllSessions(ctx context.Context, userID string) (int64, error)
	RequestPasswordReset(ctx context.Context, email string) (string, error)
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) error
}

// AuthHandler bundles dependencies for auth endpoints.  ExposeResetToken
// returns the raw reset token in the response body; it is only enabled
// outside production, where no mailer exists.
type AuthHandler struct {
	Auth             AuthService
	Log              *logrus.Logger
	ExposeResetToken bool
}

func NewAuthHandler(a AuthService, log *logrus.Logger, exposeResetToken bool) *AuthHandler {
	return &AuthHandler{Auth: a, Log: log, ExposeResetToken: exposeResetToken}
}

// ----- DTOs -----

type signUpReq struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signInReq struct {
	// Username accepts either the username or the email address.
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshReq struct {
	RefreshToken string `json:"refreshToken"`
}

// DeviceHeader optionally identifies the client device of a new session.
const DeviceHeader = "X-Device-Id"

func deviceMeta(c echo.Context) model.DeviceMeta {
	return model.DeviceMeta{
		DeviceID:  strings.TrimSpace(c.Request().Header.Get(DeviceHeader)),
		UserAgent: c.Request().UserAgent(),
	}
}

// SignUp: create the account and return tokens for its first session.
func (h *AuthHandler) SignUp(c echo.Context) error {
	var req signUpReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := firstError(
		validateName(req.Name),
		validateUsername(req.Username),
		validateEmail(req.Email),
		validatePassword(req.Password),
	); err != nil {
		return badRequest(c, err.Error())
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	res, err := h.Auth.SignUp(ctx, service.SignUpInput{
		Name:     req.Name,
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	}, deviceMeta(c))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, authResp{User: toUserResp(res.User), tokensResp: toTokensResp(res.Tokens)})
}

// SignIn: verify credentials and open a new session.
func (h *AuthHandler) SignIn(c echo.Context) error {
	var req signInReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		return badRequest(c, "Invalid input")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	res, err := h.Auth.SignIn(ctx, req.Username, req.Password, deviceMeta(c))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, authResp{User: toUserResp(res.User), tokensResp: toTokensResp(res.Tokens)})
}

// Refresh: rotate the refresh token and return a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if strings.TrimSpace(req.RefreshToken) == "" {
		return badRequest(c, "Invalid input")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	pair, err := h.Auth.Refresh(ctx, strings.TrimSpace(req.RefreshToken))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toTokensResp(pair))
}

// SignOut: revoke the session the presented access token belongs to.
func (h *AuthHandler) SignOut(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return writeError(c, h.Log, service.ErrUnauthenticated)
	}
	token := middleware.BearerToken(c)
	if token == "" {
		return badRequest(c, "sign out requires a bearer token")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Auth.SignOut(ctx, token, p.UserID); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
