package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

type resetRequestReq struct {
	Email string `json:"email"`
}

type resetConfirmReq struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type resetRequestResp struct {
	Message string `json:"message"`
	Token   string `json:"token,omitempty"`
}

// RequestPasswordReset always answers the same way so the endpoint cannot be
// used to discover accounts.
func (h *AuthHandler) RequestPasswordReset(c echo.Context) error {
	var req resetRequestReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if err := validateEmail(req.Email); err != nil {
		return badRequest(c, "Invalid email")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	token, err := h.Auth.RequestPasswordReset(ctx, req.Email)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	resp := resetRequestResp{Message: "If the email exists, a reset link will be sent"}
	if h.ExposeResetToken {
		resp.Token = token
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *AuthHandler) ConfirmPasswordReset(c echo.Context) error {
	var req resetConfirmReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if strings.TrimSpace(req.Token) == "" {
		return badRequest(c, "token is required")
	}
	if err := validatePassword(req.NewPassword); err != nil {
		return badRequest(c, err.Error())
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Auth.ConfirmPasswordReset(ctx, req.Token, req.NewPassword); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "Password reset successful"})
}
