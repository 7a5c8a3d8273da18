package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/auth-service/internal/middleware"
	"github.com/iliyamo/auth-service/internal/service"
)

// ListSessions returns the caller's active sessions, newest first.
func (h *AuthHandler) ListSessions(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return writeError(c, h.Log, service.ErrUnauthenticated)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	sessions, err := h.Auth.ListSessions(ctx, p.UserID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	out := make([]sessionResp, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, sessionResp{
			ID:        s.ID,
			DeviceID:  optional(s.DeviceID),
			UserAgent: optional(s.UserAgent),
			ExpiresAt: s.ExpiresAt,
			CreatedAt: s.CreatedAt,
			Current:   s.ID == p.SessionID,
		})
	}
	return c.JSON(http.StatusOK, out)
}

// RevokeSession ends one of the caller's sessions.
func (h *AuthHandler) RevokeSession(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return writeError(c, h.Log, service.ErrUnauthenticated)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Auth.RevokeSession(ctx, c.Param("sessionId"), p.UserID); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// RevokeAllSessions signs the caller out on every device, this one included.
func (h *AuthHandler) RevokeAllSessions(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return writeError(c, h.Log, service.ErrUnauthenticated)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if _, err := h.Auth.RevokeAllSessions(ctx, p.UserID); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
