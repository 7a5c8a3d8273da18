package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/auth-service/internal/middleware"
	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/service"
)

// APIKeyService is the slice of *service.APIKeyService the handlers use.
type APIKeyService interface {
	Create(ctx context.Context, userID string, name *string, expiresAt *time.Time) (service.CreatedAPIKey, error)
	List(ctx context.Context, userID string) ([]model.APIKey, error)
	Revoke(ctx context.Context, id, userID string) error
	Delete(ctx context.Context, id, userID string) error
}

type APIKeyHandler struct {
	Keys APIKeyService
	Log  *logrus.Logger
}

func NewAPIKeyHandler(keys APIKeyService, log *logrus.Logger) *APIKeyHandler {
	return &APIKeyHandler{Keys: keys, Log: log}
}

type createAPIKeyReq struct {
	Name      *string    `json:"name"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

// Create mints a key.  The raw key is in this response and nowhere else.
func (h *APIKeyHandler) Create(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return writeError(c, h.Log, service.ErrUnauthenticated)
	}
	var req createAPIKeyReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.Name != nil && len(*req.Name) > maxNameLen {
		return badRequest(c, "name is too long")
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(time.Now()) {
		return badRequest(c, "expiresAt must be in the future")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	k, err := h.Keys.Create(ctx, p.UserID, req.Name, req.ExpiresAt)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, createdAPIKeyResp{apiKeyResp: toAPIKeyResp(k.APIKey), Key: k.Key})
}

func (h *APIKeyHandler) List(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return writeError(c, h.Log, service.ErrUnauthenticated)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	keys, err := h.Keys.List(ctx, p.UserID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	out := make([]apiKeyResp, 0, len(keys))
	for _, k := range keys {
		out = append(out, toAPIKeyResp(k))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *APIKeyHandler) Revoke(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return writeError(c, h.Log, service.ErrUnauthenticated)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Keys.Revoke(ctx, c.Param("keyId"), p.UserID); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *APIKeyHandler) Delete(c echo.Context) error {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		return writeError(c, h.Log, service.ErrUnauthenticated)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
	defer cancel()

	if err := h.Keys.Delete(ctx, c.Param("keyId"), p.UserID); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
