package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/auth-service/internal/handler"
	"github.com/iliyamo/auth-service/internal/middleware"
	"github.com/iliyamo/auth-service/internal/model"
)

// RegisterUsers registers account endpoints.  Reads are served through the
// redis cache; every successful write invalidates it.  Per-user scoping of
// GET/PATCH /users/:id is enforced by the user service.
func RegisterUsers(api *echo.Group, h *handler.UserHandler, authn echo.MiddlewareFunc, cache *middleware.RedisCache) {
	adminOnly := middleware.RequireRole(model.RoleAdmin)

	g := api.Group("/users", authn, cache.Invalidate())
	g.GET("/me", h.Me, cache.Serve())
	g.PATCH("/me", h.UpdateMe)

	g.POST("", h.Create, adminOnly)
	g.GET("", h.List, adminOnly, cache.Serve())
	g.GET("/:id", h.Get, cache.Serve())
	g.PATCH("/:id", h.Update)
	g.DELETE("/:id", h.Delete, adminOnly)
}
