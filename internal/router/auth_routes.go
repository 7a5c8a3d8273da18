package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/auth-service/internal/handler"
	"github.com/iliyamo/auth-service/internal/middleware"
)

// RegisterAuth registers the session and password reset endpoints under
// /auth.  Sign-up, sign-in, refresh and the reset pair are public; the rest
// need a credential.  Routes that change user rows bump the response cache
// generation.
func RegisterAuth(api *echo.Group, h *handler.AuthHandler, authn echo.MiddlewareFunc, cache *middleware.RedisCache) {
	g := api.Group("/auth")
	g.POST("/signup", h.SignUp, cache.Invalidate())
	g.POST("/signin", h.SignIn)
	g.POST("/refresh", h.Refresh)
	g.POST("/signout", h.SignOut, authn)

	g.GET("/sessions", h.ListSessions, authn)
	g.DELETE("/sessions/:sessionId", h.RevokeSession, authn)
	g.POST("/sessions/invalidate-all", h.RevokeAllSessions, authn)

	g.POST("/password-reset/request", h.RequestPasswordReset)
	g.POST("/password-reset/confirm", h.ConfirmPasswordReset, cache.Invalidate())
}

// RegisterAPIKeys registers key management for the authenticated caller.
func RegisterAPIKeys(api *echo.Group, h *handler.APIKeyHandler, authn echo.MiddlewareFunc) {
	g := api.Group("/api-keys", authn)
	g.POST("", h.Create)
	g.GET("", h.List)
	g.PATCH("/:keyId/revoke", h.Revoke)
	g.DELETE("/:keyId", h.Delete)
}
