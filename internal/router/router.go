// Package router registers the HTTP routes of the API.
package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/auth-service/internal/handler"
	"github.com/iliyamo/auth-service/internal/middleware"
)

// Deps are the handlers and shared middleware the routes are built from.
// Cache, Metrics and Log may be nil.
type Deps struct {
	Auth          *handler.AuthHandler
	APIKeys       *handler.APIKeyHandler
	Users         *handler.UserHandler
	Health        *handler.HealthHandler
	Authenticator middleware.Authenticator
	Cache         *middleware.RedisCache
	Metrics       http.Handler
	Log           *logrus.Logger
}

// RegisterRoutes mounts probes and metrics at the root and the API under
// /api/v1.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/health", d.Health.Health)
	e.GET("/health/ready", d.Health.Ready)
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics))
	}

	api := e.Group("/api/v1")
	authn := middleware.Authenticate(d.Authenticator, d.Log)

	RegisterAuth(api, d.Auth, authn, d.Cache)
	RegisterAPIKeys(api, d.APIKeys, authn)
	RegisterUsers(api, d.Users, authn, d.Cache)
}
