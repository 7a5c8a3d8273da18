package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/auth-service/internal/model"
	"github.com/iliyamo/auth-service/internal/service"
)

// RequireRole lets the request through when the principal holds one of
// roles.  ADMIN satisfies any role.  It must run after Authenticate.
func RequireRole(roles ...model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := PrincipalFrom(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": service.ErrUnauthenticated.Error()})
			}
			for _, r := range roles {
				if service.HasRole(p, r) {
					return next(c)
				}
			}
			return c.JSON(http.StatusForbidden, echo.Map{"error": service.ErrForbidden.Error()})
		}
	}
}
