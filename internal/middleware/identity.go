package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/auth-service/internal/service"
)

const principalKey = "principal"

func setPrincipal(c echo.Context, p service.Principal) {
	c.Set(principalKey, p)
	c.Set("user_id", p.UserID)
	c.Set("role", string(p.Role))
}

// PrincipalFrom returns the identity stored by Authenticate.
func PrincipalFrom(c echo.Context) (service.Principal, bool) {
	p, ok := c.Get(principalKey).(service.Principal)
	return p, ok && p.UserID != ""
}

// userID returns the authenticated user id, or "guest".
func userID(c echo.Context) string {
	if p, ok := PrincipalFrom(c); ok {
		return p.UserID
	}
	return "guest"
}
