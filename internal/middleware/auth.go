package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/auth-service/internal/service"
)

// Authenticator resolves request credentials; *service.Authenticator
// implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, c service.Credentials) (service.Principal, error)
}

// APIKeyHeader carries long-lived API keys.
const APIKeyHeader = "X-API-Key"

// BearerToken returns the token from an "Authorization: Bearer ..." header,
// or "" when the header is absent or uses another scheme.
func BearerToken(c echo.Context) string {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if len(auth) < 7 || !strings.EqualFold(auth[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(auth[7:])
}

// Authenticate rejects requests without a valid API key or access token.
// On success the Principal is stored on the context, along with its
// user_id and role for handlers that only need those.
func Authenticate(a Authenticator, log *logrus.Logger) echo.MiddlewareFunc {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			creds := service.Credentials{
				APIKey: strings.TrimSpace(c.Request().Header.Get(APIKeyHeader)),
				Bearer: BearerToken(c),
			}
			p, err := a.Authenticate(c.Request().Context(), creds)
			if err != nil {
				switch {
				case errors.Is(err, service.ErrUnauthenticated), errors.Is(err, service.ErrInvalidOrExpiredToken):
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": err.Error()})
				default:
					log.WithError(err).WithField("path", c.Path()).Error("authenticate")
					return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
				}
			}
			setPrincipal(c, p)
			return next(c)
		}
	}
}
