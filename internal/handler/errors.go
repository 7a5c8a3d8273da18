package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/auth-service/internal/service"
)

// requestTimeout bounds the work a single handler does against MySQL and
// bcrypt.
const requestTimeout = 5 * time.Second

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// writeError translates service errors to HTTP responses.  Anything not in
// the taxonomy is logged and reported as a 500 without detail.
func writeError(c echo.Context, log *logrus.Logger, err error) error {
	var dup *service.DuplicateCredentialError
	switch {
	case errors.As(err, &dup):
		msg := "Username already exists"
		if dup.Field == "email" {
			msg = "Email already exists"
		}
		return c.JSON(http.StatusConflict, echo.Map{"error": msg})
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidOrExpiredToken),
		errors.Is(err, service.ErrUnauthenticated):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidOrExpiredResetToken),
		errors.Is(err, service.ErrSelfDelete),
		errors.Is(err, service.ErrNothingToUpdate):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	}

	log.WithError(err).WithFields(logrus.Fields{
		"method": c.Request().Method,
		"path":   c.Path(),
	}).Error("request failed")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Internal server error"})
}
