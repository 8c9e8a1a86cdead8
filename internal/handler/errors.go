package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/blog-platform/internal/service"
)

// statusFor maps a service failure kind to its HTTP status.
func statusFor(k service.Kind) int {
	switch k {
	case service.KindBadCredentials, service.KindUnauthenticated:
		return http.StatusUnauthorized
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict:
		return http.StatusConflict
	case service.KindValidation:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// respondError writes the JSON error body for err.  Classified failures
// expose their message; anything else is logged and reported as an
// internal error without detail.
func respondError(c echo.Context, err error) error {
	var se *service.Error
	if errors.As(err, &se) && se.Kind != service.KindInternal {
		return c.JSON(statusFor(se.Kind), echo.Map{"error": se.Message})
	}
	if errors.Is(err, context.DeadlineExceeded) {
		c.Logger().Warnj(log.JSON{"msg": "request timed out", "path": c.Path()})
		return c.JSON(http.StatusGatewayTimeout, echo.Map{"error": "request timed out"})
	}
	c.Logger().Errorj(log.JSON{
		"msg":    "request failed",
		"method": c.Request().Method,
		"path":   c.Path(),
		"error":  err.Error(),
	})
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}
