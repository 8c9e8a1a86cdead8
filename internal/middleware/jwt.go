package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"context"
	"net/http" // HTTP status codes for responses
	"strings"  // string utilities for prefix checking and trimming
	"time"

	"github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/blog-platform/internal/model"
	"github.com/iliyamo/blog-platform/internal/service"
)

// TokenResolver turns a bearer token into a stored user.
// *service.Identity satisfies it.
type TokenResolver interface {
	ResolveFromToken(ctx context.Context, token string) (*model.User, error)
}

// defaultResolveTimeout bounds the user lookup when no timeout is given.
const defaultResolveTimeout = 5 * time.Second

// resolve looks the token's subject up under the request deadline.
func resolve(c echo.Context, resolver TokenResolver, raw string, timeout time.Duration) (*model.User, error) {
	if timeout <= 0 {
		timeout = defaultResolveTimeout
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), timeout)
	defer cancel()
	return resolver.ResolveFromToken(ctx, raw)
}

// bearerToken extracts the token from an "Authorization: Bearer <jwt>"
// header.  ok is false when the header is absent; a present but malformed
// header yields ok=true with an empty token.
func bearerToken(c echo.Context) (token string, ok bool) {
	auth := strings.TrimSpace(c.Request().Header.Get(echo.HeaderAuthorization))
	if auth == "" {
		return "", false
	}
	scheme, raw, found := strings.Cut(auth, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", true
	}
	return strings.TrimSpace(raw), true
}

// JWTAuth returns an Echo middleware that resolves the Bearer access token
// to a user and stores it in the request context.  The role is re-read from
// storage on every request, so a demotion takes effect immediately.
// Missing, malformed, expired or orphaned tokens are all rejected with 401
// before any route logic runs.  The lookup is bounded by timeout.
func JWTAuth(resolver TokenResolver, timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c)
			if !ok || raw == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			u, err := resolve(c, resolver, raw, timeout)
			if err != nil {
				return authFailure(c, err)
			}
			setUser(c, u)
			return next(c)
		}
	}
}

// OptionalAuth resolves a bearer token when one is sent and otherwise lets
// the request through anonymously.  An invalid token is treated as no
// token so that stale clients can still browse public content.
func OptionalAuth(resolver TokenResolver, timeout time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := bearerToken(c)
			if !ok || raw == "" {
				return next(c)
			}
			u, err := resolve(c, resolver, raw, timeout)
			if err != nil {
				if service.KindOf(err) == service.KindUnauthenticated {
					return next(c)
				}
				return authFailure(c, err)
			}
			setUser(c, u)
			return next(c)
		}
	}
}

func authFailure(c echo.Context, err error) error {
	if service.KindOf(err) == service.KindUnauthenticated {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
	}
	c.Logger().Errorj(log.JSON{"msg": "resolve token failed", "error": err.Error()})
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
