package middleware // middleware provides shared request processing for handlers

import (
	"net/http" // http package defines standard HTTP status codes

	"github.com/labstack/echo/v4" // echo provides middleware chaining and context

	"github.com/iliyamo/blog-platform/internal/model"
)

// Require returns a middleware function that enforces a policy predicate
// on the authenticated user, e.g. Require(policy.CanManageUsers).  It
// assumes JWTAuth ran earlier in the chain.  Anonymous requests get 401;
// authenticated users the predicate rejects get 403.
func Require(allow func(*model.User) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u := CurrentUser(c)
			if u == nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
			}
			if !allow(u) {
				return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
