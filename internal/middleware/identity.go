package middleware

// identity.go defines helpers shared across middleware files and handlers
// for reading the authenticated user from the Echo context.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/blog-platform/internal/model"
)

const (
	userKey   = "user"
	userIDKey = "user_id"
)

func setUser(c echo.Context, u *model.User) {
	c.Set(userKey, u)
	c.Set(userIDKey, u.ID)
}

// CurrentUser returns the user resolved by JWTAuth or OptionalAuth, or
// nil for anonymous requests.
func CurrentUser(c echo.Context) *model.User {
	u, _ := c.Get(userKey).(*model.User)
	return u
}

// userID returns the id of the current user, or "anon" when no user is
// authenticated.
func userID(c echo.Context) string {
	if u := CurrentUser(c); u != nil && u.ID != "" {
		return u.ID
	}
	return "anon"
}
