package router // package router defines how HTTP routes are registered for the API

import (
	"time"

	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/blog-platform/internal/handler"    // handlers that translate HTTP into service calls
	"github.com/iliyamo/blog-platform/internal/middleware" // authentication and policy gates
	"github.com/iliyamo/blog-platform/internal/policy"
)

// Handlers groups everything mounted under /api.  OAuth is nil when
// Google sign-in is not configured.
type Handlers struct {
	Auth      *handler.AuthHandler
	OAuth     *handler.OAuthHandler
	Posts     *handler.PostHandler
	Favorites *handler.FavoriteHandler
	Users     *handler.UserAdminHandler
}

// Options carries the middleware shared by the /api routes.  Cache wraps
// the public GET endpoints and Purge wraps the whole group; both may be
// nil.
type Options struct {
	Resolver middleware.TokenResolver
	Timeout  time.Duration // bounds the token lookup of the auth middleware
	Cache    echo.MiddlewareFunc
	Purge    echo.MiddlewareFunc
}

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance.  Currently it exposes only a health check
// backed by a database ping.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterAPI mounts the blog API under /api.
func RegisterAPI(e *echo.Echo, h Handlers, opts Options) {
	var mws []echo.MiddlewareFunc
	if opts.Purge != nil {
		mws = append(mws, opts.Purge)
	}
	api := e.Group("/api", mws...)

	auth := middleware.JWTAuth(opts.Resolver, opts.Timeout)
	optional := middleware.OptionalAuth(opts.Resolver, opts.Timeout)
	cached := func(extra ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
		if opts.Cache != nil {
			return append([]echo.MiddlewareFunc{opts.Cache}, extra...)
		}
		return extra
	}

	registerAuth(api, h, auth)
	registerPosts(api, h, auth, optional, cached)
	registerUsers(api, h, auth)
}

func registerAuth(api *echo.Group, h Handlers, auth echo.MiddlewareFunc) {
	g := api.Group("/auth")
	g.POST("/register", h.Auth.Register)
	g.POST("/login", h.Auth.Login)
	g.GET("/me", h.Auth.Me, auth)
	g.PUT("/change-password", h.Auth.ChangePassword, auth)

	// Google sign-in is only exposed when a client is configured.
	if h.OAuth != nil {
		g.GET("/google", h.OAuth.Start)
		g.GET("/google/callback", h.OAuth.Callback)
	}
}

func registerPosts(api *echo.Group, h Handlers, auth, optional echo.MiddlewareFunc, cached func(...echo.MiddlewareFunc) []echo.MiddlewareFunc) {
	g := api.Group("/posts")

	// ---- Public reads; admins and authors see more when signed in ----
	g.GET("", h.Posts.List, cached(optional)...)
	g.GET("/search", h.Posts.Search, cached(optional)...)
	g.GET("/:id", h.Posts.Get, cached(optional)...)
	g.GET("/:id/favorites/count", h.Favorites.Count, cached(optional)...)

	// ---- Authenticated ----
	g.GET("/unpublished", h.Posts.ListUnpublished, auth, middleware.Require(policy.CanPublishPost))
	g.GET("/me/favorites", h.Favorites.Mine, auth)
	g.POST("", h.Posts.Create, auth)
	g.PUT("/:id", h.Posts.Update, auth)
	g.DELETE("/:id", h.Posts.Delete, auth)
	g.PUT("/:id/publish", h.Posts.Publish, auth, middleware.Require(policy.CanPublishPost))
	g.POST("/:id/favorite", h.Favorites.Add, auth)
	g.DELETE("/:id/favorite", h.Favorites.Remove, auth)
}

// registerUsers mounts the admin-only user management endpoints.
func registerUsers(api *echo.Group, h Handlers, auth echo.MiddlewareFunc) {
	g := api.Group("/users", auth, middleware.Require(policy.CanManageUsers))
	g.GET("", h.Users.List)
	g.GET("/stats", h.Users.Stats)
	g.PUT("/:id/role", h.Users.ChangeRole)
	g.DELETE("/:id", h.Users.Delete)
}
