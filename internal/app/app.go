// Package app assembles repositories, services, handlers and middleware
// into a ready Echo instance.  The server binary and end-to-end tests
// share it.
package app

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/blog-platform/internal/config"
	"github.com/iliyamo/blog-platform/internal/handler"
	"github.com/iliyamo/blog-platform/internal/middleware"
	"github.com/iliyamo/blog-platform/internal/repository"
	"github.com/iliyamo/blog-platform/internal/router"
	"github.com/iliyamo/blog-platform/internal/service"
	"github.com/iliyamo/blog-platform/internal/utils"
)

// Deps are the external resources the API runs on.  Redis and Events
// are optional.
type Deps struct {
	DB        *sql.DB
	Redis     *redis.Client
	Events    service.EventPublisher
	OAuth     config.OAuthConfig
	RateLimit config.RateLimitConfig
	Cache     config.CacheConfig
}

// New builds the HTTP server for cfg.
func New(cfg config.Config, d Deps) (*echo.Echo, error) {
	tokens, err := utils.NewTokenService(cfg.JWTSecret, cfg.AccessTTL())
	if err != nil {
		return nil, fmt.Errorf("token service: %w", err)
	}

	users := repository.NewUserRepo(d.DB)
	posts := repository.NewPostRepo(d.DB)
	favs := repository.NewFavoriteRepo(d.DB)

	identity := service.NewIdentity(users, tokens, cfg.BcryptCost, d.Events)
	postSvc := service.NewPosts(posts, d.Events)
	favSvc := service.NewFavorites(favs, posts, d.Events)
	userSvc := service.NewUsers(users, posts, d.Events)

	h := router.Handlers{
		Auth:      handler.NewAuthHandler(identity, cfg.RequestTimeout),
		Posts:     handler.NewPostHandler(postSvc, cfg.RequestTimeout),
		Favorites: handler.NewFavoriteHandler(favSvc, cfg.RequestTimeout),
		Users:     handler.NewUserAdminHandler(userSvc, cfg.RequestTimeout),
	}
	if d.OAuth.Enabled() {
		h.OAuth = handler.NewGoogleOAuthHandler(identity, d.OAuth, cfg.FrontendURL, cfg.RequestTimeout)
	}

	e := echo.New()
	e.HideBanner = true
	e.Logger.SetHeader(`{"time":"${time_rfc3339}","level":"${level}","file":"${short_file}","line":"${line}"}`)
	e.Logger.SetLevel(ParseLevel(cfg.LogLevel))

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{echo.GET, echo.POST, echo.PUT, echo.DELETE, echo.OPTIONS},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			c.Logger().Infoj(log.JSON{
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"request_id": v.RequestID,
			})
			return nil
		},
	}))
	e.Use(middleware.NewTokenBucket(d.RateLimit, d.Redis))

	router.RegisterRoutes(e, d.DB)
	router.RegisterAPI(e, h, router.Options{
		Resolver: identity,
		Timeout:  cfg.RequestTimeout,
		Cache:    middleware.NewRedisCache(d.Cache, d.Redis),
		Purge:    middleware.PurgeOnWrite(d.Cache, d.Redis),
	})
	return e, nil
}

// ParseLevel maps LOG_LEVEL to a gommon level, defaulting to INFO.
func ParseLevel(s string) log.Lvl {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return log.DEBUG
	case "warn", "warning":
		return log.WARN
	case "error":
		return log.ERROR
	case "off":
		return log.OFF
	}
	return log.INFO
}
