package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/gommon/log" // echo's logger, used before the server exists

	"github.com/iliyamo/blog-platform/internal/app"
	"github.com/iliyamo/blog-platform/internal/config"
	"github.com/iliyamo/blog-platform/internal/database"
	"github.com/iliyamo/blog-platform/internal/queue"
)

func main() {
	cfg, err := config.Load() // Load environment config
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	log.SetLevel(app.ParseLevel(cfg.LogLevel))

	db, err := openDB(cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = database.Migrate(migrateCtx, db, cfg.DBDriver)
	cancel()
	if err != nil {
		log.Fatalf("migrate: %v", err)
	}

	deps := app.Deps{DB: db, Events: queue.Discard{}}
	if deps.OAuth, err = config.LoadOAuthConfig(); err != nil {
		log.Fatalf("oauth config: %v", err)
	}
	if deps.RateLimit, err = config.LoadRateLimitConfig(); err != nil {
		log.Fatalf("rate limit config: %v", err)
	}
	if deps.Cache, err = config.LoadCacheConfig(); err != nil {
		log.Fatalf("cache config: %v", err)
	}
	if deps.RateLimit.Enabled || deps.Cache.Enabled {
		redisCfg, err := config.LoadRedisConfig()
		if err != nil {
			log.Fatalf("redis config: %v", err)
		}
		// A nil client disables rate limiting and caching.
		if deps.Redis = config.NewRedisClient(redisCfg); deps.Redis == nil {
			log.Warnf("redis unavailable at %s; rate limiting and caching disabled", redisCfg.Address())
		} else {
			defer deps.Redis.Close()
		}
	}

	events, err := config.LoadEventsConfig()
	if err != nil {
		log.Fatalf("events config: %v", err)
	}
	if events.Enabled {
		pub := queue.NewPublisher(events.URL, events.DialTimeout)
		defer pub.Close()
		deps.Events = pub
		if events.Consume {
			go func() {
				if err := queue.StartActivityConsumer(ctx, events.URL, events.LogDir); err != nil && !errors.Is(err, context.Canceled) {
					log.Errorf("activity consumer stopped: %v", err)
				}
			}()
		}
	}
	e, err := app.New(cfg, deps)
	if err != nil {
		log.Fatalf("app: %v", err)
	}

	addr := ":" + cfg.Port // Address string with port
	go func() {
		e.Logger.Infof("listening on %s (env=%s, db=%s)", addr, cfg.Env, cfg.DBDriver)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.Logger.Fatal(err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := e.Shutdown(shutdownCtx); err != nil {
		e.Logger.Error(err)
	}
}

func openDB(cfg config.Config) (*sql.DB, error) {
	if cfg.DBDriver == database.DriverSQLite {
		return database.OpenSQLite(cfg.DBPath)
	}
	return database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
}
