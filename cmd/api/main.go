package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloudops.org/internal/audit"
	"cloudops.org/internal/auth"
	"cloudops.org/internal/config"
	"cloudops.org/internal/cost"
	"cloudops.org/internal/httpapi"
	"cloudops.org/internal/infra"
	"cloudops.org/internal/migrate"
	"cloudops.org/internal/obs"
	"cloudops.org/internal/policy"
	"cloudops.org/internal/store/pg"
)

var commit = "unknown"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	obs.Init()
	obs.InitBuildInfo(cfg.AppVersion, commit)

	var store *pg.Store
	if cfg.DatabaseURL != "" {
		store, err = pg.Open(cfg.DatabaseURL, cfg.DBPoolSize, cfg.DBMaxOverflow)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		defer store.Close()

		if os.Getenv("MIGRATE_ON_START") == "true" {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			mgr := migrate.NewManager(store.DB(), "ops/migrations/sql", "ops/migrations/seeds")
			if err := mgr.Up(ctx); err != nil {
				cancel()
				log.Fatalf("migrate: %v", err)
			}
			cancel()
		}
	}

	secret := cfg.JWTSecret
	if secret == "" {
		// Load rejects a missing SECRET_KEY in production.
		secret = "insecure-dev-secret"
		obs.Warn("JWT secret not set, using development default", nil)
	}
	tokens, err := auth.NewTokens(secret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	if err != nil {
		log.Fatalf("token issuer: %v", err)
	}

	var (
		infraSvc  *infra.Service
		costSvc   *cost.Service
		policySvc *policy.Service
		userSvc   *auth.Service
		recorder  *audit.Recorder
	)
	if store != nil {
		if infraSvc, err = infra.NewService(store); err != nil {
			log.Fatalf("infra service: %v", err)
		}
		if costSvc, err = cost.NewService(store); err != nil {
			log.Fatalf("cost service: %v", err)
		}
		if policySvc, err = policy.NewService(store); err != nil {
			log.Fatalf("policy service: %v", err)
		}
		if userSvc, err = auth.NewService(store, tokens, auth.WithBcryptCost(cfg.BcryptCost)); err != nil {
			log.Fatalf("auth service: %v", err)
		}
		recorder = audit.NewRecorder(store)
	} else {
		recorder = audit.NewRecorder(nil)
	}

	api := httpapi.New(cfg, httpapi.Deps{
		DB:            dbOrNil(store),
		Infra:         infraSvc,
		Costs:         costSvc,
		Policies:      policySvc,
		Users:         userSvc,
		Audit:         recorder,
		Limiter:       httpapi.NewRateLimiter(cfg.RateLimitPerMinute),
		LoginThrottle: httpapi.NewLoginThrottle(cfg.LoginRatePerMinute, cfg.RateLimitBurst),
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	obs.Info("starting server", map[string]any{
		"service": cfg.AppName,
		"version": cfg.AppVersion,
		"addr":    srv.Addr,
	})

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	obs.Info("shutting down", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	obs.Info("stopped", nil)
}

func dbOrNil(s *pg.Store) *sql.DB {
	if s == nil {
		return nil
	}
	return s.DB()
}
