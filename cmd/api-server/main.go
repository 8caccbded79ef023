package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hackgods/mentor-appointments/internal/api"
	"github.com/hackgods/mentor-appointments/internal/appointment"
	"github.com/hackgods/mentor-appointments/internal/config"
	"github.com/hackgods/mentor-appointments/internal/db"
	"github.com/hackgods/mentor-appointments/internal/identity"
	"github.com/hackgods/mentor-appointments/internal/logger"
	redisclient "github.com/hackgods/mentor-appointments/internal/redis"
	"github.com/hackgods/mentor-appointments/internal/telemetry"
)

const version = "0.3.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("config load error: " + err.Error())
	}

	log := logger.New(cfg.Env)
	defer func() { _ = log.Sync() }()

	log.Info("api-server starting up", zap.String("env", cfg.Env), zap.String("http_port", cfg.HTTPPort))

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(rootCtx, telemetry.Config{
		Enabled:      cfg.OTelEnabled,
		ServiceName:  "mentor-appointments-api",
		OTLPEndpoint: cfg.OTelEndpoint,
		SampleRatio:  cfg.OTelSampleRatio,
	})
	if err != nil {
		log.Fatal("telemetry setup error", zap.Error(err))
	}

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	log.Info("connected to Postgres")

	if cfg.MigrateOnStart {
		migrateCtx, cancelMigrate := context.WithTimeout(rootCtx, 30*time.Second)
		v, err := db.Migrate(migrateCtx, pgPool)
		cancelMigrate()
		if err != nil {
			log.Fatal("migration error", zap.Error(err))
		}
		log.Info("database schema up to date", zap.Int64("version", v))
	}

	// Redis only backs the rate limiter here, so the server still comes up without it.
	var (
		rdb     *redis.Client
		limiter api.Limiter
	)
	if cfg.RateLimit > 0 {
		rdb, err = redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			log.Warn("redis unavailable, rate limiting disabled", zap.Error(err))
		} else {
			defer func() {
				if err := rdb.Close(); err != nil {
					log.Warn("error closing redis", zap.Error(err))
				}
			}()
			limiter = redisclient.NewRateLimiter(rdb, cfg.RateLimit, cfg.RateLimitWindow, "rl:api")
			log.Info("connected to Redis", zap.Int("rate_limit", cfg.RateLimit), zap.Duration("window", cfg.RateLimitWindow))
		}
	}

	repo := appointment.NewPgRepository(pgPool)
	directory := identity.NewPgDirectory(pgPool)
	svc := appointment.NewService(repo, repo, directory, log)

	checks := []api.DependencyCheck{
		{Name: "postgres", Critical: true, Check: func(ctx context.Context) error { return pgPool.Ping(ctx) }},
	}
	if rdb != nil {
		checks = append(checks, api.DependencyCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
	}

	router := api.NewRouter(api.RouterConfig{
		Service:        svc,
		Resolver:       identity.NewTokenResolver(cfg.JWTSecret),
		Limiter:        limiter,
		Checks:         checks,
		Logger:         log,
		RequestTimeout: cfg.RequestTimeout,
		Env:            cfg.Env,
		Version:        version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-rootCtx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			log.Error("http server error", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown error", zap.Error(err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("tracer shutdown error", zap.Error(err))
	}

	log.Info("api-server stopped")
}
