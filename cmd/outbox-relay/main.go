package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/mentor-appointments/internal/config"
	"github.com/hackgods/mentor-appointments/internal/db"
	"github.com/hackgods/mentor-appointments/internal/logger"
	"github.com/hackgods/mentor-appointments/internal/outbox"
	redisclient "github.com/hackgods/mentor-appointments/internal/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("config load error: " + err.Error())
	}

	log := logger.New(cfg.Env)
	defer func() { _ = log.Sync() }()

	if len(cfg.KafkaBrokers) == 0 {
		log.Warn("KAFKA_BROKERS is empty, nothing to relay to")
		return
	}

	log.Info("outbox-relay starting up",
		zap.String("env", cfg.Env),
		zap.Duration("interval", cfg.RelayInterval),
		zap.Strings("brokers", cfg.KafkaBrokers),
		zap.String("topic", cfg.KafkaTopic),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	log.Info("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal("redis connection error", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn("error closing redis", zap.Error(err))
		}
	}()
	log.Info("connected to Redis")

	writer := outbox.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer func() {
		if err := writer.Close(); err != nil {
			log.Warn("error closing kafka writer", zap.Error(err))
		}
	}()

	relay := outbox.NewRelay(
		outbox.NewPgSource(pgPool),
		writer,
		redisclient.NewRedisLocker(rdb, cfg.LockTTL),
		log,
		outbox.RelayConfig{Topic: cfg.KafkaTopic, BatchSize: cfg.RelayBatchSize},
	)

	// Run once at startup
	runOnce(rootCtx, relay, log)

	ticker := time.NewTicker(cfg.RelayInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			log.Info("shutdown signal received, stopping outbox relay")
			return
		case <-ticker.C:
			runOnce(rootCtx, relay, log)
		}
	}
}

func runOnce(ctx context.Context, relay *outbox.Relay, log *zap.Logger) {
	start := time.Now()
	n, err := relay.RunOnce(ctx)
	if err != nil {
		log.Error("relay run error", zap.Error(err), zap.Int("published", n))
		return
	}
	if n > 0 {
		log.Info("relay run complete", zap.Int("published", n), zap.Duration("took", time.Since(start)))
	}
}
