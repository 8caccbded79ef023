// Package redisclient holds the Redis pieces shared by the binaries: the
// api-server rate limiter and the outbox relay lock. Appointment state never
// lives in Redis.
package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const clientName = "mentor-appointments"

func clientOptions(addr, username, password string) *redis.Options {
	return &redis.Options{
		Addr:       addr,
		Username:   username,
		Password:   password,
		ClientName: clientName,
		// Limiter and lock calls are single round trips.
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
		PoolSize:     10,
		MinIdleConns: 1,
	}
}

func NewRedisClient(ctx context.Context, addr, username, password string) (*redis.Client, error) {
	rdb := redis.NewClient(clientOptions(addr, username, password))

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}

	return rdb, nil
}
