package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockNotAcquired means another process holds the job lock right now.
var ErrLockNotAcquired = errors.New("job lock held by another instance")

const jobLockPrefix = "mentor-appointments:job-lock:"

// Locker keeps a background job (the outbox relay) running on one instance at
// a time. Appointment races are decided by the store, never by this lock.
type Locker interface {
	WithLock(ctx context.Context, job string, fn func(ctx context.Context) error) error
}

type jobLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLocker returns a Locker whose hold time is capped at ttl; fn runs
// under a context that expires with the lock.
func NewRedisLocker(client *redis.Client, ttl time.Duration) Locker {
	return &jobLocker{client: client, ttl: ttl}
}

func jobLockKey(job string) string {
	return jobLockPrefix + job
}

func (l *jobLocker) WithLock(ctx context.Context, job string, fn func(ctx context.Context) error) error {
	key := jobLockKey(job)
	owner := uuid.NewString()

	acquired, err := l.client.SetNX(ctx, key, owner, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire %s job lock: %w", job, err)
	}
	if !acquired {
		return ErrLockNotAcquired
	}

	// Release even if the job's context was cancelled, so the next tick can run.
	defer func() {
		_ = l.release(context.WithoutCancel(ctx), key, owner)
	}()

	jobCtx, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(jobCtx)
}

// releaseScript deletes the key only while this owner still holds it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

func (l *jobLocker) release(ctx context.Context, key, owner string) error {
	if err := releaseScript.Run(ctx, l.client, []string{key}, owner).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release job lock: %w", err)
	}
	return nil
}
