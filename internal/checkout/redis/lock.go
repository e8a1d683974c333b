package redis

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-booking/internal/logger"
)

// Lock serializes checkout attempts per hold. Two requests for the same
// hold (a buyer double-clicking, or a retry racing the original) take a
// SetNX lock keyed by the hold ID; the loser backs off and retries the
// whole checkout, by which point the winner's outcome is visible.
type Lock struct {
	Client *redis.Client
	Logger *logger.Logger
}

func NewLock(client *redis.Client, log *logger.Logger) *Lock {
	return &Lock{Client: client, Logger: log}
}

func (l *Lock) lockTTL() time.Duration {
	defaultTTL := 30 * time.Second

	raw := os.Getenv("CHECKOUT_LOCK_TTL_SECONDS")
	if raw == "" {
		return defaultTTL
	}
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds <= 0 {
		l.Logger.Warn("REDIS", fmt.Sprintf("Invalid CHECKOUT_LOCK_TTL_SECONDS value %q, using default 30s", raw))
		return defaultTTL
	}
	return time.Duration(seconds) * time.Second
}

// Acquire takes the per-hold checkout lock. The token identifies the
// owner so an unrelated unlock cannot drop someone else's lock.
func (l *Lock) Acquire(ctx context.Context, holdID, token string) (bool, error) {
	key := "checkout_lock:" + holdID
	ok, err := l.Client.SetNX(ctx, key, token, l.lockTTL()).Result()
	return ok, err
}

// Release drops the lock if this owner still holds it. Releasing an
// expired or foreign lock is a no-op.
func (l *Lock) Release(ctx context.Context, holdID, token string) error {
	key := "checkout_lock:" + holdID
	val, err := l.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	if val == token {
		_, err = l.Client.Del(ctx, key).Result()
		return err
	}
	return nil
}
