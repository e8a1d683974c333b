package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-booking/internal/logger"
)

const cacheDialTimeout = 5 * time.Second

// DialTokenCache opens the Redis connection backing the M2M token
// cache and fails fast if the server is unreachable.
func DialTokenCache(addr string, log *logger.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), cacheDialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("token cache redis at %s: %w", addr, err)
	}

	log.Info("AUTH", fmt.Sprintf("Token cache connected to Redis at %s", addr))
	return client, nil
}
