package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	// m2mTokenKey is where the service-to-service token lives in Redis,
	// shared by the booking core and the gate service.
	m2mTokenKey = "booking:m2m_token"
	// tokenExpiryBuffer is how long before real expiry a token is
	// treated as stale, so a request never leaves with a token that
	// dies in flight.
	tokenExpiryBuffer = 60 * time.Second
)

type TokenCache struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (tc *TokenCache) IsValid() bool {
	if tc == nil || tc.Token == "" {
		return false
	}
	return time.Now().Add(tokenExpiryBuffer).Before(tc.ExpiresAt)
}

// RedisTokenCache shares one M2M token across processes so each
// outbound call to a collaborator does not cost a token grant.
type RedisTokenCache struct {
	Client *redis.Client
}

func NewRedisTokenCache(client *redis.Client) *RedisTokenCache {
	return &RedisTokenCache{Client: client}
}

// GetToken returns the cached token, or nil when the cache is empty or
// the token is inside its expiry buffer.
func (c *RedisTokenCache) GetToken(ctx context.Context) (*TokenCache, error) {
	if c.Client == nil {
		return nil, fmt.Errorf("redis client not initialized")
	}

	raw, err := c.Client.Get(ctx, m2mTokenKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token from Redis: %w", err)
	}

	var cached TokenCache
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token cache: %w", err)
	}
	if !cached.IsValid() {
		return nil, nil
	}
	return &cached, nil
}

// SetToken stores a freshly granted token. The Redis TTL outlives the
// token slightly so IsValid, not key eviction, decides staleness.
func (c *RedisTokenCache) SetToken(ctx context.Context, token string, expiresIn int) error {
	if c.Client == nil {
		return fmt.Errorf("redis client not initialized")
	}

	cached := &TokenCache{
		Token:     token,
		ExpiresAt: time.Now().Add(time.Duration(expiresIn) * time.Second),
	}
	raw, err := json.Marshal(cached)
	if err != nil {
		return fmt.Errorf("failed to marshal token cache: %w", err)
	}

	ttl := time.Duration(expiresIn)*time.Second + tokenExpiryBuffer
	if err := c.Client.Set(ctx, m2mTokenKey, raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store token in Redis: %w", err)
	}
	return nil
}
