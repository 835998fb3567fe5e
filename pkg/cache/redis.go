package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lborres/tanod/core"
)

const keyPrefix = "tanod:session:"

// RedisCache is a session cache shared between processes.
// Key format: tanod:session:<token_hash>
type RedisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
	now    core.Clock
}

var _ core.Cache = (*RedisCache)(nil)

// NewRedisCache wraps client. Only the TTL of c is used; Redis bounds memory
// on its own.
func NewRedisCache(client redis.UniversalClient, c core.CacheConfig) *RedisCache {
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	return &RedisCache{client: client, ttl: c.TTL, now: core.SystemClock}
}

// redisEntry is the stored form. core.Session hides its token hash from JSON,
// and the key already carries it.
type redisEntry struct {
	AccountID string    `json:"account_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	IsActive  bool      `json:"is_active"`
}

func (c *RedisCache) Get(ctx context.Context, tokenHash string) (*core.Session, error) {
	data, err := c.client.Get(ctx, key(tokenHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrCacheNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var e redisEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("redis decode: %w", err)
	}

	return &core.Session{
		TokenHash: tokenHash,
		AccountID: e.AccountID,
		CreatedAt: e.CreatedAt,
		ExpiresAt: e.ExpiresAt,
		IsActive:  e.IsActive,
	}, nil
}

func (c *RedisCache) Set(ctx context.Context, tokenHash string, session *core.Session) error {
	ttl := entryTTL(c.ttl, session.ExpiresAt.Sub(c.now()))
	if ttl <= 0 {
		return c.Delete(ctx, tokenHash)
	}

	data, err := json.Marshal(redisEntry{
		AccountID: session.AccountID,
		CreatedAt: session.CreatedAt,
		ExpiresAt: session.ExpiresAt,
		IsActive:  session.IsActive,
	})
	if err != nil {
		return err
	}

	if err := c.client.Set(ctx, key(tokenHash), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, tokenHash string) error {
	if err := c.client.Del(ctx, key(tokenHash)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func key(tokenHash string) string {
	return keyPrefix + tokenHash
}

// entryTTL bounds the cache TTL by the remaining life of the session.
func entryTTL(ttl, remaining time.Duration) time.Duration {
	if remaining < ttl {
		return remaining
	}
	return ttl
}
