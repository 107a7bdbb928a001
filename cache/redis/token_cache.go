// Package redis backs the token cache with Redis, for deployments running
// several API instances behind a load balancer.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/firstmakers/fm-api/cache"
	"github.com/firstmakers/fm-api/domain"
)

// TokenCache implements cache.TokenCache on Redis.
type TokenCache struct {
	client *redis.Client
	prefix string
}

// NewTokenCache creates a Redis-backed token cache. prefix namespaces the keys
// so several applications can share one Redis.
func NewTokenCache(client *redis.Client, prefix string) *TokenCache {
	return &TokenCache{client: client, prefix: prefix}
}

type redisEntry struct {
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (r *TokenCache) key(tokenString string) string {
	return fmt.Sprintf("%s:token:%s", r.prefix, cache.HashToken(tokenString))
}

// Get implements cache.TokenCache.
func (r *TokenCache) Get(ctx context.Context, tokenString string) (*cache.Entry, bool) {
	raw, err := r.client.Get(ctx, r.key(tokenString)).Result()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Msg("redis token cache read failed")
		}
		return nil, false
	}

	var stored redisEntry
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, false
	}
	if time.Now().After(stored.ExpiresAt) {
		return nil, false
	}

	return &cache.Entry{
		Identity:  domain.Identity{Username: stored.Username, Email: stored.Email},
		ExpiresAt: stored.ExpiresAt,
	}, true
}

// Set implements cache.TokenCache. Cache failures are logged and swallowed;
// the middleware falls back to full verification.
func (r *TokenCache) Set(ctx context.Context, tokenString string, entry *cache.Entry) {
	ttl := time.Until(entry.ExpiresAt)
	if ttl > time.Minute {
		ttl = time.Minute
	}
	if ttl <= 0 {
		return
	}

	raw, err := json.Marshal(redisEntry{
		Username:  entry.Identity.Username,
		Email:     entry.Identity.Email,
		ExpiresAt: entry.ExpiresAt,
	})
	if err != nil {
		return
	}

	if err := r.client.Set(ctx, r.key(tokenString), raw, ttl).Err(); err != nil {
		log.Warn().Err(err).Msg("redis token cache write failed")
	}
}

// Delete implements cache.TokenCache.
func (r *TokenCache) Delete(ctx context.Context, tokenString string) {
	if err := r.client.Del(ctx, r.key(tokenString)).Err(); err != nil {
		log.Warn().Err(err).Msg("redis token cache delete failed")
	}
}

var _ cache.TokenCache = (*TokenCache)(nil)
