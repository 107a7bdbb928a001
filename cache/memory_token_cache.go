package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryTokenCache implements TokenCache with ttlcache. This is the default
// backend for single-instance deployments.
type MemoryTokenCache struct {
	cache *ttlcache.Cache[string, *Entry]
}

// NewMemoryTokenCache creates an in-memory token cache with automatic
// expiration.
func NewMemoryTokenCache() *MemoryTokenCache {
	c := ttlcache.New(
		ttlcache.WithTTL[string, *Entry](maxEntryTTL),
		ttlcache.WithDisableTouchOnHit[string, *Entry](),
	)
	go c.Start()

	return &MemoryTokenCache{cache: c}
}

// Get implements TokenCache.
func (m *MemoryTokenCache) Get(_ context.Context, tokenString string) (*Entry, bool) {
	item := m.cache.Get(HashToken(tokenString))
	if item == nil {
		return nil, false
	}
	entry := item.Value()
	if time.Now().After(entry.ExpiresAt) {
		return nil, false
	}
	return entry, true
}

// Set implements TokenCache.
func (m *MemoryTokenCache) Set(_ context.Context, tokenString string, entry *Entry) {
	ttl := entryTTL(entry)
	if ttl <= 0 {
		return
	}
	m.cache.Set(HashToken(tokenString), entry, ttl)
}

// Delete implements TokenCache.
func (m *MemoryTokenCache) Delete(_ context.Context, tokenString string) {
	m.cache.Delete(HashToken(tokenString))
}

// Close stops the expiration goroutine.
func (m *MemoryTokenCache) Close() {
	m.cache.Stop()
}

var _ TokenCache = (*MemoryTokenCache)(nil)
