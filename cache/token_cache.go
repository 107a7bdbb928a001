// Package cache holds short-lived records of verified access tokens so the
// authorization middleware can skip repeated signature checks. Entries never
// outlive the token they describe.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/firstmakers/fm-api/domain"
)

// maxEntryTTL bounds how long a verified token stays cached. Access tokens are
// revocable only by expiry, so a short bound keeps the staleness window small
// without re-verifying on every request.
const maxEntryTTL = time.Minute

// Entry is the identity of a verified access token.
type Entry struct {
	Identity  domain.Identity
	ExpiresAt time.Time
}

// TokenCache memoizes verified access tokens.
type TokenCache interface {
	Get(ctx context.Context, tokenString string) (*Entry, bool)
	Set(ctx context.Context, tokenString string, entry *Entry)
	Delete(ctx context.Context, tokenString string)
}

// HashToken shortens a token to a fixed-size cache key. Raw tokens are never
// used as keys so a cache dump cannot leak credentials.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// entryTTL caps the cache lifetime of an entry at maxEntryTTL or the token
// expiry, whichever comes first.
func entryTTL(e *Entry) time.Duration {
	ttl := time.Until(e.ExpiresAt)
	if ttl > maxEntryTTL {
		ttl = maxEntryTTL
	}
	return ttl
}
