package placas

import (
	"sync"
	"time"
)

// expiryMargin is subtracted from the stored expiry when deciding whether a
// cached token is still usable, so a token is never sent within five minutes
// of expiring.
const expiryMargin = 5 * time.Minute

// TokenCache holds the single bearer token for the plate-lookup provider.
// There is one upstream identity, so the cache is one slot: Set overwrites
// unconditionally, last write wins.
type TokenCache struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewTokenCache() *TokenCache {
	return &TokenCache{}
}

// Get returns the cached token when it is present and not within the expiry
// margin of expiring at the given instant.
func (c *TokenCache) Get(now time.Time) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token == "" || !now.Before(c.expiresAt.Add(-expiryMargin)) {
		return "", false
	}

	return c.token, true
}

// Set replaces the cached token with one valid for ttl from now.
func (c *TokenCache) Set(token string, ttl time.Duration, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.token = token
	c.expiresAt = now.Add(ttl)
}
