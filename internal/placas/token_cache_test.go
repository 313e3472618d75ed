package placas

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenCacheEmpty(t *testing.T) {
	cache := NewTokenCache()

	_, ok := cache.Get(time.Now())
	assert.False(t, ok)
}

func TestTokenCacheValidUntilMargin(t *testing.T) {
	cache := NewTokenCache()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	cache.Set("tok", time.Hour, base)

	token, ok := cache.Get(base)
	assert.True(t, ok)
	assert.Equal(t, "tok", token)

	// Still comfortably outside the five-minute margin.
	_, ok = cache.Get(base.Add(54 * time.Minute))
	assert.True(t, ok)

	// Exactly at the margin boundary counts as expired.
	_, ok = cache.Get(base.Add(55 * time.Minute))
	assert.False(t, ok)

	_, ok = cache.Get(base.Add(2 * time.Hour))
	assert.False(t, ok)
}

func TestTokenCacheLastWriteWins(t *testing.T) {
	cache := NewTokenCache()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	cache.Set("first", time.Hour, base)
	cache.Set("second", time.Hour, base)

	token, ok := cache.Get(base)
	assert.True(t, ok)
	assert.Equal(t, "second", token)
}

func TestTokenCacheShortTTLNeverValid(t *testing.T) {
	cache := NewTokenCache()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	// A TTL inside the margin is unusable from the moment it is set.
	cache.Set("tok", time.Minute, base)
	_, ok := cache.Get(base)
	assert.False(t, ok)
}
