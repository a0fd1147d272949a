package ticketapi

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenCache holds one bearer token with its fetch time. A token expires after
// the configured TTL or at its own "exp" claim, whichever comes first.
type TokenCache struct {
	mu        sync.Mutex
	value     string
	fetchedAt time.Time
	expiresAt time.Time
	ttl       time.Duration
	now       func() time.Time
}

// NewTokenCache builds an empty cache.
func NewTokenCache(ttl time.Duration) *TokenCache {
	return &TokenCache{ttl: ttl, now: time.Now}
}

// Get returns the cached token while it is still valid.
func (c *TokenCache) Get() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.value == "" || !c.now().Before(c.expiresAt) {
		return "", false
	}
	return c.value, true
}

// Set stores a freshly fetched token.
func (c *TokenCache) Set(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = token
	c.fetchedAt = c.now()
	c.expiresAt = c.fetchedAt.Add(c.ttl)
	if exp, ok := tokenExpiry(token); ok && exp.Before(c.expiresAt) {
		c.expiresAt = exp
	}
}

// Invalidate drops the cached token.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = ""
	c.expiresAt = time.Time{}
}

// ExpiresAt reports when the cached token stops being served.
func (c *TokenCache) ExpiresAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expiresAt
}

// tokenExpiry reads the exp claim without verifying the signature; the token
// was issued to us and is only inspected for its lifetime.
func tokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
