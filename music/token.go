package music

import (
	"context"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// tokenMargin is subtracted from a token's lifetime so it is never used
// right at expiry.
const tokenMargin = 60 * time.Second

// defaultTokenLifetime applies when the token endpoint omits expires_in.
const defaultTokenLifetime = time.Hour

// tokenCache holds one bearer token and refreshes it when it lapses.
type tokenCache struct {
	mu      sync.RWMutex
	token   string
	expires time.Time
	fetch   func(context.Context) (*oauth2.Token, error)
	now     func() time.Time
}

func newTokenCache(fetch func(context.Context) (*oauth2.Token, error)) *tokenCache {
	return &tokenCache{fetch: fetch, now: time.Now}
}

func (c *tokenCache) valid() bool {
	return c.token != "" && c.now().Before(c.expires)
}

// invalidate drops the token so the next get fetches a fresh one.
func (c *tokenCache) invalidate() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

// get returns the cached token, fetching a new one under the write lock
// only when the cached one is missing or stale.
func (c *tokenCache) get(ctx context.Context) (string, error) {
	c.mu.RLock()
	if c.valid() {
		tok := c.token
		c.mu.RUnlock()
		return tok, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.valid() {
		return c.token, nil
	}
	tok, err := c.fetch(ctx)
	if err != nil {
		return "", err
	}
	expiry := tok.Expiry
	if expiry.IsZero() {
		expiry = c.now().Add(defaultTokenLifetime)
	}
	c.token = tok.AccessToken
	c.expires = expiry.Add(-tokenMargin)
	return c.token, nil
}
