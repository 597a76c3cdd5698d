package uploader

import (
	"context"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// TokenCache holds a single client-credentials bearer token per worker
// process, refreshed at most once at a time. The mutex is held across
// the network round trip so a second caller waits for the in-flight
// refresh instead of starting its own.
type TokenCache struct {
	mu     sync.Mutex
	config *clientcredentials.Config
	token  *oauth2.Token
}

// NewTokenCache builds a token cache for the client-credentials grant.
func NewTokenCache(clientID, clientSecret, tokenURL, scope string) *TokenCache {
	return &TokenCache{
		config: &clientcredentials.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			Scopes:       []string{scope},
		},
	}
}

// BearerToken returns a cached access token, fetching a new one if none is
// cached or the cached token expires within 60s.
func (c *TokenCache) BearerToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != nil && c.token.Valid() && time.Until(c.token.Expiry) > 60*time.Second {
		return c.token.AccessToken, nil
	}

	tok, err := c.config.Token(ctx)
	if err != nil {
		return "", err
	}
	c.token = tok
	return tok.AccessToken, nil
}

// Invalidate discards the cached token, forcing the next BearerToken call
// to re-authenticate. Called after the destination store returns 401.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = nil
}
