package oauth2

import (
	"sync"
)

// TokenCache holds tokens keyed by provider identity. Expired tokens are
// kept so their refresh token can still be used. It is safe for concurrent use.
type TokenCache struct {
	tokens map[string]*Token
	mutex  sync.RWMutex
}

// NewTokenCache creates an empty cache.
func NewTokenCache() *TokenCache {
	return &TokenCache{
		tokens: make(map[string]*Token),
	}
}

// Get returns the token stored under key, expired or not.
func (c *TokenCache) Get(key string) *Token {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.tokens[key]
}

// Valid returns the token stored under key when it is not about to expire.
func (c *TokenCache) Valid(key string) (*Token, bool) {
	token := c.Get(key)
	if token == nil || token.IsExpired() {
		return token, false
	}
	return token, true
}

// Set stores token under key, replacing any previous token.
func (c *TokenCache) Set(key string, token *Token) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.tokens[key] = token
}

// Delete forgets the token of key.
func (c *TokenCache) Delete(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.tokens, key)
}

// Clear drops every token.
func (c *TokenCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.tokens = make(map[string]*Token)
}

// Len returns the number of stored tokens.
func (c *TokenCache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.tokens)
}

// GlobalCache is shared by providers created without WithCache, so systems
// with the same token endpoint and client reuse one token per job.
var GlobalCache = NewTokenCache()
