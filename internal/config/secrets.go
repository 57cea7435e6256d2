package config

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"
)

// SecretProvider resolves a named secret from wherever secrets live.
type SecretProvider func(ctx context.Context, name string) (string, error)

// EnvProvider resolves secrets from environment variables.
func EnvProvider(_ context.Context, name string) (string, error) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return "", fmt.Errorf("secret %q not set", name)
	}
	return v, nil
}

type cachedSecret struct {
	value     string
	expiresAt time.Time
}

// SecretCache caches resolved secrets with a TTL so repeated lookups
// don't hit the provider. Constructed once at process start and passed
// by handle; there is no package-level instance.
type SecretCache struct {
	provider SecretProvider
	ttl      time.Duration
	now      func() time.Time

	mu      sync.RWMutex
	entries map[string]cachedSecret
}

func NewSecretCache(provider SecretProvider, ttl time.Duration) *SecretCache {
	return &SecretCache{
		provider: provider,
		ttl:      ttl,
		now:      time.Now,
		entries:  make(map[string]cachedSecret),
	}
}

// Get returns the cached value for name, consulting the provider when
// the entry is missing or its TTL has lapsed.
func (c *SecretCache) Get(ctx context.Context, name string) (string, error) {
	const op = "config.SecretCache.Get"

	c.mu.RLock()
	entry, ok := c.entries[name]
	c.mu.RUnlock()

	if ok && c.now().Before(entry.expiresAt) {
		return entry.value, nil
	}

	value, err := c.provider(ctx, name)
	if err != nil {
		return "", fmt.Errorf("%s: failed to resolve secret: %w", op, err)
	}

	c.mu.Lock()
	c.entries[name] = cachedSecret{
		value:     value,
		expiresAt: c.now().Add(c.ttl),
	}
	c.mu.Unlock()

	return value, nil
}
