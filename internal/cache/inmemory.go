package cache

import (
	"context"
	"strings"
	"time"

	"github.com/flexprice/retainer/internal/config"
	"github.com/flexprice/retainer/internal/logger"
	goCache "github.com/patrickmn/go-cache"
)

// DefaultExpiration is the default expiration time for cache entries
const DefaultExpiration = 30 * time.Minute

// DefaultCleanupInterval is how often expired items are removed from the cache
const DefaultCleanupInterval = 1 * time.Hour

// InMemoryCache implements the Cache interface using github.com/patrickmn/go-cache
type InMemoryCache struct {
	cache   *goCache.Cache
	enabled bool
}

// NewInMemoryCache creates the process-local cache described by cfg.Cache
func NewInMemoryCache(cfg *config.Configuration, log *logger.Logger) Cache {
	expiration := DefaultExpiration
	cleanup := DefaultCleanupInterval
	if cfg.Cache.DefaultExpirationMinutes > 0 {
		expiration = time.Duration(cfg.Cache.DefaultExpirationMinutes) * time.Minute
	}
	if cfg.Cache.CleanupIntervalMinutes > 0 {
		cleanup = time.Duration(cfg.Cache.CleanupIntervalMinutes) * time.Minute
	}

	log.Debugw("initializing cache",
		"enabled", cfg.Cache.Enabled,
		"default_expiration", expiration,
	)

	return &InMemoryCache{
		cache:   goCache.New(expiration, cleanup),
		enabled: cfg.Cache.Enabled,
	}
}

// Get retrieves a value from the cache
func (c *InMemoryCache) Get(_ context.Context, key string) (interface{}, bool) {
	if !c.enabled {
		return nil, false
	}
	return c.cache.Get(key)
}

// Set adds a value to the cache with the specified expiration
func (c *InMemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) {
	if !c.enabled {
		return
	}
	if expiration == 0 {
		expiration = goCache.DefaultExpiration
	}
	c.cache.Set(key, value, expiration)
}

// Delete removes a key from the cache
func (c *InMemoryCache) Delete(_ context.Context, key string) {
	if !c.enabled {
		return
	}
	c.cache.Delete(key)
}

// DeleteByPrefix removes all keys with the given prefix
func (c *InMemoryCache) DeleteByPrefix(_ context.Context, prefix string) {
	if !c.enabled {
		return
	}
	for k := range c.cache.Items() {
		if strings.HasPrefix(k, prefix) {
			c.cache.Delete(k)
		}
	}
}

// Flush removes all items from the cache
func (c *InMemoryCache) Flush(_ context.Context) {
	if !c.enabled {
		return
	}
	c.cache.Flush()
}
