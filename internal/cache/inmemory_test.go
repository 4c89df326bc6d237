package cache

import (
	"context"
	"testing"

	"github.com/flexprice/retainer/internal/config"
	"github.com/flexprice/retainer/internal/logger"
	"github.com/stretchr/testify/assert"
)

func TestInMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCache(config.GetDefaultConfig(), logger.NewNopLogger())

	key := GenerateKey(PrefixInvoice, "inv_1")
	assert.Equal(t, "invoice:v1::inv_1", key)

	c.Set(ctx, key, "paid", 0)
	c.Set(ctx, GenerateKey(PrefixInvoice, "inv_2"), "refunded", 0)
	c.Set(ctx, GenerateKey(PrefixClient, "client_1"), "acme", 0)

	v, ok := c.Get(ctx, key)
	assert.True(t, ok)
	assert.Equal(t, "paid", v)

	c.DeleteByPrefix(ctx, PrefixInvoice)
	_, ok = c.Get(ctx, key)
	assert.False(t, ok)
	_, ok = c.Get(ctx, GenerateKey(PrefixClient, "client_1"))
	assert.True(t, ok)

	c.Flush(ctx)
	_, ok = c.Get(ctx, GenerateKey(PrefixClient, "client_1"))
	assert.False(t, ok)
}

func TestDisabledCacheStoresNothing(t *testing.T) {
	ctx := context.Background()
	cfg := config.GetDefaultConfig()
	cfg.Cache.Enabled = false
	c := NewInMemoryCache(cfg, logger.NewNopLogger())

	c.Set(ctx, "k", "v", 0)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}
