package masterdata

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const taxRateKeyPrefix = "masterdata:taxrate:"

// TaxRateCache serves store tax rates from Redis, collapsing concurrent
// misses for the same store into a single database load. A nil client
// degrades to direct loads.
type TaxRateCache struct {
	client *redis.Client
	repo   Repository
	ttl    time.Duration
	group  singleflight.Group
}

// NewTaxRateCache instantiates the cache helper.
func NewTaxRateCache(client *redis.Client, repo Repository, ttl time.Duration) *TaxRateCache {
	return &TaxRateCache{client: client, repo: repo, ttl: ttl}
}

// TaxRate returns the tax rate of one store.
func (c *TaxRateCache) TaxRate(ctx context.Context, storeID uuid.UUID) (float64, error) {
	key := taxRateKeyPrefix + storeID.String()
	if c.client != nil {
		if rate, err := c.client.Get(ctx, key).Float64(); err == nil {
			return rate, nil
		} else if err != redis.Nil {
			return 0, err
		}
	}

	ch := c.group.DoChan(key, func() (any, error) {
		store, err := c.repo.GetStore(ctx, storeID)
		if err != nil {
			return 0.0, err
		}
		if c.client != nil {
			if err := c.client.Set(ctx, key, strconv.FormatFloat(store.TaxRate, 'f', -1, 64), c.ttl).Err(); err != nil {
				return 0.0, err
			}
		}
		return store.TaxRate, nil
	})
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return 0, res.Err
		}
		return res.Val.(float64), nil
	}
}

// Invalidate drops the cached rate, called after a store update.
func (c *TaxRateCache) Invalidate(ctx context.Context, storeID uuid.UUID) error {
	if c.client == nil {
		return nil
	}
	return c.client.Del(ctx, taxRateKeyPrefix+storeID.String()).Err()
}
