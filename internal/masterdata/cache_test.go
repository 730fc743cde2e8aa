package masterdata

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/abasto-pos/abasto-pos/internal/shared"
)

func newTestCache(t *testing.T, repo Repository) *TaxRateCache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewTaxRateCache(client, repo, time.Minute)
}

func TestTaxRateCaches(t *testing.T) {
	repo := newMemoryRepo()
	cache := newTestCache(t, repo)
	ctx := context.Background()

	store, err := repo.CreateStore(ctx, Store{Name: "Centro", TaxRate: 21})
	require.NoError(t, err)
	baseline := repo.getStoreCalls

	rate, err := cache.TaxRate(ctx, store.ID)
	require.NoError(t, err)
	require.InDelta(t, 21.0, rate, 0.0001)
	require.Equal(t, baseline+1, repo.getStoreCalls)

	// Second read is served from Redis.
	rate, err = cache.TaxRate(ctx, store.ID)
	require.NoError(t, err)
	require.InDelta(t, 21.0, rate, 0.0001)
	require.Equal(t, baseline+1, repo.getStoreCalls)
}

func TestTaxRateInvalidation(t *testing.T) {
	repo := newMemoryRepo()
	cache := newTestCache(t, repo)
	svc := NewService(repo, cache, nil)
	ctx := context.Background()

	store, err := repo.CreateStore(ctx, Store{Name: "Centro", TaxRate: 21})
	require.NoError(t, err)

	rate, err := svc.TaxRate(ctx, store.ID)
	require.NoError(t, err)
	require.InDelta(t, 21.0, rate, 0.0001)

	_, err = svc.UpdateStore(ctx, store.ID, StoreInput{Name: "Centro", TaxRate: 10.5}, uuid.New())
	require.NoError(t, err)

	rate, err = svc.TaxRate(ctx, store.ID)
	require.NoError(t, err)
	require.InDelta(t, 10.5, rate, 0.0001)
}

func TestTaxRateUnknownStore(t *testing.T) {
	cache := newTestCache(t, newMemoryRepo())
	_, err := cache.TaxRate(context.Background(), uuid.New())
	require.ErrorIs(t, err, shared.ErrStoreNotFound)
}
