package masterdata

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/abasto-pos/abasto-pos/internal/shared"
)

type memoryRepo struct {
	mu            sync.Mutex
	products      map[uuid.UUID]Product
	stores        map[uuid.UUID]Store
	getStoreCalls int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{products: make(map[uuid.UUID]Product), stores: make(map[uuid.UUID]Store)}
}

func (r *memoryRepo) CreateProduct(ctx context.Context, p Product) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = uuid.New()
	p.IsActive = true
	r.products[p.ID] = p
	return p, nil
}

func (r *memoryRepo) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.products[id]; ok {
		return p, nil
	}
	return Product{}, shared.ErrProductNotFound
}

func (r *memoryRepo) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Product
	for _, p := range r.products {
		if p.StoreID != filter.StoreID {
			continue
		}
		if filter.ActiveOnly && !p.IsActive {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *memoryRepo) UpdateProduct(ctx context.Context, id uuid.UUID, input UpdateProductInput) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return Product{}, shared.ErrProductNotFound
	}
	p.Name, p.SKU, p.Description = input.Name, input.SKU, input.Description
	p.Price, p.Cost = input.Price, input.Cost
	p.MinStockDeposito, p.MinStockVenta = input.MinStockDeposito, input.MinStockVenta
	p.IsActive = input.IsActive
	r.products[id] = p
	return p, nil
}

func (r *memoryRepo) DeactivateProduct(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return shared.ErrProductNotFound
	}
	p.IsActive = false
	r.products[id] = p
	return nil
}

func (r *memoryRepo) CreateStore(ctx context.Context, s Store) (Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.ID = uuid.New()
	s.IsActive = true
	r.stores[s.ID] = s
	return s, nil
}

func (r *memoryRepo) GetStore(ctx context.Context, id uuid.UUID) (Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getStoreCalls++
	if s, ok := r.stores[id]; ok {
		return s, nil
	}
	return Store{}, shared.ErrStoreNotFound
}

func (r *memoryRepo) ListStores(ctx context.Context) ([]Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Store
	for _, s := range r.stores {
		out = append(out, s)
	}
	return out, nil
}

func (r *memoryRepo) UpdateStore(ctx context.Context, id uuid.UUID, input StoreInput) (Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stores[id]
	if !ok {
		return Store{}, shared.ErrStoreNotFound
	}
	s.Name, s.Address, s.TaxRate = input.Name, input.Address, input.TaxRate
	r.stores[id] = s
	return s, nil
}

func TestCreateProductValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()
	store, err := repo.CreateStore(ctx, Store{Name: "Centro", TaxRate: 21})
	require.NoError(t, err)

	valid := CreateProductInput{
		StoreID: store.ID, Name: "Yerba 1kg", SKU: "YER-001",
		Price: 4500, Cost: 3000, MinStockDeposito: 5, MinStockVenta: 3,
	}

	cases := []struct {
		name   string
		mutate func(*CreateProductInput)
	}{
		{"missing name", func(in *CreateProductInput) { in.Name = "" }},
		{"missing sku", func(in *CreateProductInput) { in.SKU = "" }},
		{"price not above cost", func(in *CreateProductInput) { in.Price = 3000 }},
		{"negative cost", func(in *CreateProductInput) { in.Cost = -1 }},
		{"zero min deposito", func(in *CreateProductInput) { in.MinStockDeposito = 0 }},
		{"zero min venta", func(in *CreateProductInput) { in.MinStockVenta = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := valid
			tc.mutate(&in)
			_, err := svc.CreateProduct(ctx, in, uuid.New())
			require.ErrorIs(t, err, shared.ErrValidation)
		})
	}

	p, err := svc.CreateProduct(ctx, valid, uuid.New())
	require.NoError(t, err)
	require.True(t, p.IsActive)
	require.Equal(t, int64(0), p.LegacyStock)

	_, err = svc.CreateProduct(ctx, CreateProductInput{
		StoreID: uuid.New(), Name: "X", SKU: "X-1",
		Price: 2, Cost: 1, MinStockDeposito: 1, MinStockVenta: 1,
	}, uuid.New())
	require.ErrorIs(t, err, shared.ErrStoreNotFound)
}

func TestStoreTaxRateBounds(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := context.Background()

	_, err := svc.CreateStore(ctx, StoreInput{Name: "Centro", TaxRate: 120}, uuid.New())
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.CreateStore(ctx, StoreInput{Name: "", TaxRate: 21}, uuid.New())
	require.ErrorIs(t, err, shared.ErrValidation)

	store, err := svc.CreateStore(ctx, StoreInput{Name: "Centro", TaxRate: 21}, uuid.New())
	require.NoError(t, err)

	rate, err := svc.TaxRate(ctx, store.ID)
	require.NoError(t, err)
	require.InDelta(t, 21.0, rate, 0.0001)
}

func TestDeactivateProductKeepsHistory(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()
	store, err := repo.CreateStore(ctx, Store{Name: "Centro"})
	require.NoError(t, err)

	p, err := svc.CreateProduct(ctx, CreateProductInput{
		StoreID: store.ID, Name: "Fideos", SKU: "FID-01",
		Price: 900, Cost: 500, MinStockDeposito: 2, MinStockVenta: 2,
	}, uuid.New())
	require.NoError(t, err)

	require.NoError(t, svc.DeactivateProduct(ctx, p.ID, uuid.New()))

	got, err := svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	require.False(t, got.IsActive)

	listed, err := svc.ListProducts(ctx, ProductFilter{StoreID: store.ID, ActiveOnly: true})
	require.NoError(t, err)
	require.Empty(t, listed)
}
