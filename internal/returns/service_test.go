package returns

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/abasto-pos/abasto-pos/internal/inventory"
	"github.com/abasto-pos/abasto-pos/internal/sales"
	"github.com/abasto-pos/abasto-pos/internal/shared"
)

type memProduct struct {
	name     string
	cost     float64
	deposito int64
	venta    int64
}

type memoryRepo struct {
	mu        sync.Mutex
	products  map[uuid.UUID]*memProduct
	sales     map[uuid.UUID]sales.Sale
	movements []inventory.Movement
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		products: make(map[uuid.UUID]*memProduct),
		sales:    make(map[uuid.UUID]sales.Sale),
	}
}

func (r *memoryRepo) seedProduct(name string, cost float64, deposito, venta int64) uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := uuid.New()
	r.products[id] = &memProduct{name: name, cost: cost, deposito: deposito, venta: venta}
	return id
}

// seedCompletedSale records a completed sale of one product and its
// sale-type ledger row, deducting venta stock.
func (r *memoryRepo) seedCompletedSale(storeID, productID uuid.UUID, qty int64) sales.Sale {
	r.mu.Lock()
	defer r.mu.Unlock()
	saleID := uuid.New()
	p := r.products[productID]
	p.venta -= qty
	sale := sales.Sale{
		ID:      saleID,
		StoreID: storeID,
		Status:  sales.StatusCompleted,
		Items: []sales.SaleItem{{
			ID: uuid.New(), SaleID: saleID, ProductID: productID, ProductName: p.name,
			Quantity: qty, StockType: inventory.StockVenta,
		}},
	}
	r.sales[saleID] = sale
	r.movements = append(r.movements, inventory.Movement{
		ID: uuid.New(), ProductID: productID, StoreID: storeID,
		Type: inventory.MovementSale, StockType: inventory.StockVenta,
		Quantity: qty, QuantityChange: -qty, SaleID: &saleID,
	})
	return sale
}

func (r *memoryRepo) venta(productID uuid.UUID) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.products[productID].venta
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	products := make(map[uuid.UUID]*memProduct, len(r.products))
	for id, p := range r.products {
		cp := *p
		products[id] = &cp
	}
	salesCopy := make(map[uuid.UUID]sales.Sale, len(r.sales))
	for id, s := range r.sales {
		salesCopy[id] = s
	}
	movements := make([]inventory.Movement, len(r.movements))
	copy(movements, r.movements)
	r.mu.Unlock()

	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.mu.Lock()
		r.products, r.sales, r.movements = products, salesCopy, movements
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *memoryRepo) GetSale(ctx context.Context, id uuid.UUID) (sales.Sale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sales[id]; ok {
		return s, nil
	}
	return sales.Sale{}, shared.ErrSaleNotFound
}

func (r *memoryRepo) ReturnedBySale(ctx context.Context, saleID uuid.UUID) (map[uuid.UUID]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.returnedLocked(saleID), nil
}

func (r *memoryRepo) returnedLocked(saleID uuid.UUID) map[uuid.UUID]int64 {
	returned := make(map[uuid.UUID]int64)
	for _, m := range r.movements {
		if m.Type == inventory.MovementReturn && m.SaleID != nil && *m.SaleID == saleID {
			returned[m.ProductID] += m.Quantity
		}
	}
	return returned
}

func (r *memoryRepo) ListReturnedProducts(ctx context.Context, storeID uuid.UUID) ([]ReturnedProduct, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	byProduct := make(map[uuid.UUID]*ReturnedProduct)
	for _, m := range r.movements {
		if m.Type != inventory.MovementReturn || m.StoreID != storeID {
			continue
		}
		rp, ok := byProduct[m.ProductID]
		if !ok {
			rp = &ReturnedProduct{ProductID: m.ProductID, ProductName: r.products[m.ProductID].name}
			byProduct[m.ProductID] = rp
		}
		if m.QuantityChange > 0 {
			rp.CustomerMistakeQty += m.Quantity
		} else {
			rp.DefectiveQty += m.Quantity
		}
	}
	var out []ReturnedProduct
	for id, rp := range byProduct {
		rp.Loss = r.products[id].cost * float64(rp.DefectiveQty)
		out = append(out, *rp)
	}
	return out, nil
}

type memoryTx struct {
	repo *memoryRepo
}

func (tx *memoryTx) GetLevels(ctx context.Context, productID uuid.UUID) (inventory.StockLevels, error) {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	p, ok := tx.repo.products[productID]
	if !ok {
		return inventory.StockLevels{}, shared.ErrProductNotFound
	}
	return inventory.StockLevels{ProductID: productID, Deposito: p.deposito, Venta: p.venta}, nil
}

func (tx *memoryTx) ApplyStockDelta(ctx context.Context, productID uuid.UUID, st inventory.StockType, delta int64) (int64, int64, error) {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	p, ok := tx.repo.products[productID]
	if !ok {
		return 0, 0, shared.ErrProductNotFound
	}
	var before int64
	if st == inventory.StockDeposito {
		before = p.deposito
	} else {
		before = p.venta
	}
	if before+delta < 0 {
		return 0, 0, inventory.ErrStockCondition
	}
	if st == inventory.StockDeposito {
		p.deposito += delta
	} else {
		p.venta += delta
	}
	return before, before + delta, nil
}

func (tx *memoryTx) InsertMovement(ctx context.Context, m inventory.Movement) error {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	tx.repo.movements = append(tx.repo.movements, m)
	return nil
}

func (tx *memoryTx) ReturnedBySale(ctx context.Context, saleID uuid.UUID) (map[uuid.UUID]int64, error) {
	return tx.repo.ReturnedBySale(ctx, saleID)
}

func (tx *memoryTx) GetSaleForUpdate(ctx context.Context, id uuid.UUID) (sales.Sale, error) {
	return tx.repo.GetSale(ctx, id)
}

func (tx *memoryTx) UpdateSaleStatus(ctx context.Context, id uuid.UUID, status sales.PaymentStatus) error {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	sale, ok := tx.repo.sales[id]
	if !ok {
		return shared.ErrSaleNotFound
	}
	sale.Status = status
	sale.UpdatedAt = time.Now().UTC()
	tx.repo.sales[id] = sale
	return nil
}

func TestReturnsSummaryIdempotent(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()
	storeID := uuid.New()
	productID := repo.seedProduct("Yerba 1kg", 60, 0, 20)
	sale := repo.seedCompletedSale(storeID, productID, 5)

	// Three units already returned.
	repo.movements = append(repo.movements, inventory.Movement{
		ID: uuid.New(), ProductID: productID, StoreID: storeID,
		Type: inventory.MovementReturn, StockType: inventory.StockVenta,
		Quantity: 3, QuantityChange: 3, SaleID: &sale.ID,
	})

	first, err := svc.GetReturnsSummary(ctx, sale.ID)
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Equal(t, int64(5), first[0].Quantity)
	require.Equal(t, int64(3), first[0].ReturnedSoFar)
	require.Equal(t, int64(2), first[0].ReturnableRemaining)

	second, err := svc.GetReturnsSummary(ctx, sale.ID)
	require.NoError(t, err)
	require.Equal(t, first, second)

	_, err = svc.GetReturnsSummary(ctx, uuid.New())
	require.ErrorIs(t, err, shared.ErrSaleNotFound)
}

func TestCustomerMistakeReturnRestocks(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()
	storeID := uuid.New()
	productID := repo.seedProduct("Yerba 1kg", 60, 80, 20)
	sale := repo.seedCompletedSale(storeID, productID, 5)
	require.Equal(t, int64(15), repo.venta(productID))

	result, err := svc.ReturnItemsBatch(ctx, BatchReturnInput{
		SaleID: sale.ID,
		Entries: []ReturnEntry{{
			SaleItemID: sale.Items[0].ID, ProductID: productID,
			Quantity: 2, Type: ReturnCustomerMistake,
		}},
		PerformedBy: uuid.New(),
	})
	require.NoError(t, err)
	require.Len(t, result.Results, 1)
	require.True(t, result.Results[0].OK)
	require.NotNil(t, result.Results[0].MovementID)
	require.False(t, result.FullyReturned)
	require.Equal(t, string(sales.StatusCompleted), result.SaleStatus)

	require.Equal(t, int64(17), repo.venta(productID))

	summary, err := svc.GetReturnsSummary(ctx, sale.ID)
	require.NoError(t, err)
	require.Equal(t, int64(3), summary[0].ReturnableRemaining)
}

func TestDefectiveReturnWritesOffAndAutoRefunds(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()
	storeID := uuid.New()
	productID := repo.seedProduct("Yerba 1kg", 60, 80, 20)
	sale := repo.seedCompletedSale(storeID, productID, 5)

	_, err := svc.ReturnItemsBatch(ctx, BatchReturnInput{
		SaleID: sale.ID,
		Entries: []ReturnEntry{{
			SaleItemID: sale.Items[0].ID, ProductID: productID,
			Quantity: 2, Type: ReturnCustomerMistake,
		}},
		PerformedBy: uuid.New(),
	})
	require.NoError(t, err)
	require.Equal(t, int64(17), repo.venta(productID))

	// Writing off the remaining three does not touch stock but closes the
	// returnable quantity and auto-refunds the sale.
	result, err := svc.ReturnItemsBatch(ctx, BatchReturnInput{
		SaleID: sale.ID,
		Entries: []ReturnEntry{{
			SaleItemID: sale.Items[0].ID, ProductID: productID,
			Quantity: 3, Type: ReturnDefective,
		}},
		PerformedBy: uuid.New(),
	})
	require.NoError(t, err)
	require.True(t, result.Results[0].OK)
	require.True(t, result.FullyReturned)
	require.Equal(t, string(sales.StatusRefunded), result.SaleStatus)
	require.Equal(t, int64(17), repo.venta(productID))

	summary, err := svc.GetReturnsSummary(ctx, sale.ID)
	require.NoError(t, err)
	require.Equal(t, int64(0), summary[0].ReturnableRemaining)
}

func TestOverReturnRejectedPerEntry(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()
	storeID := uuid.New()
	productID := repo.seedProduct("Yerba 1kg", 60, 0, 20)
	sale := repo.seedCompletedSale(storeID, productID, 5)

	// Three units already returned; 3 more is too many, 2 is exact.
	repo.movements = append(repo.movements, inventory.Movement{
		ID: uuid.New(), ProductID: productID, StoreID: storeID,
		Type: inventory.MovementReturn, StockType: inventory.StockVenta,
		Quantity: 3, QuantityChange: 3, SaleID: &sale.ID,
	})

	result, err := svc.ReturnItemsBatch(ctx, BatchReturnInput{
		SaleID: sale.ID,
		Entries: []ReturnEntry{
			{SaleItemID: sale.Items[0].ID, ProductID: productID, Quantity: 3, Type: ReturnCustomerMistake},
			{SaleItemID: sale.Items[0].ID, ProductID: productID, Quantity: 2, Type: ReturnCustomerMistake},
		},
		PerformedBy: uuid.New(),
	})
	require.NoError(t, err)
	require.Len(t, result.Results, 2)
	require.False(t, result.Results[0].OK)
	require.Contains(t, result.Results[0].Error, "over-return")
	require.True(t, result.Results[1].OK)
	require.True(t, result.FullyReturned)
}

func TestBatchEntriesFailIndependently(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()
	storeID := uuid.New()
	productID := repo.seedProduct("Yerba 1kg", 60, 0, 20)
	sale := repo.seedCompletedSale(storeID, productID, 5)

	result, err := svc.ReturnItemsBatch(ctx, BatchReturnInput{
		SaleID: sale.ID,
		Entries: []ReturnEntry{
			{SaleItemID: sale.Items[0].ID, ProductID: productID, Quantity: 1, Type: "broken"},
			{SaleItemID: uuid.New(), ProductID: productID, Quantity: 1, Type: ReturnCustomerMistake},
			{SaleItemID: sale.Items[0].ID, ProductID: productID, Quantity: 0, Type: ReturnCustomerMistake},
			{SaleItemID: sale.Items[0].ID, ProductID: productID, Quantity: 1, Type: ReturnCustomerMistake},
		},
		PerformedBy: uuid.New(),
	})
	require.NoError(t, err)
	require.Len(t, result.Results, 4)
	require.False(t, result.Results[0].OK)
	require.False(t, result.Results[1].OK)
	require.False(t, result.Results[2].OK)
	require.True(t, result.Results[3].OK)
	require.Equal(t, int64(16), repo.venta(productID))
}

func TestReturnAgainstPendingSaleRejected(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()
	storeID := uuid.New()
	productID := repo.seedProduct("Yerba 1kg", 60, 0, 20)
	sale := repo.seedCompletedSale(storeID, productID, 5)

	repo.mu.Lock()
	pending := repo.sales[sale.ID]
	pending.Status = sales.StatusPending
	repo.sales[sale.ID] = pending
	repo.mu.Unlock()

	_, err := svc.ReturnItemsBatch(ctx, BatchReturnInput{
		SaleID: sale.ID,
		Entries: []ReturnEntry{
			{SaleItemID: sale.Items[0].ID, ProductID: productID, Quantity: 1, Type: ReturnCustomerMistake},
		},
		PerformedBy: uuid.New(),
	})
	var transition *shared.InvalidTransitionError
	require.ErrorAs(t, err, &transition)
	require.Equal(t, string(sales.StatusPending), transition.From)
}

func TestGetReturnedProductsAggregates(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()
	storeID := uuid.New()
	productID := repo.seedProduct("Yerba 1kg", 10, 0, 20)
	sale := repo.seedCompletedSale(storeID, productID, 5)

	_, err := svc.ReturnItemsBatch(ctx, BatchReturnInput{
		SaleID: sale.ID,
		Entries: []ReturnEntry{
			{SaleItemID: sale.Items[0].ID, ProductID: productID, Quantity: 2, Type: ReturnCustomerMistake},
			{SaleItemID: sale.Items[0].ID, ProductID: productID, Quantity: 3, Type: ReturnDefective},
		},
		PerformedBy: uuid.New(),
	})
	require.NoError(t, err)

	products, err := svc.GetReturnedProducts(ctx, storeID)
	require.NoError(t, err)
	require.Len(t, products, 1)
	require.Equal(t, int64(2), products[0].CustomerMistakeQty)
	require.Equal(t, int64(3), products[0].DefectiveQty)
	require.InDelta(t, 30.0, products[0].Loss, 0.001)
}
