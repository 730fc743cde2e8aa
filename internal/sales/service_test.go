package sales

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/abasto-pos/abasto-pos/internal/inventory"
	"github.com/abasto-pos/abasto-pos/internal/shared"
)

type memProduct struct {
	info     ProductInfo
	deposito int64
}

type memoryRepo struct {
	mu        sync.Mutex
	products  map[uuid.UUID]*memProduct
	sales     map[uuid.UUID]Sale
	movements []inventory.Movement
	counters  map[string]int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		products: make(map[uuid.UUID]*memProduct),
		sales:    make(map[uuid.UUID]Sale),
		counters: make(map[string]int64),
	}
}

func (r *memoryRepo) seedProduct(storeID uuid.UUID, name string, price float64, venta int64) uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := uuid.New()
	r.products[id] = &memProduct{info: ProductInfo{
		ID: id, StoreID: storeID, Name: name, Price: price, StockVenta: venta, IsActive: true,
	}}
	return id
}

func (r *memoryRepo) venta(productID uuid.UUID) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.products[productID].info.StockVenta
}

// WithTx snapshots the state up front and restores it when the callback
// fails, mimicking a real rollback.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	products := make(map[uuid.UUID]*memProduct, len(r.products))
	for id, p := range r.products {
		cp := *p
		products[id] = &cp
	}
	sales := make(map[uuid.UUID]Sale, len(r.sales))
	for id, s := range r.sales {
		sales[id] = s
	}
	movements := make([]inventory.Movement, len(r.movements))
	copy(movements, r.movements)
	counters := make(map[string]int64, len(r.counters))
	for k, v := range r.counters {
		counters[k] = v
	}
	r.mu.Unlock()

	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.mu.Lock()
		r.products, r.sales, r.movements, r.counters = products, sales, movements, counters
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *memoryRepo) GetSale(ctx context.Context, id uuid.UUID) (Sale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sales[id]; ok {
		return s, nil
	}
	return Sale{}, shared.ErrSaleNotFound
}

func (r *memoryRepo) ListSales(ctx context.Context, filter SaleFilter) ([]Sale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Sale
	for _, s := range r.sales {
		if s.StoreID != filter.StoreID {
			continue
		}
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		out = append(out, s)
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
	return inventory.StockLevels{ProductID: productID, Deposito: p.deposito, Venta: p.info.StockVenta}, nil
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
		before = p.info.StockVenta
	}
	if before+delta < 0 {
		return 0, 0, inventory.ErrStockCondition
	}
	if st == inventory.StockDeposito {
		p.deposito += delta
	} else {
		p.info.StockVenta += delta
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
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	returned := make(map[uuid.UUID]int64)
	for _, m := range tx.repo.movements {
		if m.Type == inventory.MovementReturn && m.SaleID != nil && *m.SaleID == saleID {
			returned[m.ProductID] += m.Quantity
		}
	}
	return returned, nil
}

func (tx *memoryTx) GetProductForSale(ctx context.Context, productID uuid.UUID) (ProductInfo, error) {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	if p, ok := tx.repo.products[productID]; ok {
		return p.info, nil
	}
	return ProductInfo{}, shared.ErrProductNotFound
}

func (tx *memoryTx) InsertSale(ctx context.Context, sale Sale) error {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	tx.repo.sales[sale.ID] = sale
	return nil
}

func (tx *memoryTx) InsertSaleItems(ctx context.Context, items []SaleItem) error {
	if len(items) == 0 {
		return nil
	}
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	sale := tx.repo.sales[items[0].SaleID]
	sale.Items = items
	tx.repo.sales[sale.ID] = sale
	return nil
}

func (tx *memoryTx) GetSaleForUpdate(ctx context.Context, id uuid.UUID) (Sale, error) {
	return tx.repo.GetSale(ctx, id)
}

func (tx *memoryTx) UpdateSaleStatus(ctx context.Context, id uuid.UUID, status PaymentStatus) error {
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

func (tx *memoryTx) NextReceiptNumber(ctx context.Context, storeID uuid.UUID, year int) (int64, error) {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	key := fmt.Sprintf("%s:%d", storeID, year)
	tx.repo.counters[key]++
	return tx.repo.counters[key], nil
}

type fixedTax struct {
	rate float64
}

func (f fixedTax) TaxRate(ctx context.Context, storeID uuid.UUID) (float64, error) {
	return f.rate, nil
}

func TestProcessSaleCompletesAndDeducts(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, fixedTax{rate: 21}, nil, nil, nil)
	ctx := context.Background()
	storeID := uuid.New()
	yerba := repo.seedProduct(storeID, "Yerba 1kg", 100.50, 10)
	azucar := repo.seedProduct(storeID, "Azucar 1kg", 200, 5)

	sale, err := svc.ProcessSale(ctx, ProcessSaleInput{
		StoreID: storeID,
		Items: []SaleLineInput{
			{ProductID: yerba, Quantity: 2},
			{ProductID: azucar, Quantity: 1},
		},
		PaymentMethod: PaymentCash,
		SoldBy:        uuid.New(),
	})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, sale.Status)
	require.InDelta(t, 401.0, sale.Subtotal, 0.001)
	require.InDelta(t, 84.21, sale.TaxAmount, 0.001)
	require.InDelta(t, 485.21, sale.Total, 0.001)
	require.InDelta(t, 485.21, sale.CashAmount, 0.001)
	require.Zero(t, sale.CardAmount)
	require.Equal(t, fmt.Sprintf("REC-%d-000001", time.Now().UTC().Year()), sale.ReceiptNumber)
	require.Len(t, sale.Items, 2)

	require.Equal(t, int64(8), repo.venta(yerba))
	require.Equal(t, int64(4), repo.venta(azucar))
	require.Len(t, repo.movements, 2)
	for _, m := range repo.movements {
		require.Equal(t, inventory.MovementSale, m.Type)
		require.Equal(t, inventory.StockVenta, m.StockType)
		require.NotNil(t, m.SaleID)
		require.Equal(t, sale.ID, *m.SaleID)
	}

	second, err := svc.ProcessSale(ctx, ProcessSaleInput{
		StoreID:       storeID,
		Items:         []SaleLineInput{{ProductID: yerba, Quantity: 1}},
		PaymentMethod: PaymentCard,
		SoldBy:        uuid.New(),
	})
	require.NoError(t, err)
	require.Equal(t, fmt.Sprintf("REC-%d-000002", time.Now().UTC().Year()), second.ReceiptNumber)
	require.InDelta(t, second.Total, second.CardAmount, 0.001)
}

func TestProcessSaleInsufficientStockAbortsWholeSale(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, fixedTax{rate: 21}, nil, nil, nil)
	storeID := uuid.New()
	yerba := repo.seedProduct(storeID, "Yerba 1kg", 100, 10)
	azucar := repo.seedProduct(storeID, "Azucar 1kg", 200, 1)

	_, err := svc.ProcessSale(context.Background(), ProcessSaleInput{
		StoreID: storeID,
		Items: []SaleLineInput{
			{ProductID: yerba, Quantity: 2},
			{ProductID: azucar, Quantity: 3},
		},
		PaymentMethod: PaymentCash,
		SoldBy:        uuid.New(),
	})
	var insufficient *shared.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.Equal(t, int64(1), insufficient.Available)
	require.Equal(t, int64(3), insufficient.Required)

	// Nothing from the aborted sale survives.
	require.Equal(t, int64(10), repo.venta(yerba))
	require.Equal(t, int64(1), repo.venta(azucar))
	require.Empty(t, repo.sales)
	require.Empty(t, repo.movements)
}

func TestProcessSaleValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, fixedTax{rate: 21}, nil, nil, nil)
	ctx := context.Background()
	storeID := uuid.New()
	yerba := repo.seedProduct(storeID, "Yerba 1kg", 100, 10)

	_, err := svc.ProcessSale(ctx, ProcessSaleInput{StoreID: storeID, PaymentMethod: PaymentCash})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.ProcessSale(ctx, ProcessSaleInput{
		StoreID: storeID, PaymentMethod: PaymentCash,
		Items: []SaleLineInput{{ProductID: yerba, Quantity: 0}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.ProcessSale(ctx, ProcessSaleInput{
		StoreID: storeID, PaymentMethod: PaymentCash,
		Items: []SaleLineInput{{ProductID: yerba, Quantity: 1}, {ProductID: yerba, Quantity: 2}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.ProcessSale(ctx, ProcessSaleInput{
		StoreID: storeID, PaymentMethod: "credit",
		Items: []SaleLineInput{{ProductID: yerba, Quantity: 1}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	// Product from another store.
	other := repo.seedProduct(uuid.New(), "Ajeno", 50, 5)
	_, err = svc.ProcessSale(ctx, ProcessSaleInput{
		StoreID: storeID, PaymentMethod: PaymentCash,
		Items: []SaleLineInput{{ProductID: other, Quantity: 1}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	// Inactive product.
	repo.mu.Lock()
	repo.products[yerba].info.IsActive = false
	repo.mu.Unlock()
	_, err = svc.ProcessSale(ctx, ProcessSaleInput{
		StoreID: storeID, PaymentMethod: PaymentCash,
		Items: []SaleLineInput{{ProductID: yerba, Quantity: 1}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestProcessSaleLineDiscount(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, fixedTax{rate: 0}, nil, nil, nil)
	ctx := context.Background()
	storeID := uuid.New()
	yerba := repo.seedProduct(storeID, "Yerba 1kg", 100, 10)

	sale, err := svc.ProcessSale(ctx, ProcessSaleInput{
		StoreID:       storeID,
		Items:         []SaleLineInput{{ProductID: yerba, Quantity: 3, Discount: 50}},
		PaymentMethod: PaymentCash,
		SoldBy:        uuid.New(),
	})
	require.NoError(t, err)
	require.InDelta(t, 300.0, sale.Items[0].Subtotal, 0.001)
	require.InDelta(t, 50.0, sale.Items[0].Discount, 0.001)
	require.InDelta(t, 250.0, sale.Items[0].Total, 0.001)
	require.InDelta(t, 250.0, sale.Total, 0.001)

	_, err = svc.ProcessSale(ctx, ProcessSaleInput{
		StoreID:       storeID,
		Items:         []SaleLineInput{{ProductID: yerba, Quantity: 1, Discount: 150}},
		PaymentMethod: PaymentCash,
		SoldBy:        uuid.New(),
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestProcessSaleSaleLevelDiscount(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, fixedTax{rate: 10}, nil, nil, nil)
	ctx := context.Background()
	storeID := uuid.New()
	yerba := repo.seedProduct(storeID, "Yerba 1kg", 100, 10)

	// Discount comes off after tax: 300 + 30 - 33 = 297.
	sale, err := svc.ProcessSale(ctx, ProcessSaleInput{
		StoreID:       storeID,
		Items:         []SaleLineInput{{ProductID: yerba, Quantity: 3}},
		Discount:      33,
		PaymentMethod: PaymentCash,
		SoldBy:        uuid.New(),
	})
	require.NoError(t, err)
	require.InDelta(t, 300.0, sale.Subtotal, 0.001)
	require.InDelta(t, 30.0, sale.TaxAmount, 0.001)
	require.InDelta(t, 33.0, sale.Discount, 0.001)
	require.InDelta(t, 297.0, sale.Total, 0.001)
	require.InDelta(t, 297.0, sale.CashAmount, 0.001)

	_, err = svc.ProcessSale(ctx, ProcessSaleInput{
		StoreID:       storeID,
		Items:         []SaleLineInput{{ProductID: yerba, Quantity: 1}},
		Discount:      -1,
		PaymentMethod: PaymentCash,
		SoldBy:        uuid.New(),
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	// A discount larger than subtotal plus tax is rejected and nothing lands.
	before := len(repo.sales)
	_, err = svc.ProcessSale(ctx, ProcessSaleInput{
		StoreID:       storeID,
		Items:         []SaleLineInput{{ProductID: yerba, Quantity: 1}},
		Discount:      400,
		PaymentMethod: PaymentCash,
		SoldBy:        uuid.New(),
	})
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Len(t, repo.sales, before)
}

func TestReceiptNumbersRunPerStore(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, fixedTax{rate: 0}, nil, nil, nil)
	ctx := context.Background()
	storeA, storeB := uuid.New(), uuid.New()
	yerba := repo.seedProduct(storeA, "Yerba 1kg", 100, 10)
	azucar := repo.seedProduct(storeB, "Azucar 1kg", 50, 10)

	first, err := svc.ProcessSale(ctx, ProcessSaleInput{
		StoreID:       storeA,
		Items:         []SaleLineInput{{ProductID: yerba, Quantity: 1}},
		PaymentMethod: PaymentCash,
		SoldBy:        uuid.New(),
	})
	require.NoError(t, err)
	second, err := svc.ProcessSale(ctx, ProcessSaleInput{
		StoreID:       storeB,
		Items:         []SaleLineInput{{ProductID: azucar, Quantity: 1}},
		PaymentMethod: PaymentCash,
		SoldBy:        uuid.New(),
	})
	require.NoError(t, err)

	// Each store runs its own sequence, so both first sales share the
	// same number.
	year := time.Now().UTC().Year()
	require.Equal(t, fmt.Sprintf("REC-%d-000001", year), first.ReceiptNumber)
	require.Equal(t, first.ReceiptNumber, second.ReceiptNumber)
}

func TestMixedPaymentMustCoverTotal(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, fixedTax{rate: 0}, nil, nil, nil)
	ctx := context.Background()
	storeID := uuid.New()
	yerba := repo.seedProduct(storeID, "Yerba 1kg", 100, 10)

	base := ProcessSaleInput{
		StoreID:       storeID,
		Items:         []SaleLineInput{{ProductID: yerba, Quantity: 2}},
		PaymentMethod: PaymentMixed,
		SoldBy:        uuid.New(),
	}

	in := base
	in.CashAmount, in.CardAmount = 100, 50
	_, err := svc.ProcessSale(ctx, in)
	require.ErrorIs(t, err, shared.ErrValidation)

	in = base
	in.CashAmount, in.CardAmount = 200, 0
	_, err = svc.ProcessSale(ctx, in)
	require.ErrorIs(t, err, shared.ErrValidation)

	in = base
	in.CashAmount, in.CardAmount = 120, 80
	sale, err := svc.ProcessSale(ctx, in)
	require.NoError(t, err)
	require.InDelta(t, 120.0, sale.CashAmount, 0.001)
	require.InDelta(t, 80.0, sale.CardAmount, 0.001)
}

func TestPendingSaleLifecycle(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, fixedTax{rate: 21}, nil, nil, nil)
	ctx := context.Background()
	storeID := uuid.New()
	yerba := repo.seedProduct(storeID, "Yerba 1kg", 100, 10)

	sale, err := svc.ProcessSale(ctx, ProcessSaleInput{
		StoreID:                    storeID,
		Items:                      []SaleLineInput{{ProductID: yerba, Quantity: 4}},
		PaymentMethod:              PaymentCard,
		RequirePaymentConfirmation: true,
		SoldBy:                     uuid.New(),
	})
	require.NoError(t, err)
	require.Equal(t, StatusPending, sale.Status)
	require.NotEmpty(t, sale.ReceiptNumber)

	// Pending sales hold no stock.
	require.Equal(t, int64(10), repo.venta(yerba))
	require.Empty(t, repo.movements)

	confirmed, err := svc.ConfirmPendingSale(ctx, sale.ID, uuid.New())
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, confirmed.Status)
	require.Equal(t, int64(6), repo.venta(yerba))
	require.Len(t, repo.movements, 1)

	_, err = svc.ConfirmPendingSale(ctx, sale.ID, uuid.New())
	var transition *shared.InvalidTransitionError
	require.ErrorAs(t, err, &transition)
	require.Equal(t, string(StatusCompleted), transition.From)
}

func TestPendingSaleRejectedWhenStockShort(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, fixedTax{rate: 21}, nil, nil, nil)
	ctx := context.Background()
	storeID := uuid.New()
	yerba := repo.seedProduct(storeID, "Yerba 1kg", 100, 5)

	// Creation checks availability even though a pending sale holds
	// nothing, so an unfillable order is refused up front.
	_, err := svc.ProcessSale(ctx, ProcessSaleInput{
		StoreID:                    storeID,
		Items:                      []SaleLineInput{{ProductID: yerba, Quantity: 100}},
		PaymentMethod:              PaymentCard,
		RequirePaymentConfirmation: true,
		SoldBy:                     uuid.New(),
	})
	var insufficient *shared.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)
	require.Equal(t, string(inventory.StockVenta), insufficient.StockType)
	require.Equal(t, int64(5), insufficient.Available)
	require.Equal(t, int64(100), insufficient.Required)
	require.Empty(t, repo.sales)
	require.Equal(t, int64(5), repo.venta(yerba))
}

func TestConfirmFailsWhenStockDropped(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, fixedTax{rate: 21}, nil, nil, nil)
	ctx := context.Background()
	storeID := uuid.New()
	yerba := repo.seedProduct(storeID, "Yerba 1kg", 100, 5)

	sale, err := svc.ProcessSale(ctx, ProcessSaleInput{
		StoreID:                    storeID,
		Items:                      []SaleLineInput{{ProductID: yerba, Quantity: 5}},
		PaymentMethod:              PaymentCash,
		RequirePaymentConfirmation: true,
		SoldBy:                     uuid.New(),
	})
	require.NoError(t, err)

	// Stock drains between creation and confirmation.
	repo.mu.Lock()
	repo.products[yerba].info.StockVenta = 3
	repo.mu.Unlock()

	_, err = svc.ConfirmPendingSale(ctx, sale.ID, uuid.New())
	var insufficient *shared.InsufficientStockError
	require.ErrorAs(t, err, &insufficient)

	got, err := repo.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, got.Status)
	require.Equal(t, int64(3), repo.venta(yerba))
}

func TestCancelPendingSale(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, fixedTax{rate: 21}, nil, nil, nil)
	ctx := context.Background()
	storeID := uuid.New()
	yerba := repo.seedProduct(storeID, "Yerba 1kg", 100, 10)

	sale, err := svc.ProcessSale(ctx, ProcessSaleInput{
		StoreID:                    storeID,
		Items:                      []SaleLineInput{{ProductID: yerba, Quantity: 2}},
		PaymentMethod:              PaymentCash,
		RequirePaymentConfirmation: true,
		SoldBy:                     uuid.New(),
	})
	require.NoError(t, err)

	cancelled, err := svc.CancelPendingSale(ctx, sale.ID, uuid.New())
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)
	require.Equal(t, int64(10), repo.venta(yerba))

	_, err = svc.ConfirmPendingSale(ctx, sale.ID, uuid.New())
	var transition *shared.InvalidTransitionError
	require.ErrorAs(t, err, &transition)
}

func TestRefundRestoresUnreturnedUnits(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, fixedTax{rate: 21}, nil, nil, nil)
	ctx := context.Background()
	storeID := uuid.New()
	yerba := repo.seedProduct(storeID, "Yerba 1kg", 100, 10)

	sale, err := svc.ProcessSale(ctx, ProcessSaleInput{
		StoreID:       storeID,
		Items:         []SaleLineInput{{ProductID: yerba, Quantity: 5}},
		PaymentMethod: PaymentCash,
		SoldBy:        uuid.New(),
	})
	require.NoError(t, err)
	require.Equal(t, int64(5), repo.venta(yerba))

	// Two units already came back through an item return.
	repo.mu.Lock()
	repo.movements = append(repo.movements, inventory.Movement{
		ID: uuid.New(), ProductID: yerba, StoreID: storeID,
		Type: inventory.MovementReturn, StockType: inventory.StockVenta,
		Quantity: 2, QuantityChange: 2, SaleID: &sale.ID,
	})
	repo.products[yerba].info.StockVenta += 2
	repo.mu.Unlock()

	refunded, err := svc.RefundSale(ctx, sale.ID, uuid.New(), "customer changed mind")
	require.NoError(t, err)
	require.Equal(t, StatusRefunded, refunded.Status)
	// 5 sold, 2 already returned, refund restores the remaining 3.
	require.Equal(t, int64(10), repo.venta(yerba))

	_, err = svc.RefundSale(ctx, sale.ID, uuid.New(), "again")
	var transition *shared.InvalidTransitionError
	require.ErrorAs(t, err, &transition)
}

func TestRefundPendingSaleRejected(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, fixedTax{rate: 21}, nil, nil, nil)
	ctx := context.Background()
	storeID := uuid.New()
	yerba := repo.seedProduct(storeID, "Yerba 1kg", 100, 10)

	sale, err := svc.ProcessSale(ctx, ProcessSaleInput{
		StoreID:                    storeID,
		Items:                      []SaleLineInput{{ProductID: yerba, Quantity: 1}},
		PaymentMethod:              PaymentCash,
		RequirePaymentConfirmation: true,
		SoldBy:                     uuid.New(),
	})
	require.NoError(t, err)

	_, err = svc.RefundSale(ctx, sale.ID, uuid.New(), "")
	var transition *shared.InvalidTransitionError
	require.ErrorAs(t, err, &transition)
	require.Equal(t, string(StatusPending), transition.From)
}
