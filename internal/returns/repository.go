package returns

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abasto-pos/abasto-pos/internal/inventory"
	"github.com/abasto-pos/abasto-pos/internal/platform/db"
	"github.com/abasto-pos/abasto-pos/internal/sales"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetSale(ctx context.Context, id uuid.UUID) (sales.Sale, error)
	ReturnedBySale(ctx context.Context, saleID uuid.UUID) (map[uuid.UUID]int64, error)
	ListReturnedProducts(ctx context.Context, storeID uuid.UUID) ([]ReturnedProduct, error)
}

// TxRepository gives a return entry the sale row, the stock ledger and the
// status update in one transaction. Locking the sale row serializes
// concurrent batches against the same sale.
type TxRepository interface {
	inventory.TxRepository

	GetSaleForUpdate(ctx context.Context, id uuid.UUID) (sales.Sale, error)
	UpdateSaleStatus(ctx context.Context, id uuid.UUID, status sales.PaymentStatus) error
}

// Repository persists return reconciliation in PostgreSQL, reading sales
// through the sales repository's row layout.
type Repository struct {
	pool      *pgxpool.Pool
	salesRepo *sales.Repository
	invRepo   *inventory.Repository
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{
		pool:      pool,
		salesRepo: sales.NewRepository(pool),
		invRepo:   inventory.NewRepository(pool),
	}
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{
			TxRepository: inventory.NewTxRepository(tx),
			SaleTx:       sales.NewSaleTx(tx),
		})
	})
}

// GetSale loads a sale with items, without locking.
func (r *Repository) GetSale(ctx context.Context, id uuid.UUID) (sales.Sale, error) {
	return r.salesRepo.GetSale(ctx, id)
}

// ReturnedBySale sums returned quantities per product outside a
// transaction, for the read-only summary.
func (r *Repository) ReturnedBySale(ctx context.Context, saleID uuid.UUID) (map[uuid.UUID]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT product_id, COALESCE(SUM(quantity), 0)
		  FROM stock_movements
		 WHERE sale_id = $1 AND movement_type = 'return'
		 GROUP BY product_id`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	returned := make(map[uuid.UUID]int64)
	for rows.Next() {
		var productID uuid.UUID
		var qty int64
		if err := rows.Scan(&productID, &qty); err != nil {
			return nil, err
		}
		returned[productID] = qty
	}
	return returned, rows.Err()
}

// ListReturnedProducts aggregates cumulative returns per product for one
// store. Restocking returns carry a positive quantity_change; defective
// write-offs carry zero.
func (r *Repository) ListReturnedProducts(ctx context.Context, storeID uuid.UUID) ([]ReturnedProduct, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.name,
		       COALESCE(SUM(m.quantity) FILTER (WHERE m.quantity_change > 0), 0),
		       COALESCE(SUM(m.quantity) FILTER (WHERE m.quantity_change = 0), 0),
		       p.cost
		  FROM stock_movements m
		  JOIN products p ON p.id = m.product_id
		 WHERE m.movement_type = 'return' AND m.store_id = $1
		 GROUP BY p.id, p.name, p.cost
		 ORDER BY p.name`, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReturnedProduct
	for rows.Next() {
		var rp ReturnedProduct
		var cost float64
		if err := rows.Scan(&rp.ProductID, &rp.ProductName, &rp.CustomerMistakeQty, &rp.DefectiveQty, &cost); err != nil {
			return nil, err
		}
		rp.Loss = cost * float64(rp.DefectiveQty)
		out = append(out, rp)
	}
	return out, rows.Err()
}

// txRepo composes the ledger and sale-row views of one transaction.
type txRepo struct {
	inventory.TxRepository
	sales.SaleTx
}
