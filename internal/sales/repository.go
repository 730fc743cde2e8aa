package sales

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abasto-pos/abasto-pos/internal/inventory"
	"github.com/abasto-pos/abasto-pos/internal/platform/db"
	"github.com/abasto-pos/abasto-pos/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetSale(ctx context.Context, id uuid.UUID) (Sale, error)
	ListSales(ctx context.Context, filter SaleFilter) ([]Sale, error)
}

// TxRepository combines sale persistence with the stock ledger so a
// settlement's rows and its stock deductions commit or roll back together.
type TxRepository interface {
	inventory.TxRepository

	GetProductForSale(ctx context.Context, productID uuid.UUID) (ProductInfo, error)
	InsertSale(ctx context.Context, sale Sale) error
	InsertSaleItems(ctx context.Context, items []SaleItem) error
	GetSaleForUpdate(ctx context.Context, id uuid.UUID) (Sale, error)
	UpdateSaleStatus(ctx context.Context, id uuid.UUID, status PaymentStatus) error
	// NextReceiptNumber increments and returns the per-store yearly
	// receipt counter.
	NextReceiptNumber(ctx context.Context, storeID uuid.UUID, year int) (int64, error)
}

// Repository persists sales in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{TxRepository: inventory.NewTxRepository(tx), db: tx})
	})
}

const saleColumns = `id, store_id, receipt_number, subtotal, tax_amount, discount, total,
	payment_method, cash_amount, card_amount, status, sold_by, notes, created_at, updated_at`

// GetSale loads a sale with its items.
func (r *Repository) GetSale(ctx context.Context, id uuid.UUID) (Sale, error) {
	sale, err := scanSale(r.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM sales WHERE id = $1`, saleColumns), id))
	if err != nil {
		return Sale{}, err
	}
	sale.Items, err = loadItems(ctx, r.pool, id)
	if err != nil {
		return Sale{}, err
	}
	return sale, nil
}

// ListSales lists sales newest first.
func (r *Repository) ListSales(ctx context.Context, filter SaleFilter) ([]Sale, error) {
	query := fmt.Sprintf(`SELECT %s FROM sales WHERE store_id = $1`, saleColumns)
	args := []any{filter.StoreID}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		query += fmt.Sprintf(` AND created_at >= $%d`, len(args))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		query += fmt.Sprintf(` AND created_at <= $%d`, len(args))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d OFFSET %d`, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sales []Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	return sales, rows.Err()
}

// SaleTx exposes the sale-row operations other modules compose into their
// own transactions.
type SaleTx interface {
	GetSaleForUpdate(ctx context.Context, id uuid.UUID) (Sale, error)
	UpdateSaleStatus(ctx context.Context, id uuid.UUID, status PaymentStatus) error
}

// NewSaleTx binds sale row operations to an existing transaction.
func NewSaleTx(tx pgx.Tx) SaleTx {
	return &txRepo{TxRepository: inventory.NewTxRepository(tx), db: tx}
}

type txRepo struct {
	inventory.TxRepository
	db pgx.Tx
}

func (t *txRepo) GetProductForSale(ctx context.Context, productID uuid.UUID) (ProductInfo, error) {
	var p ProductInfo
	err := t.db.QueryRow(ctx, `
		SELECT id, store_id, name, price, stock_venta, is_active
		  FROM products WHERE id = $1 FOR UPDATE`, productID).
		Scan(&p.ID, &p.StoreID, &p.Name, &p.Price, &p.StockVenta, &p.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ProductInfo{}, shared.ErrProductNotFound
		}
		return ProductInfo{}, err
	}
	return p, nil
}

func (t *txRepo) InsertSale(ctx context.Context, sale Sale) error {
	_, err := t.db.Exec(ctx, `
		INSERT INTO sales (id, store_id, receipt_number, subtotal, tax_amount, discount, total,
			payment_method, cash_amount, card_amount, status, sold_by, notes, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		sale.ID, sale.StoreID, sale.ReceiptNumber, sale.Subtotal, sale.TaxAmount, sale.Discount, sale.Total,
		string(sale.PaymentMethod), sale.CashAmount, sale.CardAmount, string(sale.Status),
		sale.SoldBy, sale.Notes, sale.CreatedAt, sale.UpdatedAt)
	return err
}

func (t *txRepo) InsertSaleItems(ctx context.Context, items []SaleItem) error {
	for _, it := range items {
		_, err := t.db.Exec(ctx, `
			INSERT INTO sale_items (id, sale_id, product_id, product_name, quantity, unit_price,
				subtotal, discount, total, stock_type)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			it.ID, it.SaleID, it.ProductID, it.ProductName, it.Quantity, it.UnitPrice,
			it.Subtotal, it.Discount, it.Total, string(it.StockType))
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *txRepo) GetSaleForUpdate(ctx context.Context, id uuid.UUID) (Sale, error) {
	sale, err := scanSale(t.db.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM sales WHERE id = $1 FOR UPDATE`, saleColumns), id))
	if err != nil {
		return Sale{}, err
	}
	sale.Items, err = loadItems(ctx, t.db, id)
	if err != nil {
		return Sale{}, err
	}
	return sale, nil
}

func (t *txRepo) UpdateSaleStatus(ctx context.Context, id uuid.UUID, status PaymentStatus) error {
	tag, err := t.db.Exec(ctx, `UPDATE sales SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrSaleNotFound
	}
	return nil
}

func (t *txRepo) NextReceiptNumber(ctx context.Context, storeID uuid.UUID, year int) (int64, error) {
	var n int64
	err := t.db.QueryRow(ctx, `
		INSERT INTO receipt_counters (store_id, year, counter)
		VALUES ($1, $2, 1)
		ON CONFLICT (store_id, year)
		DO UPDATE SET counter = receipt_counters.counter + 1
		RETURNING counter`, storeID, year).Scan(&n)
	return n, err
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadItems(ctx context.Context, q querier, saleID uuid.UUID) ([]SaleItem, error) {
	rows, err := q.Query(ctx, `
		SELECT id, sale_id, product_id, product_name, quantity, unit_price,
		       subtotal, discount, total, stock_type
		  FROM sale_items WHERE sale_id = $1 ORDER BY product_name`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []SaleItem
	for rows.Next() {
		var it SaleItem
		var st string
		if err := rows.Scan(&it.ID, &it.SaleID, &it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPrice,
			&it.Subtotal, &it.Discount, &it.Total, &st); err != nil {
			return nil, err
		}
		it.StockType = inventory.StockType(st)
		items = append(items, it)
	}
	return items, rows.Err()
}

type saleScanner interface {
	Scan(dest ...any) error
}

func scanSale(row saleScanner) (Sale, error) {
	var s Sale
	var method, status string
	err := row.Scan(&s.ID, &s.StoreID, &s.ReceiptNumber, &s.Subtotal, &s.TaxAmount, &s.Discount, &s.Total,
		&method, &s.CashAmount, &s.CardAmount, &status, &s.SoldBy, &s.Notes, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Sale{}, shared.ErrSaleNotFound
		}
		return Sale{}, err
	}
	s.PaymentMethod = PaymentMethod(method)
	s.Status = PaymentStatus(status)
	return s, nil
}
