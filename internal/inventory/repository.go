package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abasto-pos/abasto-pos/internal/platform/db"
	"github.com/abasto-pos/abasto-pos/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetLevels(ctx context.Context, productID uuid.UUID) (StockLevels, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
	ListLowStock(ctx context.Context, storeID uuid.UUID) ([]LowStockItem, error)
}

// TxRepository exposes the transactional ledger operations. Sales and
// returns embed this interface in their own tx repositories so stock
// writes share the surrounding transaction.
type TxRepository interface {
	// GetLevels reads the current balances, locking the product row when
	// running inside a transaction.
	GetLevels(ctx context.Context, productID uuid.UUID) (StockLevels, error)
	// ApplyStockDelta is the atomic conditional write: it adds delta to the
	// pool only when the resulting balance stays non-negative, recomputes
	// legacy_stock in the same statement, and returns the before/after
	// balances. ErrStockCondition when the guard fails.
	ApplyStockDelta(ctx context.Context, productID uuid.UUID, st StockType, delta int64) (before, after int64, err error)
	InsertMovement(ctx context.Context, m Movement) error
	// ReturnedBySale sums returned quantities per product for one sale,
	// counting defective write-offs at their recorded magnitude.
	ReturnedBySale(ctx context.Context, saleID uuid.UUID) (map[uuid.UUID]int64, error)
}

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists the ledger and balance projection in PostgreSQL.
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
		return fn(ctx, &txRepo{db: tx})
	})
}

// GetLevels reads balances outside a transaction (no lock).
func (r *Repository) GetLevels(ctx context.Context, productID uuid.UUID) (StockLevels, error) {
	return scanLevels(ctx, r.pool, productID, false)
}

const movementColumns = `id, product_id, store_id, movement_type, stock_type, quantity,
	quantity_change, quantity_before, quantity_after, reason, performed_by, sale_id, notes, created_at`

// ListMovements returns ledger rows ordered oldest first so callers can
// replay balances.
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	conditions := []string{"1=1"}
	var args []any
	argPos := 1
	add := func(cond string, val any) {
		conditions = append(conditions, fmt.Sprintf(cond, argPos))
		args = append(args, val)
		argPos++
	}
	if filter.ProductID != uuid.Nil {
		add("product_id = $%d", filter.ProductID)
	}
	if filter.StoreID != uuid.Nil {
		add("store_id = $%d", filter.StoreID)
	}
	if filter.SaleID != nil {
		add("sale_id = $%d", *filter.SaleID)
	}
	if filter.Type != "" {
		add("movement_type = $%d", string(filter.Type))
	}
	if !filter.From.IsZero() {
		add("created_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("created_at <= $%d", filter.To)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}

	where := conditions[0]
	for _, c := range conditions[1:] {
		where += " AND " + c
	}
	query := fmt.Sprintf(`SELECT %s FROM stock_movements WHERE %s ORDER BY created_at, id LIMIT %d OFFSET %d`,
		movementColumns, where, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movements []Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// ListLowStock flags active products at or under a threshold.
func (r *Repository) ListLowStock(ctx context.Context, storeID uuid.UUID) ([]LowStockItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, stock_deposito, stock_venta, min_stock_deposito, min_stock_venta
		  FROM products
		 WHERE store_id = $1 AND is_active
		   AND (stock_deposito <= min_stock_deposito OR stock_venta <= min_stock_venta)
		 ORDER BY name`, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []LowStockItem
	for rows.Next() {
		var it LowStockItem
		if err := rows.Scan(&it.ProductID, &it.Name, &it.Deposito, &it.Venta, &it.MinDeposito, &it.MinVenta); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

type txRepo struct {
	db dbtx
}

// NewTxRepository binds ledger operations to an existing transaction, for
// modules composing stock writes with their own rows.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepo{db: tx}
}

func (t *txRepo) GetLevels(ctx context.Context, productID uuid.UUID) (StockLevels, error) {
	return scanLevels(ctx, t.db, productID, true)
}

func (t *txRepo) ApplyStockDelta(ctx context.Context, productID uuid.UUID, st StockType, delta int64) (int64, int64, error) {
	var query string
	switch st {
	case StockDeposito:
		query = `
			UPDATE products
			   SET stock_deposito = stock_deposito + $2,
			       legacy_stock   = stock_deposito + $2 + stock_venta,
			       updated_at     = NOW()
			 WHERE id = $1 AND stock_deposito + $2 >= 0
			RETURNING stock_deposito - $2, stock_deposito`
	case StockVenta:
		query = `
			UPDATE products
			   SET stock_venta  = stock_venta + $2,
			       legacy_stock = stock_deposito + stock_venta + $2,
			       updated_at   = NOW()
			 WHERE id = $1 AND stock_venta + $2 >= 0
			RETURNING stock_venta - $2, stock_venta`
	default:
		return 0, 0, shared.Validationf("unknown stock type %q", st)
	}

	var before, after int64
	err := t.db.QueryRow(ctx, query, productID, delta).Scan(&before, &after)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Either the product is gone or the guard failed.
			var exists bool
			if qerr := t.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists); qerr != nil {
				return 0, 0, qerr
			}
			if !exists {
				return 0, 0, shared.ErrProductNotFound
			}
			return 0, 0, ErrStockCondition
		}
		return 0, 0, err
	}
	return before, after, nil
}

func (t *txRepo) InsertMovement(ctx context.Context, m Movement) error {
	_, err := t.db.Exec(ctx, `
		INSERT INTO stock_movements
			(id, product_id, store_id, movement_type, stock_type, quantity,
			 quantity_change, quantity_before, quantity_after, reason,
			 performed_by, sale_id, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		m.ID, m.ProductID, m.StoreID, string(m.Type), string(m.StockType), m.Quantity,
		m.QuantityChange, m.QuantityBefore, m.QuantityAfter, m.Reason,
		m.PerformedBy, m.SaleID, m.Notes, m.CreatedAt)
	return err
}

func (t *txRepo) ReturnedBySale(ctx context.Context, saleID uuid.UUID) (map[uuid.UUID]int64, error) {
	rows, err := t.db.Query(ctx, `
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

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanLevels(ctx context.Context, q rowQuerier, productID uuid.UUID, forUpdate bool) (StockLevels, error) {
	query := `
		SELECT id, stock_deposito, stock_venta, min_stock_deposito, min_stock_venta
		  FROM products WHERE id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}
	var levels StockLevels
	err := q.QueryRow(ctx, query, productID).Scan(
		&levels.ProductID, &levels.Deposito, &levels.Venta, &levels.MinDeposito, &levels.MinVenta)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return StockLevels{}, shared.ErrProductNotFound
		}
		return StockLevels{}, err
	}
	return levels, nil
}

type movementScanner interface {
	Scan(dest ...any) error
}

func scanMovement(row movementScanner) (Movement, error) {
	var m Movement
	var mt, st string
	err := row.Scan(&m.ID, &m.ProductID, &m.StoreID, &mt, &st, &m.Quantity,
		&m.QuantityChange, &m.QuantityBefore, &m.QuantityAfter, &m.Reason,
		&m.PerformedBy, &m.SaleID, &m.Notes, &m.CreatedAt)
	if err != nil {
		return Movement{}, err
	}
	m.Type = MovementType(mt)
	m.StockType = StockType(st)
	return m, nil
}
