package masterdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/abasto-pos/abasto-pos/internal/shared"
)

// Repository abstracts catalog persistence.
type Repository interface {
	CreateProduct(ctx context.Context, p Product) (Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, input UpdateProductInput) (Product, error)
	DeactivateProduct(ctx context.Context, id uuid.UUID) error

	CreateStore(ctx context.Context, s Store) (Store, error)
	GetStore(ctx context.Context, id uuid.UUID) (Store, error)
	ListStores(ctx context.Context) ([]Store, error)
	UpdateStore(ctx context.Context, id uuid.UUID, input StoreInput) (Store, error)
}

type repo struct {
	db *pgxpool.Pool
}

// NewRepository creates the PostgreSQL catalog repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repo{db: db}
}

const productColumns = `id, store_id, name, sku, description, price, cost,
	stock_deposito, stock_venta, legacy_stock, min_stock_deposito, min_stock_venta,
	is_active, created_at, updated_at`

func (r *repo) CreateProduct(ctx context.Context, p Product) (Product, error) {
	now := time.Now().UTC()
	p.ID = uuid.New()
	p.IsActive = true
	p.CreatedAt = now
	p.UpdatedAt = now
	_, err := r.db.Exec(ctx, `
		INSERT INTO products (id, store_id, name, sku, description, price, cost,
			stock_deposito, stock_venta, legacy_stock, min_stock_deposito, min_stock_venta,
			is_active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		p.ID, p.StoreID, p.Name, p.SKU, p.Description, p.Price, p.Cost,
		p.StockDeposito, p.StockVenta, p.LegacyStock, p.MinStockDeposito, p.MinStockVenta,
		p.IsActive, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return Product{}, err
	}
	return p, nil
}

func (r *repo) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	row := r.db.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM products WHERE id = $1`, productColumns), id)
	return scanProduct(row)
}

func (r *repo) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE store_id = $1`, productColumns)
	args := []any{filter.StoreID}
	if filter.ActiveOnly {
		query += ` AND is_active`
	}
	if filter.Query != "" {
		args = append(args, "%"+filter.Query+"%")
		query += fmt.Sprintf(` AND (name ILIKE $%d OR sku ILIKE $%d)`, len(args), len(args))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` ORDER BY name LIMIT %d OFFSET %d`, limit, filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *repo) UpdateProduct(ctx context.Context, id uuid.UUID, input UpdateProductInput) (Product, error) {
	row := r.db.QueryRow(ctx, fmt.Sprintf(`
		UPDATE products
		   SET name = $2, sku = $3, description = $4, price = $5, cost = $6,
		       min_stock_deposito = $7, min_stock_venta = $8, is_active = $9,
		       updated_at = NOW()
		 WHERE id = $1
		RETURNING %s`, productColumns),
		id, input.Name, input.SKU, input.Description, input.Price, input.Cost,
		input.MinStockDeposito, input.MinStockVenta, input.IsActive)
	return scanProduct(row)
}

func (r *repo) DeactivateProduct(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `UPDATE products SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrProductNotFound
	}
	return nil
}

func (r *repo) CreateStore(ctx context.Context, s Store) (Store, error) {
	now := time.Now().UTC()
	s.ID = uuid.New()
	s.IsActive = true
	s.CreatedAt = now
	s.UpdatedAt = now
	_, err := r.db.Exec(ctx, `
		INSERT INTO stores (id, name, address, tax_rate, is_active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		s.ID, s.Name, s.Address, s.TaxRate, s.IsActive, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return Store{}, err
	}
	return s, nil
}

func (r *repo) GetStore(ctx context.Context, id uuid.UUID) (Store, error) {
	var s Store
	err := r.db.QueryRow(ctx, `
		SELECT id, name, address, tax_rate, is_active, created_at, updated_at
		  FROM stores WHERE id = $1`, id).
		Scan(&s.ID, &s.Name, &s.Address, &s.TaxRate, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Store{}, shared.ErrStoreNotFound
		}
		return Store{}, err
	}
	return s, nil
}

func (r *repo) ListStores(ctx context.Context) ([]Store, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, address, tax_rate, is_active, created_at, updated_at
		  FROM stores ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stores []Store
	for rows.Next() {
		var s Store
		if err := rows.Scan(&s.ID, &s.Name, &s.Address, &s.TaxRate, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		stores = append(stores, s)
	}
	return stores, rows.Err()
}

func (r *repo) UpdateStore(ctx context.Context, id uuid.UUID, input StoreInput) (Store, error) {
	var s Store
	err := r.db.QueryRow(ctx, `
		UPDATE stores
		   SET name = $2, address = $3, tax_rate = $4, updated_at = NOW()
		 WHERE id = $1
		RETURNING id, name, address, tax_rate, is_active, created_at, updated_at`,
		id, input.Name, input.Address, input.TaxRate).
		Scan(&s.ID, &s.Name, &s.Address, &s.TaxRate, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Store{}, shared.ErrStoreNotFound
		}
		return Store{}, err
	}
	return s, nil
}

type productScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row productScanner) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.StoreID, &p.Name, &p.SKU, &p.Description, &p.Price, &p.Cost,
		&p.StockDeposito, &p.StockVenta, &p.LegacyStock, &p.MinStockDeposito, &p.MinStockVenta,
		&p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, shared.ErrProductNotFound
		}
		return Product{}, err
	}
	return p, nil
}
