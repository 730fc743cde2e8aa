package masterdata

import (
	"time"

	"github.com/google/uuid"

	"github.com/abasto-pos/abasto-pos/internal/shared"
)

// Product is a catalog item with its two-pool stock projection. The stock
// columns are owned by the inventory ledger; this module never writes them.
type Product struct {
	ID               uuid.UUID `json:"id"`
	StoreID          uuid.UUID `json:"store_id"`
	Name             string    `json:"name"`
	SKU              string    `json:"sku"`
	Description      string    `json:"description"`
	Price            float64   `json:"price"`
	Cost             float64   `json:"cost"`
	StockDeposito    int64     `json:"stock_deposito"`
	StockVenta       int64     `json:"stock_venta"`
	LegacyStock      int64     `json:"legacy_stock"`
	MinStockDeposito int64     `json:"min_stock_deposito"`
	MinStockVenta    int64     `json:"min_stock_venta"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Store is a physical location; its tax rate applies to every sale
// settled against it.
type Store struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	TaxRate   float64   `json:"tax_rate"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateProductInput carries the fields accepted at creation. Products
// start with zero stock in both pools; goods arrive through warehouse
// fills so every unit has a ledger row behind it.
type CreateProductInput struct {
	StoreID          uuid.UUID
	Name             string
	SKU              string
	Description      string
	Price            float64
	Cost             float64
	MinStockDeposito int64
	MinStockVenta    int64
}

// UpdateProductInput carries the mutable catalog fields. Stock levels are
// deliberately absent; those change only through the ledger.
type UpdateProductInput struct {
	Name             string
	SKU              string
	Description      string
	Price            float64
	Cost             float64
	MinStockDeposito int64
	MinStockVenta    int64
	IsActive         bool
}

// ProductFilter narrows catalog listings.
type ProductFilter struct {
	StoreID    uuid.UUID
	Query      string
	ActiveOnly bool
	Limit      int
	Offset     int
}

// StoreInput carries store create/update fields.
type StoreInput struct {
	Name    string
	Address string
	TaxRate float64
}

func validateProduct(name, sku string, price, cost float64, minDep, minVenta int64) error {
	if name == "" {
		return shared.Validationf("product name is required")
	}
	if sku == "" {
		return shared.Validationf("product sku is required")
	}
	if cost < 0 {
		return shared.Validationf("product cost must not be negative")
	}
	if price <= cost {
		return shared.Validationf("product price must exceed cost")
	}
	if minDep <= 0 || minVenta <= 0 {
		return shared.Validationf("minimum stock thresholds must be positive")
	}
	return nil
}

func validateStore(input StoreInput) error {
	if input.Name == "" {
		return shared.Validationf("store name is required")
	}
	if input.TaxRate < 0 || input.TaxRate > 100 {
		return shared.Validationf("store tax rate must be between 0 and 100")
	}
	return nil
}
