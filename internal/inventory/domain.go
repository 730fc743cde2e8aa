package inventory

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// StockType names one of the two physical stock pools of a product.
type StockType string

const (
	// StockDeposito is the warehouse / back-stock pool.
	StockDeposito StockType = "deposito"
	// StockVenta is the sales-floor pool, the only one sales deduct from.
	StockVenta StockType = "venta"
)

// Valid reports whether the stock type is one of the two known pools.
func (s StockType) Valid() bool {
	return s == StockDeposito || s == StockVenta
}

// MovementType enumerates supported ledger movements.
type MovementType string

const (
	// MovementRestock covers warehouse<->sales-floor transfers.
	MovementRestock MovementType = "restock"
	// MovementAdjustment covers warehouse fills and manual corrections.
	MovementAdjustment MovementType = "adjustment"
	// MovementSale is a sales-floor deduction tied to a completed sale.
	MovementSale MovementType = "sale"
	// MovementReturn restores stock (or writes it off) against a sale.
	MovementReturn MovementType = "return"
)

// Movement is one append-only ledger row: a single signed quantity change
// to one location of one product. Never updated or deleted.
//
// Quantity is the magnitude being moved and is always positive.
// QuantityChange is the signed effect on the balance; it is zero for
// defective-return write-offs, which consume returnable quantity without
// restoring stock.
type Movement struct {
	ID             uuid.UUID
	ProductID      uuid.UUID
	StoreID        uuid.UUID
	Type           MovementType
	StockType      StockType
	Quantity       int64
	QuantityChange int64
	QuantityBefore int64
	QuantityAfter  int64
	Reason         string
	PerformedBy    uuid.UUID
	SaleID         *uuid.UUID
	Notes          string
	CreatedAt      time.Time
}

// StockLevels is the current-balance projection for one product.
type StockLevels struct {
	ProductID   uuid.UUID
	Deposito    int64
	Venta       int64
	MinDeposito int64
	MinVenta    int64
}

// Of returns the balance of the given pool.
func (l StockLevels) Of(st StockType) int64 {
	if st == StockDeposito {
		return l.Deposito
	}
	return l.Venta
}

// Total is the derived legacy_stock value.
func (l StockLevels) Total() int64 {
	return l.Deposito + l.Venta
}

// AdjustmentType enumerates manual adjustment modes.
type AdjustmentType string

const (
	AdjustIncrease AdjustmentType = "increase"
	AdjustDecrease AdjustmentType = "decrease"
	AdjustSet      AdjustmentType = "set"
)

// Valid reports whether the adjustment type is known.
func (a AdjustmentType) Valid() bool {
	return a == AdjustIncrease || a == AdjustDecrease || a == AdjustSet
}

// MovementParams describes one ledger write for Apply.
type MovementParams struct {
	ProductID   uuid.UUID
	StoreID     uuid.UUID
	Type        MovementType
	StockType   StockType
	Delta       int64
	Quantity    int64
	Reason      string
	PerformedBy uuid.UUID
	SaleID      *uuid.UUID
	Notes       string
}

// RestockInput moves stock from the warehouse to the sales floor.
type RestockInput struct {
	ProductID   uuid.UUID
	StoreID     uuid.UUID
	Quantity    int64
	Reason      string
	PerformedBy uuid.UUID
}

// FillWarehouseInput adds received goods to the warehouse pool.
type FillWarehouseInput struct {
	ProductID   uuid.UUID
	StoreID     uuid.UUID
	Quantity    int64
	Reason      string
	PerformedBy uuid.UUID
}

// AdjustInput is a manual correction of one pool.
type AdjustInput struct {
	ProductID   uuid.UUID
	StoreID     uuid.UUID
	Type        AdjustmentType
	Quantity    int64
	Reason      string
	PerformedBy uuid.UUID
}

// SalesFloorTargetInput sets an absolute sales-floor level; the engine
// moves the difference to or from the warehouse.
type SalesFloorTargetInput struct {
	ProductID   uuid.UUID
	StoreID     uuid.UUID
	Target      int64
	Reason      string
	PerformedBy uuid.UUID
}

// TransferResult reports the outcome of a stock operation.
type TransferResult struct {
	Levels    StockLevels
	Movements []Movement
}

// MovementFilter filters ledger listings.
type MovementFilter struct {
	ProductID uuid.UUID
	StoreID   uuid.UUID
	SaleID    *uuid.UUID
	Type      MovementType
	From      time.Time
	To        time.Time
	Limit     int
	Offset    int
}

// LowStockItem flags a product at or under one of its thresholds.
type LowStockItem struct {
	ProductID   uuid.UUID
	Name        string
	Deposito    int64
	Venta       int64
	MinDeposito int64
	MinVenta    int64
}

// ErrStockCondition signals that a conditional stock update found no row:
// the guard `balance + delta >= 0` did not hold at write time.
var ErrStockCondition = errors.New("inventory: stock condition not met")
