package returns

import (
	"github.com/google/uuid"

	"github.com/abasto-pos/abasto-pos/internal/inventory"
)

// ReturnType selects the reconciliation policy for a returned item.
type ReturnType string

const (
	// ReturnCustomerMistake restores the goods to their original pool.
	ReturnCustomerMistake ReturnType = "customer_mistake"
	// ReturnDefective writes the goods off: the returnable quantity is
	// consumed but no stock comes back.
	ReturnDefective ReturnType = "defective"
)

// Valid reports whether the return type is known.
func (t ReturnType) Valid() bool {
	return t == ReturnCustomerMistake || t == ReturnDefective
}

// ReturnEntry is one requested item return within a batch.
type ReturnEntry struct {
	SaleItemID uuid.UUID
	ProductID  uuid.UUID
	StockType  inventory.StockType
	Quantity   int64
	Type       ReturnType
}

// BatchReturnInput carries a batch of independent return entries against
// one sale.
type BatchReturnInput struct {
	SaleID      uuid.UUID
	Entries     []ReturnEntry
	PerformedBy uuid.UUID
}

// EntryResult reports the outcome of one batch entry. Entries are
// processed independently, so a batch can partially succeed.
type EntryResult struct {
	SaleItemID uuid.UUID  `json:"sale_item_id"`
	ProductID  uuid.UUID  `json:"product_id"`
	Quantity   int64      `json:"quantity"`
	Type       ReturnType `json:"return_type"`
	OK         bool       `json:"ok"`
	Error      string     `json:"error,omitempty"`
	MovementID *uuid.UUID `json:"movement_id,omitempty"`
}

// BatchReturnResult is the per-entry outcome list plus the sale's state
// after the batch.
type BatchReturnResult struct {
	SaleID        uuid.UUID     `json:"sale_id"`
	Results       []EntryResult `json:"results"`
	SaleStatus    string        `json:"sale_status"`
	FullyReturned bool          `json:"fully_returned"`
}

// SummaryItem is the returnable position of one sale line, derived from
// the ledger.
type SummaryItem struct {
	SaleItemID          uuid.UUID `json:"sale_item_id"`
	ProductID           uuid.UUID `json:"product_id"`
	ProductName         string    `json:"product_name"`
	Quantity            int64     `json:"quantity"`
	ReturnedSoFar       int64     `json:"returned_so_far"`
	ReturnableRemaining int64     `json:"returnable_remaining"`
}

// ReturnedProduct aggregates cumulative returns per product. Loss is the
// write-off cost of defective units.
type ReturnedProduct struct {
	ProductID          uuid.UUID `json:"product_id"`
	ProductName        string    `json:"product_name"`
	CustomerMistakeQty int64     `json:"customer_mistake_quantity"`
	DefectiveQty       int64     `json:"defective_quantity"`
	Loss               float64   `json:"loss"`
}
