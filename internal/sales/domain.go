package sales

import (
	"time"

	"github.com/google/uuid"

	"github.com/abasto-pos/abasto-pos/internal/inventory"
	"github.com/abasto-pos/abasto-pos/internal/shared"
)

// PaymentMethod enumerates accepted tender types.
type PaymentMethod string

const (
	PaymentCash  PaymentMethod = "cash"
	PaymentCard  PaymentMethod = "card"
	PaymentMixed PaymentMethod = "mixed"
)

// Valid reports whether the payment method is known.
func (m PaymentMethod) Valid() bool {
	return m == PaymentCash || m == PaymentCard || m == PaymentMixed
}

// PaymentStatus is the sale lifecycle state.
type PaymentStatus string

const (
	StatusPending   PaymentStatus = "pending"
	StatusCompleted PaymentStatus = "completed"
	StatusRefunded  PaymentStatus = "refunded"
	StatusCancelled PaymentStatus = "cancelled"
)

// CanTransitionTo encodes the allowed lifecycle moves: pending sales may
// complete or cancel, completed sales may refund, terminal states stay put.
func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusCompleted || next == StatusCancelled
	case StatusCompleted:
		return next == StatusRefunded
	default:
		return false
	}
}

// Sale is one settled (or in-flight) transaction with its line items.
type Sale struct {
	ID            uuid.UUID     `json:"id"`
	StoreID       uuid.UUID     `json:"store_id"`
	ReceiptNumber string        `json:"receipt_number"`
	Subtotal      float64       `json:"subtotal"`
	TaxAmount     float64       `json:"tax_amount"`
	Discount      float64       `json:"discount"`
	Total         float64       `json:"total"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	CashAmount    float64       `json:"cash_amount"`
	CardAmount    float64       `json:"card_amount"`
	Status        PaymentStatus `json:"status"`
	SoldBy        uuid.UUID     `json:"sold_by"`
	Notes         string        `json:"notes"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	Items         []SaleItem    `json:"items"`
}

// SaleItem is one line of a sale with the price captured at sale time.
// StockType records which pool the line drew from so a return restores
// the right one.
type SaleItem struct {
	ID          uuid.UUID           `json:"id"`
	SaleID      uuid.UUID           `json:"sale_id"`
	ProductID   uuid.UUID           `json:"product_id"`
	ProductName string              `json:"product_name"`
	Quantity    int64               `json:"quantity"`
	UnitPrice   float64             `json:"unit_price"`
	Subtotal    float64             `json:"subtotal"`
	Discount    float64             `json:"discount"`
	Total       float64             `json:"total"`
	StockType   inventory.StockType `json:"stock_type"`
}

// SaleLineInput is one requested line of a new sale.
type SaleLineInput struct {
	ProductID uuid.UUID
	Quantity  int64
	Discount  float64
}

// ProcessSaleInput carries everything needed to settle a sale. Discount
// applies to the whole sale after tax, on top of any per-line discounts.
// When RequirePaymentConfirmation is set the sale is recorded as pending
// and no stock moves until confirmation.
type ProcessSaleInput struct {
	StoreID                    uuid.UUID
	Items                      []SaleLineInput
	Discount                   float64
	PaymentMethod              PaymentMethod
	CashAmount                 float64
	CardAmount                 float64
	RequirePaymentConfirmation bool
	Notes                      string
	SoldBy                     uuid.UUID
	IdempotencyKey             string
}

// SaleFilter narrows sale listings.
type SaleFilter struct {
	StoreID uuid.UUID
	Status  PaymentStatus
	From    time.Time
	To      time.Time
	Limit   int
	Offset  int
}

// ProductInfo is the catalog snapshot a sale settles against.
type ProductInfo struct {
	ID         uuid.UUID
	StoreID    uuid.UUID
	Name       string
	Price      float64
	StockVenta int64
	IsActive   bool
}

// paymentTolerance absorbs float rounding when checking tender splits.
const paymentTolerance = 0.01

func round2(val float64) float64 {
	return float64(int64(val*100+0.5)) / 100
}

func validatePayment(method PaymentMethod, cash, card, total float64) error {
	if !method.Valid() {
		return shared.Validationf("unknown payment method %q", method)
	}
	if cash < 0 || card < 0 {
		return shared.Validationf("payment amounts must not be negative")
	}
	if method == PaymentMixed {
		if cash == 0 || card == 0 {
			return shared.Validationf("mixed payment requires both cash and card amounts")
		}
		if diff := cash + card - total; diff > paymentTolerance || diff < -paymentTolerance {
			return shared.Validationf("mixed payment amounts must add up to the total")
		}
	}
	return nil
}
