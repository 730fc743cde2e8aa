package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/abasto-pos/abasto-pos/internal/shared"
)

// Apply writes one ledger movement and its paired balance update inside the
// caller's transaction. It is the only code path that mutates product stock:
// the transfer engine, sale settlement and return reconciliation all funnel
// through here.
//
// The balance check-and-update is a single conditional write; when the
// condition fails Apply re-reads the balance once and retries, so a caller
// never overdraws on a stale read. A second condition failure with a
// sufficient fresh balance is reported as ErrConcurrencyConflict.
func Apply(ctx context.Context, tx TxRepository, p MovementParams) (Movement, error) {
	if err := validateParams(&p); err != nil {
		return Movement{}, err
	}

	var before, after int64
	if p.Delta == 0 {
		// Defective-return write-off: an audit row with no balance effect.
		levels, err := tx.GetLevels(ctx, p.ProductID)
		if err != nil {
			return Movement{}, err
		}
		before = levels.Of(p.StockType)
		after = before
	} else {
		var err error
		before, after, err = applyDelta(ctx, tx, p)
		if err != nil {
			return Movement{}, err
		}
	}

	m := Movement{
		ID:             uuid.New(),
		ProductID:      p.ProductID,
		StoreID:        p.StoreID,
		Type:           p.Type,
		StockType:      p.StockType,
		Quantity:       p.Quantity,
		QuantityChange: p.Delta,
		QuantityBefore: before,
		QuantityAfter:  after,
		Reason:         p.Reason,
		PerformedBy:    p.PerformedBy,
		SaleID:         p.SaleID,
		Notes:          p.Notes,
		CreatedAt:      time.Now().UTC(),
	}
	if err := tx.InsertMovement(ctx, m); err != nil {
		return Movement{}, err
	}
	return m, nil
}

func validateParams(p *MovementParams) error {
	switch p.Type {
	case MovementRestock, MovementAdjustment, MovementSale, MovementReturn:
	default:
		return shared.Validationf("unknown movement type %q", p.Type)
	}
	if !p.StockType.Valid() {
		return shared.Validationf("unknown stock type %q", p.StockType)
	}
	if p.Reason == "" {
		return shared.Validationf("movement reason is required")
	}
	if p.Delta != 0 {
		p.Quantity = p.Delta
		if p.Quantity < 0 {
			p.Quantity = -p.Quantity
		}
	} else {
		if p.Type != MovementReturn {
			return shared.Validationf("zero-delta movements are only valid for return write-offs")
		}
		if p.Quantity <= 0 {
			return shared.Validationf("write-off quantity must be positive")
		}
	}
	return nil
}

func applyDelta(ctx context.Context, tx TxRepository, p MovementParams) (before, after int64, err error) {
	for attempt := 0; ; attempt++ {
		before, after, err = tx.ApplyStockDelta(ctx, p.ProductID, p.StockType, p.Delta)
		if err == nil {
			return before, after, nil
		}
		if !errors.Is(err, ErrStockCondition) {
			return 0, 0, err
		}

		// Fresh read: distinguish a genuine shortfall from a lost race.
		levels, lerr := tx.GetLevels(ctx, p.ProductID)
		if lerr != nil {
			return 0, 0, lerr
		}
		if p.Delta < 0 && levels.Of(p.StockType) < -p.Delta {
			return 0, 0, &shared.InsufficientStockError{
				StockType: string(p.StockType),
				Available: levels.Of(p.StockType),
				Required:  -p.Delta,
			}
		}
		if attempt >= 1 {
			return 0, 0, shared.ErrConcurrencyConflict
		}
	}
}
