package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/abasto-pos/abasto-pos/internal/inventory"
	"github.com/abasto-pos/abasto-pos/internal/observability"
	"github.com/abasto-pos/abasto-pos/internal/shared"
)

// TaxRateLookup resolves the tax rate applied to a store's sales.
type TaxRateLookup interface {
	TaxRate(ctx context.Context, storeID uuid.UUID) (float64, error)
}

// Service is the sale settlement engine. A completed sale deducts every
// line from the sales-floor pool in the same transaction that records the
// sale, so a stock shortfall on any line aborts the whole settlement.
type Service struct {
	repo        RepositoryPort
	taxRates    TaxRateLookup
	audit       shared.AuditRecorder
	metrics     *observability.Metrics
	idempotency *shared.IdempotencyStore
}

// NewService builds Service. audit, metrics and idem may be nil.
func NewService(repo RepositoryPort, taxRates TaxRateLookup, audit shared.AuditRecorder, metrics *observability.Metrics, idem *shared.IdempotencyStore) *Service {
	return &Service{repo: repo, taxRates: taxRates, audit: audit, metrics: metrics, idempotency: idem}
}

// ProcessSale settles a new sale. With RequirePaymentConfirmation the sale
// is stored as pending and touches no stock; otherwise it completes and
// deducts all lines atomically.
func (s *Service) ProcessSale(ctx context.Context, input ProcessSaleInput) (Sale, error) {
	if len(input.Items) == 0 {
		return Sale{}, shared.Validationf("a sale requires at least one item")
	}
	seen := make(map[uuid.UUID]bool, len(input.Items))
	for _, line := range input.Items {
		if line.Quantity <= 0 {
			return Sale{}, shared.Validationf("item quantity must be positive")
		}
		if seen[line.ProductID] {
			return Sale{}, shared.Validationf("duplicate product %s in sale", line.ProductID)
		}
		seen[line.ProductID] = true
	}
	if !input.PaymentMethod.Valid() {
		return Sale{}, shared.Validationf("unknown payment method %q", input.PaymentMethod)
	}
	if input.Discount < 0 {
		return Sale{}, shared.Validationf("sale discount must not be negative")
	}

	taxRate, err := s.taxRates.TaxRate(ctx, input.StoreID)
	if err != nil {
		return Sale{}, err
	}

	// Terminals retry on flaky links; the key keeps a double submit from
	// settling twice.
	keyInserted := false
	if input.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, input.IdempotencyKey, "sales"); err != nil {
			return Sale{}, err
		}
		keyInserted = true
	}

	now := time.Now().UTC()
	sale := Sale{
		ID:            uuid.New(),
		StoreID:       input.StoreID,
		PaymentMethod: input.PaymentMethod,
		Status:        StatusCompleted,
		SoldBy:        input.SoldBy,
		Notes:         input.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if input.RequirePaymentConfirmation {
		sale.Status = StatusPending
	}

	var movements []inventory.Movement
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var subtotal float64
		items := make([]SaleItem, 0, len(input.Items))
		for _, line := range input.Items {
			product, err := tx.GetProductForSale(ctx, line.ProductID)
			if err != nil {
				return err
			}
			if product.StoreID != input.StoreID {
				return shared.Validationf("product %s does not belong to store %s", line.ProductID, input.StoreID)
			}
			if !product.IsActive {
				return shared.Validationf("product %s is inactive", line.ProductID)
			}
			// Read-only availability check. Pending sales hold no stock, so
			// this is the only guard between creation and confirmation.
			if product.StockVenta < line.Quantity {
				return &shared.InsufficientStockError{
					StockType: string(inventory.StockVenta),
					Available: product.StockVenta,
					Required:  line.Quantity,
				}
			}
			lineSubtotal := round2(product.Price * float64(line.Quantity))
			if line.Discount < 0 || line.Discount > lineSubtotal {
				return shared.Validationf("discount on product %s exceeds the line subtotal", line.ProductID)
			}
			lineTotal := round2(lineSubtotal - line.Discount)
			subtotal += lineTotal
			items = append(items, SaleItem{
				ID:          uuid.New(),
				SaleID:      sale.ID,
				ProductID:   line.ProductID,
				ProductName: product.Name,
				Quantity:    line.Quantity,
				UnitPrice:   product.Price,
				Subtotal:    lineSubtotal,
				Discount:    line.Discount,
				Total:       lineTotal,
				StockType:   inventory.StockVenta,
			})
		}
		sale.Subtotal = round2(subtotal)
		sale.TaxAmount = round2(sale.Subtotal * taxRate / 100)
		gross := round2(sale.Subtotal + sale.TaxAmount)
		if input.Discount > gross {
			return shared.Validationf("sale discount %.2f exceeds the sale total %.2f", input.Discount, gross)
		}
		sale.Discount = round2(input.Discount)
		sale.Total = round2(gross - sale.Discount)

		if err := validatePayment(input.PaymentMethod, input.CashAmount, input.CardAmount, sale.Total); err != nil {
			return err
		}
		switch input.PaymentMethod {
		case PaymentCash:
			sale.CashAmount, sale.CardAmount = sale.Total, 0
		case PaymentCard:
			sale.CashAmount, sale.CardAmount = 0, sale.Total
		case PaymentMixed:
			sale.CashAmount, sale.CardAmount = input.CashAmount, input.CardAmount
		}

		receipt, err := tx.NextReceiptNumber(ctx, input.StoreID, now.Year())
		if err != nil {
			return err
		}
		sale.ReceiptNumber = fmt.Sprintf("REC-%d-%06d", now.Year(), receipt)
		sale.Items = items

		if err := tx.InsertSale(ctx, sale); err != nil {
			return err
		}
		if err := tx.InsertSaleItems(ctx, items); err != nil {
			return err
		}
		if sale.Status == StatusCompleted {
			moved, err := s.deductItems(ctx, tx, sale)
			if err != nil {
				return err
			}
			movements = moved
		}
		return nil
	})
	if err != nil {
		if keyInserted {
			_ = s.idempotency.Delete(ctx, input.IdempotencyKey)
		}
		return Sale{}, err
	}
	s.countMovements(movements)

	s.recordAudit(ctx, input.SoldBy, "sales:process", sale.ID, map[string]any{
		"receipt": sale.ReceiptNumber, "total": sale.Total, "status": string(sale.Status),
	})
	return sale, nil
}

// ConfirmPendingSale completes a pending sale, deducting its lines. The
// creation-time check was read-only, so availability is enforced again
// here by the conditional deduction.
func (s *Service) ConfirmPendingSale(ctx context.Context, saleID, actor uuid.UUID) (Sale, error) {
	var sale Sale
	var movements []inventory.Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		sale, err = tx.GetSaleForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if !sale.Status.CanTransitionTo(StatusCompleted) {
			return &shared.InvalidTransitionError{From: string(sale.Status), To: string(StatusCompleted)}
		}
		movements, err = s.deductItems(ctx, tx, sale)
		if err != nil {
			return err
		}
		if err := tx.UpdateSaleStatus(ctx, saleID, StatusCompleted); err != nil {
			return err
		}
		sale.Status = StatusCompleted
		return nil
	})
	if err != nil {
		return Sale{}, err
	}
	s.countMovements(movements)
	s.recordAudit(ctx, actor, "sales:confirm", saleID, map[string]any{"receipt": sale.ReceiptNumber})
	return sale, nil
}

// CancelPendingSale voids a pending sale. No stock was held, so nothing
// moves.
func (s *Service) CancelPendingSale(ctx context.Context, saleID, actor uuid.UUID) (Sale, error) {
	var sale Sale
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		sale, err = tx.GetSaleForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if !sale.Status.CanTransitionTo(StatusCancelled) {
			return &shared.InvalidTransitionError{From: string(sale.Status), To: string(StatusCancelled)}
		}
		if err := tx.UpdateSaleStatus(ctx, saleID, StatusCancelled); err != nil {
			return err
		}
		sale.Status = StatusCancelled
		return nil
	})
	if err != nil {
		return Sale{}, err
	}
	s.recordAudit(ctx, actor, "sales:cancel", saleID, nil)
	return sale, nil
}

// RefundSale refunds a completed sale, restoring every unit that has not
// already come back through an item return.
func (s *Service) RefundSale(ctx context.Context, saleID, actor uuid.UUID, reason string) (Sale, error) {
	if reason == "" {
		reason = "sale refund"
	}
	var sale Sale
	var movements []inventory.Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		sale, err = tx.GetSaleForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if !sale.Status.CanTransitionTo(StatusRefunded) {
			return &shared.InvalidTransitionError{From: string(sale.Status), To: string(StatusRefunded)}
		}
		returned, err := tx.ReturnedBySale(ctx, saleID)
		if err != nil {
			return err
		}
		for _, item := range sale.Items {
			remaining := item.Quantity - returned[item.ProductID]
			if remaining <= 0 {
				continue
			}
			m, err := inventory.Apply(ctx, tx, inventory.MovementParams{
				ProductID:   item.ProductID,
				StoreID:     sale.StoreID,
				Type:        inventory.MovementReturn,
				StockType:   item.StockType,
				Delta:       remaining,
				Reason:      reason,
				PerformedBy: actor,
				SaleID:      &sale.ID,
			})
			if err != nil {
				return err
			}
			movements = append(movements, m)
		}
		if err := tx.UpdateSaleStatus(ctx, saleID, StatusRefunded); err != nil {
			return err
		}
		sale.Status = StatusRefunded
		return nil
	})
	if err != nil {
		return Sale{}, err
	}
	s.countMovements(movements)
	s.recordAudit(ctx, actor, "sales:refund", saleID, map[string]any{"reason": reason})
	return sale, nil
}

// GetSale fetches one sale with items.
func (s *Service) GetSale(ctx context.Context, id uuid.UUID) (Sale, error) {
	return s.repo.GetSale(ctx, id)
}

// ListSales lists sales for a store.
func (s *Service) ListSales(ctx context.Context, filter SaleFilter) ([]Sale, error) {
	if filter.StoreID == uuid.Nil {
		return nil, shared.Validationf("store id is required")
	}
	return s.repo.ListSales(ctx, filter)
}

func (s *Service) deductItems(ctx context.Context, tx TxRepository, sale Sale) ([]inventory.Movement, error) {
	movements := make([]inventory.Movement, 0, len(sale.Items))
	for _, item := range sale.Items {
		m, err := inventory.Apply(ctx, tx, inventory.MovementParams{
			ProductID:   item.ProductID,
			StoreID:     sale.StoreID,
			Type:        inventory.MovementSale,
			StockType:   item.StockType,
			Delta:       -item.Quantity,
			Reason:      "sale " + sale.ReceiptNumber,
			PerformedBy: sale.SoldBy,
			SaleID:      &sale.ID,
		})
		if err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, nil
}

// countMovements runs after commit so rolled-back work is never counted.
func (s *Service) countMovements(movements []inventory.Movement) {
	if s.metrics == nil {
		return
	}
	for _, m := range movements {
		s.metrics.CountMovement(string(m.Type), string(m.StockType))
	}
}

func (s *Service) recordAudit(ctx context.Context, actor uuid.UUID, action string, saleID uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.String(),
		Action:   action,
		Entity:   "sale",
		EntityID: saleID.String(),
		Meta:     meta,
	})
}
