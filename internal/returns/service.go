package returns

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/abasto-pos/abasto-pos/internal/inventory"
	"github.com/abasto-pos/abasto-pos/internal/observability"
	"github.com/abasto-pos/abasto-pos/internal/sales"
	"github.com/abasto-pos/abasto-pos/internal/shared"
)

// Service is the return reconciliation engine. Returned-so-far quantities
// are never stored; they are derived from the ledger on every decision,
// so over-returning is impossible even across restarts.
type Service struct {
	repo    RepositoryPort
	audit   shared.AuditRecorder
	metrics *observability.Metrics
}

// NewService builds Service. audit and metrics may be nil.
func NewService(repo RepositoryPort, audit shared.AuditRecorder, metrics *observability.Metrics) *Service {
	return &Service{repo: repo, audit: audit, metrics: metrics}
}

// GetReturnsSummary reports, per sale line, how much has come back and how
// much still can. Read-only.
func (s *Service) GetReturnsSummary(ctx context.Context, saleID uuid.UUID) ([]SummaryItem, error) {
	sale, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	returned, err := s.repo.ReturnedBySale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	items := make([]SummaryItem, 0, len(sale.Items))
	for _, item := range sale.Items {
		soFar := returned[item.ProductID]
		items = append(items, SummaryItem{
			SaleItemID:          item.ID,
			ProductID:           item.ProductID,
			ProductName:         item.ProductName,
			Quantity:            item.Quantity,
			ReturnedSoFar:       soFar,
			ReturnableRemaining: item.Quantity - soFar,
		})
	}
	return items, nil
}

// ReturnItemsBatch processes a batch of item returns. Entries run in their
// own transactions and fail independently; the batch never aborts as a
// whole. When the last returnable unit of the sale is consumed the sale
// auto-transitions to refunded.
func (s *Service) ReturnItemsBatch(ctx context.Context, input BatchReturnInput) (BatchReturnResult, error) {
	if len(input.Entries) == 0 {
		return BatchReturnResult{}, shared.Validationf("a return batch requires at least one entry")
	}

	// The sale must exist and be past the pending stage before any entry
	// is attempted.
	sale, err := s.repo.GetSale(ctx, input.SaleID)
	if err != nil {
		return BatchReturnResult{}, err
	}
	if sale.Status == sales.StatusPending || sale.Status == sales.StatusCancelled {
		return BatchReturnResult{}, &shared.InvalidTransitionError{From: string(sale.Status), To: "return"}
	}

	result := BatchReturnResult{SaleID: input.SaleID, Results: make([]EntryResult, 0, len(input.Entries))}
	for _, entry := range input.Entries {
		res := EntryResult{
			SaleItemID: entry.SaleItemID,
			ProductID:  entry.ProductID,
			Quantity:   entry.Quantity,
			Type:       entry.Type,
		}
		movementID, err := s.processEntry(ctx, input.SaleID, entry, input.PerformedBy)
		if err != nil {
			res.Error = err.Error()
		} else {
			res.OK = true
			res.MovementID = movementID
		}
		result.Results = append(result.Results, res)
	}

	final, err := s.repo.GetSale(ctx, input.SaleID)
	if err != nil {
		return BatchReturnResult{}, err
	}
	result.SaleStatus = string(final.Status)
	result.FullyReturned = final.Status == sales.StatusRefunded

	s.recordAudit(ctx, input.PerformedBy, "returns:batch", input.SaleID, map[string]any{
		"entries": len(input.Entries), "status": result.SaleStatus,
	})
	return result, nil
}

// processEntry validates and writes one return entry in its own
// transaction, holding the sale row lock so concurrent batches against
// the same sale serialize.
func (s *Service) processEntry(ctx context.Context, saleID uuid.UUID, entry ReturnEntry, actor uuid.UUID) (*uuid.UUID, error) {
	if !entry.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", shared.ErrInvalidReturnType, entry.Type)
	}
	if entry.Quantity <= 0 {
		return nil, shared.Validationf("return quantity must be positive")
	}

	var moved inventory.Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetSaleForUpdate(ctx, saleID)
		if err != nil {
			return err
		}
		if sale.Status != sales.StatusCompleted && sale.Status != sales.StatusRefunded {
			return &shared.InvalidTransitionError{From: string(sale.Status), To: "return"}
		}

		item, err := findItem(sale, entry)
		if err != nil {
			return err
		}
		if entry.StockType != "" && entry.StockType != item.StockType {
			return shared.Validationf("stock type %q does not match the sale line's pool %q", entry.StockType, item.StockType)
		}

		returned, err := tx.ReturnedBySale(ctx, saleID)
		if err != nil {
			return err
		}
		remaining := item.Quantity - returned[item.ProductID]
		if entry.Quantity > remaining {
			return &shared.OverReturnError{Requested: entry.Quantity, Remaining: remaining}
		}

		params := inventory.MovementParams{
			ProductID:   item.ProductID,
			StoreID:     sale.StoreID,
			Type:        inventory.MovementReturn,
			StockType:   item.StockType,
			Reason:      fmt.Sprintf("%s return", entry.Type),
			PerformedBy: actor,
			SaleID:      &sale.ID,
		}
		if entry.Type == ReturnCustomerMistake {
			params.Delta = entry.Quantity
		} else {
			// Defective write-off: consume returnable quantity with no
			// balance effect.
			params.Quantity = entry.Quantity
		}
		m, err := inventory.Apply(ctx, tx, params)
		if err != nil {
			return err
		}
		moved = m

		if sale.Status == sales.StatusCompleted && fullyReturned(sale, returned, item.ProductID, entry.Quantity) {
			if err := tx.UpdateSaleStatus(ctx, saleID, sales.StatusRefunded); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.countMovement(moved)
	return &moved.ID, nil
}

// GetReturnedProducts lists cumulative per-product return totals and
// write-off losses for one store.
func (s *Service) GetReturnedProducts(ctx context.Context, storeID uuid.UUID) ([]ReturnedProduct, error) {
	return s.repo.ListReturnedProducts(ctx, storeID)
}

func findItem(sale sales.Sale, entry ReturnEntry) (sales.SaleItem, error) {
	for _, item := range sale.Items {
		if item.ID == entry.SaleItemID {
			if item.ProductID != entry.ProductID {
				return sales.SaleItem{}, shared.Validationf("product %s does not match sale line %s", entry.ProductID, entry.SaleItemID)
			}
			return item, nil
		}
	}
	return sales.SaleItem{}, shared.ErrSaleItemNotFound
}

// fullyReturned reports whether, after crediting qty against productID,
// every line of the sale has zero returnable quantity left.
func fullyReturned(sale sales.Sale, returned map[uuid.UUID]int64, productID uuid.UUID, qty int64) bool {
	for _, item := range sale.Items {
		soFar := returned[item.ProductID]
		if item.ProductID == productID {
			soFar += qty
		}
		if soFar < item.Quantity {
			return false
		}
	}
	return true
}

func (s *Service) countMovement(m inventory.Movement) {
	if s.metrics == nil {
		return
	}
	s.metrics.CountMovement(string(m.Type), string(m.StockType))
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
