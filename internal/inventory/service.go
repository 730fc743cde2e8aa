package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/abasto-pos/abasto-pos/internal/shared"
)

// Service is the stock transfer engine: it orchestrates warehouse and
// sales-floor moves, manual adjustments and warehouse fills. Every
// mutation goes through Apply inside one transaction, so a failed leg
// leaves no partial stock or ledger change.
type Service struct {
	repo  RepositoryPort
	audit shared.AuditRecorder
}

// NewService builds Service. audit may be nil.
func NewService(repo RepositoryPort, audit shared.AuditRecorder) *Service {
	return &Service{repo: repo, audit: audit}
}

// Restock moves quantity from the warehouse to the sales floor.
func (s *Service) Restock(ctx context.Context, input RestockInput) (TransferResult, error) {
	if input.Quantity <= 0 {
		return TransferResult{}, shared.Validationf("restock quantity must be positive")
	}
	reason := input.Reason
	if reason == "" {
		reason = "warehouse to sales floor restock"
	}

	var result TransferResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		out, err := Apply(ctx, tx, MovementParams{
			ProductID: input.ProductID, StoreID: input.StoreID,
			Type: MovementRestock, StockType: StockDeposito,
			Delta: -input.Quantity, Reason: reason, PerformedBy: input.PerformedBy,
		})
		if err != nil {
			return err
		}
		in, err := Apply(ctx, tx, MovementParams{
			ProductID: input.ProductID, StoreID: input.StoreID,
			Type: MovementRestock, StockType: StockVenta,
			Delta: input.Quantity, Reason: reason, PerformedBy: input.PerformedBy,
		})
		if err != nil {
			return err
		}
		levels, err := tx.GetLevels(ctx, input.ProductID)
		if err != nil {
			return err
		}
		result = TransferResult{Levels: levels, Movements: []Movement{out, in}}
		return nil
	})
	if err != nil {
		return TransferResult{}, err
	}
	s.recordAudit(ctx, input.PerformedBy, "inventory:restock", input.ProductID, map[string]any{
		"store_id": input.StoreID, "quantity": input.Quantity,
	})
	return result, nil
}

// FillWarehouse adds received goods to the warehouse pool.
func (s *Service) FillWarehouse(ctx context.Context, input FillWarehouseInput) (TransferResult, error) {
	if input.Quantity <= 0 {
		return TransferResult{}, shared.Validationf("fill quantity must be positive")
	}
	if input.Reason == "" {
		return TransferResult{}, shared.Validationf("fill reason is required")
	}

	var result TransferResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		m, err := Apply(ctx, tx, MovementParams{
			ProductID: input.ProductID, StoreID: input.StoreID,
			Type: MovementAdjustment, StockType: StockDeposito,
			Delta: input.Quantity, Reason: input.Reason, PerformedBy: input.PerformedBy,
		})
		if err != nil {
			return err
		}
		levels, err := tx.GetLevels(ctx, input.ProductID)
		if err != nil {
			return err
		}
		result = TransferResult{Levels: levels, Movements: []Movement{m}}
		return nil
	})
	if err != nil {
		return TransferResult{}, err
	}
	s.recordAudit(ctx, input.PerformedBy, "inventory:fill_warehouse", input.ProductID, map[string]any{
		"store_id": input.StoreID, "quantity": input.Quantity, "reason": input.Reason,
	})
	return result, nil
}

// AdjustWarehouse applies a manual correction to the warehouse pool.
func (s *Service) AdjustWarehouse(ctx context.Context, input AdjustInput) (TransferResult, error) {
	return s.adjust(ctx, StockDeposito, input)
}

// AdjustSales applies a manual correction to the sales-floor pool.
func (s *Service) AdjustSales(ctx context.Context, input AdjustInput) (TransferResult, error) {
	return s.adjust(ctx, StockVenta, input)
}

func (s *Service) adjust(ctx context.Context, st StockType, input AdjustInput) (TransferResult, error) {
	if !input.Type.Valid() {
		return TransferResult{}, shared.Validationf("unknown adjustment type %q", input.Type)
	}
	if input.Quantity < 0 {
		return TransferResult{}, shared.Validationf("adjustment quantity must not be negative")
	}
	if input.Type != AdjustSet && input.Quantity == 0 {
		return TransferResult{}, shared.Validationf("adjustment quantity must be positive")
	}
	if input.Reason == "" {
		return TransferResult{}, shared.Validationf("adjustment reason is required")
	}

	var result TransferResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var delta int64
		switch input.Type {
		case AdjustIncrease:
			delta = input.Quantity
		case AdjustDecrease:
			delta = -input.Quantity
		case AdjustSet:
			levels, err := tx.GetLevels(ctx, input.ProductID)
			if err != nil {
				return err
			}
			delta = input.Quantity - levels.Of(st)
			if delta == 0 {
				// Already at the target: nothing to record.
				result = TransferResult{Levels: levels}
				return nil
			}
		}
		m, err := Apply(ctx, tx, MovementParams{
			ProductID: input.ProductID, StoreID: input.StoreID,
			Type: MovementAdjustment, StockType: st,
			Delta: delta, Reason: input.Reason, PerformedBy: input.PerformedBy,
		})
		if err != nil {
			return err
		}
		levels, err := tx.GetLevels(ctx, input.ProductID)
		if err != nil {
			return err
		}
		result = TransferResult{Levels: levels, Movements: []Movement{m}}
		return nil
	})
	if err != nil {
		return TransferResult{}, err
	}
	s.recordAudit(ctx, input.PerformedBy, fmt.Sprintf("inventory:adjust_%s", st), input.ProductID, map[string]any{
		"store_id": input.StoreID, "type": string(input.Type),
		"quantity": input.Quantity, "reason": input.Reason,
	})
	return result, nil
}

// UpdateSalesFloorStock sets the sales-floor pool to an absolute target by
// transferring the difference against the warehouse. It is a zero-sum
// move: the combined total never changes, and neither pool goes negative.
func (s *Service) UpdateSalesFloorStock(ctx context.Context, input SalesFloorTargetInput) (TransferResult, error) {
	if input.Target < 0 {
		return TransferResult{}, shared.Validationf("sales floor target must not be negative")
	}
	reason := input.Reason
	if reason == "" {
		reason = "sales floor target update"
	}

	var result TransferResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		levels, err := tx.GetLevels(ctx, input.ProductID)
		if err != nil {
			return err
		}
		delta := input.Target - levels.Venta
		if delta == 0 {
			result = TransferResult{Levels: levels}
			return nil
		}

		// Warehouse leg first so a shortfall aborts before any write lands.
		out, err := Apply(ctx, tx, MovementParams{
			ProductID: input.ProductID, StoreID: input.StoreID,
			Type: MovementRestock, StockType: StockDeposito,
			Delta: -delta, Reason: reason, PerformedBy: input.PerformedBy,
		})
		if err != nil {
			return err
		}
		in, err := Apply(ctx, tx, MovementParams{
			ProductID: input.ProductID, StoreID: input.StoreID,
			Type: MovementRestock, StockType: StockVenta,
			Delta: delta, Reason: reason, PerformedBy: input.PerformedBy,
		})
		if err != nil {
			return err
		}
		updated, err := tx.GetLevels(ctx, input.ProductID)
		if err != nil {
			return err
		}
		result = TransferResult{Levels: updated, Movements: []Movement{out, in}}
		return nil
	})
	if err != nil {
		return TransferResult{}, err
	}
	s.recordAudit(ctx, input.PerformedBy, "inventory:sales_floor_target", input.ProductID, map[string]any{
		"store_id": input.StoreID, "target": input.Target,
	})
	return result, nil
}

// GetLevels returns the current balance projection.
func (s *Service) GetLevels(ctx context.Context, productID uuid.UUID) (StockLevels, error) {
	return s.repo.GetLevels(ctx, productID)
}

// ListMovements lists ledger rows.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	return s.repo.ListMovements(ctx, filter)
}

// ListLowStock flags products at or under their thresholds.
func (s *Service) ListLowStock(ctx context.Context, storeID uuid.UUID) ([]LowStockItem, error) {
	return s.repo.ListLowStock(ctx, storeID)
}

// replayPageSize bounds how many ledger rows one replay query loads.
const replayPageSize = 1000

// ReplayBalances folds the full ledger of one product from zero and
// returns the resulting per-pool balances. Used by audits to verify the
// projection matches the ledger. The ledger is read in pages so a
// long-lived product never truncates the replay.
func (s *Service) ReplayBalances(ctx context.Context, productID uuid.UUID) (map[StockType]int64, error) {
	balances := map[StockType]int64{StockDeposito: 0, StockVenta: 0}
	for offset := 0; ; offset += replayPageSize {
		page, err := s.repo.ListMovements(ctx, MovementFilter{
			ProductID: productID,
			Limit:     replayPageSize,
			Offset:    offset,
		})
		if err != nil {
			return nil, err
		}
		for _, m := range page {
			balances[m.StockType] += m.QuantityChange
		}
		if len(page) < replayPageSize {
			return balances, nil
		}
	}
}

func (s *Service) recordAudit(ctx context.Context, actor uuid.UUID, action string, productID uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.String(),
		Action:   action,
		Entity:   "product",
		EntityID: productID.String(),
		Meta:     meta,
	})
}
