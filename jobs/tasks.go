package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/abasto-pos/abasto-pos/internal/inventory"
	jobmetrics "github.com/abasto-pos/abasto-pos/internal/jobs"
	"github.com/abasto-pos/abasto-pos/internal/masterdata"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLowStockScan flags products at or under their minimum thresholds.
	TaskLowStockScan = "inventory:low_stock_scan"
	// TaskLedgerReplayCheck replays each product's ledger and compares the
	// result against the stored balance projection.
	TaskLedgerReplayCheck = "inventory:ledger_replay_check"
)

// ScanPayload carries scheduling metadata for periodic scans.
type ScanPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewLowStockScanTask constructs an Asynq task for the low-stock scan.
func NewLowStockScanTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ScanPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, body, asynq.Queue(QueueDefault)), nil
}

// NewLedgerReplayCheckTask constructs an Asynq task for the ledger audit.
func NewLedgerReplayCheckTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ScanPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerReplayCheck, body, asynq.Queue(QueueDefault)), nil
}

// StoreLister provides the stores to scan.
type StoreLister interface {
	ListStores(ctx context.Context) ([]masterdata.Store, error)
	ListProducts(ctx context.Context, filter masterdata.ProductFilter) ([]masterdata.Product, error)
}

// InventoryChecker exposes the inventory reads the scans need.
type InventoryChecker interface {
	ListLowStock(ctx context.Context, storeID uuid.UUID) ([]inventory.LowStockItem, error)
	ReplayBalances(ctx context.Context, productID uuid.UUID) (map[inventory.StockType]int64, error)
	GetLevels(ctx context.Context, productID uuid.UUID) (inventory.StockLevels, error)
}

// Scanner implements the periodic inventory checks.
type Scanner struct {
	logger  *slog.Logger
	catalog StoreLister
	inv     InventoryChecker
	metrics *jobmetrics.Metrics
}

// NewScanner constructs Scanner. metrics may be nil.
func NewScanner(logger *slog.Logger, catalog StoreLister, inv InventoryChecker, metrics *jobmetrics.Metrics) *Scanner {
	return &Scanner{logger: logger, catalog: catalog, inv: inv, metrics: metrics}
}

// HandleLowStockScan logs every product sitting at or under a threshold.
func (s *Scanner) HandleLowStockScan(ctx context.Context, t *asynq.Task) error {
	var payload ScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := s.metrics.Track("low_stock_scan")
	return tracker.End(s.scanLowStock(ctx))
}

func (s *Scanner) scanLowStock(ctx context.Context) error {
	stores, err := s.catalog.ListStores(ctx)
	if err != nil {
		return err
	}
	for _, store := range stores {
		items, err := s.inv.ListLowStock(ctx, store.ID)
		if err != nil {
			return err
		}
		s.metrics.SetLowStock(store.Name, len(items))
		for _, item := range items {
			s.logger.Warn("low stock",
				slog.String("store", store.Name),
				slog.String("product", item.Name),
				slog.Int64("deposito", item.Deposito),
				slog.Int64("venta", item.Venta),
				slog.Int64("min_deposito", item.MinDeposito),
				slog.Int64("min_venta", item.MinVenta))
		}
	}
	return nil
}

// HandleLedgerReplayCheck detects drift between the balance projection and
// a from-zero replay of the ledger. Drift means a balance was written
// outside the ledger path and needs investigation.
func (s *Scanner) HandleLedgerReplayCheck(ctx context.Context, t *asynq.Task) error {
	var payload ScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := s.metrics.Track("ledger_replay_check")
	return tracker.End(s.replayCheck(ctx))
}

func (s *Scanner) replayCheck(ctx context.Context) error {
	stores, err := s.catalog.ListStores(ctx)
	if err != nil {
		return err
	}
	for _, store := range stores {
		products, err := s.catalog.ListProducts(ctx, masterdata.ProductFilter{StoreID: store.ID, Limit: 10000})
		if err != nil {
			return err
		}
		for _, product := range products {
			replayed, err := s.inv.ReplayBalances(ctx, product.ID)
			if err != nil {
				return err
			}
			levels, err := s.inv.GetLevels(ctx, product.ID)
			if err != nil {
				return err
			}
			// Products start at zero and every change goes through the
			// ledger, so the replay must land exactly on the projection.
			if replayed[inventory.StockDeposito] != levels.Deposito || replayed[inventory.StockVenta] != levels.Venta {
				s.logger.Error("ledger drift",
					slog.String("store", store.Name),
					slog.String("product", product.Name),
					slog.Int64("projected_deposito", levels.Deposito),
					slog.Int64("replayed_deposito", replayed[inventory.StockDeposito]),
					slog.Int64("projected_venta", levels.Venta),
					slog.Int64("replayed_venta", replayed[inventory.StockVenta]))
			}
		}
	}
	return nil
}
