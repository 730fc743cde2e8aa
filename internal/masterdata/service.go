package masterdata

import (
	"context"

	"github.com/google/uuid"

	"github.com/abasto-pos/abasto-pos/internal/shared"
)

// Service manages the product catalog and store registry.
type Service struct {
	repo     Repository
	taxCache *TaxRateCache
	audit    shared.AuditRecorder
}

// NewService builds Service. taxCache and audit may be nil.
func NewService(repo Repository, taxCache *TaxRateCache, audit shared.AuditRecorder) *Service {
	return &Service{repo: repo, taxCache: taxCache, audit: audit}
}

// CreateProduct validates and persists a new catalog item.
func (s *Service) CreateProduct(ctx context.Context, input CreateProductInput, actor uuid.UUID) (Product, error) {
	if err := validateProduct(input.Name, input.SKU, input.Price, input.Cost, input.MinStockDeposito, input.MinStockVenta); err != nil {
		return Product{}, err
	}
	if _, err := s.repo.GetStore(ctx, input.StoreID); err != nil {
		return Product{}, err
	}
	p, err := s.repo.CreateProduct(ctx, Product{
		StoreID:          input.StoreID,
		Name:             input.Name,
		SKU:              input.SKU,
		Description:      input.Description,
		Price:            input.Price,
		Cost:             input.Cost,
		MinStockDeposito: input.MinStockDeposito,
		MinStockVenta:    input.MinStockVenta,
	})
	if err != nil {
		return Product{}, err
	}
	s.recordAudit(ctx, actor, "masterdata:create_product", "product", p.ID.String(), map[string]any{"name": p.Name, "sku": p.SKU})
	return p, nil
}

// GetProduct fetches one catalog item.
func (s *Service) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// ListProducts lists catalog items for a store.
func (s *Service) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error) {
	if filter.StoreID == uuid.Nil {
		return nil, shared.Validationf("store id is required")
	}
	return s.repo.ListProducts(ctx, filter)
}

// UpdateProduct replaces the mutable catalog fields.
func (s *Service) UpdateProduct(ctx context.Context, id uuid.UUID, input UpdateProductInput, actor uuid.UUID) (Product, error) {
	if err := validateProduct(input.Name, input.SKU, input.Price, input.Cost, input.MinStockDeposito, input.MinStockVenta); err != nil {
		return Product{}, err
	}
	p, err := s.repo.UpdateProduct(ctx, id, input)
	if err != nil {
		return Product{}, err
	}
	s.recordAudit(ctx, actor, "masterdata:update_product", "product", id.String(), map[string]any{"name": input.Name})
	return p, nil
}

// DeactivateProduct soft-deletes a catalog item; its ledger history stays.
func (s *Service) DeactivateProduct(ctx context.Context, id uuid.UUID, actor uuid.UUID) error {
	if err := s.repo.DeactivateProduct(ctx, id); err != nil {
		return err
	}
	s.recordAudit(ctx, actor, "masterdata:deactivate_product", "product", id.String(), nil)
	return nil
}

// CreateStore registers a new store.
func (s *Service) CreateStore(ctx context.Context, input StoreInput, actor uuid.UUID) (Store, error) {
	if err := validateStore(input); err != nil {
		return Store{}, err
	}
	store, err := s.repo.CreateStore(ctx, Store{Name: input.Name, Address: input.Address, TaxRate: input.TaxRate})
	if err != nil {
		return Store{}, err
	}
	s.recordAudit(ctx, actor, "masterdata:create_store", "store", store.ID.String(), map[string]any{"name": store.Name})
	return store, nil
}

// GetStore fetches one store.
func (s *Service) GetStore(ctx context.Context, id uuid.UUID) (Store, error) {
	return s.repo.GetStore(ctx, id)
}

// ListStores lists all stores.
func (s *Service) ListStores(ctx context.Context) ([]Store, error) {
	return s.repo.ListStores(ctx)
}

// UpdateStore updates a store and drops its cached tax rate.
func (s *Service) UpdateStore(ctx context.Context, id uuid.UUID, input StoreInput, actor uuid.UUID) (Store, error) {
	if err := validateStore(input); err != nil {
		return Store{}, err
	}
	store, err := s.repo.UpdateStore(ctx, id, input)
	if err != nil {
		return Store{}, err
	}
	if s.taxCache != nil {
		if err := s.taxCache.Invalidate(ctx, id); err != nil {
			return Store{}, err
		}
	}
	s.recordAudit(ctx, actor, "masterdata:update_store", "store", id.String(), map[string]any{"tax_rate": input.TaxRate})
	return store, nil
}

// TaxRate resolves the effective tax rate for a store, cached.
func (s *Service) TaxRate(ctx context.Context, storeID uuid.UUID) (float64, error) {
	if s.taxCache != nil {
		return s.taxCache.TaxRate(ctx, storeID)
	}
	store, err := s.repo.GetStore(ctx, storeID)
	if err != nil {
		return 0, err
	}
	return store.TaxRate, nil
}

func (s *Service) recordAudit(ctx context.Context, actor uuid.UUID, action, entity, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor.String(),
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
		Meta:     meta,
	})
}
