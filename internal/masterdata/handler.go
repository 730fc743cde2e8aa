package masterdata

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/abasto-pos/abasto-pos/internal/platform/httpx"
	"github.com/abasto-pos/abasto-pos/internal/shared"
)

// Handler wires HTTP endpoints for the catalog module.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the catalog handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router, gate func(shared.Capability) func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(gate(shared.CapViewInventory))
		r.Get("/products", h.handleListProducts)
		r.Get("/products/{productID}", h.handleGetProduct)
		r.Get("/stores", h.handleListStores)
		r.Get("/stores/{storeID}", h.handleGetStore)
	})
	r.Group(func(r chi.Router) {
		r.Use(gate(shared.CapManageProducts))
		r.Post("/products", h.handleCreateProduct)
		r.Put("/products/{productID}", h.handleUpdateProduct)
		r.Delete("/products/{productID}", h.handleDeactivateProduct)
		r.Post("/stores", h.handleCreateStore)
		r.Put("/stores/{storeID}", h.handleUpdateStore)
	})
}

type createProductRequest struct {
	StoreID          string  `json:"store_id" validate:"required,uuid"`
	Name             string  `json:"name" validate:"required"`
	SKU              string  `json:"sku" validate:"required"`
	Description      string  `json:"description"`
	Price            float64 `json:"price" validate:"required,gt=0"`
	Cost             float64 `json:"cost" validate:"gte=0"`
	MinStockDeposito int64   `json:"min_stock_deposito" validate:"required,gt=0"`
	MinStockVenta    int64   `json:"min_stock_venta" validate:"required,gt=0"`
}

type updateProductRequest struct {
	Name             string  `json:"name" validate:"required"`
	SKU              string  `json:"sku" validate:"required"`
	Description      string  `json:"description"`
	Price            float64 `json:"price" validate:"required,gt=0"`
	Cost             float64 `json:"cost" validate:"gte=0"`
	MinStockDeposito int64   `json:"min_stock_deposito" validate:"required,gt=0"`
	MinStockVenta    int64   `json:"min_stock_venta" validate:"required,gt=0"`
	IsActive         bool    `json:"is_active"`
}

type storeRequest struct {
	Name    string  `json:"name" validate:"required"`
	Address string  `json:"address"`
	TaxRate float64 `json:"tax_rate" validate:"gte=0,lte=100"`
}

func (h *Handler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if !h.decode(w, r, &req) {
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	p, err := h.service.CreateProduct(r.Context(), CreateProductInput{
		StoreID:          uuid.MustParse(req.StoreID),
		Name:             req.Name,
		SKU:              req.SKU,
		Description:      req.Description,
		Price:            req.Price,
		Cost:             req.Cost,
		MinStockDeposito: req.MinStockDeposito,
		MinStockVenta:    req.MinStockVenta,
	}, actor.UserID)
	if err != nil {
		h.respondErr(w, "create product", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return
	}
	p, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		h.respondErr(w, "get product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	storeID, err := uuid.Parse(r.URL.Query().Get("store_id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "store_id query parameter required")
		return
	}
	filter := ProductFilter{
		StoreID:    storeID,
		Query:      r.URL.Query().Get("q"),
		ActiveOnly: r.URL.Query().Get("include_inactive") != "true",
	}
	products, err := h.service.ListProducts(r.Context(), filter)
	if err != nil {
		h.respondErr(w, "list products", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"products": products})
}

func (h *Handler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return
	}
	var req updateProductRequest
	if !h.decode(w, r, &req) {
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	p, err := h.service.UpdateProduct(r.Context(), id, UpdateProductInput{
		Name:             req.Name,
		SKU:              req.SKU,
		Description:      req.Description,
		Price:            req.Price,
		Cost:             req.Cost,
		MinStockDeposito: req.MinStockDeposito,
		MinStockVenta:    req.MinStockVenta,
		IsActive:         req.IsActive,
	}, actor.UserID)
	if err != nil {
		h.respondErr(w, "update product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) handleDeactivateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	if err := h.service.DeactivateProduct(r.Context(), id, actor.UserID); err != nil {
		h.respondErr(w, "deactivate product", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCreateStore(w http.ResponseWriter, r *http.Request) {
	var req storeRequest
	if !h.decode(w, r, &req) {
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	store, err := h.service.CreateStore(r.Context(), StoreInput{Name: req.Name, Address: req.Address, TaxRate: req.TaxRate}, actor.UserID)
	if err != nil {
		h.respondErr(w, "create store", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, store)
}

func (h *Handler) handleGetStore(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "storeID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid store id")
		return
	}
	store, err := h.service.GetStore(r.Context(), id)
	if err != nil {
		h.respondErr(w, "get store", err)
		return
	}
	httpx.JSON(w, http.StatusOK, store)
}

func (h *Handler) handleListStores(w http.ResponseWriter, r *http.Request) {
	stores, err := h.service.ListStores(r.Context())
	if err != nil {
		h.respondErr(w, "list stores", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"stores": stores})
}

func (h *Handler) handleUpdateStore(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "storeID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid store id")
		return
	}
	var req storeRequest
	if !h.decode(w, r, &req) {
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	store, err := h.service.UpdateStore(r.Context(), id, StoreInput{Name: req.Name, Address: req.Address, TaxRate: req.TaxRate}, actor.UserID)
	if err != nil {
		h.respondErr(w, "update store", err)
		return
	}
	httpx.JSON(w, http.StatusOK, store)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) respondErr(w http.ResponseWriter, op string, err error) {
	h.logger.Warn(op+" failed", slog.Any("error", err))
	httpx.RespondError(w, err)
}
