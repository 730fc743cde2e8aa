package inventory

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/abasto-pos/abasto-pos/internal/observability"
	"github.com/abasto-pos/abasto-pos/internal/platform/httpx"
	"github.com/abasto-pos/abasto-pos/internal/shared"
)

// Handler wires HTTP endpoints for the inventory module.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	metrics   *observability.Metrics
	validator *validator.Validate
}

// NewHandler constructs the inventory handler.
func NewHandler(logger *slog.Logger, service *Service, metrics *observability.Metrics) *Handler {
	return &Handler{logger: logger, service: service, metrics: metrics, validator: validator.New()}
}

// MountRoutes registers inventory routes. The gate wraps each group with
// a capability check so the module stays importable without the app package.
func (h *Handler) MountRoutes(r chi.Router, gate func(shared.Capability) func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(gate(shared.CapViewInventory))
		r.Get("/products/{productID}/levels", h.handleLevels)
		r.Get("/products/{productID}/movements", h.handleMovements)
		r.Get("/low-stock", h.handleLowStock)
	})
	r.Group(func(r chi.Router) {
		r.Use(gate(shared.CapViewReports))
		r.Get("/products/{productID}/replay", h.handleReplay)
	})
	r.Group(func(r chi.Router) {
		r.Use(gate(shared.CapRestock))
		r.Post("/restock", h.handleRestock)
	})
	r.Group(func(r chi.Router) {
		r.Use(gate(shared.CapFillWarehouse))
		r.Post("/warehouse/fill", h.handleFillWarehouse)
	})
	r.Group(func(r chi.Router) {
		r.Use(gate(shared.CapAdjustStock))
		r.Post("/warehouse/adjust", h.handleAdjustWarehouse)
		r.Post("/sales-floor/adjust", h.handleAdjustSales)
	})
	r.Group(func(r chi.Router) {
		r.Use(gate(shared.CapUpdateSalesFloor))
		r.Put("/sales-floor", h.handleSalesFloorTarget)
	})
}

type restockRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	StoreID   string `json:"store_id" validate:"required,uuid"`
	Quantity  int64  `json:"quantity" validate:"required,gt=0"`
	Reason    string `json:"reason"`
}

type fillRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	StoreID   string `json:"store_id" validate:"required,uuid"`
	Quantity  int64  `json:"quantity" validate:"required,gt=0"`
	Reason    string `json:"reason" validate:"required"`
}

type adjustRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	StoreID   string `json:"store_id" validate:"required,uuid"`
	Type      string `json:"adjustment_type" validate:"required,oneof=increase decrease set"`
	Quantity  int64  `json:"quantity" validate:"gte=0"`
	Reason    string `json:"reason" validate:"required"`
}

type salesFloorTargetRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	StoreID   string `json:"store_id" validate:"required,uuid"`
	Target    int64  `json:"target" validate:"gte=0"`
	Reason    string `json:"reason"`
}

type transferResponse struct {
	ProductID   uuid.UUID `json:"product_id"`
	Deposito    int64     `json:"stock_deposito"`
	Venta       int64     `json:"stock_venta"`
	LegacyStock int64     `json:"legacy_stock"`
	MovementIDs []string  `json:"movement_ids"`
}

func newTransferResponse(res TransferResult) transferResponse {
	out := transferResponse{
		ProductID:   res.Levels.ProductID,
		Deposito:    res.Levels.Deposito,
		Venta:       res.Levels.Venta,
		LegacyStock: res.Levels.Total(),
		MovementIDs: make([]string, 0, len(res.Movements)),
	}
	for _, m := range res.Movements {
		out.MovementIDs = append(out.MovementIDs, m.ID.String())
	}
	return out
}

func (h *Handler) handleRestock(w http.ResponseWriter, r *http.Request) {
	var req restockRequest
	if !h.decode(w, r, &req) {
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	res, err := h.service.Restock(r.Context(), RestockInput{
		ProductID:   uuid.MustParse(req.ProductID),
		StoreID:     uuid.MustParse(req.StoreID),
		Quantity:    req.Quantity,
		Reason:      req.Reason,
		PerformedBy: actor.UserID,
	})
	if err != nil {
		h.respondErr(w, "restock", err)
		return
	}
	h.countMovements(res.Movements)
	httpx.JSON(w, http.StatusOK, newTransferResponse(res))
}

func (h *Handler) handleFillWarehouse(w http.ResponseWriter, r *http.Request) {
	var req fillRequest
	if !h.decode(w, r, &req) {
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	res, err := h.service.FillWarehouse(r.Context(), FillWarehouseInput{
		ProductID:   uuid.MustParse(req.ProductID),
		StoreID:     uuid.MustParse(req.StoreID),
		Quantity:    req.Quantity,
		Reason:      req.Reason,
		PerformedBy: actor.UserID,
	})
	if err != nil {
		h.respondErr(w, "fill warehouse", err)
		return
	}
	h.countMovements(res.Movements)
	httpx.JSON(w, http.StatusOK, newTransferResponse(res))
}

func (h *Handler) handleAdjustWarehouse(w http.ResponseWriter, r *http.Request) {
	h.handleAdjust(w, r, h.service.AdjustWarehouse)
}

func (h *Handler) handleAdjustSales(w http.ResponseWriter, r *http.Request) {
	h.handleAdjust(w, r, h.service.AdjustSales)
}

func (h *Handler) handleAdjust(w http.ResponseWriter, r *http.Request, op func(context.Context, AdjustInput) (TransferResult, error)) {
	var req adjustRequest
	if !h.decode(w, r, &req) {
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	res, err := op(r.Context(), AdjustInput{
		ProductID:   uuid.MustParse(req.ProductID),
		StoreID:     uuid.MustParse(req.StoreID),
		Type:        AdjustmentType(req.Type),
		Quantity:    req.Quantity,
		Reason:      req.Reason,
		PerformedBy: actor.UserID,
	})
	if err != nil {
		h.respondErr(w, "adjust stock", err)
		return
	}
	h.countMovements(res.Movements)
	httpx.JSON(w, http.StatusOK, newTransferResponse(res))
}

func (h *Handler) handleSalesFloorTarget(w http.ResponseWriter, r *http.Request) {
	var req salesFloorTargetRequest
	if !h.decode(w, r, &req) {
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	res, err := h.service.UpdateSalesFloorStock(r.Context(), SalesFloorTargetInput{
		ProductID:   uuid.MustParse(req.ProductID),
		StoreID:     uuid.MustParse(req.StoreID),
		Target:      req.Target,
		Reason:      req.Reason,
		PerformedBy: actor.UserID,
	})
	if err != nil {
		h.respondErr(w, "sales floor target", err)
		return
	}
	h.countMovements(res.Movements)
	httpx.JSON(w, http.StatusOK, newTransferResponse(res))
}

func (h *Handler) handleLevels(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return
	}
	levels, err := h.service.GetLevels(r.Context(), productID)
	if err != nil {
		h.respondErr(w, "get levels", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"product_id":         levels.ProductID,
		"stock_deposito":     levels.Deposito,
		"stock_venta":        levels.Venta,
		"legacy_stock":       levels.Total(),
		"min_stock_deposito": levels.MinDeposito,
		"min_stock_venta":    levels.MinVenta,
	})
}

func (h *Handler) handleMovements(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return
	}
	filter := MovementFilter{ProductID: productID}
	q := r.URL.Query()
	if from := q.Get("from"); from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid from date")
			return
		}
		filter.From = t
	}
	if to := q.Get("to"); to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid to date")
			return
		}
		filter.To = t.Add(24*time.Hour - time.Nanosecond)
	}
	if mt := q.Get("type"); mt != "" {
		filter.Type = MovementType(mt)
	}
	movements, err := h.service.ListMovements(r.Context(), filter)
	if err != nil {
		h.respondErr(w, "list movements", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"movements": movements})
}

func (h *Handler) handleReplay(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product id")
		return
	}
	balances, err := h.service.ReplayBalances(r.Context(), productID)
	if err != nil {
		h.respondErr(w, "replay balances", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"product_id":     productID,
		"stock_deposito": balances[StockDeposito],
		"stock_venta":    balances[StockVenta],
	})
}

func (h *Handler) handleLowStock(w http.ResponseWriter, r *http.Request) {
	storeID, err := uuid.Parse(r.URL.Query().Get("store_id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "store_id query parameter required")
		return
	}
	items, err := h.service.ListLowStock(r.Context(), storeID)
	if err != nil {
		h.respondErr(w, "list low stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
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

func (h *Handler) countMovements(movements []Movement) {
	for _, m := range movements {
		h.metrics.CountMovement(string(m.Type), string(m.StockType))
	}
}
