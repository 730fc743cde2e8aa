package returns

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/abasto-pos/abasto-pos/internal/inventory"
	"github.com/abasto-pos/abasto-pos/internal/platform/httpx"
	"github.com/abasto-pos/abasto-pos/internal/shared"
)

// Handler wires HTTP endpoints for the returns module.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the returns handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers returns routes.
func (h *Handler) MountRoutes(r chi.Router, gate func(shared.Capability) func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(gate(shared.CapProcessReturns))
		r.Get("/sales/{saleID}/summary", h.handleSummary)
		r.Post("/sales/{saleID}/items", h.handleBatch)
	})
	r.Group(func(r chi.Router) {
		r.Use(gate(shared.CapViewReports))
		r.Get("/products", h.handleReturnedProducts)
	})
}

type returnEntryRequest struct {
	SaleItemID string `json:"sale_item_id" validate:"required,uuid"`
	ProductID  string `json:"product_id" validate:"required,uuid"`
	StockType  string `json:"stock_type" validate:"omitempty,oneof=deposito venta"`
	Quantity   int64  `json:"quantity" validate:"required,gt=0"`
	Type       string `json:"return_type" validate:"required,oneof=customer_mistake defective"`
}

type batchReturnRequest struct {
	Entries []returnEntryRequest `json:"entries" validate:"required,min=1,dive"`
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	saleID, err := uuid.Parse(chi.URLParam(r, "saleID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid sale id")
		return
	}
	items, err := h.service.GetReturnsSummary(r.Context(), saleID)
	if err != nil {
		h.respondErr(w, "returns summary", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"sale_id": saleID, "items": items})
}

func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request) {
	saleID, err := uuid.Parse(chi.URLParam(r, "saleID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid sale id")
		return
	}
	var req batchReturnRequest
	if !h.decode(w, r, &req) {
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	entries := make([]ReturnEntry, 0, len(req.Entries))
	for _, e := range req.Entries {
		entries = append(entries, ReturnEntry{
			SaleItemID: uuid.MustParse(e.SaleItemID),
			ProductID:  uuid.MustParse(e.ProductID),
			StockType:  inventory.StockType(e.StockType),
			Quantity:   e.Quantity,
			Type:       ReturnType(e.Type),
		})
	}
	result, err := h.service.ReturnItemsBatch(r.Context(), BatchReturnInput{
		SaleID:      saleID,
		Entries:     entries,
		PerformedBy: actor.UserID,
	})
	if err != nil {
		h.respondErr(w, "batch return", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleReturnedProducts(w http.ResponseWriter, r *http.Request) {
	storeID, err := uuid.Parse(r.URL.Query().Get("store_id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "store_id query parameter required")
		return
	}
	products, err := h.service.GetReturnedProducts(r.Context(), storeID)
	if err != nil {
		h.respondErr(w, "returned products", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"products": products})
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
