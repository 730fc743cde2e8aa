package sales

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/abasto-pos/abasto-pos/internal/platform/httpx"
	"github.com/abasto-pos/abasto-pos/internal/shared"
)

// Handler wires HTTP endpoints for the sales module.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the sales handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers sales routes.
func (h *Handler) MountRoutes(r chi.Router, gate func(shared.Capability) func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(gate(shared.CapProcessSale))
		r.Post("/", h.handleProcessSale)
	})
	r.Group(func(r chi.Router) {
		r.Use(gate(shared.CapConfirmSale))
		r.Post("/{saleID}/confirm", h.handleConfirm)
	})
	r.Group(func(r chi.Router) {
		r.Use(gate(shared.CapCancelSale))
		r.Post("/{saleID}/cancel", h.handleCancel)
	})
	r.Group(func(r chi.Router) {
		r.Use(gate(shared.CapRefundSale))
		r.Post("/{saleID}/refund", h.handleRefund)
	})
	r.Group(func(r chi.Router) {
		r.Use(gate(shared.CapViewReports))
		r.Get("/", h.handleListSales)
		r.Get("/{saleID}", h.handleGetSale)
	})
}

type saleLineRequest struct {
	ProductID string  `json:"product_id" validate:"required,uuid"`
	Quantity  int64   `json:"quantity" validate:"required,gt=0"`
	Discount  float64 `json:"discount" validate:"gte=0"`
}

type processSaleRequest struct {
	StoreID                    string            `json:"store_id" validate:"required,uuid"`
	Items                      []saleLineRequest `json:"items" validate:"required,min=1,dive"`
	Discount                   float64           `json:"discount" validate:"gte=0"`
	PaymentMethod              string            `json:"payment_method" validate:"required,oneof=cash card mixed"`
	CashAmount                 float64           `json:"cash_amount" validate:"gte=0"`
	CardAmount                 float64           `json:"card_amount" validate:"gte=0"`
	RequirePaymentConfirmation bool              `json:"require_payment_confirmation"`
	Notes                      string            `json:"notes"`
}

type refundRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) handleProcessSale(w http.ResponseWriter, r *http.Request) {
	var req processSaleRequest
	if !h.decode(w, r, &req) {
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	items := make([]SaleLineInput, 0, len(req.Items))
	for _, line := range req.Items {
		items = append(items, SaleLineInput{ProductID: uuid.MustParse(line.ProductID), Quantity: line.Quantity, Discount: line.Discount})
	}
	sale, err := h.service.ProcessSale(r.Context(), ProcessSaleInput{
		StoreID:                    uuid.MustParse(req.StoreID),
		Items:                      items,
		Discount:                   req.Discount,
		PaymentMethod:              PaymentMethod(req.PaymentMethod),
		CashAmount:                 req.CashAmount,
		CardAmount:                 req.CardAmount,
		RequirePaymentConfirmation: req.RequirePaymentConfirmation,
		Notes:                      req.Notes,
		SoldBy:                     actor.UserID,
		IdempotencyKey:             r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.respondErr(w, "process sale", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sale)
}

func (h *Handler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.ConfirmPendingSale)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.CancelPendingSale)
}

func (h *Handler) handleRefund(w http.ResponseWriter, r *http.Request) {
	saleID, err := uuid.Parse(chi.URLParam(r, "saleID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid sale id")
		return
	}
	var req refundRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
			return
		}
	}
	actor, _ := shared.ActorFromContext(r.Context())
	sale, err := h.service.RefundSale(r.Context(), saleID, actor.UserID, req.Reason)
	if err != nil {
		h.respondErr(w, "refund sale", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) handleGetSale(w http.ResponseWriter, r *http.Request) {
	saleID, err := uuid.Parse(chi.URLParam(r, "saleID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid sale id")
		return
	}
	sale, err := h.service.GetSale(r.Context(), saleID)
	if err != nil {
		h.respondErr(w, "get sale", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) handleListSales(w http.ResponseWriter, r *http.Request) {
	storeID, err := uuid.Parse(r.URL.Query().Get("store_id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "store_id query parameter required")
		return
	}
	filter := SaleFilter{StoreID: storeID, Status: PaymentStatus(r.URL.Query().Get("status"))}
	if from := r.URL.Query().Get("from"); from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid from date")
			return
		}
		filter.From = t
	}
	if to := r.URL.Query().Get("to"); to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid to date")
			return
		}
		filter.To = t.Add(24*time.Hour - time.Nanosecond)
	}
	sales, err := h.service.ListSales(r.Context(), filter)
	if err != nil {
		h.respondErr(w, "list sales", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"sales": sales})
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, saleID, actor uuid.UUID) (Sale, error)) {
	saleID, err := uuid.Parse(chi.URLParam(r, "saleID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid sale id")
		return
	}
	actor, _ := shared.ActorFromContext(r.Context())
	sale, err := op(r.Context(), saleID, actor.UserID)
	if err != nil {
		h.respondErr(w, "sale transition", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
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
