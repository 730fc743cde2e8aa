// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/abasto-pos/abasto-pos/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	var insufficient *shared.InsufficientStockError
	var overReturn *shared.OverReturnError
	var transition *shared.InvalidTransitionError

	switch {
	case errors.Is(err, shared.ErrProductNotFound),
		errors.Is(err, shared.ErrSaleNotFound),
		errors.Is(err, shared.ErrSaleItemNotFound),
		errors.Is(err, shared.ErrStoreNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrValidation),
		errors.Is(err, shared.ErrInvalidReturnType):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.As(err, &insufficient):
		ProblemWithExtra(w, http.StatusConflict, "Insufficient Stock", err.Error(), map[string]any{
			"stock_type": insufficient.StockType,
			"available":  insufficient.Available,
			"required":   insufficient.Required,
		})
	case errors.As(err, &overReturn):
		ProblemWithExtra(w, http.StatusConflict, "Over Return", err.Error(), map[string]any{
			"requested": overReturn.Requested,
			"remaining": overReturn.Remaining,
		})
	case errors.As(err, &transition):
		Problem(w, http.StatusConflict, "Invalid Transition", err.Error())
	case errors.Is(err, shared.ErrConcurrencyConflict),
		errors.Is(err, shared.ErrIdempotencyConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
