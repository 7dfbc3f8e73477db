package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/alaineid/robomarket-ae-sub000/internal/cart"
	"github.com/alaineid/robomarket-ae-sub000/internal/catalog"
	"github.com/alaineid/robomarket-ae-sub000/internal/checkout"
	"github.com/alaineid/robomarket-ae-sub000/internal/logger"
	"github.com/alaineid/robomarket-ae-sub000/internal/payment"
	"go.uber.org/zap"
)

// StatusClientClosedRequest is returned when the caller went away first.
const StatusClientClosedRequest = 499

type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.S().Warnw("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleServiceError maps domain errors to HTTP responses. Anything not
// listed is a 500 and gets logged.
func handleServiceError(w http.ResponseWriter, r *http.Request, log *logger.Logger, err error) {
	var verr *checkout.ValidationError
	if errors.As(err, &verr) {
		respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:  "please correct the highlighted fields",
			Code:   "validation_failed",
			Fields: verr.Fields,
		})
		return
	}

	var httpStatus int
	var code string

	switch {
	case errors.Is(err, catalog.ErrInvalidFilter):
		httpStatus, code = http.StatusBadRequest, "invalid_filter"
	case errors.Is(err, cart.ErrInvalidQuantity):
		httpStatus, code = http.StatusBadRequest, "invalid_quantity"
	case errors.Is(err, catalog.ErrProductNotFound), errors.Is(err, cart.ErrItemNotInCart):
		httpStatus, code = http.StatusNotFound, "not_found"
	case errors.Is(err, cart.ErrOutOfStock):
		httpStatus, code = http.StatusConflict, "out_of_stock"
	case errors.Is(err, checkout.ErrEmptyCart):
		httpStatus, code = http.StatusConflict, "empty_cart"
	case errors.Is(err, checkout.IllegalTransitionError):
		httpStatus, code = http.StatusConflict, "illegal_transition"
	case errors.Is(err, checkout.ErrStockExceeded):
		httpStatus, code = http.StatusConflict, "stock_exceeded"
	case errors.Is(err, checkout.ErrPriceUnavailable):
		httpStatus, code = http.StatusConflict, "price_unavailable"
	case errors.Is(err, payment.ErrRejected):
		httpStatus, code = http.StatusPaymentRequired, "payment_rejected"
	case errors.Is(err, payment.ErrGatewayUnavailable):
		httpStatus, code = http.StatusBadGateway, "payment_unavailable"
	case errors.Is(err, catalog.ErrUnavailable):
		httpStatus, code = http.StatusServiceUnavailable, "service_unavailable"
	case errors.Is(err, context.Canceled):
		httpStatus, code = StatusClientClosedRequest, "request_canceled"
	case errors.Is(err, context.DeadlineExceeded):
		httpStatus, code = http.StatusGatewayTimeout, "timeout"
	default:
		log.WithContext(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	msg := err.Error()
	if httpStatus == http.StatusServiceUnavailable || httpStatus == http.StatusBadGateway || httpStatus == http.StatusGatewayTimeout {
		msg = "temporarily unavailable, please try again"
	}
	respondError(w, httpStatus, code, msg)
}
