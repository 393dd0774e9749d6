package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
	"go.uber.org/zap"
)

type errorResp struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// statusFor maps the engine's error taxonomy onto HTTP status codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, apperr.ErrFulfillmentInconsistency):
		return http.StatusInternalServerError, "fulfillment_inconsistency"
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperr.ErrEmptyCart):
		return http.StatusBadRequest, "empty_cart"
	case errors.Is(err, apperr.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, apperr.ErrNoPriceForCurrency):
		return http.StatusUnprocessableEntity, "no_price_for_currency"
	case errors.Is(err, apperr.ErrInvalidShippingOption):
		return http.StatusUnprocessableEntity, "invalid_shipping_option"
	case errors.Is(err, apperr.ErrInsufficientStock):
		return http.StatusConflict, "insufficient_stock"
	case errors.Is(err, apperr.ErrInvalidState):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, apperr.ErrTransient):
		return http.StatusServiceUnavailable, "transient"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	code, tag := statusFor(err)
	msg := err.Error()
	if code >= http.StatusInternalServerError {
		logger.Error("request failed", zap.String("code", tag), zap.Error(err))
		if code == http.StatusInternalServerError {
			msg = "internal error"
		}
	}
	writeJSON(w, code, errorResp{Error: msg, Code: tag})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid json: %v: %w", err, apperr.ErrInvalidInput)
	}
	return nil
}
