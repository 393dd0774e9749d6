// Package apperr holds the error taxonomy shared by the engine. Callers wrap
// these sentinels with context and classify them with errors.Is.
package apperr

import "errors"

var (
	ErrNotFound                 = errors.New("not found")
	ErrInvalidInput             = errors.New("invalid input")
	ErrInsufficientStock        = errors.New("insufficient stock")
	ErrInvalidState             = errors.New("invalid state")
	ErrEmptyCart                = errors.New("cart empty")
	ErrNoPriceForCurrency       = errors.New("no price for variant in requested currency")
	ErrInvalidShippingOption    = errors.New("invalid shipping option")
	ErrFulfillmentInconsistency = errors.New("fulfillment inconsistency")
	ErrTransient                = errors.New("transient storage conflict")
)

// IsClientError reports whether err is caused by the request rather than by
// the engine or its storage.
func IsClientError(err error) bool {
	switch {
	case errors.Is(err, ErrFulfillmentInconsistency), errors.Is(err, ErrTransient):
		return false
	}
	for _, e := range []error{
		ErrNotFound, ErrInvalidInput, ErrInsufficientStock, ErrInvalidState,
		ErrEmptyCart, ErrNoPriceForCurrency, ErrInvalidShippingOption,
	} {
		if errors.Is(err, e) {
			return true
		}
	}
	return false
}
