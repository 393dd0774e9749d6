// Package pricing resolves the price of a variant from its time-versioned
// price history and maintains that history.
package pricing

import (
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/model"
)

// Resolve picks the row of currency in force at instant at. Should rows
// overlap, the one with the latest ValidFrom wins.
func Resolve(rows []model.PriceRow, currency string, at time.Time) (model.PriceRow, bool) {
	var (
		best  model.PriceRow
		found bool
	)
	for _, r := range rows {
		if r.Currency != currency || !r.Covers(at) {
			continue
		}
		if !found || r.ValidFrom.After(best.ValidFrom) {
			best, found = r, true
		}
	}
	return best, found
}
