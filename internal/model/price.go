package model

import "time"

// PriceRow is authoritative for [ValidFrom, ValidTo). A nil ValidTo marks the
// open-ended current row.
type PriceRow struct {
	ID        string
	VariantID string
	Currency  string
	Amount    int64 // minor units
	ValidFrom time.Time
	ValidTo   *time.Time
}

// Covers reports whether the row is in force at instant at.
func (p PriceRow) Covers(at time.Time) bool {
	if p.ValidFrom.After(at) {
		return false
	}
	return p.ValidTo == nil || p.ValidTo.After(at)
}

func (p PriceRow) Open() bool { return p.ValidTo == nil }
