package model

import "time"

// InventoryRecord holds the stock counters of one variant.
// Quantity includes Reserved; 0 <= Reserved <= Quantity.
type InventoryRecord struct {
	VariantID         string
	Quantity          int
	Reserved          int
	LowStockThreshold int
	UpdatedAt         time.Time
}

func (r InventoryRecord) Available() int { return r.Quantity - r.Reserved }

// Valid reports whether the counters satisfy the ledger invariant.
func (r InventoryRecord) Valid() bool {
	return r.Reserved >= 0 && r.Reserved <= r.Quantity
}

// LowStock reports whether available stock fell to the alert threshold.
func (r InventoryRecord) LowStock() bool {
	return r.LowStockThreshold > 0 && r.Available() <= r.LowStockThreshold
}
