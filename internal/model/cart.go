package model

import "time"

type Cart struct {
	ID        string
	UserID    *string
	Currency  string
	CreatedAt time.Time
	Items     []CartItem // insertion order
}

// CartItem carries the unit price captured when the item was added.
type CartItem struct {
	ID        string
	CartID    string
	Position  int
	ProductID string
	VariantID string
	Quantity  int
	UnitPrice int64
	CreatedAt time.Time
}

func (c Cart) Subtotal() int64 {
	var sum int64
	for _, it := range c.Items {
		sum += it.UnitPrice * int64(it.Quantity)
	}
	return sum
}
