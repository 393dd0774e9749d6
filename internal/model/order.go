package model

import "time"

type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderPaid      OrderStatus = "PAID"
	OrderCancelled OrderStatus = "CANCELLED"
)

type Order struct {
	ID               string
	StoreID          string
	UserID           *string
	Status           OrderStatus
	Currency         string
	Subtotal         int64
	Shipping         int64
	Discount         int64
	Tax              int64
	Total            int64
	AddressToID      string
	ShippingOptionID *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	Items            []OrderItem
}

// OrderItem freezes SKU, title and price at checkout.
type OrderItem struct {
	ID        string
	OrderID   string
	ProductID string
	VariantID string
	SKU       string
	Title     string
	UnitPrice int64
	Quantity  int
}
